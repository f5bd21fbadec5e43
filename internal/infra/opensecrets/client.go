// Package opensecrets is a client for the OpenSecrets.org API methods the
// harvester needs: getLegislators (roster per state) and candSector (sector
// breakdown per candidate and cycle).
package opensecrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/harvest/metrics"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://www.opensecrets.org/api"

	methodLegislators = "getLegislators"
	methodCandSector  = "candSector"
)

// Config holds API client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the API. It performs no retries and no throttling of its own;
// callers wrap it in the session's throttle.
type Client struct {
	http   *resty.Client
	budget Budget
}

// NewClient creates a client. budget may be nil for no quota accounting.
func NewClient(cfg Config, budget Budget) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetQueryParam("apikey", cfg.APIKey).
		SetQueryParam("output", "json")

	return &Client{http: rc, budget: budget}
}

// Roster returns the legislators of a state. The API answers with a bare
// object when the state has a single legislator; it is normalized to a
// one-element slice.
func (c *Client) Roster(ctx context.Context, state string) ([]domain.Record, error) {
	var body struct {
		Response struct {
			Legislator domain.Records `json:"legislator"`
		} `json:"response"`
	}
	if err := c.get(ctx, methodLegislators, map[string]string{"id": state}, &body); err != nil {
		return nil, err
	}
	return body.Response.Legislator, nil
}

// SectorBreakdown returns a candidate's contributions by sector for a cycle.
func (c *Client) SectorBreakdown(ctx context.Context, candidateID string, cycle int) ([]domain.Record, error) {
	var body struct {
		Response struct {
			Sectors struct {
				Sector domain.Records `json:"sector"`
			} `json:"sectors"`
		} `json:"response"`
	}
	params := map[string]string{"cid": candidateID, "cycle": strconv.Itoa(cycle)}
	if err := c.get(ctx, methodCandSector, params, &body); err != nil {
		return nil, err
	}
	return body.Response.Sectors.Sector, nil
}

// RemainingCalls reports the budget left today, or -1 when unlimited.
func (c *Client) RemainingCalls(ctx context.Context) (int, error) {
	if c.budget == nil {
		return -1, nil
	}
	return c.budget.Remaining(ctx)
}

func (c *Client) get(ctx context.Context, method string, params map[string]string, out any) error {
	if c.budget != nil {
		if err := c.budget.Reserve(ctx); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		if left, err := c.budget.Remaining(ctx); err == nil {
			metrics.CallBudgetRemaining.Set(float64(left))
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("method", method).
		SetQueryParams(params).
		Get("/")
	if err != nil {
		return fmt.Errorf("%s: request: %w", method, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return &APIError{
			Method:     method,
			StatusCode: resp.StatusCode(),
			Body:       string(body),
			Kind:       classify(resp.StatusCode(), string(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		// Quota and key errors arrive as plain text with a 200 status.
		apiErr := &APIError{
			Method:     method,
			StatusCode: resp.StatusCode(),
			Body:       string(body),
			Kind:       classify(resp.StatusCode(), string(body)),
		}
		slog.DebugContext(ctx, "Undecodable API response", "method", method, "kind", apiErr.Kind.String(), "error", err)
		return apiErr
	}
	return nil
}
