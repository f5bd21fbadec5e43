package opensecrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
)

const legislatorsTX = `{"response":{"legislator":[
 {"@attributes":{"cid":"N1","firstlast":"Ann A","office":"TX01"}},
 {"@attributes":{"cid":"N2","firstlast":"Bob B","office":"TX02"}}
]}}`

const legislatorsVT = `{"response":{"legislator":
 {"@attributes":{"cid":"N9","firstlast":"Val V","office":"VTS1"}}
}}`

const sectorsN1 = `{"response":{"sectors":{"@attributes":{"cid":"N1","cycle":"2020"},"sector":[
 {"@attributes":{"sector_name":"Health","sectorid":"H","indivs":"100","pacs":"5","total":"105"}},
 {"@attributes":{"sector_name":"Energy","sectorid":"E","indivs":"7","pacs":"0","total":"7"}}
]}}}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Roster(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != methodLegislators || q.Get("apikey") != "k" || q.Get("output") != "json" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		switch q.Get("id") {
		case "TX":
			fmt.Fprint(w, legislatorsTX)
		case "VT":
			fmt.Fprint(w, legislatorsVT)
		default:
			http.NotFound(w, r)
		}
	})
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	tx, err := c.Roster(context.Background(), "TX")
	if err != nil {
		t.Fatalf("Roster(TX) failed: %v", err)
	}
	if len(tx) != 2 || tx[1].Attributes["cid"] != "N2" {
		t.Errorf("unexpected TX roster: %+v", tx)
	}

	vt, err := c.Roster(context.Background(), "VT")
	if err != nil {
		t.Fatalf("Roster(VT) failed: %v", err)
	}
	if len(vt) != 1 || vt[0].Attributes["office"] != "VTS1" {
		t.Errorf("single legislator should decode as one record, got %+v", vt)
	}
}

func TestClient_SectorBreakdown(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != methodCandSector || q.Get("cid") != "N1" || q.Get("cycle") != "2020" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, sectorsN1)
	})
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	recs, err := c.SectorBreakdown(context.Background(), "N1", 2020)
	if err != nil {
		t.Fatalf("SectorBreakdown failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 sectors, got %d", len(recs))
	}
	if recs[0].Attributes["sectorid"] != "H" || recs[0].Attributes["total"] != "105" {
		t.Errorf("unexpected first sector: %+v", recs[0])
	}
}

func TestClient_EmptyResult(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"sectors":{"@attributes":{"cid":"N1"}}}}`)
	})
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	recs, err := c.SectorBreakdown(context.Background(), "N1", 2020)
	if err != nil {
		t.Fatalf("SectorBreakdown failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"server error", http.StatusInternalServerError, "boom", KindTransient},
		{"too many requests", http.StatusTooManyRequests, "slow down", KindThrottled},
		{"call limit as text", http.StatusOK, "API call limit reached for today", KindThrottled},
		{"forbidden", http.StatusForbidden, "no", KindUnauthorized},
		{"not found", http.StatusNotFound, "", KindNotFound},
		{"non json body", http.StatusOK, "<html>oops</html>", KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

			_, err := c.Roster(context.Background(), "TX")
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if got := Classify(err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_BudgetExhausted(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, legislatorsVT)
	})
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, NewDailyBudget(1))

	if _, err := c.Roster(context.Background(), "VT"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, err := c.Roster(context.Background(), "VT")
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exhausted budget to skip the request, server saw %d calls", calls)
	}
	left, err := c.RemainingCalls(context.Background())
	if err != nil || left != 0 {
		t.Errorf("RemainingCalls() = %d, %v; want 0, nil", left, err)
	}
}

func TestDailyBudget_Rollover(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	b := NewDailyBudget(2)
	b.now = func() time.Time { return now }
	b.resetAt = nextMidnight(now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Reserve(ctx); err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
	}
	if err := b.Reserve(ctx); !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := b.Reserve(ctx); err != nil {
		t.Fatalf("expected budget to reset after midnight, got %v", err)
	}
	if left, _ := b.Remaining(ctx); left != 1 {
		t.Errorf("Remaining() = %d, want 1", left)
	}
}

func TestDailyBudget_Unlimited(t *testing.T) {
	b := NewDailyBudget(0)
	for i := 0; i < 100; i++ {
		if err := b.Reserve(context.Background()); err != nil {
			t.Fatalf("unlimited budget refused call %d: %v", i, err)
		}
	}
	if left, _ := b.Remaining(context.Background()); left != -1 {
		t.Errorf("Remaining() = %d, want -1", left)
	}
}
