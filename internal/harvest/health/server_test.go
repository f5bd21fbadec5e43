package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/harvester/internal/harvest"
	"github.com/vietddude/harvester/internal/harvest/metrics"
)

type staticProgress harvest.Snapshot

func (p staticProgress) Snapshot() harvest.Snapshot { return harvest.Snapshot(p) }

func TestServer_Health(t *testing.T) {
	s := NewServer(staticProgress{}, nil, 0)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}

func TestServer_Progress(t *testing.T) {
	s := NewServer(staticProgress{
		RunID:    "run-1",
		Phase:    harvest.PhaseSectors,
		Done:     3,
		Total:    10,
		Outcomes: map[harvest.Outcome]int{harvest.OutcomeFetched: 2, harvest.OutcomeFailed: 1},
	}, nil, 0)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/progress", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got harvest.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.RunID != "run-1" || got.Phase != harvest.PhaseSectors || got.Done != 3 || got.Total != 10 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if got.Outcomes[harvest.OutcomeFailed] != 1 {
		t.Errorf("expected 1 failed outcome, got %v", got.Outcomes)
	}
}

func TestServer_Metrics(t *testing.T) {
	metrics.UnitsProcessed.WithLabelValues("roster", "fetched").Inc()

	s := NewServer(staticProgress{}, nil, 0)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "harvester_units_processed_total") {
		t.Errorf("metrics output missing harvester_units_processed_total")
	}
}

type failingStore struct{}

func (failingStore) Health(ctx context.Context) error { return errors.New("connection refused") }

func TestServer_HealthStoreDown(t *testing.T) {
	s := NewServer(staticProgress{}, failingStore{}, 0)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "critical" || body["error"] != "connection refused" {
		t.Errorf("unexpected body: %v", body)
	}
}
