package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/observa-labs/traffic-sentinel/internal/dedup"
	"github.com/observa-labs/traffic-sentinel/internal/ensemble"
	"github.com/observa-labs/traffic-sentinel/internal/models"
	"github.com/observa-labs/traffic-sentinel/internal/resolution"
	"github.com/observa-labs/traffic-sentinel/internal/store"
	"github.com/observa-labs/traffic-sentinel/internal/stream"
)

type staticClients int

func (c staticClients) ClientCount() int { return int(c) }

func newTestHandlers(t *testing.T) (*Handlers, *store.SQLiteStore) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	resolutions, err := resolution.NewEngine("", nil)
	if err != nil {
		t.Fatalf("resolution engine: %v", err)
	}
	detector := ensemble.NewDetector(ensemble.NewBaselineModel(), nil)
	mk := func(domain models.Domain) *stream.Coordinator {
		return stream.NewCoordinator(stream.Config{
			Domain:               domain,
			WindowSize:           3,
			BaselineRequestCount: 5,
		}, detector, resolutions, dedup.NewMemoryStore(), nil, nil)
	}
	svc := stream.NewService(mk(models.DomainLive), mk(models.DomainSimulation), nil)
	t.Cleanup(svc.Close)

	return NewHandlers(svc, st, http.NotFoundHandler(), staticClients(2), nil), st
}

func eventBody(t *testing.T, simulated bool) string {
	t.Helper()
	ev := models.RequestEvent{
		Method:     "GET",
		Path:       "/api/users",
		StatusCode: 200,
		LatencyMs:  120,
		UserAgent:  "test-agent",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Simulated:  simulated,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(data)
}

func TestIngestEventAccepted(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(eventBody(t, false)))
	rec := httptest.NewRecorder()
	h.IngestEvent(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Accepted  bool              `json:"accepted"`
		Detection *models.Detection `json:"detection"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("expected accepted=true")
	}
	if resp.Detection != nil {
		t.Fatalf("no detection expected while the window fills")
	}
}

func TestIngestEventReturnsDetectionOnFullWindow(t *testing.T) {
	h, _ := newTestHandlers(t)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(eventBody(t, false)))
		rec = httptest.NewRecorder()
		h.IngestEvent(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("push %d: expected 202, got %d", i, rec.Code)
		}
	}
	var resp struct {
		Detection *models.Detection `json:"detection"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Detection == nil {
		t.Fatalf("expected a detection on the third event")
	}
	if resp.Detection.Domain != models.DomainLive {
		t.Fatalf("expected live domain, got %s", resp.Detection.Domain)
	}
}

func TestIngestEventBadJSON(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader("{not-json"))
	rec := httptest.NewRecorder()
	h.IngestEvent(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestEventContractViolation(t *testing.T) {
	h, _ := newTestHandlers(t)

	// Missing method and timestamp.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events",
		strings.NewReader(`{"path":"/api/users","status_code":200}`))
	rec := httptest.NewRecorder()
	h.IngestEvent(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid event, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusReportsBothDomains(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(eventBody(t, true)))
	h.IngestEvent(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Domains       []stream.DomainStatus `json:"domains"`
		StreamClients int                   `json:"stream_clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(resp.Domains))
	}
	if resp.Domains[1].EventsIngested != 1 {
		t.Fatalf("simulated ingest must land in the simulation domain: %+v", resp.Domains)
	}
	if resp.StreamClients != 2 {
		t.Fatalf("expected 2 stream clients, got %d", resp.StreamClients)
	}
}

func seedAnomaly(t *testing.T, st *store.SQLiteStore, id string, domain models.Domain) {
	t.Helper()
	err := st.OnDetection(context.Background(), models.Detection{
		ID:        id,
		Domain:    domain,
		IsAnomaly: true,
		Type:      models.AnomalyLatencySpike,
		Severity:  models.SeverityHigh,
		Vector:    models.FeatureVector{DominantEndpoint: "/api/slow"},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestListAnomalies(t *testing.T) {
	h, st := newTestHandlers(t)
	seedAnomaly(t, st, "a1", models.DomainLive)
	seedAnomaly(t, st, "a2", models.DomainSimulation)

	rec := httptest.NewRecorder()
	h.ListAnomalies(rec, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies?domain=live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Anomalies []store.Record `json:"anomalies"`
		Count     int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Anomalies[0].ID != "a1" {
		t.Fatalf("domain filter failed: %+v", resp)
	}
}

func TestListAnomaliesRejectsBadParams(t *testing.T) {
	h, _ := newTestHandlers(t)
	for _, url := range []string{
		"/api/v1/anomalies?domain=staging",
		"/api/v1/anomalies?severity=URGENT",
		"/api/v1/anomalies?since=yesterday",
		"/api/v1/anomalies?until=tomorrow",
		"/api/v1/anomalies?limit=0",
		"/api/v1/anomalies?limit=abc",
	} {
		rec := httptest.NewRecorder()
		h.ListAnomalies(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", url, rec.Code)
		}
	}
}

func TestGetAnomaly(t *testing.T) {
	h, st := newTestHandlers(t)
	seedAnomaly(t, st, "a1", models.DomainLive)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/a1", nil),
		map[string]string{"id": "a1"})
	rec := httptest.NewRecorder()
	h.GetAnomaly(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/missing", nil),
		map[string]string{"id": "missing"})
	rec = httptest.NewRecorder()
	h.GetAnomaly(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
