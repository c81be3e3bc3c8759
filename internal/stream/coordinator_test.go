package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/observa-labs/traffic-sentinel/internal/dedup"
	"github.com/observa-labs/traffic-sentinel/internal/ensemble"
	"github.com/observa-labs/traffic-sentinel/internal/models"
	"github.com/observa-labs/traffic-sentinel/internal/resolution"
	"github.com/observa-labs/traffic-sentinel/internal/window"
)

// chanSink forwards detections to a channel so tests can wait on the
// asynchronous dispatcher.
type chanSink struct {
	out chan models.Detection
}

func (s *chanSink) OnDetection(_ context.Context, det models.Detection) error {
	s.out <- det
	return nil
}

func newTestCoordinator(t *testing.T, domain models.Domain, dedupe bool) (*Coordinator, *chanSink) {
	t.Helper()
	resolutions, err := resolution.NewEngine("", nil)
	if err != nil {
		t.Fatalf("resolution engine: %v", err)
	}
	sink := &chanSink{out: make(chan models.Detection, 16)}
	c := NewCoordinator(Config{
		Domain:               domain,
		WindowSize:           4,
		BaselineRequestCount: 5,
		DedupePerKey:         dedupe,
		DedupeTTL:            time.Minute,
		QueueSize:            16,
	},
		ensemble.NewDetector(ensemble.NewBaselineModel(), nil),
		resolutions,
		dedup.NewMemoryStore(),
		[]Sink{sink},
		nil,
	)
	t.Cleanup(c.Close)
	return c, sink
}

func cleanEvent(i int, domain models.Domain) models.RequestEvent {
	paths := []string{"/api/users", "/api/orders", "/api/search", "/api/cart"}
	agents := []string{"ua-chrome", "ua-firefox", "ua-safari", "ua-edge"}
	return models.RequestEvent{
		Method:       "GET",
		Path:         paths[i%len(paths)],
		StatusCode:   200,
		LatencyMs:    120,
		PayloadBytes: 600,
		UserAgent:    agents[i%len(agents)],
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * 2 * time.Second),
		Simulated:    domain == models.DomainSimulation,
	}
}

func failingEvent(i int, domain models.Domain) models.RequestEvent {
	ev := cleanEvent(i, domain)
	ev.Path = "/api/checkout"
	ev.StatusCode = 500
	ev.LatencyMs = 1200
	return ev
}

func TestIngestEmitsOnFullWindow(t *testing.T) {
	c, _ := newTestCoordinator(t, models.DomainLive, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		det, err := c.Ingest(ctx, cleanEvent(i, models.DomainLive))
		if err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		if det != nil {
			t.Fatalf("no detection expected while the window fills")
		}
	}
	det, err := c.Ingest(ctx, cleanEvent(3, models.DomainLive))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if det == nil {
		t.Fatalf("expected a detection once the window is full")
	}
	if det.ID == "" || det.Domain != models.DomainLive || det.WindowID != 1 {
		t.Fatalf("malformed detection: %+v", det)
	}
	if det.IsAnomaly {
		t.Fatalf("clean traffic must not be anomalous: %+v", det)
	}
	if len(det.Suggestions) != 0 {
		t.Fatalf("clean windows get no suggestions, got %d", len(det.Suggestions))
	}
	if det.Cause.Cause != "" {
		t.Fatalf("clean windows get no root cause, got %s", det.Cause.Cause)
	}
}

func TestIngestSlidesAfterFull(t *testing.T) {
	c, _ := newTestCoordinator(t, models.DomainLive, false)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := c.Ingest(ctx, cleanEvent(i, models.DomainLive)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	status := c.Status()
	if status.WindowsProcessed != 3 {
		t.Fatalf("expected one detection per push after filling, got %d", status.WindowsProcessed)
	}
	if status.EventsIngested != 6 {
		t.Fatalf("expected 6 ingested events, got %d", status.EventsIngested)
	}
}

func TestIngestRejectsWrongDomain(t *testing.T) {
	c, _ := newTestCoordinator(t, models.DomainLive, false)
	ev := cleanEvent(0, models.DomainSimulation)

	_, err := c.Ingest(context.Background(), ev)
	if !errors.Is(err, window.ErrDomainMismatch) {
		t.Fatalf("expected ErrDomainMismatch, got %v", err)
	}
	if c.Status().EventsIngested != 0 {
		t.Fatalf("rejected events must not count as ingested")
	}
}

func TestIngestDetectsAnomalyWithCauseAndSuggestions(t *testing.T) {
	c, _ := newTestCoordinator(t, models.DomainLive, false)
	ctx := context.Background()

	var det *models.Detection
	var err error
	for i := 0; i < 4; i++ {
		det, err = c.Ingest(ctx, failingEvent(i, models.DomainLive))
		if err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	if det == nil || !det.IsAnomaly {
		t.Fatalf("all-failing window must be anomalous: %+v", det)
	}
	if det.Type != models.AnomalyErrorSpike {
		t.Fatalf("expected error_spike from the threshold path, got %s", det.Type)
	}
	if det.Severity != models.SeverityCritical {
		t.Fatalf("error rate 1.0 must be CRITICAL, got %s", det.Severity)
	}
	if det.Cause.Cause != models.CauseBackendInstability {
		t.Fatalf("expected backend instability, got %s", det.Cause.Cause)
	}
	if len(det.Suggestions) == 0 {
		t.Fatalf("anomalous detection must carry suggestions")
	}
}

func TestDedupMarksRepeatedAnomalies(t *testing.T) {
	c, _ := newTestCoordinator(t, models.DomainSimulation, true)
	ctx := context.Background()

	var first, second *models.Detection
	for i := 0; i < 4; i++ {
		var err error
		first, err = c.Ingest(ctx, failingEvent(i, models.DomainSimulation))
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	var err error
	second, err = c.Ingest(ctx, failingEvent(4, models.DomainSimulation))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if first == nil || first.Duplicate {
		t.Fatalf("first anomaly for a key must not be a duplicate: %+v", first)
	}
	if second == nil || !second.Duplicate {
		t.Fatalf("repeat anomaly for the same endpoint must be flagged: %+v", second)
	}
}

func TestDedupDisabledNeverFlags(t *testing.T) {
	c, _ := newTestCoordinator(t, models.DomainLive, false)
	ctx := context.Background()

	var det *models.Detection
	for i := 0; i < 6; i++ {
		var err error
		det, err = c.Ingest(ctx, failingEvent(i, models.DomainLive))
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	if det == nil || det.Duplicate {
		t.Fatalf("dedup disabled must never flag duplicates: %+v", det)
	}
}

func TestSinkReceivesEveryDetection(t *testing.T) {
	c, sink := newTestCoordinator(t, models.DomainLive, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.Ingest(ctx, cleanEvent(i, models.DomainLive)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	// Windows complete on pushes 4 and 5.
	for i := 0; i < 2; i++ {
		select {
		case det := <-sink.out:
			if det.Domain != models.DomainLive {
				t.Fatalf("wrong domain on delivered detection: %s", det.Domain)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("sink did not receive detection %d", i+1)
		}
	}
}

func TestServiceRoutesAndIsolates(t *testing.T) {
	resolutions, err := resolution.NewEngine("", nil)
	if err != nil {
		t.Fatalf("resolution engine: %v", err)
	}
	detector := ensemble.NewDetector(ensemble.NewBaselineModel(), nil)
	mk := func(domain models.Domain) *Coordinator {
		return NewCoordinator(Config{
			Domain:               domain,
			WindowSize:           4,
			BaselineRequestCount: 5,
			QueueSize:            16,
		}, detector, resolutions, dedup.NewMemoryStore(), nil, nil)
	}
	svc := NewService(mk(models.DomainLive), mk(models.DomainSimulation), nil)
	t.Cleanup(svc.Close)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := svc.Ingest(ctx, cleanEvent(i, models.DomainSimulation)); err != nil {
			t.Fatalf("ingest simulated: %v", err)
		}
	}
	if _, err := svc.Ingest(ctx, cleanEvent(0, models.DomainLive)); err != nil {
		t.Fatalf("ingest live: %v", err)
	}

	status := svc.Status()
	if len(status) != 2 {
		t.Fatalf("expected both domains, got %d", len(status))
	}
	if status[0].Domain != models.DomainLive || status[1].Domain != models.DomainSimulation {
		t.Fatalf("expected live first: %+v", status)
	}
	if status[0].EventsIngested != 1 || status[0].WindowsProcessed != 0 {
		t.Fatalf("simulated traffic leaked into the live domain: %+v", status[0])
	}
	if status[1].EventsIngested != 4 || status[1].WindowsProcessed != 1 {
		t.Fatalf("simulation domain miscounted: %+v", status[1])
	}
}

func TestServiceRejectsUnknownDomainValue(t *testing.T) {
	svc := NewService(nil, nil, nil)
	// Both Simulated values route somewhere; only a corrupted Domain value
	// inside coordinator() can fail, so exercise it directly.
	if _, err := svc.coordinator(models.Domain("staging")); err == nil {
		t.Fatalf("expected error for unknown domain")
	}
}
