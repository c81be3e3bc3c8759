package window

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

func liveEvent(path string, offset time.Duration) models.RequestEvent {
	return models.RequestEvent{
		Method:     "GET",
		Path:       path,
		StatusCode: 200,
		LatencyMs:  120,
		UserAgent:  "test-agent",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset),
	}
}

func TestPushReturnsNilUntilFull(t *testing.T) {
	w := New(models.DomainLive, 3)
	for i := 0; i < 2; i++ {
		snapshot, err := w.Push(liveEvent(fmt.Sprintf("/p%d", i), time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if snapshot != nil {
			t.Fatalf("expected nil snapshot while filling, got %d events", len(snapshot))
		}
	}
	snapshot, err := w.Push(liveEvent("/p2", 2*time.Second))
	if err != nil {
		t.Fatalf("final push: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("expected full snapshot of 3, got %d", len(snapshot))
	}
}

func TestPushEvictsOldestInOrder(t *testing.T) {
	w := New(models.DomainLive, 3)
	for i := 0; i < 5; i++ {
		if _, err := w.Push(liveEvent(fmt.Sprintf("/p%d", i), time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	snapshot, err := w.Push(liveEvent("/p5", 5*time.Second))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	want := []string{"/p3", "/p4", "/p5"}
	for i, path := range want {
		if snapshot[i].Path != path {
			t.Fatalf("slot %d: expected %s, got %s", i, path, snapshot[i].Path)
		}
	}
	if w.Len() != 3 {
		t.Fatalf("expected size pinned at capacity, got %d", w.Len())
	}
}

func TestPushRejectsDomainMismatch(t *testing.T) {
	w := New(models.DomainLive, 3)
	ev := liveEvent("/p", 0)
	ev.Simulated = true
	if _, err := w.Push(ev); !errors.Is(err, ErrDomainMismatch) {
		t.Fatalf("expected ErrDomainMismatch, got %v", err)
	}
	if w.Len() != 0 {
		t.Fatalf("rejected event must not occupy the window")
	}
}

func TestPushValidatesEvents(t *testing.T) {
	w := New(models.DomainLive, 3)
	cases := map[string]models.RequestEvent{
		"missing method":    {Path: "/p", StatusCode: 200, Timestamp: time.Now()},
		"missing path":      {Method: "GET", StatusCode: 200, Timestamp: time.Now()},
		"zero status":       {Method: "GET", Path: "/p", Timestamp: time.Now()},
		"missing timestamp": {Method: "GET", Path: "/p", StatusCode: 200},
		"negative latency":  {Method: "GET", Path: "/p", StatusCode: 200, Timestamp: time.Now(), LatencyMs: -1},
		"negative payload":  {Method: "GET", Path: "/p", StatusCode: 200, Timestamp: time.Now(), PayloadBytes: -1},
	}
	for name, ev := range cases {
		if _, err := w.Push(ev); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("%s: expected ErrInvalidEvent, got %v", name, err)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	w := New(models.DomainLive, 2)
	w.Push(liveEvent("/a", 0))
	snapshot, err := w.Push(liveEvent("/b", time.Second))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	snapshot[0].Path = "/mutated"

	again, err := w.Push(liveEvent("/c", 2*time.Second))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if again[0].Path != "/b" {
		t.Fatalf("mutating a snapshot leaked into the window: got %s", again[0].Path)
	}
}

func TestResetKeepsDomain(t *testing.T) {
	w := New(models.DomainSimulation, 2)
	ev := liveEvent("/a", 0)
	ev.Simulated = true
	if _, err := w.Push(ev); err != nil {
		t.Fatalf("push: %v", err)
	}
	w.Reset()
	if w.Len() != 0 {
		t.Fatalf("expected empty window after reset, got %d", w.Len())
	}
	if w.Domain() != models.DomainSimulation {
		t.Fatalf("reset must not change the domain binding")
	}
}

func TestNewDefaultsCapacity(t *testing.T) {
	w := New(models.DomainLive, 0)
	if w.Capacity() != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, w.Capacity())
	}
}
