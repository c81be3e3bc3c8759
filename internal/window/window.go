package window

import (
	"errors"
	"fmt"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// ErrDomainMismatch signals that an event tagged for another isolation domain
// was pushed into this window. Mixing live and simulated traffic is a
// programming error, never silently partitioned.
var ErrDomainMismatch = errors.New("event domain does not match window domain")

// ErrInvalidEvent signals a malformed event missing required fields.
var ErrInvalidEvent = errors.New("invalid request event")

// DefaultCapacity matches the source system's ten-event sliding window.
const DefaultCapacity = 10

// Window is a fixed-capacity FIFO buffer of recent request events for one
// isolation domain. Not safe for concurrent use; callers serialise Push.
type Window struct {
	domain   models.Domain
	capacity int
	events   []models.RequestEvent
	head     int
	size     int
}

// New creates a window bound to the given isolation domain.
func New(domain models.Domain, capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		domain:   domain,
		capacity: capacity,
		events:   make([]models.RequestEvent, capacity),
	}
}

// Push appends an event, evicting the single oldest event once at capacity.
// It returns a snapshot of the full window in arrival order once capacity is
// reached, and for every push thereafter; nil while still filling.
func (w *Window) Push(event models.RequestEvent) ([]models.RequestEvent, error) {
	if err := validate(event); err != nil {
		return nil, err
	}
	if event.Domain() != w.domain {
		return nil, fmt.Errorf("%w: window=%s event=%s", ErrDomainMismatch, w.domain, event.Domain())
	}

	if w.size == w.capacity {
		// Overwrite the oldest slot and advance the head.
		w.events[w.head] = event
		w.head = (w.head + 1) % w.capacity
	} else {
		w.events[(w.head+w.size)%w.capacity] = event
		w.size++
	}

	if w.size < w.capacity {
		return nil, nil
	}
	return w.snapshot(), nil
}

// Len reports how many events the window currently holds.
func (w *Window) Len() int { return w.size }

// Capacity reports the configured window size N.
func (w *Window) Capacity() int { return w.capacity }

// Domain reports the isolation domain this window is bound to.
func (w *Window) Domain() models.Domain { return w.domain }

// Reset clears the window without changing its domain binding.
func (w *Window) Reset() {
	w.head = 0
	w.size = 0
}

func (w *Window) snapshot() []models.RequestEvent {
	out := make([]models.RequestEvent, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.events[(w.head+i)%w.capacity]
	}
	return out
}

func validate(event models.RequestEvent) error {
	switch {
	case event.Method == "":
		return fmt.Errorf("%w: missing method", ErrInvalidEvent)
	case event.Path == "":
		return fmt.Errorf("%w: missing path", ErrInvalidEvent)
	case event.StatusCode <= 0:
		return fmt.Errorf("%w: status code %d", ErrInvalidEvent, event.StatusCode)
	case event.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	case event.LatencyMs < 0:
		return fmt.Errorf("%w: negative latency", ErrInvalidEvent)
	case event.PayloadBytes < 0:
		return fmt.Errorf("%w: negative payload size", ErrInvalidEvent)
	}
	return nil
}
