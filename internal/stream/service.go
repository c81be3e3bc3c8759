package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// Service routes events to the coordinator for their isolation domain. Live
// and simulated traffic never share a window, a counter or a dedupe key.
type Service struct {
	live       *Coordinator
	simulation *Coordinator
	logger     *slog.Logger
}

func NewService(live, simulation *Coordinator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{live: live, simulation: simulation, logger: logger}
}

// Ingest routes the event by its Simulated flag.
func (s *Service) Ingest(ctx context.Context, event models.RequestEvent) (*models.Detection, error) {
	c, err := s.coordinator(event.Domain())
	if err != nil {
		return nil, err
	}
	return c.Ingest(ctx, event)
}

// Status reports both domains, live first.
func (s *Service) Status() []DomainStatus {
	return []DomainStatus{s.live.Status(), s.simulation.Status()}
}

func (s *Service) coordinator(domain models.Domain) (*Coordinator, error) {
	switch domain {
	case models.DomainLive:
		return s.live, nil
	case models.DomainSimulation:
		return s.simulation, nil
	default:
		return nil, fmt.Errorf("unknown domain %q", domain)
	}
}

func (s *Service) Close() {
	s.live.Close()
	s.simulation.Close()
}
