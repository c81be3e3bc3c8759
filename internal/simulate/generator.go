// Package simulate generates synthetic request traffic for exercising the
// detection pipeline without touching the live domain.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// Ingester is the subset of the stream service the generator needs.
type Ingester interface {
	Ingest(ctx context.Context, event models.RequestEvent) (*models.Detection, error)
}

// Profile names a traffic shape.
type Profile string

const (
	// ProfileNormal emits diverse, healthy browsing traffic.
	ProfileNormal Profile = "normal"
	// ProfileHeavy emits slow, error-prone, large-payload traffic.
	ProfileHeavy Profile = "heavy"
	// ProfileBot emits a single repeated endpoint with one user agent.
	ProfileBot Profile = "bot"
	// ProfileMixed interleaves the three shapes, weighted towards normal.
	ProfileMixed Profile = "mixed"
)

// Config controls one generator.
type Config struct {
	Profile     Profile
	Interval    time.Duration
	AnomalyRate float64
	Seed        int64
}

// Generator emits simulated request events at a fixed cadence. All events it
// produces carry the simulated flag, so they can never reach the live window.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	sink   Ingester
	logger *slog.Logger
}

var normalPaths = []string{
	"/api/users", "/api/products", "/api/orders", "/api/search",
	"/api/cart", "/api/checkout", "/api/reviews", "/api/categories",
	"/api/profile", "/api/notifications",
}

var normalAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
	"Mozilla/5.0 (X11; Linux x86_64)",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	"Mozilla/5.0 (Linux; Android 14)",
}

func NewGenerator(cfg Config, sink Ingester, logger *slog.Logger) (*Generator, error) {
	switch cfg.Profile {
	case ProfileNormal, ProfileHeavy, ProfileBot, ProfileMixed:
	default:
		return nil, fmt.Errorf("unknown simulator profile %q", cfg.Profile)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.AnomalyRate < 0 || cfg.AnomalyRate > 1 {
		return nil, fmt.Errorf("anomaly rate must be within [0,1], got %v", cfg.AnomalyRate)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		sink:   sink,
		logger: logger,
	}, nil
}

// Run emits events until the context is cancelled.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()
	g.logger.Info("simulator started",
		slog.String("profile", string(g.cfg.Profile)),
		slog.Duration("interval", g.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("simulator stopped")
			return
		case <-ticker.C:
			event := g.Next()
			if _, err := g.sink.Ingest(ctx, event); err != nil {
				g.logger.Warn("simulated event rejected", slog.Any("error", err))
			}
		}
	}
}

// Next produces one event according to the configured profile.
func (g *Generator) Next() models.RequestEvent {
	profile := g.cfg.Profile
	if profile == ProfileMixed {
		switch r := g.rng.Float64(); {
		case r < g.cfg.AnomalyRate/2:
			profile = ProfileHeavy
		case r < g.cfg.AnomalyRate:
			profile = ProfileBot
		default:
			profile = ProfileNormal
		}
	}
	switch profile {
	case ProfileHeavy:
		return g.heavyEvent()
	case ProfileBot:
		return g.botEvent()
	default:
		return g.normalEvent()
	}
}

func (g *Generator) normalEvent() models.RequestEvent {
	method := "GET"
	if g.rng.Float64() < 0.25 {
		method = "POST"
	}
	status := 200
	if g.rng.Float64() < 0.03 {
		status = 500
	}
	return models.RequestEvent{
		Method:       method,
		Path:         normalPaths[g.rng.Intn(len(normalPaths))],
		StatusCode:   status,
		LatencyMs:    50 + g.rng.Float64()*200,
		PayloadBytes: 200 + g.rng.Intn(1800),
		UserAgent:    normalAgents[g.rng.Intn(len(normalAgents))],
		Parameters:   g.randomParams(),
		Timestamp:    time.Now().UTC(),
		Simulated:    true,
	}
}

func (g *Generator) heavyEvent() models.RequestEvent {
	status := 200
	switch r := g.rng.Float64(); {
	case r < 0.30:
		status = 500
	case r < 0.45:
		status = 503
	}
	return models.RequestEvent{
		Method:       "POST",
		Path:         "/api/export",
		StatusCode:   status,
		LatencyMs:    800 + g.rng.Float64()*4500,
		PayloadBytes: 6000 + g.rng.Intn(9000),
		UserAgent:    normalAgents[g.rng.Intn(len(normalAgents))],
		Parameters:   map[string]string{"format": "csv", "range": "all"},
		Timestamp:    time.Now().UTC(),
		Simulated:    true,
	}
}

func (g *Generator) botEvent() models.RequestEvent {
	status := 200
	if g.rng.Float64() < 0.40 {
		status = 429
	}
	return models.RequestEvent{
		Method:       "GET",
		Path:         "/api/login",
		StatusCode:   status,
		LatencyMs:    20 + g.rng.Float64()*40,
		PayloadBytes: 120,
		UserAgent:    "python-requests/2.31",
		Parameters:   map[string]string{"user": "admin", "attempt": "retry"},
		Timestamp:    time.Now().UTC(),
		Simulated:    true,
	}
}

func (g *Generator) randomParams() map[string]string {
	if g.rng.Float64() < 0.4 {
		return nil
	}
	return map[string]string{
		"page": fmt.Sprintf("%d", 1+g.rng.Intn(20)),
		"sort": []string{"asc", "desc", "recent"}[g.rng.Intn(3)],
	}
}
