// Package stream owns one window-plus-detection pipeline per isolation
// domain and fans results out to broadcast and persistence sinks.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/observa-labs/traffic-sentinel/internal/dedup"
	"github.com/observa-labs/traffic-sentinel/internal/detect"
	"github.com/observa-labs/traffic-sentinel/internal/ensemble"
	"github.com/observa-labs/traffic-sentinel/internal/features"
	"github.com/observa-labs/traffic-sentinel/internal/metrics"
	"github.com/observa-labs/traffic-sentinel/internal/models"
	"github.com/observa-labs/traffic-sentinel/internal/resolution"
	"github.com/observa-labs/traffic-sentinel/internal/rootcause"
	"github.com/observa-labs/traffic-sentinel/internal/utils"
	"github.com/observa-labs/traffic-sentinel/internal/window"
)

// Sink consumes completed detections. Delivery is best-effort and must never
// block ingestion; a failing sink is logged and skipped.
type Sink interface {
	OnDetection(ctx context.Context, det models.Detection) error
}

// Config controls one coordinator instance.
type Config struct {
	Domain               models.Domain
	WindowSize           int
	BaselineRequestCount int
	DedupePerKey         bool
	DedupeTTL            time.Duration
	QueueSize            int
}

// DomainStatus is the read-only introspection surface for one domain.
type DomainStatus struct {
	Domain           models.Domain `json:"domain"`
	WindowFill       int           `json:"window_fill"`
	WindowSize       int           `json:"window_size"`
	IsWindowFull     bool          `json:"is_window_full"`
	EventsIngested   uint64        `json:"events_ingested"`
	WindowsProcessed uint64        `json:"windows_processed"`
	LastDetectionAt  *time.Time    `json:"last_detection_at,omitempty"`
}

// Coordinator serialises event ingestion for one domain and runs the
// detection pipeline whenever the window is full. Counters are instance
// fields; nothing here is ambient global state.
type Coordinator struct {
	cfg         Config
	logger      *slog.Logger
	threshold   *detect.ThresholdDetector
	ensemble    *ensemble.Detector
	classifier  *rootcause.Classifier
	resolutions *resolution.Engine
	dedupe      dedup.Store
	sinks       []Sink

	mu               sync.Mutex
	win              *window.Window
	eventsIngested   uint64
	windowsProcessed uint64
	lastDetection    time.Time
	latencies        *utils.LatencyTracker

	results chan models.Detection
	done    chan struct{}
	once    sync.Once
}

// NewCoordinator constructs and starts a coordinator for one domain.
func NewCoordinator(
	cfg Config,
	ens *ensemble.Detector,
	resolutions *resolution.Engine,
	dedupe dedup.Store,
	sinks []Sink,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 5 * time.Minute
	}
	c := &Coordinator{
		cfg:         cfg,
		logger:      logger.With(slog.String("domain", string(cfg.Domain))),
		threshold:   detect.NewThresholdDetector(),
		ensemble:    ens,
		classifier:  rootcause.New(cfg.BaselineRequestCount, ensemble.BotClusterID),
		resolutions: resolutions,
		dedupe:      dedupe,
		sinks:       sinks,
		win:         window.New(cfg.Domain, cfg.WindowSize),
		latencies:   utils.NewLatencyTracker(1024),
		results:     make(chan models.Detection, cfg.QueueSize),
		done:        make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Ingest applies one event to the window. When the window is full it runs the
// complete pipeline and returns the detection; nil while the window fills.
// Contract violations (wrong domain, malformed event) fail fast.
func (c *Coordinator) Ingest(ctx context.Context, event models.RequestEvent) (*models.Detection, error) {
	c.mu.Lock()
	snapshot, err := c.win.Push(event)
	if err != nil {
		c.mu.Unlock()
		return nil, utils.NewAppError("stream.Ingest", "event rejected", err)
	}
	c.eventsIngested++
	var windowID uint64
	if snapshot != nil {
		c.windowsProcessed++
		windowID = c.windowsProcessed
	}
	c.mu.Unlock()

	metrics.ObserveEvent(string(c.cfg.Domain))
	if snapshot == nil {
		return nil, nil
	}

	start := time.Now()
	det := c.runPipeline(ctx, snapshot, windowID)
	duration := time.Since(start)

	c.mu.Lock()
	c.lastDetection = det.CreatedAt
	c.latencies.Observe(duration)
	count := c.latencies.Count()
	c.mu.Unlock()

	metrics.ObserveWindow(string(c.cfg.Domain), duration)
	if det.Degraded {
		metrics.ObserveDegraded(string(c.cfg.Domain))
	}
	if det.IsAnomaly {
		metrics.ObserveDetection(string(c.cfg.Domain), string(det.Type), string(det.Severity))
	}
	if count >= 100 && count%100 == 0 {
		c.logger.Info("detection latency",
			slog.Duration("p95", c.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	c.publish(det)
	return &det, nil
}

// runPipeline executes extraction, both detectors, classification and
// suggestion generation over one snapshot. Pure except for the dedupe lookup.
func (c *Coordinator) runPipeline(ctx context.Context, snapshot []models.RequestEvent, windowID uint64) models.Detection {
	vector, err := features.Extract(snapshot)
	if err != nil {
		// Unreachable with a full window; kept to honour the extractor contract.
		c.logger.Error("feature extraction failed", slog.Any("error", err))
		return models.Detection{
			ID:        uuid.NewString(),
			Domain:    c.cfg.Domain,
			WindowID:  windowID,
			Severity:  models.SeverityLow,
			CreatedAt: time.Now().UTC(),
		}
	}

	thr := c.threshold.Detect(vector)
	hyb := c.ensemble.Score(ctx, vector)

	det := models.Detection{
		ID:        uuid.NewString(),
		Domain:    c.cfg.Domain,
		WindowID:  windowID,
		Vector:    vector,
		Threshold: thr,
		Hybrid:    hyb,
		IsAnomaly: thr.IsAnomaly || hyb.IsAnomaly,
		Degraded:  hyb.Degraded,
		CreatedAt: time.Now().UTC(),
	}

	// The more severe of the two verdicts wins; the threshold result also
	// carries the anomaly type when it fired.
	det.Severity = hyb.Priority
	if thr.IsAnomaly && thr.Severity.Rank() >= hyb.Priority.Rank() {
		det.Severity = thr.Severity
	}
	if thr.IsAnomaly {
		det.Type = thr.Type
	}

	if det.IsAnomaly {
		det.Cause = c.classifier.Classify(vector, hyb)
		det.Suggestions = c.suggestionsFor(det)
		if c.cfg.DedupePerKey {
			det.Duplicate = c.isDuplicate(ctx, vector.DominantEndpoint)
		}
	}
	return det
}

// suggestionsFor merges the anomaly-type catalog entry with the root-cause
// entry, deduplicated and ranked.
func (c *Coordinator) suggestionsFor(det models.Detection) []models.Suggestion {
	var scored []resolution.ScoredSuggestion
	if det.Type != models.AnomalyNone {
		for _, s := range c.resolutions.Generate(string(det.Type), det.Severity) {
			scored = append(scored, resolution.ScoredSuggestion{Suggestion: s, Impact: det.Threshold.ImpactScore})
		}
	}
	for _, s := range c.resolutions.Generate(string(det.Cause.Cause), det.Severity) {
		scored = append(scored, resolution.ScoredSuggestion{Suggestion: s, Impact: det.Hybrid.RiskScore})
	}
	return resolution.Aggregate(scored)
}

// isDuplicate reserves the per-endpoint key; on dedupe store failure the
// detection is treated as first-seen so nothing is suppressed by accident.
func (c *Coordinator) isDuplicate(ctx context.Context, endpoint string) bool {
	key := string(c.cfg.Domain) + "/" + endpoint
	reserved, err := c.dedupe.Reserve(ctx, key, c.cfg.DedupeTTL)
	if err != nil {
		c.logger.Warn("dedupe store unavailable", slog.Any("error", err))
		return false
	}
	return !reserved
}

// publish hands the detection to the dispatcher without ever blocking the
// ingest path. A full queue drops the result and counts the drop.
func (c *Coordinator) publish(det models.Detection) {
	select {
	case c.results <- det:
	default:
		metrics.ObserveDroppedResult(string(c.cfg.Domain))
		c.logger.Warn("result queue full, dropping detection",
			slog.String("id", det.ID), slog.Uint64("window_id", det.WindowID))
	}
}

func (c *Coordinator) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case det := <-c.results:
			for _, sink := range c.sinks {
				if err := sink.OnDetection(context.Background(), det); err != nil {
					c.logger.Warn("sink delivery failed",
						slog.String("id", det.ID), slog.Any("error", err))
				}
			}
		}
	}
}

// Status returns the read-only introspection snapshot.
func (c *Coordinator) Status() DomainStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := DomainStatus{
		Domain:           c.cfg.Domain,
		WindowFill:       c.win.Len(),
		WindowSize:       c.win.Capacity(),
		IsWindowFull:     c.win.Len() == c.win.Capacity(),
		EventsIngested:   c.eventsIngested,
		WindowsProcessed: c.windowsProcessed,
	}
	if !c.lastDetection.IsZero() {
		last := c.lastDetection
		status.LastDetectionAt = &last
	}
	return status
}

// Close stops the dispatcher. Events ingested after Close are still detected
// but no longer delivered to sinks.
func (c *Coordinator) Close() {
	c.once.Do(func() { close(c.done) })
}
