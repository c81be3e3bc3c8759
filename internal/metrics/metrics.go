package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_sentinel",
			Name:      "events_ingested_total",
			Help:      "Total request events accepted, partitioned by isolation domain.",
		},
		[]string{"domain"},
	)

	windowsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_sentinel",
			Name:      "windows_processed_total",
			Help:      "Total full windows run through the detection pipeline.",
		},
		[]string{"domain"},
	)

	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_sentinel",
			Name:      "detections_total",
			Help:      "Anomaly detections, partitioned by domain, type and severity.",
		},
		[]string{"domain", "anomaly_type", "severity"},
	)

	degradedScoringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_sentinel",
			Name:      "degraded_scorings_total",
			Help:      "Windows scored rule-only because the model was unavailable.",
		},
		[]string{"domain"},
	)

	droppedResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traffic_sentinel",
			Name:      "dropped_results_total",
			Help:      "Detection results dropped because the sink queue was full.",
		},
		[]string{"domain"},
	)

	detectionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "traffic_sentinel",
			Name:      "detection_seconds",
			Help:      "Window detection pipeline latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)
)

// Register attaches the engine collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsIngestedTotal,
		windowsProcessedTotal,
		detectionsTotal,
		degradedScoringsTotal,
		droppedResultsTotal,
		detectionSeconds,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvent records one accepted request event.
func ObserveEvent(domain string) {
	eventsIngestedTotal.WithLabelValues(domain).Inc()
}

// ObserveWindow records one processed window and its pipeline latency.
func ObserveWindow(domain string, duration time.Duration) {
	windowsProcessedTotal.WithLabelValues(domain).Inc()
	if duration < 0 {
		duration = 0
	}
	detectionSeconds.Observe(duration.Seconds())
}

// ObserveDetection records one anomalous detection.
func ObserveDetection(domain, anomalyType, severity string) {
	detectionsTotal.WithLabelValues(domain, anomalyType, severity).Inc()
}

// ObserveDegraded records a rule-only scoring fallback.
func ObserveDegraded(domain string) {
	degradedScoringsTotal.WithLabelValues(domain).Inc()
}

// ObserveDroppedResult records a result dropped due to sink backpressure.
func ObserveDroppedResult(domain string) {
	droppedResultsTotal.WithLabelValues(domain).Inc()
}
