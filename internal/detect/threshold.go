// Package detect implements the deterministic threshold rules over a single
// feature vector. Everything here is stateless and reproducible: the same
// vector always yields the same result.
package detect

import "github.com/observa-labs/traffic-sentinel/internal/models"

// Baselines describing normal traffic for one window.
const (
	BaselineResponseTimeMs = 200.0
	BaselineErrorRate      = 0.05
	BaselineRequestCount   = 10.0
	BaselinePayloadBytes   = 1500.0
)

// Detection thresholds layered on the baselines.
const (
	latencySpikeMultiplier       = 3.0
	errorSpikeThreshold          = 0.25
	errorCriticalThreshold       = 0.40
	timeoutThresholdMs           = 4000.0
	trafficBurstMultiplier       = 5.0
	resourceExhaustionMultiplier = 5.0
)

// ThresholdDetector classifies a feature vector against fixed baselines.
type ThresholdDetector struct{}

// NewThresholdDetector constructs the rule-based detector.
func NewThresholdDetector() *ThresholdDetector {
	return &ThresholdDetector{}
}

// Detect evaluates the five rules in fixed declaration order (latency, error,
// timeout, traffic, payload) and selects the most severe candidate; ties keep
// the earliest rule.
func (d *ThresholdDetector) Detect(v models.FeatureVector) models.DetectionResult {
	candidates := make([]models.DetectionCandidate, 0, 5)

	latencyThreshold := BaselineResponseTimeMs * latencySpikeMultiplier
	if v.AvgResponseTimeMs > latencyThreshold {
		candidates = append(candidates, models.DetectionCandidate{
			Type:        models.AnomalyLatencySpike,
			Severity:    models.SeverityHigh,
			Confidence:  clip01(v.AvgResponseTimeMs / latencyThreshold),
			MetricValue: v.AvgResponseTimeMs,
			Threshold:   latencyThreshold,
		})
	}

	if v.ErrorRate > errorSpikeThreshold {
		severity := models.SeverityHigh
		if v.ErrorRate > errorCriticalThreshold {
			severity = models.SeverityCritical
		}
		candidates = append(candidates, models.DetectionCandidate{
			Type:        models.AnomalyErrorSpike,
			Severity:    severity,
			Confidence:  clip01(v.ErrorRate / errorSpikeThreshold),
			MetricValue: v.ErrorRate,
			Threshold:   errorSpikeThreshold,
		})
	}

	if v.MaxResponseTimeMs > timeoutThresholdMs {
		candidates = append(candidates, models.DetectionCandidate{
			Type:        models.AnomalyTimeout,
			Severity:    models.SeverityHigh,
			Confidence:  clip01(v.MaxResponseTimeMs / timeoutThresholdMs),
			MetricValue: v.MaxResponseTimeMs,
			Threshold:   timeoutThresholdMs,
		})
	}

	trafficThreshold := BaselineRequestCount * trafficBurstMultiplier
	if float64(v.RequestCount) > trafficThreshold {
		candidates = append(candidates, models.DetectionCandidate{
			Type:        models.AnomalyTrafficBurst,
			Severity:    models.SeverityMedium,
			Confidence:  clip01(float64(v.RequestCount) / trafficThreshold),
			MetricValue: float64(v.RequestCount),
			Threshold:   trafficThreshold,
		})
	}

	payloadThreshold := BaselinePayloadBytes * resourceExhaustionMultiplier
	if v.AvgPayloadSize > payloadThreshold {
		candidates = append(candidates, models.DetectionCandidate{
			Type:        models.AnomalyResourceExhaustion,
			Severity:    models.SeverityCritical,
			Confidence:  clip01(v.AvgPayloadSize / payloadThreshold),
			MetricValue: v.AvgPayloadSize,
			Threshold:   payloadThreshold,
		})
	}

	if len(candidates) == 0 {
		return models.DetectionResult{
			IsAnomaly: false,
			Severity:  models.SeverityLow,
		}
	}

	primary := candidates[0]
	for _, c := range candidates[1:] {
		if c.Severity.Rank() > primary.Severity.Rank() {
			primary = c
		}
	}

	return models.DetectionResult{
		IsAnomaly:          true,
		Type:               primary.Type,
		Severity:           primary.Severity,
		Confidence:         primary.Confidence,
		FailureProbability: failureProbability(primary),
		ImpactScore:        impactScore(primary, v),
		Candidates:         candidates,
	}
}

func failureProbability(c models.DetectionCandidate) float64 {
	return clip01(severityBaseProbability(c.Severity) * c.Confidence)
}

func impactScore(c models.DetectionCandidate, v models.FeatureVector) float64 {
	volumeMultiplier := 1.0 + float64(v.RequestCount)/100.0
	if volumeMultiplier > 2.0 {
		volumeMultiplier = 2.0
	}
	return clip01(severityBaseImpact(c.Severity) * volumeMultiplier)
}

func severityBaseProbability(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 0.85
	case models.SeverityHigh:
		return 0.60
	case models.SeverityMedium:
		return 0.35
	default:
		return 0.10
	}
}

func severityBaseImpact(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 0.95
	case models.SeverityHigh:
		return 0.75
	case models.SeverityMedium:
		return 0.50
	default:
		return 0.25
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
