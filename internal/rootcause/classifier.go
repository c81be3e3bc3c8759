// Package rootcause maps a feature vector plus ensemble outputs onto a causal
// category via ordered, mutually-aware conditions. The selection order is an
// operational triage choice: correctness and availability issues outrank
// performance issues, which outrank capacity issues. Do not re-sort by
// confidence.
package rootcause

import (
	"math"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// Condition names recorded in ConditionsMet.
const (
	ConditionLatencyBottleneck  = "latency_bottleneck"
	ConditionBackendInstability = "backend_instability"
	ConditionTrafficSurge       = "traffic_surge"
	ConditionAbuseBot           = "abuse_bot"
)

// Fixed condition thresholds.
const (
	latencyBottleneckMs      = 800.0
	instabilityErrorRate     = 0.30
	abuseRepeatRatio         = 0.70
	surgeMultiplier          = 2
	overloadConditionMinimum = 3

	// DefaultBaselineRequestCount is the normal per-window request count used
	// for surge detection when not configured.
	DefaultBaselineRequestCount = 5
)

// Classifier assigns root causes. Stateless beyond its configuration.
type Classifier struct {
	baselineRequestCount int
	botClusterID         int
}

// New constructs a classifier. Non-positive baselineRequestCount falls back
// to the default.
func New(baselineRequestCount, botClusterID int) *Classifier {
	if baselineRequestCount <= 0 {
		baselineRequestCount = DefaultBaselineRequestCount
	}
	return &Classifier{
		baselineRequestCount: baselineRequestCount,
		botClusterID:         botClusterID,
	}
}

// Classify evaluates all conditions, then selects a single cause by priority.
func (c *Classifier) Classify(v models.FeatureVector, hybrid models.HybridResult) models.RootCauseVerdict {
	errorRate := v.ErrorRate
	if errorRate > 1.0 {
		errorRate /= 100.0
	}

	isLatency := v.AvgResponseTimeMs > latencyBottleneckMs && errorRate < instabilityErrorRate
	isBackend := errorRate >= instabilityErrorRate
	isSurge := v.RequestCount >= surgeMultiplier*c.baselineRequestCount
	isAbuse := v.RepeatedParameterRatio > abuseRepeatRatio || hybrid.ClusterID == c.botClusterID

	var conditions []string
	if isLatency {
		conditions = append(conditions, ConditionLatencyBottleneck)
	}
	if isBackend {
		conditions = append(conditions, ConditionBackendInstability)
	}
	if isSurge {
		conditions = append(conditions, ConditionTrafficSurge)
	}
	if isAbuse {
		conditions = append(conditions, ConditionAbuseBot)
	}

	var cause models.Cause
	var confidence float64

	switch {
	case len(conditions) >= overloadConditionMinimum:
		cause = models.CauseSystemOverload
		confidence = math.Min(0.95, 0.75+0.10*float64(len(conditions)))
	case isBackend:
		cause = models.CauseBackendInstability
		confidence = 0.85 + math.Min((errorRate-instabilityErrorRate)*0.3, 0.10)
	case isAbuse:
		botConfidence := 0.9
		if v.RepeatedParameterRatio > abuseRepeatRatio {
			botConfidence = v.RepeatedParameterRatio
		}
		cause = models.CauseAbuseBot
		confidence = 0.80 + math.Min(botConfidence*0.15, 0.15)
	case isLatency:
		cause = models.CauseLatencyBottleneck
		confidence = 0.75 + math.Min((v.AvgResponseTimeMs-latencyBottleneckMs)/2000, 0.15)
	case isSurge:
		surgeRatio := float64(v.RequestCount) / float64(c.baselineRequestCount)
		cause = models.CauseTrafficSurge
		confidence = 0.70 + math.Min((surgeRatio-2)*0.05, 0.20)
	default:
		cause = models.CauseUnknown
		confidence = 0.50
	}

	return models.RootCauseVerdict{
		Cause:         cause,
		Confidence:    round2(confidence),
		ConditionsMet: conditions,
		Metrics: models.MetricsSummary{
			ErrorRate:          errorRate,
			AvgResponseTimeMs:  v.AvgResponseTimeMs,
			RequestCount:       v.RequestCount,
			RepeatRate:         v.RepeatedParameterRatio,
			UsageCluster:       hybrid.ClusterID,
			FailureProbability: hybrid.FailureProbability,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
