package models

import "time"

// Severity captures impact levels, ordered CRITICAL > HIGH > MEDIUM > LOW.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the ordinal position used for severity comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity normalises a string into a known Severity, defaulting to LOW.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityLow
	}
}

// AnomalyType enumerates the threshold rule categories.
type AnomalyType string

const (
	AnomalyNone               AnomalyType = ""
	AnomalyLatencySpike       AnomalyType = "latency_spike"
	AnomalyErrorSpike         AnomalyType = "error_spike"
	AnomalyTimeout            AnomalyType = "timeout"
	AnomalyTrafficBurst       AnomalyType = "traffic_burst"
	AnomalyResourceExhaustion AnomalyType = "resource_exhaustion"
)

// DetectionCandidate is a single rule that fired, kept for auditability.
type DetectionCandidate struct {
	Type        AnomalyType `json:"anomaly_type"`
	Severity    Severity    `json:"severity"`
	Confidence  float64     `json:"confidence"`
	MetricValue float64     `json:"metric_value"`
	Threshold   float64     `json:"threshold"`
}

// DetectionResult is the threshold detector's verdict for one feature vector.
type DetectionResult struct {
	IsAnomaly          bool                 `json:"is_anomaly"`
	Type               AnomalyType          `json:"anomaly_type,omitempty"`
	Severity           Severity             `json:"severity"`
	Confidence         float64              `json:"confidence"`
	FailureProbability float64              `json:"failure_probability"`
	ImpactScore        float64              `json:"impact_score"`
	Candidates         []DetectionCandidate `json:"all_candidates,omitempty"`
}

// HybridResult is the ensemble detector's combined verdict.
type HybridResult struct {
	IsAnomaly           bool     `json:"is_anomaly"`
	RiskScore           float64  `json:"risk_score"`
	Priority            Severity `json:"priority"`
	RuleScore           float64  `json:"rule_score"`
	OutlierScore        float64  `json:"outlier_score"`
	MisuseProbability   float64  `json:"misuse_probability"`
	FailureProbability  float64  `json:"failure_probability"`
	ClusterID           int      `json:"cluster_id"`
	ContributingSignals []string `json:"contributing_signals,omitempty"`
	Degraded            bool     `json:"degraded"`
}

// Cause is the coarse causal category assigned to a detected anomaly.
type Cause string

const (
	CauseLatencyBottleneck  Cause = "Latency Bottleneck"
	CauseBackendInstability Cause = "Backend Instability"
	CauseTrafficSurge       Cause = "Traffic Surge"
	CauseAbuseBot           Cause = "Abuse/Bot Activity"
	CauseSystemOverload     Cause = "System Overload"
	CauseUnknown            Cause = "Unknown Anomaly"
)

// MetricsSummary echoes the inputs the root cause classifier saw.
type MetricsSummary struct {
	ErrorRate          float64 `json:"error_rate"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	RequestCount       int     `json:"req_count"`
	RepeatRate         float64 `json:"repeat_rate"`
	UsageCluster       int     `json:"usage_cluster"`
	FailureProbability float64 `json:"failure_probability"`
}

// RootCauseVerdict is the classifier output. Stateless, derived strictly from
// a feature vector plus prior ensemble outputs.
type RootCauseVerdict struct {
	Cause         Cause          `json:"root_cause"`
	Confidence    float64        `json:"confidence"`
	ConditionsMet []string       `json:"conditions_met"`
	Metrics       MetricsSummary `json:"metrics_summary"`
}

// Suggestion is one remediation action from the resolution catalog.
type Suggestion struct {
	Category string   `json:"category" yaml:"category"`
	Action   string   `json:"action" yaml:"action"`
	Detail   string   `json:"detail" yaml:"detail"`
	Priority Severity `json:"priority" yaml:"priority"`
}

// Detection is the complete record emitted once per window-ready event and
// handed to the broadcast and persistence sinks. Value object; safe to share
// without synchronisation.
type Detection struct {
	ID          string           `json:"id"`
	Domain      Domain           `json:"domain"`
	WindowID    uint64           `json:"window_id"`
	Vector      FeatureVector    `json:"features"`
	Threshold   DetectionResult  `json:"threshold"`
	Hybrid      HybridResult     `json:"hybrid"`
	IsAnomaly   bool             `json:"is_anomaly"`
	Severity    Severity         `json:"severity"`
	Type        AnomalyType      `json:"anomaly_type,omitempty"`
	Cause       RootCauseVerdict `json:"root_cause_analysis"`
	Suggestions []Suggestion     `json:"suggestions,omitempty"`
	Degraded    bool             `json:"degraded"`
	Duplicate   bool             `json:"duplicate,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
