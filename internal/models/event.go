package models

import "time"

// Domain identifies the traffic partition an event belongs to. Live and
// simulated traffic are never aggregated in the same window.
type Domain string

const (
	DomainLive       Domain = "live"
	DomainSimulation Domain = "simulation"
)

// DomainForEvent maps the Simulated flag onto its isolation domain.
func DomainForEvent(simulated bool) Domain {
	if simulated {
		return DomainSimulation
	}
	return DomainLive
}

// RequestEvent is one observed API call. Immutable once created; owned by the
// window that ingested it until evicted.
type RequestEvent struct {
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	StatusCode   int               `json:"status_code"`
	LatencyMs    float64           `json:"latency_ms"`
	PayloadBytes int               `json:"payload_bytes"`
	UserAgent    string            `json:"user_agent"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Simulated    bool              `json:"simulated"`
}

// Domain returns the isolation domain this event is tagged for.
func (e RequestEvent) Domain() Domain {
	return DomainForEvent(e.Simulated)
}

// FeatureVector is the numeric summary of one full window. Created fresh per
// extraction and never mutated afterwards.
type FeatureVector struct {
	RequestRate            float64 `json:"request_rate"`
	UniqueEndpointCount    int     `json:"unique_endpoint_count"`
	MethodRatio            float64 `json:"method_ratio"`
	AvgPayloadSize         float64 `json:"avg_payload_size"`
	ErrorRate              float64 `json:"error_rate"`
	RepeatedParameterRatio float64 `json:"repeated_parameter_ratio"`
	UserAgentEntropy       float64 `json:"user_agent_entropy"`
	AvgResponseTimeMs      float64 `json:"avg_response_time_ms"`
	MaxResponseTimeMs      float64 `json:"max_response_time_ms"`
	RequestCount           int     `json:"request_count"`
	DominantEndpoint       string  `json:"dominant_endpoint"`
	DominantMethod         string  `json:"dominant_method"`
}
