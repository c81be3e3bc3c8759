// Package features turns a full window of request events into the fixed-size
// numeric vector consumed by every detector.
package features

import (
	"errors"
	"math"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// ErrEmptyWindow is returned when extraction is attempted on an empty
// snapshot. The window contract guarantees this never happens in the pipeline.
var ErrEmptyWindow = errors.New("cannot extract features from empty window")

// minSpanSeconds floors the request-rate denominator so a burst of events
// sharing one timestamp cannot divide by zero.
const minSpanSeconds = 0.1

// Extract computes the nine behavioural features plus dominant endpoint and
// method for a window snapshot. Pure and deterministic: identical input
// always yields identical output.
func Extract(events []models.RequestEvent) (models.FeatureVector, error) {
	if len(events) == 0 {
		return models.FeatureVector{}, ErrEmptyWindow
	}

	n := float64(len(events))

	span := events[len(events)-1].Timestamp.Sub(events[0].Timestamp).Seconds()
	if span < minSpanSeconds {
		span = minSpanSeconds
	}

	var (
		getCount, postCount int
		errorCount          int
		payloadSum          float64
		latencySum          float64
		latencyMax          float64
		paramTotal          int
		endpoints           = make(map[string]struct{}, len(events))
		paramKeys           = make(map[string]struct{})
		agents              = make([]string, 0, len(events))
	)

	for _, ev := range events {
		endpoints[ev.Path] = struct{}{}
		switch ev.Method {
		case "GET":
			getCount++
		case "POST":
			postCount++
		}
		if ev.StatusCode >= 400 {
			errorCount++
		}
		payloadSum += float64(ev.PayloadBytes)
		latencySum += ev.LatencyMs
		if ev.LatencyMs > latencyMax {
			latencyMax = ev.LatencyMs
		}
		for key := range ev.Parameters {
			paramKeys[key] = struct{}{}
			paramTotal++
		}
		agents = append(agents, ev.UserAgent)
	}

	// Empty parameter maps contribute nothing; ratio defined as 0, not NaN.
	repeatRatio := 0.0
	if paramTotal > 0 {
		repeatRatio = 1.0 - float64(len(paramKeys))/float64(paramTotal)
	}

	postDenominator := postCount
	if postDenominator < 1 {
		postDenominator = 1
	}

	return models.FeatureVector{
		RequestRate:            n / span,
		UniqueEndpointCount:    len(endpoints),
		MethodRatio:            float64(getCount) / float64(postDenominator),
		AvgPayloadSize:         payloadSum / n,
		ErrorRate:              float64(errorCount) / n,
		RepeatedParameterRatio: repeatRatio,
		UserAgentEntropy:       shannonEntropy(agents),
		AvgResponseTimeMs:      latencySum / n,
		MaxResponseTimeMs:      latencyMax,
		RequestCount:           len(events),
		DominantEndpoint:       dominant(events, func(e models.RequestEvent) string { return e.Path }),
		DominantMethod:         dominant(events, func(e models.RequestEvent) string { return e.Method }),
	}, nil
}

// shannonEntropy computes base-2 entropy over the string distribution. A
// single repeated value yields 0.
func shannonEntropy(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	total := float64(len(values))
	entropy := 0.0
	for _, count := range counts {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// dominant returns the statistical mode of the keyed value, ties broken by
// first-seen order.
func dominant(events []models.RequestEvent, key func(models.RequestEvent) string) string {
	counts := make(map[string]int, len(events))
	firstSeen := make(map[string]int, len(events))
	for i, ev := range events {
		k := key(ev)
		counts[k]++
		if _, ok := firstSeen[k]; !ok {
			firstSeen[k] = i
		}
	}
	best := ""
	bestCount := 0
	for k, count := range counts {
		if count > bestCount || (count == bestCount && firstSeen[k] < firstSeen[best]) {
			best = k
			bestCount = count
		}
	}
	return best
}
