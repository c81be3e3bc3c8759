package ensemble

import (
	"errors"
	"math"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

var errNoModel = errors.New("no scoring model configured")

// Behaviour clusters assigned by the fitted model.
const (
	ClusterNormal = 0
	ClusterHeavy  = 1
	ClusterBot    = 2

	// BotClusterID is the cluster treated as bot-like by the root cause
	// classifier.
	BotClusterID = ClusterBot
)

// profile holds per-feature centre and scale for one behaviour cluster.
type profile struct {
	requestRate  float64
	endpoints    float64
	errorRate    float64
	payload      float64
	repeatRatio  float64
	agentEntropy float64
	avgLatency   float64
	maxLatency   float64
}

// BaselineModel is a compiled-in fitted model distilled from the training
// corpus distributions: cluster centres for normal, heavy and bot-like
// traffic, a misuse logit and a failure logit. It stands in for an externally
// trained ensemble while honouring the same scoring contract.
type BaselineModel struct {
	centres [3]profile
	scales  profile
}

// NewBaselineModel returns the model with its fitted parameters.
func NewBaselineModel() *BaselineModel {
	return &BaselineModel{
		centres: [3]profile{
			ClusterNormal: {
				requestRate:  2.0,
				endpoints:    4,
				errorRate:    0.07,
				payload:      1000,
				repeatRatio:  0.30,
				agentEntropy: 1.2,
				avgLatency:   175,
				maxLatency:   300,
			},
			ClusterHeavy: {
				requestRate:  8.0,
				endpoints:    5,
				errorRate:    0.25,
				payload:      3200,
				repeatRatio:  0.55,
				agentEntropy: 1.0,
				avgLatency:   500,
				maxLatency:   850,
			},
			ClusterBot: {
				requestRate:  20.0,
				endpoints:    2,
				errorRate:    0.50,
				payload:      275,
				repeatRatio:  0.82,
				agentEntropy: 0.2,
				avgLatency:   1100,
				maxLatency:   2100,
			},
		},
		scales: profile{
			requestRate:  6.0,
			endpoints:    3,
			errorRate:    0.15,
			payload:      1500,
			repeatRatio:  0.25,
			agentEntropy: 0.8,
			avgLatency:   300,
			maxLatency:   600,
		},
	}
}

// OutlierScore measures deviation from the normal-traffic centre, squashed to
// [0,1]. Roughly: mean absolute z-score through a shifted sigmoid, so a
// vector sitting on the normal centre scores near zero.
func (m *BaselineModel) OutlierScore(v models.FeatureVector) (float64, error) {
	z := m.meanAbsZ(v, m.centres[ClusterNormal])
	return clip01(2/(1+math.Exp(-z)) - 1), nil
}

// MisuseProbability is a logistic regression over the misuse-indicative
// features: error rate, parameter repetition, low agent entropy and rate.
func (m *BaselineModel) MisuseProbability(v models.FeatureVector) (float64, error) {
	logit := -3.2 +
		4.5*v.ErrorRate +
		2.8*v.RepeatedParameterRatio +
		1.4*math.Max(0, 1.0-v.UserAgentEntropy) +
		0.08*v.RequestRate +
		0.0002*math.Max(0, v.AvgPayloadSize-2000)
	return sigmoid(logit), nil
}

// ClusterID assigns the nearest behaviour centre in scaled feature space.
func (m *BaselineModel) ClusterID(v models.FeatureVector) (int, error) {
	best := ClusterNormal
	bestDist := math.Inf(1)
	for id, centre := range m.centres {
		dist := m.meanAbsZ(v, centre)
		if dist < bestDist {
			bestDist = dist
			best = id
		}
	}
	return best, nil
}

// FailureProbability predicts the chance the next window degrades, driven by
// error rate and latency pressure.
func (m *BaselineModel) FailureProbability(v models.FeatureVector) (float64, error) {
	logit := -2.8 +
		5.0*v.ErrorRate +
		0.0024*math.Max(0, v.AvgResponseTimeMs-200) +
		0.0004*math.Max(0, v.MaxResponseTimeMs-500) +
		0.05*v.RequestRate
	return sigmoid(logit), nil
}

func (m *BaselineModel) meanAbsZ(v models.FeatureVector, c profile) float64 {
	sum := math.Abs(v.RequestRate-c.requestRate)/m.scales.requestRate +
		math.Abs(float64(v.UniqueEndpointCount)-c.endpoints)/m.scales.endpoints +
		math.Abs(v.ErrorRate-c.errorRate)/m.scales.errorRate +
		math.Abs(v.AvgPayloadSize-c.payload)/m.scales.payload +
		math.Abs(v.RepeatedParameterRatio-c.repeatRatio)/m.scales.repeatRatio +
		math.Abs(v.UserAgentEntropy-c.agentEntropy)/m.scales.agentEntropy +
		math.Abs(v.AvgResponseTimeMs-c.avgLatency)/m.scales.avgLatency +
		math.Abs(v.MaxResponseTimeMs-c.maxLatency)/m.scales.maxLatency
	return sum / 8
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
