// Package ensemble combines the rule signal with a fitted statistical model
// into one hybrid risk score. The model is pluggable: the combination formula
// never depends on model internals.
package ensemble

import (
	"context"
	"log/slog"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// ScoringModel is the contract a previously fitted model must expose. All
// scores are in [0,1]; ClusterID yields a discrete behaviour group used only
// as a supporting signal in root cause classification.
type ScoringModel interface {
	OutlierScore(v models.FeatureVector) (float64, error)
	MisuseProbability(v models.FeatureVector) (float64, error)
	ClusterID(v models.FeatureVector) (int, error)
	FailureProbability(v models.FeatureVector) (float64, error)
}

// Fixed signal weights for the hybrid score.
const (
	weightRule    = 0.30
	weightOutlier = 0.25
	weightMisuse  = 0.30
	weightFailure = 0.15
)

// An individually confident model overrides the weighted sum, so one strong
// signal cannot be diluted away by the other three.
const (
	anomalyRiskThreshold   = 0.5
	misuseFireThreshold    = 0.5
	outlierFireThreshold   = 0.7
	failureSignalThreshold = 0.5
)

// Named rule alerts feeding the contributing-signal list.
const (
	SignalRateSpike    = "RATE_SPIKE"
	SignalErrorBurst   = "ERROR_BURST"
	SignalBotPattern   = "BOT_PATTERN"
	SignalLargePayload = "LARGE_PAYLOAD"
	SignalEndpointScan = "ENDPOINT_SCAN"
	SignalOutlier      = "OUTLIER_MODEL"
	SignalMisuse       = "MISUSE_CLASSIFIER"
	SignalFailure      = "FAILURE_PREDICTION"
)

// Detector computes the hybrid risk score and priority tier.
type Detector struct {
	model  ScoringModel
	logger *slog.Logger
}

// NewDetector constructs an ensemble detector over the supplied model. A nil
// model always degrades to rule-only scoring.
func NewDetector(model ScoringModel, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{model: model, logger: logger}
}

// Score combines the four signals into one hybrid result. If the model cannot
// produce a score, the detector degrades to rule-only scoring with the weight
// redistributed to the rule signal and flags the result as degraded; a
// degraded detection is still emitted, never dropped.
func (d *Detector) Score(ctx context.Context, v models.FeatureVector) models.HybridResult {
	ruleScore, alerts := ruleSignal(v)

	outlier, misuse, failure, cluster, err := d.modelSignals(ctx, v)
	if err != nil {
		d.logger.Warn("scoring model unavailable, degrading to rule-only scoring", slog.Any("error", err))
		return models.HybridResult{
			IsAnomaly:           ruleScore >= anomalyRiskThreshold,
			RiskScore:           clip01(ruleScore),
			Priority:            priorityFor(ruleScore),
			RuleScore:           ruleScore,
			ClusterID:           -1,
			ContributingSignals: alerts,
			Degraded:            true,
		}
	}

	risk := clip01(weightRule*ruleScore +
		weightOutlier*outlier +
		weightMisuse*misuse +
		weightFailure*failure)

	misuseFired := misuse >= misuseFireThreshold
	outlierFired := outlier >= outlierFireThreshold

	signals := alerts
	if outlierFired {
		signals = append(signals, SignalOutlier)
	}
	if misuseFired {
		signals = append(signals, SignalMisuse)
	}
	if failure >= failureSignalThreshold {
		signals = append(signals, SignalFailure)
	}

	return models.HybridResult{
		IsAnomaly:           risk >= anomalyRiskThreshold || misuseFired || outlierFired,
		RiskScore:           risk,
		Priority:            priorityFor(risk),
		RuleScore:           ruleScore,
		OutlierScore:        outlier,
		MisuseProbability:   misuse,
		FailureProbability:  failure,
		ClusterID:           cluster,
		ContributingSignals: signals,
	}
}

func (d *Detector) modelSignals(ctx context.Context, v models.FeatureVector) (outlier, misuse, failure float64, cluster int, err error) {
	if d.model == nil {
		return 0, 0, 0, -1, errNoModel
	}
	if err = ctx.Err(); err != nil {
		return 0, 0, 0, -1, err
	}
	if outlier, err = d.model.OutlierScore(v); err != nil {
		return 0, 0, 0, -1, err
	}
	if misuse, err = d.model.MisuseProbability(v); err != nil {
		return 0, 0, 0, -1, err
	}
	if failure, err = d.model.FailureProbability(v); err != nil {
		return 0, 0, 0, -1, err
	}
	if cluster, err = d.model.ClusterID(v); err != nil {
		return 0, 0, 0, -1, err
	}
	return outlier, misuse, failure, cluster, nil
}

// ruleSignal applies the cheap explainable rules for obvious misuse shapes.
func ruleSignal(v models.FeatureVector) (float64, []string) {
	score := 0.0
	var alerts []string

	if v.RequestRate > 15 {
		alerts = append(alerts, SignalRateSpike)
		score += 0.3
	}
	if v.ErrorRate > 0.5 {
		alerts = append(alerts, SignalErrorBurst)
		score += 0.4
	}
	if v.UserAgentEntropy < 0.1 && v.RepeatedParameterRatio > 0.7 {
		alerts = append(alerts, SignalBotPattern)
		score += 0.3
	}
	if v.AvgPayloadSize > 5000 {
		alerts = append(alerts, SignalLargePayload)
		score += 0.2
	}
	if v.UniqueEndpointCount > 20 {
		alerts = append(alerts, SignalEndpointScan)
		score += 0.25
	}

	return clip01(score), alerts
}

func priorityFor(risk float64) models.Severity {
	switch {
	case risk >= 0.8:
		return models.SeverityCritical
	case risk >= 0.6:
		return models.SeverityHigh
	case risk >= 0.4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
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
