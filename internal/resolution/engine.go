// Package resolution maps (anomaly type or root cause, severity) onto a
// ranked list of remediation actions. Selection is deterministic catalog
// lookup, never randomised.
package resolution

import (
	"errors"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// Engine serves suggestions from the compiled-in catalog, optionally
// overridden by a YAML pack.
type Engine struct {
	catalog map[string]map[models.Severity][]models.Suggestion
	logger  *slog.Logger
}

// packEntry is one YAML override for a (key, severity) catalog slot.
type packEntry struct {
	Key         string              `yaml:"key"`
	Severity    string              `yaml:"severity"`
	Suggestions []models.Suggestion `yaml:"suggestions"`
}

// packFile is the YAML root structure.
type packFile struct {
	Resolutions []packEntry `yaml:"resolutions"`
}

// NewEngine builds an engine from the default catalog, merged with the YAML
// pack at path when it exists. An empty path or missing file keeps defaults.
func NewEngine(path string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine := &Engine{catalog: defaultCatalog(), logger: logger}

	if path == "" {
		return engine, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine, nil
		}
		return nil, err
	}
	var pack packFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	for _, entry := range pack.Resolutions {
		if entry.Key == "" || len(entry.Suggestions) == 0 {
			continue
		}
		severity := models.ParseSeverity(entry.Severity)
		if engine.catalog[entry.Key] == nil {
			engine.catalog[entry.Key] = make(map[models.Severity][]models.Suggestion)
		}
		engine.catalog[entry.Key][severity] = entry.Suggestions
		logger.Debug("resolution pack override applied",
			slog.String("key", entry.Key), slog.String("severity", string(severity)))
	}
	return engine, nil
}

// severityFallback is the lookup order when the exact severity has no entry.
var severityFallback = []models.Severity{
	models.SeverityCritical,
	models.SeverityHigh,
	models.SeverityMedium,
	models.SeverityLow,
}

// Generate returns the suggestions for a catalog key and severity, falling
// back through severity order and finally to the generic set.
func (e *Engine) Generate(key string, severity models.Severity) []models.Suggestion {
	tiers, ok := e.catalog[key]
	if !ok {
		return genericSuggestions(severity)
	}
	if suggestions, ok := tiers[severity]; ok {
		return cloneSuggestions(suggestions)
	}
	for _, sev := range severityFallback {
		if suggestions, ok := tiers[sev]; ok {
			return cloneSuggestions(suggestions)
		}
	}
	return genericSuggestions(severity)
}

// ScoredSuggestion pairs a suggestion with the impact score of the detection
// that produced it, for cross-detection ranking.
type ScoredSuggestion struct {
	models.Suggestion
	Impact float64
}

// Aggregate deduplicates suggestions from multiple recent detections by
// (category, action) identity and orders them by priority rank, then by
// associated impact score, descending. Idempotent: aggregating an already
// aggregated list yields the same result.
func Aggregate(items []ScoredSuggestion) []models.Suggestion {
	sorted := append([]ScoredSuggestion(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Priority.Rank(), sorted[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return sorted[i].Impact > sorted[j].Impact
	})

	seen := make(map[[2]string]struct{}, len(sorted))
	out := make([]models.Suggestion, 0, len(sorted))
	for _, item := range sorted {
		key := [2]string{item.Category, item.Action}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item.Suggestion)
	}
	return out
}

func genericSuggestions(severity models.Severity) []models.Suggestion {
	return []models.Suggestion{
		{Category: "MONITORING", Action: "Investigate anomaly", Detail: "Review logs and metrics for unusual patterns", Priority: severity},
		{Category: "INVESTIGATION", Action: "Check dependencies", Detail: "Verify all external services are operational", Priority: severity},
		{Category: "MITIGATION", Action: "Enable monitoring", Detail: "Set up alerts for similar anomalies", Priority: models.SeverityMedium},
	}
}

func cloneSuggestions(in []models.Suggestion) []models.Suggestion {
	return append([]models.Suggestion(nil), in...)
}
