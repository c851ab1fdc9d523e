package enrichment

import (
	"math"
	"strconv"
	"strings"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

const (
	// DefaultRate is used for any category the provider did not report.
	DefaultRate = 0.01
	// DefaultConfidence is used when the provider omits or garbles confidence.
	DefaultConfidence = 0.5
)

// SanitizeRawRules converts loosely typed provider output into the fixed
// eight-category map. Missing or non-numeric values become DefaultRate and
// numeric values are clamped to [0,1].
func SanitizeRawRules(raw map[string]any) models.RewardRules {
	out := make(models.RewardRules, len(models.Categories))
	for _, category := range models.Categories {
		value, ok := raw[category]
		if !ok {
			out[category] = DefaultRate
			continue
		}
		number, ok := toFloat(value)
		if !ok {
			out[category] = DefaultRate
			continue
		}
		out[category] = clamp01(number)
	}
	return out
}

// NormalizeRules fills missing categories with DefaultRate, clamps every
// rate to [0,1] and drops unknown keys.
func NormalizeRules(rules models.RewardRules) models.RewardRules {
	out := make(models.RewardRules, len(models.Categories))
	for _, category := range models.Categories {
		value, ok := rules[category]
		if !ok || math.IsNaN(value) {
			out[category] = DefaultRate
			continue
		}
		out[category] = clamp01(value)
	}
	return out
}

// DegradedRules returns DefaultRate for every category.
func DegradedRules() models.RewardRules {
	out := make(models.RewardRules, len(models.Categories))
	for _, category := range models.Categories {
		out[category] = DefaultRate
	}
	return out
}

// SanitizeConfidence parses a provider confidence value, clamped to [0,1].
func SanitizeConfidence(raw any, present bool) float64 {
	if !present {
		return DefaultConfidence
	}
	number, ok := toFloat(raw)
	if !ok {
		return DefaultConfidence
	}
	return clamp01(number)
}

// ClampConfidence bounds an already numeric confidence to [0,1].
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return DefaultConfidence
	}
	return clamp01(c)
}

// DedupeURLs keeps the first occurrence of each non-empty URL, up to
// MaxEvidenceURLs.
func DedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == MaxEvidenceURLs {
			break
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
