package enrichment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

func TestSanitizeRawRules(t *testing.T) {
	rules := SanitizeRawRules(map[string]any{
		"dining":   0.05,
		"shopping": "0.1",
		"travel":   true,
		"fuel":     -0.3,
		"others":   3,
		"crypto":   0.9,
	})

	assert.Len(t, rules, len(models.Categories))
	assert.Equal(t, 0.05, rules["dining"])
	assert.Equal(t, 0.1, rules["shopping"])
	assert.Equal(t, DefaultRate, rules["travel"])
	assert.Equal(t, 0.0, rules["fuel"])
	assert.Equal(t, 1.0, rules["others"])
	assert.Equal(t, DefaultRate, rules["groceries"])
	assert.NotContains(t, rules, "crypto")
}

func TestSanitizeRawRulesNil(t *testing.T) {
	assert.Equal(t, DegradedRules(), SanitizeRawRules(nil))
}

func TestNormalizeRules(t *testing.T) {
	rules := NormalizeRules(models.RewardRules{"dining": 1.5, "fuel": math.NaN(), "shopping": 0.04, "bogus": 0.5})

	assert.Len(t, rules, len(models.Categories))
	assert.Equal(t, 1.0, rules["dining"])
	assert.Equal(t, DefaultRate, rules["fuel"])
	assert.Equal(t, 0.04, rules["shopping"])
	assert.Equal(t, DefaultRate, rules["travel"])
	assert.NotContains(t, rules, "bogus")
}

func TestSanitizeConfidence(t *testing.T) {
	assert.Equal(t, DefaultConfidence, SanitizeConfidence(nil, false))
	assert.Equal(t, DefaultConfidence, SanitizeConfidence("high", true))
	assert.Equal(t, 0.7, SanitizeConfidence("0.7", true))
	assert.Equal(t, 1.0, SanitizeConfidence(4.0, true))
	assert.Equal(t, 0.0, SanitizeConfidence(-1.0, true))
	assert.Equal(t, DefaultConfidence, ClampConfidence(math.NaN()))
	assert.Equal(t, 0.3, ClampConfidence(0.3))
}

func TestDedupeURLs(t *testing.T) {
	got := DedupeURLs([]string{" https://a ", "", "https://b", "https://a"})
	assert.Equal(t, []string{"https://a", "https://b"}, got)
	assert.NotNil(t, DedupeURLs(nil))
}
