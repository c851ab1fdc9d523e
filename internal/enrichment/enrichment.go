// Package enrichment extracts card reward data from web sources through an
// LLM provider. Provider failures are reported as values, never as errors, so
// callers can always fall back to a degraded result.
package enrichment

import (
	"context"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

// MaxEvidenceURLs caps the number of source URLs kept per extraction.
const MaxEvidenceURLs = 8

// Query identifies the card to look up.
type Query struct {
	CardName string
	Issuer   string
	Network  *string
}

// Extraction is a validated provider answer in catalog shape.
type Extraction struct {
	CardName    string
	Issuer      string
	Network     *string
	RewardRules models.RewardRules
	Confidence  float64
	Evidence    models.Evidence
}

// Result is either Success or Failure.
type Result interface {
	isResult()
}

// Success carries an extraction that passed validation.
type Success struct {
	Extraction
}

// Failure explains why no extraction is available.
type Failure struct {
	Reason string
}

func (Success) isResult() {}
func (Failure) isResult() {}

// Enricher is the external extraction collaborator.
type Enricher interface {
	Extract(ctx context.Context, q Query) Result
}
