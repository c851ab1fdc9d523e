// Package catalog decides whether a requested card is already trusted or must
// be extracted and confirmed by the user, and manages wallet membership.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/enrichment"
	"github.com/hongminglow/cardsavvy-be/internal/logger"
	"github.com/hongminglow/cardsavvy-be/internal/metrics"
	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

var (
	// ErrInvalidInput reports a request that cannot be resolved as given.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCardNotFound reports a reference to a catalog entry that does not exist.
	ErrCardNotFound = errors.New("card not found")
)

const (
	degradedConfidence = 0.2
	degradedNotes      = "Gemini extraction unavailable. Manual confirmation required."
)

// ResolutionStatus is the outcome of a lookup.
type ResolutionStatus string

const (
	StatusFoundVerified     ResolutionStatus = "found_verified"
	StatusNeedsConfirmation ResolutionStatus = "needs_confirmation"
)

// Resolution is the result of Lookup. Card is set for StatusFoundVerified;
// Candidate and Confidence are set for StatusNeedsConfirmation.
type Resolution struct {
	Status     ResolutionStatus
	Card       models.CatalogEntry
	Candidate  models.CatalogEntry
	Confidence float64
}

// ConfirmInput is a user-approved candidate.
type ConfirmInput struct {
	CardName    string
	Issuer      string
	Network     *string
	RewardRules models.RewardRules
	Evidence    *models.Evidence
	Nickname    *string
	LastFour    *string
}

// Replier produces free-form assistant answers.
type Replier interface {
	Reply(ctx context.Context, message string, cards []models.CatalogEntry) (string, error)
}

// Resolver implements card lookup, confirmation and wallet operations on top
// of a catalog store and an enrichment provider.
type Resolver struct {
	store    storage.CatalogStore
	enricher enrichment.Enricher
	replier  Replier
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithReplier(r Replier) Option {
	return func(res *Resolver) { res.replier = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(res *Resolver) { res.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(res *Resolver) {
		if l != nil {
			res.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(res *Resolver) { res.now = now }
}

// NewResolver builds a Resolver.
func NewResolver(store storage.CatalogStore, enricher enrichment.Enricher, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		enricher: enricher,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup resolves a card by name and issuer. A verified catalog hit is
// returned as-is without consulting the enrichment provider. Otherwise an
// unpersisted candidate is produced, degraded when extraction fails. Only
// storage failures are returned as errors.
func (r *Resolver) Lookup(ctx context.Context, userID string, q enrichment.Query) (Resolution, error) {
	q.CardName = strings.TrimSpace(q.CardName)
	q.Issuer = strings.TrimSpace(q.Issuer)
	q.Network = trimmedOrNil(q.Network)
	if q.CardName == "" || q.Issuer == "" {
		return Resolution{}, fmt.Errorf("%w: card_name and issuer are required", ErrInvalidInput)
	}

	card, err := r.store.FindVerifiedCard(ctx, q.CardName, q.Issuer)
	switch {
	case err == nil:
		if err := r.audit(ctx, userID, q.CardName, q.Issuer, models.LookupFoundVerified, cardRef{CardID: card.ID}); err != nil {
			return Resolution{}, err
		}
		r.metrics.IncLookup(string(StatusFoundVerified))
		return Resolution{Status: StatusFoundVerified, Card: card}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return Resolution{}, fmt.Errorf("find verified card: %w", err)
	}

	candidate, confidence := r.extract(ctx, q)
	payload := candidatePayload{CatalogEntry: candidate, Confidence: confidence}
	if err := r.audit(ctx, userID, q.CardName, q.Issuer, models.LookupPending, payload); err != nil {
		return Resolution{}, err
	}
	r.metrics.IncLookup(string(StatusNeedsConfirmation))
	return Resolution{Status: StatusNeedsConfirmation, Candidate: candidate, Confidence: confidence}, nil
}

// extract calls the provider and converts its answer into a pending
// candidate. It never fails.
func (r *Resolver) extract(ctx context.Context, q enrichment.Query) (models.CatalogEntry, float64) {
	log := logger.WithContext(ctx, r.log)
	now := r.now().UTC()
	candidate := models.CatalogEntry{
		ID:                 uuid.NewString(),
		CardName:           q.CardName,
		Issuer:             q.Issuer,
		Network:            q.Network,
		Source:             models.SourceWebExtracted,
		VerificationStatus: models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var result enrichment.Result = enrichment.Failure{Reason: "enrichment not configured"}
	start := time.Now()
	if r.enricher != nil {
		result = r.enricher.Extract(ctx, q)
	}

	switch res := result.(type) {
	case enrichment.Success:
		r.metrics.ObserveEnrichment(true, time.Since(start))
		candidate.CardName = fallback(res.CardName, q.CardName)
		candidate.Issuer = fallback(res.Issuer, q.Issuer)
		if res.Network != nil {
			candidate.Network = res.Network
		}
		candidate.RewardRules = enrichment.NormalizeRules(res.RewardRules)
		evidence := models.Evidence{URLs: enrichment.DedupeURLs(res.Evidence.URLs), Notes: res.Evidence.Notes}
		candidate.Evidence = &evidence
		return candidate, enrichment.ClampConfidence(res.Confidence)
	case enrichment.Failure:
		r.metrics.ObserveEnrichment(false, time.Since(start))
		log.Warn("card enrichment unavailable, returning degraded candidate",
			zap.String("card_name", q.CardName),
			zap.String("issuer", q.Issuer),
			zap.String("reason", res.Reason),
		)
	}

	candidate.RewardRules = enrichment.DegradedRules()
	candidate.Evidence = &models.Evidence{URLs: []string{}, Notes: degradedNotes}
	return candidate, degradedConfidence
}

// Confirm persists a user-approved card and links it to the user's wallet.
// An entry already holding the (name, issuer) pair, in any status, is reused
// and its stored attributes are left untouched.
func (r *Resolver) Confirm(ctx context.Context, userID string, in ConfirmInput) (models.CatalogEntry, error) {
	in.CardName = strings.TrimSpace(in.CardName)
	in.Issuer = strings.TrimSpace(in.Issuer)
	in.Network = trimmedOrNil(in.Network)
	if in.CardName == "" || in.Issuer == "" {
		return models.CatalogEntry{}, fmt.Errorf("%w: card_name and issuer are required", ErrInvalidInput)
	}

	entry, err := r.store.FindCard(ctx, in.CardName, in.Issuer)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		now := r.now().UTC()
		creator := userID
		entry, created, err = r.store.CreateCardIfAbsent(ctx, models.CatalogEntry{
			ID:                 uuid.NewString(),
			CardName:           in.CardName,
			Issuer:             in.Issuer,
			Network:            in.Network,
			RewardRules:        enrichment.NormalizeRules(in.RewardRules),
			Source:             models.SourceWebExtracted,
			VerificationStatus: models.StatusPending,
			Evidence:           normalizeEvidence(in.Evidence),
			CreatedByUserID:    &creator,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return models.CatalogEntry{}, fmt.Errorf("create card: %w", err)
		}
	default:
		return models.CatalogEntry{}, fmt.Errorf("find card: %w", err)
	}

	if err := r.addMembership(ctx, userID, entry.ID, in.Nickname, in.LastFour); err != nil {
		return models.CatalogEntry{}, err
	}
	if err := r.audit(ctx, userID, in.CardName, in.Issuer, models.LookupConfirmedPending, cardRef{CardID: entry.ID}); err != nil {
		return models.CatalogEntry{}, err
	}
	r.metrics.IncConfirmation(created)

	logger.WithContext(ctx, r.log).Info("card confirmed",
		zap.String("card_id", entry.ID),
		zap.Bool("created", created),
	)
	return r.store.GetCard(ctx, entry.ID)
}

type cardRef struct {
	CardID string `json:"card_id"`
}

type candidatePayload struct {
	models.CatalogEntry
	Confidence float64 `json:"confidence"`
}

func (r *Resolver) audit(ctx context.Context, userID, cardName, issuer string, status models.LookupStatus, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	err = r.store.AppendAudit(ctx, models.LookupAuditRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		QueryCardName: cardName,
		QueryIssuer:   issuer,
		Status:        status,
		Payload:       raw,
		CreatedAt:     r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func normalizeEvidence(e *models.Evidence) *models.Evidence {
	if e == nil {
		return nil
	}
	return &models.Evidence{URLs: enrichment.DedupeURLs(e.URLs), Notes: strings.TrimSpace(e.Notes)}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
