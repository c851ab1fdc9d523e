package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

const cardColumns = `id, card_name, issuer, network, reward_rules_json, source, verification_status,
	evidence_json, created_by_user_id, created_at, updated_at`

// FindVerifiedCard returns the verified entry matching name and issuer.
func (s *Store) FindVerifiedCard(ctx context.Context, cardName, issuer string) (models.CatalogEntry, error) {
	query := `SELECT ` + cardColumns + `
	FROM card_catalog
	WHERE lower(card_name) = lower($1) AND lower(issuer) = lower($2) AND verification_status = $3
	LIMIT 1;`
	return scanCard(s.pool.QueryRow(ctx, query, cardName, issuer, string(models.StatusVerified)))
}

// FindCard returns the entry matching name and issuer in any status.
func (s *Store) FindCard(ctx context.Context, cardName, issuer string) (models.CatalogEntry, error) {
	query := `SELECT ` + cardColumns + `
	FROM card_catalog
	WHERE lower(card_name) = lower($1) AND lower(issuer) = lower($2)
	LIMIT 1;`
	return scanCard(s.pool.QueryRow(ctx, query, cardName, issuer))
}

// GetCard fetches a catalog entry by id.
func (s *Store) GetCard(ctx context.Context, id string) (models.CatalogEntry, error) {
	query := `SELECT ` + cardColumns + ` FROM card_catalog WHERE id = $1;`
	return scanCard(s.pool.QueryRow(ctx, query, id))
}

// CreateCardIfAbsent inserts entry, or returns the row already holding its
// (name, issuer) pair.
func (s *Store) CreateCardIfAbsent(ctx context.Context, entry models.CatalogEntry) (models.CatalogEntry, bool, error) {
	rules, err := storage.EncodeRewardRules(entry.RewardRules)
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	evidence, err := storage.EncodeEvidence(entry.Evidence)
	if err != nil {
		return models.CatalogEntry{}, false, err
	}

	query := `
	INSERT INTO card_catalog (` + cardColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT DO NOTHING
	RETURNING ` + cardColumns + `;`
	row := s.pool.QueryRow(ctx, query,
		entry.ID, entry.CardName, entry.Issuer, entry.Network, rules,
		string(entry.Source), string(entry.VerificationStatus), evidence,
		entry.CreatedByUserID, entry.CreatedAt, entry.UpdatedAt,
	)
	stored, err := scanCard(row)
	switch {
	case err == nil:
		return stored, true, nil
	case errors.Is(err, storage.ErrNotFound), isUniqueViolation(err):
		// Lost the race or the pair already existed: read back the winner.
	default:
		return models.CatalogEntry{}, false, fmt.Errorf("insert card: %w", err)
	}

	existing, err := s.FindCard(ctx, entry.CardName, entry.Issuer)
	if errors.Is(err, storage.ErrNotFound) {
		existing, err = s.GetCard(ctx, entry.ID)
	}
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	return existing, false, nil
}

// ListCatalog returns entries with the given status, most recently updated first.
func (s *Store) ListCatalog(ctx context.Context, status models.VerificationStatus) ([]models.CatalogEntry, error) {
	query := `SELECT ` + cardColumns + `
	FROM card_catalog
	WHERE verification_status = $1
	ORDER BY updated_at DESC;`
	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return collectCards(rows)
}

// AddWalletCard inserts the membership unless the user already holds the card.
func (s *Store) AddWalletCard(ctx context.Context, m models.WalletMembership) (bool, error) {
	const query = `
	INSERT INTO user_cards (id, user_id, card_catalog_id, nickname, last_four, is_active, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id, card_catalog_id) DO NOTHING;`
	tag, err := s.pool.Exec(ctx, query, m.ID, m.UserID, m.CardCatalogID, m.Nickname, m.LastFour, m.Active, m.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert wallet card: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListWalletCards returns the catalog entries of the user's active wallet
// memberships, newest membership first.
func (s *Store) ListWalletCards(ctx context.Context, userID string, verifiedOnly bool) ([]models.CatalogEntry, error) {
	query := `
	SELECT c.id, c.card_name, c.issuer, c.network, c.reward_rules_json, c.source, c.verification_status,
		c.evidence_json, c.created_by_user_id, c.created_at, c.updated_at
	FROM user_cards u
	INNER JOIN card_catalog c ON c.id = u.card_catalog_id
	WHERE u.user_id = $1 AND u.is_active AND ($2 = FALSE OR c.verification_status = 'verified')
	ORDER BY u.created_at DESC;`
	rows, err := s.pool.Query(ctx, query, userID, verifiedOnly)
	if err != nil {
		return nil, fmt.Errorf("list wallet: %w", err)
	}
	return collectCards(rows)
}

// AppendAudit writes one audit record.
func (s *Store) AppendAudit(ctx context.Context, r models.LookupAuditRecord) error {
	const query = `
	INSERT INTO lookup_audit (id, user_id, query_card_name, query_issuer, status, payload_json, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);`
	if _, err := s.pool.Exec(ctx, query, r.ID, r.UserID, r.QueryCardName, r.QueryIssuer, string(r.Status), string(r.Payload), r.CreatedAt); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListAudit returns the user's audit trail, oldest first.
func (s *Store) ListAudit(ctx context.Context, userID string) ([]models.LookupAuditRecord, error) {
	const query = `
	SELECT id, user_id, query_card_name, COALESCE(query_issuer, ''), status, COALESCE(payload_json, ''), created_at
	FROM lookup_audit
	WHERE user_id = $1
	ORDER BY created_at ASC;`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []models.LookupAuditRecord
	for rows.Next() {
		var (
			r       models.LookupAuditRecord
			status  string
			payload string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.QueryCardName, &r.QueryIssuer, &status, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		r.Status = models.LookupStatus(status)
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanCard(row pgx.Row) (models.CatalogEntry, error) {
	var (
		entry          models.CatalogEntry
		rules          string
		evidence       *string
		source, status string
	)
	err := row.Scan(&entry.ID, &entry.CardName, &entry.Issuer, &entry.Network, &rules, &source, &status,
		&evidence, &entry.CreatedByUserID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CatalogEntry{}, storage.ErrNotFound
		}
		return models.CatalogEntry{}, err
	}
	entry.Source = models.Source(source)
	entry.VerificationStatus = models.VerificationStatus(status)
	if entry.RewardRules, err = storage.DecodeRewardRules(rules); err != nil {
		return models.CatalogEntry{}, err
	}
	if entry.Evidence, err = storage.DecodeEvidence(evidence); err != nil {
		return models.CatalogEntry{}, err
	}
	return entry, nil
}

func collectCards(rows pgx.Rows) ([]models.CatalogEntry, error) {
	defer rows.Close()
	out := []models.CatalogEntry{}
	for rows.Next() {
		entry, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
