// Package sqlite is the embedded storage backend, used when DATABASE_URL is
// a file path rather than a Postgres URL.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store provides SQLite-backed persistence for users and the card catalog.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the database file at path and applies the
// schema.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection serializes all access.
	sqlDB.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for _, model := range migrateModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	const uniqueNameIssuer = `CREATE UNIQUE INDEX IF NOT EXISTS idx_card_catalog_name_issuer
		ON card_catalog (lower(card_name), lower(issuer))`
	if err := db.Exec(uniqueNameIssuer).Error; err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	row := userRow{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return models.User{}, fmt.Errorf("insert user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.User{}, storage.ErrAlreadyExists
	}
	return user, nil
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&row).Error
	if err != nil {
		return models.User{}, notFound(err)
	}
	return models.User{ID: row.ID, Email: row.Email, PasswordHash: row.PasswordHash, CreatedAt: row.CreatedAt}, nil
}

// FindVerifiedCard returns the verified entry matching name and issuer.
func (s *Store) FindVerifiedCard(ctx context.Context, cardName, issuer string) (models.CatalogEntry, error) {
	return s.findCard(ctx, cardName, issuer, models.StatusVerified)
}

// FindCard returns the entry matching name and issuer in any status.
func (s *Store) FindCard(ctx context.Context, cardName, issuer string) (models.CatalogEntry, error) {
	return s.findCard(ctx, cardName, issuer, "")
}

func (s *Store) findCard(ctx context.Context, cardName, issuer string, status models.VerificationStatus) (models.CatalogEntry, error) {
	q := s.db.WithContext(ctx).
		Where("lower(card_name) = lower(?) AND lower(issuer) = lower(?)", cardName, issuer)
	if status != "" {
		q = q.Where("verification_status = ?", string(status))
	}
	var row cardRow
	if err := q.Take(&row).Error; err != nil {
		return models.CatalogEntry{}, notFound(err)
	}
	return row.toModel()
}

// GetCard fetches a catalog entry by id.
func (s *Store) GetCard(ctx context.Context, id string) (models.CatalogEntry, error) {
	var row cardRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return models.CatalogEntry{}, notFound(err)
	}
	return row.toModel()
}

// CreateCardIfAbsent inserts entry, or returns the row already holding its
// (name, issuer) pair.
func (s *Store) CreateCardIfAbsent(ctx context.Context, entry models.CatalogEntry) (models.CatalogEntry, bool, error) {
	row, err := toCardRow(entry)
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return models.CatalogEntry{}, false, fmt.Errorf("insert card: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		stored, err := s.GetCard(ctx, entry.ID)
		return stored, true, err
	}

	existing, err := s.FindCard(ctx, entry.CardName, entry.Issuer)
	if errors.Is(err, storage.ErrNotFound) {
		// The conflict was on the primary key rather than the name pair.
		existing, err = s.GetCard(ctx, entry.ID)
	}
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	return existing, false, nil
}

// ListCatalog returns entries with the given status, most recently updated first.
func (s *Store) ListCatalog(ctx context.Context, status models.VerificationStatus) ([]models.CatalogEntry, error) {
	var rows []cardRow
	err := s.db.WithContext(ctx).
		Where("verification_status = ?", string(status)).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return cardRowsToModels(rows)
}

// AddWalletCard inserts the membership unless the user already holds the card.
func (s *Store) AddWalletCard(ctx context.Context, m models.WalletMembership) (bool, error) {
	row := walletRow{
		ID:            m.ID,
		UserID:        m.UserID,
		CardCatalogID: m.CardCatalogID,
		Nickname:      m.Nickname,
		LastFour:      m.LastFour,
		IsActive:      m.Active,
		CreatedAt:     m.CreatedAt.UTC(),
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "card_catalog_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert wallet card: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListWalletCards returns the catalog entries of the user's active wallet
// memberships, newest membership first.
func (s *Store) ListWalletCards(ctx context.Context, userID string, verifiedOnly bool) ([]models.CatalogEntry, error) {
	q := s.db.WithContext(ctx).
		Table("user_cards AS u").
		Select("c.*").
		Joins("INNER JOIN card_catalog c ON c.id = u.card_catalog_id").
		Where("u.user_id = ? AND u.is_active = ?", userID, true)
	if verifiedOnly {
		q = q.Where("c.verification_status = ?", string(models.StatusVerified))
	}
	var rows []cardRow
	if err := q.Order("u.created_at DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list wallet: %w", err)
	}
	return cardRowsToModels(rows)
}

// AppendAudit writes one audit record.
func (s *Store) AppendAudit(ctx context.Context, r models.LookupAuditRecord) error {
	row := auditRow{
		ID:            r.ID,
		UserID:        r.UserID,
		QueryCardName: r.QueryCardName,
		QueryIssuer:   r.QueryIssuer,
		Status:        string(r.Status),
		PayloadJSON:   string(r.Payload),
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListAudit returns the user's audit trail, oldest first.
func (s *Store) ListAudit(ctx context.Context, userID string) ([]models.LookupAuditRecord, error) {
	var rows []auditRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	out := make([]models.LookupAuditRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.LookupAuditRecord{
			ID:            row.ID,
			UserID:        row.UserID,
			QueryCardName: row.QueryCardName,
			QueryIssuer:   row.QueryIssuer,
			Status:        models.LookupStatus(row.Status),
			Payload:       []byte(row.PayloadJSON),
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
