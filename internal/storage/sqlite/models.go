package sqlite

import (
	"time"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

type userRow struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type cardRow struct {
	ID                 string `gorm:"primaryKey"`
	CardName           string `gorm:"not null"`
	Issuer             string `gorm:"not null"`
	Network            *string
	RewardRulesJSON    string  `gorm:"column:reward_rules_json;not null"`
	Source             string  `gorm:"not null"`
	VerificationStatus string  `gorm:"not null;index"`
	EvidenceJSON       *string `gorm:"column:evidence_json"`
	CreatedByUserID    *string
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (cardRow) TableName() string { return "card_catalog" }

type walletRow struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;uniqueIndex:idx_user_cards_user_card"`
	CardCatalogID string `gorm:"not null;uniqueIndex:idx_user_cards_user_card"`
	Nickname      *string
	LastFour      *string
	IsActive      bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (walletRow) TableName() string { return "user_cards" }

type auditRow struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	QueryCardName string `gorm:"not null"`
	QueryIssuer   string
	Status        string    `gorm:"not null"`
	PayloadJSON   string    `gorm:"column:payload_json"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (auditRow) TableName() string { return "lookup_audit" }

var migrateModels = []any{&userRow{}, &cardRow{}, &walletRow{}, &auditRow{}}

func toCardRow(e models.CatalogEntry) (cardRow, error) {
	rules, err := storage.EncodeRewardRules(e.RewardRules)
	if err != nil {
		return cardRow{}, err
	}
	evidence, err := storage.EncodeEvidence(e.Evidence)
	if err != nil {
		return cardRow{}, err
	}
	return cardRow{
		ID:                 e.ID,
		CardName:           e.CardName,
		Issuer:             e.Issuer,
		Network:            e.Network,
		RewardRulesJSON:    rules,
		Source:             string(e.Source),
		VerificationStatus: string(e.VerificationStatus),
		EvidenceJSON:       evidence,
		CreatedByUserID:    e.CreatedByUserID,
		CreatedAt:          e.CreatedAt.UTC(),
		UpdatedAt:          e.UpdatedAt.UTC(),
	}, nil
}

func (r cardRow) toModel() (models.CatalogEntry, error) {
	rules, err := storage.DecodeRewardRules(r.RewardRulesJSON)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	evidence, err := storage.DecodeEvidence(r.EvidenceJSON)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	return models.CatalogEntry{
		ID:                 r.ID,
		CardName:           r.CardName,
		Issuer:             r.Issuer,
		Network:            r.Network,
		RewardRules:        rules,
		Source:             models.Source(r.Source),
		VerificationStatus: models.VerificationStatus(r.VerificationStatus),
		Evidence:           evidence,
		CreatedByUserID:    r.CreatedByUserID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}

func cardRowsToModels(rows []cardRow) ([]models.CatalogEntry, error) {
	out := make([]models.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
