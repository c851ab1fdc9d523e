package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures credential persistence needed by the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// CatalogStore persists catalog entries, wallet memberships and the lookup
// audit log. Name/issuer matching is case-insensitive everywhere.
type CatalogStore interface {
	// FindVerifiedCard returns the verified entry matching name and issuer.
	FindVerifiedCard(ctx context.Context, cardName, issuer string) (models.CatalogEntry, error)
	// FindCard returns the entry matching name and issuer regardless of status.
	FindCard(ctx context.Context, cardName, issuer string) (models.CatalogEntry, error)
	GetCard(ctx context.Context, id string) (models.CatalogEntry, error)
	// CreateCardIfAbsent attempts to insert entry. When the (name, issuer)
	// pair already exists the stored row is returned with created=false.
	CreateCardIfAbsent(ctx context.Context, entry models.CatalogEntry) (stored models.CatalogEntry, created bool, err error)
	ListCatalog(ctx context.Context, status models.VerificationStatus) ([]models.CatalogEntry, error)

	// AddWalletCard inserts membership unless the user already holds the
	// card, in which case it reports added=false and no error.
	AddWalletCard(ctx context.Context, membership models.WalletMembership) (added bool, err error)
	ListWalletCards(ctx context.Context, userID string, verifiedOnly bool) ([]models.CatalogEntry, error)

	AppendAudit(ctx context.Context, record models.LookupAuditRecord) error
	ListAudit(ctx context.Context, userID string) ([]models.LookupAuditRecord, error)
}

// Store is a full persistence backend.
type Store interface {
	UserStore
	CatalogStore
	Close()
}
