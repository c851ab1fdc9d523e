package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

// AddToWallet links an existing catalog entry to the user. Adding a card the
// user already holds is a no-op.
func (r *Resolver) AddToWallet(ctx context.Context, userID, cardID string, nickname, lastFour *string) (models.CatalogEntry, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return models.CatalogEntry{}, fmt.Errorf("%w: card_catalog_id is required", ErrInvalidInput)
	}
	card, err := r.store.GetCard(ctx, cardID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.CatalogEntry{}, ErrCardNotFound
	}
	if err != nil {
		return models.CatalogEntry{}, fmt.Errorf("get card: %w", err)
	}
	if err := r.addMembership(ctx, userID, card.ID, nickname, lastFour); err != nil {
		return models.CatalogEntry{}, err
	}
	return card, nil
}

// ListWallet returns every card the user holds, newest first.
func (r *Resolver) ListWallet(ctx context.Context, userID string) ([]models.CatalogEntry, error) {
	cards, err := r.store.ListWalletCards(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("list wallet: %w", err)
	}
	return cards, nil
}

// ListCatalog returns catalog entries in the given status. An empty status
// means verified.
func (r *Resolver) ListCatalog(ctx context.Context, status models.VerificationStatus) ([]models.CatalogEntry, error) {
	switch status {
	case "":
		status = models.StatusVerified
	case models.StatusVerified, models.StatusPending:
	default:
		return nil, fmt.Errorf("%w: unknown verification status %q", ErrInvalidInput, status)
	}
	cards, err := r.store.ListCatalog(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return cards, nil
}

func (r *Resolver) addMembership(ctx context.Context, userID, cardID string, nickname, lastFour *string) error {
	_, err := r.store.AddWalletCard(ctx, models.WalletMembership{
		ID:            uuid.NewString(),
		UserID:        userID,
		CardCatalogID: cardID,
		Nickname:      trimmedOrNil(nickname),
		LastFour:      trimmedOrNil(lastFour),
		Active:        true,
		CreatedAt:     r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("add wallet card: %w", err)
	}
	return nil
}
