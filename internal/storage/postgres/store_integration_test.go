package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/retry"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
	"github.com/hongminglow/cardsavvy-be/internal/storage/seed"
)

// TestPostgresStoreIntegration exercises the store against a live database.
func TestPostgresStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_POSTGRES_INTEGRATION") != "true" {
		t.Skip("set RUN_POSTGRES_INTEGRATION=true to run this integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := New(ctx, dbURL, retry.Config{MaxRetries: 2, InitialWait: 100 * time.Millisecond, MaxWait: time.Second, Multiplier: 2}, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = seed.Apply(ctx, store)
	require.NoError(t, err)

	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("pgtest_%d@example.com", suffix)
	user := models.User{ID: uuid.NewString(), Email: email, PasswordHash: "s:k", CreatedAt: time.Now()}
	_, err = store.CreateUser(ctx, user)
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, models.User{ID: uuid.NewString(), Email: email, PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := store.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	verified, err := store.FindVerifiedCard(ctx, "HDFC MILLENNIA", "hdfc")
	require.NoError(t, err)
	assert.Equal(t, "hdfc-millennia", verified.ID)

	name := fmt.Sprintf("Race Card %d", suffix)
	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now()
			stored, _, err := store.CreateCardIfAbsent(ctx, models.CatalogEntry{
				ID: uuid.NewString(), CardName: name, Issuer: "Race Bank",
				RewardRules: models.RewardRules{models.CategoryOthers: 0.01},
				Source:      models.SourceWebExtracted, VerificationStatus: models.StatusPending,
				CreatedAt: now, UpdatedAt: now,
			})
			assert.NoError(t, err)
			ids[i] = stored.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	m := models.WalletMembership{ID: uuid.NewString(), UserID: user.ID, CardCatalogID: ids[0], Active: true, CreatedAt: time.Now()}
	added, err := store.AddWalletCard(ctx, m)
	require.NoError(t, err)
	assert.True(t, added)
	m.ID = uuid.NewString()
	added, err = store.AddWalletCard(ctx, m)
	require.NoError(t, err)
	assert.False(t, added)

	cards, err := store.ListWalletCards(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	verifiedCards, err := store.ListWalletCards(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Empty(t, verifiedCards)

	require.NoError(t, store.AppendAudit(ctx, models.LookupAuditRecord{
		ID: uuid.NewString(), UserID: user.ID, QueryCardName: name, QueryIssuer: "Race Bank",
		Status: models.LookupConfirmedPending, Payload: []byte(`{"card_id":"` + ids[0] + `"}`), CreatedAt: time.Now(),
	}))
	audit, err := store.ListAudit(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.LookupConfirmedPending, audit[0].Status)
}
