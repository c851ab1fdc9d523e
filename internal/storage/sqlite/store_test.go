package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
	"github.com/hongminglow/cardsavvy-be/internal/storage/seed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "nested", "cards.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func pendingEntry(name, issuer string) models.CatalogEntry {
	now := time.Now().UTC()
	return models.CatalogEntry{
		ID:                 uuid.NewString(),
		CardName:           name,
		Issuer:             issuer,
		RewardRules:        models.RewardRules{models.CategoryDining: 0.05},
		Source:             models.SourceWebExtracted,
		VerificationStatus: models.StatusPending,
		Evidence:           &models.Evidence{URLs: []string{"https://x"}, Notes: "n"},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := models.User{ID: uuid.NewString(), Email: "a@example.com", PasswordHash: "salt:key", CreatedAt: time.Now()}
	_, err := s.CreateUser(ctx, u)
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, models.User{ID: uuid.NewString(), Email: "a@example.com", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := s.FindByEmail(ctx, "A@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "salt:key", got.PasswordHash)

	_, err = s.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateCardIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := pendingEntry("HDFC Millennia", "HDFC")
	stored, created, err := s.CreateCardIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, 0.05, stored.RewardRules.Rate(models.CategoryDining))
	require.NotNil(t, stored.Evidence)
	assert.Equal(t, []string{"https://x"}, stored.Evidence.URLs)

	dup := pendingEntry("hdfc millennia", "hdfc")
	dup.RewardRules = models.RewardRules{models.CategoryDining: 0.5}
	stored, created, err = s.CreateCardIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID, "case-insensitive duplicate resolves to existing row")
	assert.Equal(t, 0.05, stored.RewardRules.Rate(models.CategoryDining), "existing rules are not overwritten")

	pending, err := s.ListCatalog(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestFindCard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := seed.Apply(ctx, s)
	require.NoError(t, err)
	_, _, err = s.CreateCardIfAbsent(ctx, pendingEntry("Mystery Card", "Some Bank"))
	require.NoError(t, err)

	verified, err := s.FindVerifiedCard(ctx, "hdfc MILLENNIA", "hdfc")
	require.NoError(t, err)
	assert.Equal(t, "hdfc-millennia", verified.ID)
	assert.Equal(t, models.StatusVerified, verified.VerificationStatus)
	assert.Nil(t, verified.Evidence)

	_, err = s.FindVerifiedCard(ctx, "mystery card", "some bank")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	anyStatus, err := s.FindCard(ctx, "mystery card", "some bank")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, anyStatus.VerificationStatus)

	_, err = s.GetCard(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := seed.Apply(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, len(seed.Entries(time.Now())), n)

	n, err = seed.Apply(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	verified, err := s.ListCatalog(ctx, models.StatusVerified)
	require.NoError(t, err)
	assert.Len(t, verified, len(seed.Entries(time.Now())))
}

func TestWallet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := seed.Apply(ctx, s)
	require.NoError(t, err)
	pending, _, err := s.CreateCardIfAbsent(ctx, pendingEntry("Mystery Card", "Some Bank"))
	require.NoError(t, err)

	nick := "daily"
	add := func(cardID string) bool {
		added, err := s.AddWalletCard(ctx, models.WalletMembership{
			ID: uuid.NewString(), UserID: "u1", CardCatalogID: cardID, Nickname: &nick, Active: true, CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		return added
	}

	assert.True(t, add("sbi-cashback"))
	assert.False(t, add("sbi-cashback"), "re-adding is a no-op")
	assert.True(t, add(pending.ID))

	all, err := s.ListWalletCards(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, pending.ID, all[0].ID, "newest membership first")

	verifiedOnly, err := s.ListWalletCards(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, verifiedOnly, 1)
	assert.Equal(t, "sbi-cashback", verifiedOnly[0].ID)

	other, err := s.ListWalletCards(ctx, "u2", false)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, status := range []models.LookupStatus{models.LookupPending, models.LookupConfirmedPending} {
		require.NoError(t, s.AppendAudit(ctx, models.LookupAuditRecord{
			ID:            uuid.NewString(),
			UserID:        "u1",
			QueryCardName: "Card",
			QueryIssuer:   "Bank",
			Status:        status,
			Payload:       []byte(`{"card_id":"c1"}`),
			CreatedAt:     time.Now().Add(time.Duration(i) * time.Millisecond),
		}))
	}

	records, err := s.ListAudit(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.LookupPending, records[0].Status)
	assert.Equal(t, models.LookupConfirmedPending, records[1].Status)
	assert.JSONEq(t, `{"card_id":"c1"}`, string(records[0].Payload))
}

func TestCreateCardIfAbsent_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const writers = 8
	ids := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, _, err := s.CreateCardIfAbsent(ctx, pendingEntry("Race Card", "Race Bank"))
			assert.NoError(t, err)
			ids[i] = stored.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	pending, err := s.ListCatalog(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
