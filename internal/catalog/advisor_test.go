package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

func TestClassifyMerchant(t *testing.T) {
	tests := map[string]string{
		"Swiggy Instamart":    models.CategoryDining,
		"ZOMATO":              models.CategoryDining,
		"Blue Tokai Cafe":     models.CategoryDining,
		"Amazon.in":           models.CategoryShopping,
		"myntra fashion":      models.CategoryShopping,
		"DMart Ready":         models.CategoryGroceries,
		"BigBasket":           models.CategoryGroceries,
		"Indian Oil Petrol":   models.CategoryOthers,
		"":                    models.CategoryOthers,
		"restaurant + amazon": models.CategoryDining,
	}
	for merchant, want := range tests {
		assert.Equal(t, want, ClassifyMerchant(merchant), merchant)
	}
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t, failing())

	_, err := r.AddToWallet(ctx, "user-1", "hdfc-millennia", nil, nil)
	require.NoError(t, err)
	_, err = r.AddToWallet(ctx, "user-1", "swiggy-hdfc", nil, nil)
	require.NoError(t, err)

	rec, err := r.Recommend(ctx, "user-1", "Swiggy", 1000)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDining, rec.Category)
	assert.Equal(t, "swiggy-hdfc", rec.Card.ID)
	assert.Equal(t, 0.7, rec.Confidence)
	assert.InDelta(t, 100.0, rec.Reward, 1e-9)
	assert.Equal(t, 10.0, rec.Percentage())
	assert.Equal(t, "Swiggy HDFC gives the highest verified reward for dining.", rec.Explanation())
	assert.Equal(t, "100.00", fmt.Sprintf("%.2f", rec.Reward))
}

func TestRecommend_IgnoresPendingCards(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver(t, failing())

	_, err := r.Confirm(ctx, "user-1", ConfirmInput{
		CardName: "Generous Card", Issuer: "Bank",
		RewardRules: models.RewardRules{models.CategoryDining: 1},
	})
	require.NoError(t, err)

	_, err = r.Recommend(ctx, "user-1", "zomato", 500)
	assert.ErrorIs(t, err, ErrNoVerifiedCards)

	_, err = r.AddToWallet(ctx, "user-1", "axis-ace", nil, nil)
	require.NoError(t, err)
	rec, err := r.Recommend(ctx, "user-1", "zomato", 500)
	require.NoError(t, err)
	assert.Equal(t, "axis-ace", rec.Card.ID)
}

func TestRecommend_InvalidInput(t *testing.T) {
	r, _ := newResolver(t, failing())

	_, err := r.Recommend(context.Background(), "user-1", "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = r.Recommend(context.Background(), "user-1", "amazon", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type fakeReplier struct {
	answer string
	err    error
	cards  []models.CatalogEntry
}

func (f *fakeReplier) Reply(_ context.Context, _ string, cards []models.CatalogEntry) (string, error) {
	f.cards = cards
	return f.answer, f.err
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	replier := &fakeReplier{answer: "Use Amazon Pay ICICI."}
	r, _ := newResolver(t, failing(), WithReplier(replier))

	_, err := r.AddToWallet(ctx, "user-1", "amazon-pay-icici", nil, nil)
	require.NoError(t, err)

	answer, err := r.Chat(ctx, "user-1", "Best card for Amazon?")
	require.NoError(t, err)
	assert.Equal(t, "Use Amazon Pay ICICI.", answer)
	require.Len(t, replier.cards, 1)
	assert.Equal(t, "amazon-pay-icici", replier.cards[0].ID)
}

func TestChat_Fallback(t *testing.T) {
	ctx := context.Background()

	r, _ := newResolver(t, failing(), WithReplier(&fakeReplier{err: errors.New("quota exceeded")}))
	answer, err := r.Chat(ctx, "user-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, ChatFallback, answer)

	bare, _ := newResolver(t, failing())
	answer, err = bare.Chat(ctx, "user-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, ChatFallback, answer)

	_, err = bare.Chat(ctx, "user-1", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
