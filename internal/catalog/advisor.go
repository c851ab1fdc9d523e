package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/logger"
	"github.com/hongminglow/cardsavvy-be/internal/models"
)

// ErrNoVerifiedCards is returned when a recommendation needs at least one
// verified card in the wallet.
var ErrNoVerifiedCards = errors.New("no verified cards found in wallet")

// ChatFallback is sent when the assistant cannot produce an answer.
const ChatFallback = "I could not reach Gemini right now. Please try again in a moment."

const recommendationConfidence = 0.7

var merchantKeywords = []struct {
	category string
	keywords []string
}{
	{models.CategoryDining, []string{"swiggy", "zomato", "restaurant", "cafe"}},
	{models.CategoryShopping, []string{"amazon", "flipkart", "myntra"}},
	{models.CategoryGroceries, []string{"dmart", "grocery", "bigbasket"}},
}

// ClassifyMerchant maps a merchant name to a reward category by keyword.
func ClassifyMerchant(merchant string) string {
	m := strings.ToLower(merchant)
	for _, group := range merchantKeywords {
		for _, k := range group.keywords {
			if strings.Contains(m, k) {
				return group.category
			}
		}
	}
	return models.CategoryOthers
}

// Recommendation is the best verified wallet card for a purchase.
type Recommendation struct {
	Category   string
	Confidence float64
	Card       models.CatalogEntry
	Rate       float64
	Reward     float64
}

// Explanation is a one-line human summary.
func (r Recommendation) Explanation() string {
	return fmt.Sprintf("%s gives the highest verified reward for %s.", r.Card.CardName, r.Category)
}

// Percentage is the reward rate as a percentage rounded to two decimals.
func (r Recommendation) Percentage() float64 {
	return math.Round(r.Rate*10000) / 100
}

// Recommend picks the verified wallet card with the highest rate for the
// merchant's category. Ties go to the most recently added card.
func (r *Resolver) Recommend(ctx context.Context, userID, merchant string, amount float64) (Recommendation, error) {
	if strings.TrimSpace(merchant) == "" {
		return Recommendation{}, fmt.Errorf("%w: merchant is required", ErrInvalidInput)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Recommendation{}, fmt.Errorf("%w: amount must be a non-negative number", ErrInvalidInput)
	}

	cards, err := r.store.ListWalletCards(ctx, userID, true)
	if err != nil {
		return Recommendation{}, fmt.Errorf("list wallet: %w", err)
	}
	if len(cards) == 0 {
		return Recommendation{}, ErrNoVerifiedCards
	}

	category := ClassifyMerchant(merchant)
	best := cards[0]
	for _, card := range cards[1:] {
		if card.RewardRules.Rate(category) > best.RewardRules.Rate(category) {
			best = card
		}
	}
	rate := best.RewardRules.Rate(category)
	return Recommendation{
		Category:   category,
		Confidence: recommendationConfidence,
		Card:       best,
		Rate:       rate,
		Reward:     amount * rate,
	}, nil
}

// Chat answers a free-form question using the user's verified wallet cards as
// context. Provider failures yield ChatFallback.
func (r *Resolver) Chat(ctx context.Context, userID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	cards, err := r.store.ListWalletCards(ctx, userID, true)
	if err != nil {
		return "", fmt.Errorf("list wallet: %w", err)
	}
	if r.replier == nil {
		return ChatFallback, nil
	}
	answer, err := r.replier.Reply(ctx, message, cards)
	if err != nil {
		logger.WithContext(ctx, r.log).Warn("chat reply failed", zap.Error(err))
		return ChatFallback, nil
	}
	return answer, nil
}
