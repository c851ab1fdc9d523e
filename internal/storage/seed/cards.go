// Package seed holds the curated, manually verified card catalog.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

type curatedCard struct {
	id, name, issuer, network string
	rules                     models.RewardRules
}

func rules(dining, groceries, shopping, travel, fuel, utilities, entertainment, others float64) models.RewardRules {
	return models.RewardRules{
		models.CategoryDining:        dining,
		models.CategoryGroceries:     groceries,
		models.CategoryShopping:      shopping,
		models.CategoryTravel:        travel,
		models.CategoryFuel:          fuel,
		models.CategoryUtilities:     utilities,
		models.CategoryEntertainment: entertainment,
		models.CategoryOthers:        others,
	}
}

var curated = []curatedCard{
	{"hdfc-millennia", "HDFC Millennia", "HDFC", "Visa", rules(0.05, 0.01, 0.05, 0.01, 0.01, 0.01, 0.05, 0.01)},
	{"hdfc-regalia-gold", "HDFC Regalia Gold", "HDFC", "Visa", rules(0.0133, 0.0133, 0.0133, 0.0267, 0.0, 0.0133, 0.0133, 0.0133)},
	{"sbi-cashback", "SBI Cashback", "SBI", "Visa", rules(0.05, 0.05, 0.05, 0.05, 0.0, 0.0, 0.05, 0.01)},
	{"axis-ace", "Axis ACE", "Axis Bank", "Visa", rules(0.04, 0.04, 0.015, 0.015, 0.0, 0.05, 0.015, 0.015)},
	{"amazon-pay-icici", "Amazon Pay ICICI", "ICICI Bank", "Visa", rules(0.02, 0.01, 0.05, 0.02, 0.01, 0.02, 0.01, 0.01)},
	{"flipkart-axis", "Flipkart Axis Bank", "Axis Bank", "Mastercard", rules(0.04, 0.015, 0.05, 0.04, 0.0, 0.015, 0.04, 0.015)},
	{"swiggy-hdfc", "Swiggy HDFC", "HDFC", "Mastercard", rules(0.10, 0.05, 0.05, 0.01, 0.0, 0.01, 0.05, 0.01)},
}

// Entries returns the curated catalog as verified entries stamped with now.
func Entries(now time.Time) []models.CatalogEntry {
	out := make([]models.CatalogEntry, 0, len(curated))
	for _, c := range curated {
		network := c.network
		out = append(out, models.CatalogEntry{
			ID:                 c.id,
			CardName:           c.name,
			Issuer:             c.issuer,
			Network:            &network,
			RewardRules:        c.rules,
			Source:             models.SourceManualVerified,
			VerificationStatus: models.StatusVerified,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}
	return out
}

// Apply inserts the curated cards, leaving any existing (name, issuer) row as is.
// It returns how many rows were inserted.
func Apply(ctx context.Context, store storage.CatalogStore) (int, error) {
	inserted := 0
	for _, entry := range Entries(time.Now().UTC()) {
		_, created, err := store.CreateCardIfAbsent(ctx, entry)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", entry.ID, err)
		}
		if created {
			inserted++
		}
	}
	return inserted, nil
}
