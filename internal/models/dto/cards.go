package dto

import "github.com/hongminglow/cardsavvy-be/internal/models"

type LookupRequest struct {
	CardName string  `json:"card_name"`
	Issuer   string  `json:"issuer"`
	Network  *string `json:"network"`
}

type ConfirmRequest struct {
	CardName    string             `json:"card_name"`
	Issuer      string             `json:"issuer"`
	Network     *string            `json:"network"`
	RewardRules models.RewardRules `json:"reward_rules"`
	Evidence    *models.Evidence   `json:"evidence"`
	LastFour    *string            `json:"last_four"`
	Nickname    *string            `json:"nickname"`
}

type WalletRequest struct {
	CardCatalogID string  `json:"card_catalog_id"`
	LastFour      *string `json:"last_four"`
	Nickname      *string `json:"nickname"`
}

type AnalyzeRequest struct {
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type FoundVerifiedResponse struct {
	Status string              `json:"status"`
	Card   models.CatalogEntry `json:"card"`
}

// NeedsConfirmationResponse carries an unpersisted candidate; its confidence
// is reported beside it rather than inside it.
type NeedsConfirmationResponse struct {
	Status        string              `json:"status"`
	Candidate     models.CatalogEntry `json:"candidate"`
	Confidence    float64             `json:"confidence"`
	ExtractedFrom []string            `json:"extracted_from"`
}

type ConfirmResponse struct {
	Success bool                `json:"success"`
	Card    models.CatalogEntry `json:"card"`
}

type CardsResponse struct {
	Cards []models.CatalogEntry `json:"cards"`
}

type RecommendedCard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bank string `json:"bank"`
}

type EstimatedReward struct {
	Value      string  `json:"value"`
	Unit       string  `json:"unit"`
	Percentage float64 `json:"percentage"`
}

type AnalyzeResponse struct {
	Category        string          `json:"category"`
	Confidence      float64         `json:"confidence"`
	RecommendedCard RecommendedCard `json:"recommendedCard"`
	EstimatedReward EstimatedReward `json:"estimatedReward"`
	Explanation     string          `json:"explanation"`
}
