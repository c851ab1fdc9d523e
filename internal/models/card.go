package models

import "time"

// Source records how a catalog entry came to exist.
type Source string

const (
	SourceManualVerified Source = "manual_verified"
	SourceWebExtracted   Source = "web_extracted"
)

// VerificationStatus is the trust tier of a catalog entry.
type VerificationStatus string

const (
	StatusVerified VerificationStatus = "verified"
	StatusPending  VerificationStatus = "pending"
)

// Reward categories, in display order.
const (
	CategoryDining        = "dining"
	CategoryGroceries     = "groceries"
	CategoryShopping      = "shopping"
	CategoryTravel        = "travel"
	CategoryFuel          = "fuel"
	CategoryUtilities     = "utilities"
	CategoryEntertainment = "entertainment"
	CategoryOthers        = "others"
)

// Categories lists the fixed reward-rule keys.
var Categories = []string{
	CategoryDining,
	CategoryGroceries,
	CategoryShopping,
	CategoryTravel,
	CategoryFuel,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryOthers,
}

// RewardRules maps each category to a reward rate in [0,1], where 0.05 means 5%.
type RewardRules map[string]float64

// Rate returns the rate for category, or zero when absent.
func (r RewardRules) Rate(category string) float64 {
	return r[category]
}

// Evidence points at the sources an extracted entry was derived from.
type Evidence struct {
	URLs  []string `json:"urls"`
	Notes string   `json:"notes"`
}

// CatalogEntry is a card product in the shared catalog.
type CatalogEntry struct {
	ID                 string             `json:"id"`
	CardName           string             `json:"card_name"`
	Issuer             string             `json:"issuer"`
	Network            *string            `json:"network"`
	RewardRules        RewardRules        `json:"reward_rules"`
	Source             Source             `json:"source"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Evidence           *Evidence          `json:"evidence"`
	CreatedByUserID    *string            `json:"-"`
	CreatedAt          time.Time          `json:"-"`
	UpdatedAt          time.Time          `json:"-"`
}

// WalletMembership links a user to a catalog entry they hold.
type WalletMembership struct {
	ID            string
	UserID        string
	CardCatalogID string
	Nickname      *string
	LastFour      *string
	Active        bool
	CreatedAt     time.Time
}

// LookupStatus tags an audit record with the resolution decision it captures.
type LookupStatus string

const (
	LookupFoundVerified    LookupStatus = "found_verified"
	LookupPending          LookupStatus = "lookup_pending"
	LookupConfirmedPending LookupStatus = "confirmed_pending"
)

// LookupAuditRecord is an append-only trace of one resolution decision.
// Payload is stored verbatim as JSON.
type LookupAuditRecord struct {
	ID            string
	UserID        string
	QueryCardName string
	QueryIssuer   string
	Status        LookupStatus
	Payload       []byte
	CreatedAt     time.Time
}
