package model

import "time"

type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// Tiers lists tiers from lowest to highest.
var Tiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}

// Rank orders tiers; unknown tiers rank below BRONZE.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

type LoyaltyTransactionType string

const (
	LoyaltyEarn   LoyaltyTransactionType = "EARN"
	LoyaltyRedeem LoyaltyTransactionType = "REDEEM"
	LoyaltyBonus  LoyaltyTransactionType = "BONUS"
)

// LoyaltyTransaction is an append-only ledger row. Points are positive
// for EARN and BONUS, negative for REDEEM.
type LoyaltyTransaction struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	Points      int64                  `json:"points"`
	Type        LoyaltyTransactionType `json:"type"`
	OrderID     string                 `json:"orderId,omitempty"`
	Description string                 `json:"description,omitempty"`
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Counts reports whether the row contributes to the balance at now.
func (t *LoyaltyTransaction) Counts(now time.Time) bool {
	switch t.Type {
	case LoyaltyEarn, LoyaltyBonus:
		return t.ExpiresAt == nil || t.ExpiresAt.After(now)
	case LoyaltyRedeem:
		return true
	}
	return false
}

// User carries the loyalty fields of a shop user. LoyaltyPoints caches the
// ledger balance.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email,omitempty"`
	LoyaltyPoints int64     `json:"loyaltyPoints"`
	LoyaltyTier   Tier      `json:"loyaltyTier"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
