package loyalty

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/shopspring/decimal"
)

var ErrInvalidThresholds = errors.New("tier thresholds must be 3 strictly increasing positive values")

// TierRule describes one tier. Rate is the percentage of an order total
// credited as points; Bonus is granted once when a user is upgraded into
// the tier.
type TierRule struct {
	Tier      model.Tier      `json:"tier"`
	Threshold int64           `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
	Bonus     int64           `json:"bonus"`
}

// TierTable is ordered from lowest to highest tier.
type TierTable []TierRule

var defaultThresholds = []int64{1000, 5000, 10000}

func DefaultTierTable() TierTable {
	return TierTable{
		{Tier: model.TierBronze, Threshold: 0, Rate: decimal.NewFromInt(1), Bonus: 0},
		{Tier: model.TierSilver, Threshold: 1000, Rate: decimal.RequireFromString("1.5"), Bonus: 100},
		{Tier: model.TierGold, Threshold: 5000, Rate: decimal.NewFromInt(2), Bonus: 300},
		{Tier: model.TierPlatinum, Threshold: 10000, Rate: decimal.RequireFromString("2.5"), Bonus: 500},
	}
}

// NewTierTable returns the default table with the SILVER, GOLD and
// PLATINUM thresholds replaced.
func NewTierTable(thresholds []int64) (TierTable, error) {
	if len(thresholds) != 3 {
		return nil, ErrInvalidThresholds
	}
	prev := int64(0)
	for _, v := range thresholds {
		if v <= prev {
			return nil, ErrInvalidThresholds
		}
		prev = v
	}
	table := DefaultTierTable()
	for i, v := range thresholds {
		table[i+1].Threshold = v
	}
	return table, nil
}

// IsDefault reports whether the thresholds are the stock ones.
func (t TierTable) IsDefault() bool {
	if len(t) != 4 {
		return false
	}
	for i, v := range defaultThresholds {
		if t[i+1].Threshold != v {
			return false
		}
	}
	return true
}

// TierFor returns the highest tier whose threshold balance reaches.
func (t TierTable) TierFor(balance int64) model.Tier {
	tier := t[0].Tier
	for _, r := range t {
		if balance >= r.Threshold {
			tier = r.Tier
		}
	}
	return tier
}

// Rule returns the rule for tier, falling back to the lowest tier.
func (t TierTable) Rule(tier model.Tier) TierRule {
	for _, r := range t {
		if r.Tier == tier {
			return r
		}
	}
	return t[0]
}

// Next returns the rule above tier, or false at the top.
func (t TierTable) Next(tier model.Tier) (TierRule, bool) {
	for i, r := range t {
		if r.Tier == tier && i+1 < len(t) {
			return t[i+1], true
		}
	}
	return TierRule{}, false
}

func (t TierTable) String() string {
	parts := make([]string, len(t))
	for i, r := range t {
		parts[i] = fmt.Sprintf("%s>=%d@%s%%", r.Tier, r.Threshold, r.Rate)
	}
	return strings.Join(parts, " ")
}

// TierPolicy decides what happens to the tier when points are redeemed.
type TierPolicy string

const (
	// PolicyBalance derives the tier from the balance, so a redemption can
	// move a user down.
	PolicyBalance TierPolicy = "balance"
	// PolicyHighWaterMark never lowers a tier.
	PolicyHighWaterMark TierPolicy = "high-water-mark"
)

func ParseTierPolicy(s string) (TierPolicy, error) {
	switch p := TierPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyBalance, nil
	case PolicyBalance, PolicyHighWaterMark:
		return p, nil
	}
	return "", fmt.Errorf("unknown tier policy %q", s)
}
