package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCode is a percentage discount with optional amount, time and
// usage constraints. UsedCount never exceeds UsageLimit when a limit is set.
type DiscountCode struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Discount    decimal.Decimal `json:"discount"`
	MinAmount   *int64          `json:"minAmount,omitempty"`
	MaxDiscount *int64          `json:"maxDiscount,omitempty"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidTo     *time.Time      `json:"validTo,omitempty"`
	UsageLimit  *int            `json:"usageLimit,omitempty"`
	UsedCount   int             `json:"usedCount"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// LimitReached reports whether the code has no uses left.
func (d *DiscountCode) LimitReached() bool {
	return d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit
}

// Clone returns a copy of d that does not share pointer fields.
func (d *DiscountCode) Clone() *DiscountCode {
	c := *d
	if d.MinAmount != nil {
		v := *d.MinAmount
		c.MinAmount = &v
	}
	if d.MaxDiscount != nil {
		v := *d.MaxDiscount
		c.MaxDiscount = &v
	}
	if d.ValidFrom != nil {
		v := *d.ValidFrom
		c.ValidFrom = &v
	}
	if d.ValidTo != nil {
		v := *d.ValidTo
		c.ValidTo = &v
	}
	if d.UsageLimit != nil {
		v := *d.UsageLimit
		c.UsageLimit = &v
	}
	return &c
}
