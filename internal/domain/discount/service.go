package discount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/meatshop-orders/internal/cache"
	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrCodeRequired      = errors.New("discount code is required")
	ErrNotFound          = errors.New("discount code not found")
	ErrInactive          = errors.New("discount code is not active")
	ErrNotYetValid       = errors.New("discount code is not yet valid")
	ErrExpired           = errors.New("discount code has expired")
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	ErrBelowMinimum      = errors.New("order subtotal is below the code minimum")
	ErrInvalidDiscount   = errors.New("discount must be greater than 0 and at most 100")
	ErrInvalidWindow     = errors.New("validFrom must not be after validTo")
	ErrInvalidSubtotal   = errors.New("subtotal must not be negative")
	ErrDuplicateCode     = errors.New("discount code already exists")
)

var hundred = decimal.NewFromInt(100)

// BelowMinimumError reports the minimum subtotal a code requires.
type BelowMinimumError struct {
	MinAmount int64
	Subtotal  int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("order subtotal %d is below the minimum %d for this code", e.Subtotal, e.MinAmount)
}

func (e *BelowMinimumError) Unwrap() error {
	return ErrBelowMinimum
}

// Outcome is the result of a successful validation. Validation never
// changes the usage count.
type Outcome struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Description    string          `json:"description,omitempty"`
	Percentage     decimal.Decimal `json:"discount"`
	MaxDiscount    *int64          `json:"maxDiscount,omitempty"`
	MinAmount      *int64          `json:"minAmount,omitempty"`
	Subtotal       int64           `json:"subtotal"`
	DiscountAmount int64           `json:"discountAmount"`
	Total          int64           `json:"total"`
}

type CreateCode struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Discount    decimal.Decimal `json:"discount"`
	MinAmount   *int64          `json:"minAmount,omitempty"`
	MaxDiscount *int64          `json:"maxDiscount,omitempty"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidTo     *time.Time      `json:"validTo,omitempty"`
	UsageLimit  *int            `json:"usageLimit,omitempty"`
	IsActive    *bool           `json:"isActive,omitempty"`
}

type Service struct {
	store  store.DiscountStore
	cache  cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

func NewService(s store.DiscountStore, c cache.Cache, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		store:  s,
		cache:  c,
		logger: logger.With("component", "discount"),
		now:    time.Now,
	}
}

// Normalize trims and upper-cases a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup finds a code and checks that it is usable now, without looking at
// any order amount.
func (s *Service) Lookup(ctx context.Context, code string) (*model.DiscountCode, error) {
	code = Normalize(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	d, err := s.byCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks code against an order subtotal and computes the discount.
func (s *Service) Validate(ctx context.Context, code string, subtotal int64) (*Outcome, error) {
	if subtotal < 0 {
		return nil, ErrInvalidSubtotal
	}
	d, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.outcome(d, subtotal)
}

// ValidateByID applies the same checks as Validate to a code referenced by
// id, reading it straight from the store.
func (s *Service) ValidateByID(ctx context.Context, id string, subtotal int64) (*Outcome, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrCodeRequired
	}
	if subtotal < 0 {
		return nil, ErrInvalidSubtotal
	}
	d, err := s.store.GetDiscountCode(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(d); err != nil {
		return nil, err
	}
	return s.outcome(d, subtotal)
}

// RecordUsage counts one use of the code unless its limit has been
// reached, and reports whether it did.
func (s *Service) RecordUsage(ctx context.Context, id string) (bool, error) {
	ok, err := s.store.IncrementDiscountUsage(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	d, err := s.store.GetDiscountCode(ctx, id)
	if err != nil {
		s.logger.Warn("failed to reload discount code after usage", "discount_id", id, "error", err)
		return ok, nil
	}
	if err := s.cache.Delete(ctx, cache.DiscountKey(Normalize(d.Code))); err != nil {
		s.logger.Warn("failed to invalidate discount cache", "code", d.Code, "error", err)
	}
	return ok, nil
}

func (s *Service) Create(ctx context.Context, cmd CreateCode) (*model.DiscountCode, error) {
	code := Normalize(cmd.Code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if !cmd.Discount.IsPositive() || cmd.Discount.GreaterThan(hundred) {
		return nil, ErrInvalidDiscount
	}
	if cmd.ValidFrom != nil && cmd.ValidTo != nil && cmd.ValidFrom.After(*cmd.ValidTo) {
		return nil, ErrInvalidWindow
	}
	if cmd.MinAmount != nil && *cmd.MinAmount < 0 {
		return nil, errors.New("minAmount must not be negative")
	}
	if cmd.MaxDiscount != nil && *cmd.MaxDiscount < 0 {
		return nil, errors.New("maxDiscount must not be negative")
	}
	if cmd.UsageLimit != nil && *cmd.UsageLimit < 0 {
		return nil, errors.New("usageLimit must not be negative")
	}

	active := true
	if cmd.IsActive != nil {
		active = *cmd.IsActive
	}
	d := &model.DiscountCode{
		Code:        code,
		Description: strings.TrimSpace(cmd.Description),
		Discount:    cmd.Discount,
		MinAmount:   cmd.MinAmount,
		MaxDiscount: cmd.MaxDiscount,
		ValidFrom:   cmd.ValidFrom,
		ValidTo:     cmd.ValidTo,
		UsageLimit:  cmd.UsageLimit,
		IsActive:    active,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateDiscountCode(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	if err := s.cache.Delete(ctx, cache.DiscountKey(code)); err != nil {
		s.logger.Warn("failed to invalidate discount cache", "code", code, "error", err)
	}

	s.logger.Info("discount code created", "code", code, "discount", d.Discount.String())
	return d, nil
}

func (s *Service) byCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	key := cache.DiscountKey(code)
	var cached model.DiscountCode
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("discount cache read failed", "code", code, "error", err)
	} else if ok {
		return &cached, nil
	}

	d, err := s.store.GetDiscountCodeByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, d); err != nil {
		s.logger.Warn("discount cache write failed", "code", code, "error", err)
	}
	return d, nil
}

func (s *Service) checkUsable(d *model.DiscountCode) error {
	now := s.now()
	switch {
	case !d.IsActive:
		return ErrInactive
	case d.ValidFrom != nil && now.Before(*d.ValidFrom):
		return ErrNotYetValid
	case d.ValidTo != nil && now.After(*d.ValidTo):
		return ErrExpired
	case d.LimitReached():
		return ErrUsageLimitReached
	}
	return nil
}

func (s *Service) outcome(d *model.DiscountCode, subtotal int64) (*Outcome, error) {
	if d.MinAmount != nil && subtotal < *d.MinAmount {
		return nil, &BelowMinimumError{MinAmount: *d.MinAmount, Subtotal: subtotal}
	}
	amount := Amount(subtotal, d.Discount, d.MaxDiscount)
	return &Outcome{
		ID:             d.ID,
		Code:           d.Code,
		Description:    d.Description,
		Percentage:     d.Discount,
		MaxDiscount:    d.MaxDiscount,
		MinAmount:      d.MinAmount,
		Subtotal:       subtotal,
		DiscountAmount: amount,
		Total:          subtotal - amount,
	}, nil
}

// Amount returns floor(subtotal * percentage / 100), capped by maxDiscount
// and by the subtotal itself.
func Amount(subtotal int64, percentage decimal.Decimal, maxDiscount *int64) int64 {
	amount := decimal.NewFromInt(subtotal).Mul(percentage).Div(hundred).Floor().IntPart()
	if maxDiscount != nil && amount > *maxDiscount {
		amount = *maxDiscount
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}
