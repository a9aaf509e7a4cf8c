package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

const discountColumns = `id, code, description, discount, min_amount, max_discount, valid_from, valid_to,
	usage_limit, used_count, is_active, created_at`

func scanDiscount(row interface{ Scan(...any) error }) (*model.DiscountCode, error) {
	var (
		d                      model.DiscountCode
		minAmount, maxDiscount sql.NullInt64
		validFrom, validTo     sql.NullTime
		usageLimit             sql.NullInt32
	)
	err := row.Scan(&d.ID, &d.Code, &d.Description, &d.Discount, &minAmount, &maxDiscount,
		&validFrom, &validTo, &usageLimit, &d.UsedCount, &d.IsActive, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if minAmount.Valid {
		d.MinAmount = &minAmount.Int64
	}
	if maxDiscount.Valid {
		d.MaxDiscount = &maxDiscount.Int64
	}
	if validFrom.Valid {
		d.ValidFrom = &validFrom.Time
	}
	if validTo.Valid {
		d.ValidTo = &validTo.Time
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int32)
		d.UsageLimit = &limit
	}
	return &d, nil
}

func (s *PostgresStore) getDiscount(ctx context.Context, where string, arg any) (*model.DiscountCode, error) {
	d, err := scanDiscount(s.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discount_codes WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get discount code: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDiscountCode(ctx context.Context, id string) (*model.DiscountCode, error) {
	return s.getDiscount(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetDiscountCodeByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	return s.getDiscount(ctx, `code = $1`, strings.ToUpper(code))
}

func (s *PostgresStore) CreateDiscountCode(ctx context.Context, d *model.DiscountCode) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	var usageLimit sql.NullInt32
	if d.UsageLimit != nil {
		usageLimit = sql.NullInt32{Int32: int32(*d.UsageLimit), Valid: true}
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO discount_codes (id, code, description, discount, min_amount, max_discount,
			valid_from, valid_to, usage_limit, used_count, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		d.ID, d.Code, d.Description, d.Discount, d.MinAmount, d.MaxDiscount,
		d.ValidFrom, d.ValidTo, usageLimit, d.UsedCount, d.IsActive,
	).Scan(&d.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create discount code: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementDiscountUsage(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discount_codes SET used_count = used_count + 1
		 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("increment discount usage: %w", err)
	}
	return affected(res)
}
