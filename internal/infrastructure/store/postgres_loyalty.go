package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

func (s *PostgresStore) EnsureUser(ctx context.Context, id, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET email = CASE WHEN users.email = '' THEN EXCLUDED.email ELSE users.email END
		 RETURNING id, email, loyalty_points, loyalty_tier, created_at, updated_at`,
		id, email,
	).Scan(&u.ID, &u.Email, &u.LoyaltyPoints, &u.LoyaltyTier, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", id, err)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUserLoyalty(ctx context.Context, userID string, points int64, tier model.Tier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET loyalty_points = $1, loyalty_tier = $2, updated_at = NOW() WHERE id = $3`,
		points, tier, userID,
	)
	if err != nil {
		return fmt.Errorf("update user loyalty: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeductLoyaltyPoints(ctx context.Context, userID string, points int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET loyalty_points = loyalty_points - $1, updated_at = NOW()
		 WHERE id = $2 AND loyalty_points >= $1`,
		points, userID,
	)
	if err != nil {
		return false, fmt.Errorf("deduct loyalty points: %w", err)
	}
	return affected(res)
}

func (s *PostgresStore) AppendLoyaltyTransaction(ctx context.Context, t *model.LoyaltyTransaction) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO loyalty_transactions (id, user_id, points, type, order_id, description, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, order_id) WHERE type = 'EARN' AND order_id IS NOT NULL DO NOTHING
		 RETURNING created_at`,
		t.ID, t.UserID, t.Points, t.Type, nullString(t.OrderID), t.Description, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append loyalty transaction: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListLoyaltyTransactions(ctx context.Context, userID string) ([]*model.LoyaltyTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, points, type, order_id, description, expires_at, created_at
		 FROM loyalty_transactions WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list loyalty transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*model.LoyaltyTransaction, 0)
	for rows.Next() {
		var (
			t         model.LoyaltyTransaction
			orderID   sql.NullString
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Points, &t.Type, &orderID, &t.Description, &expiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan loyalty transaction: %w", err)
		}
		t.OrderID = orderID.String
		if expiresAt.Valid {
			t.ExpiresAt = &expiresAt.Time
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
