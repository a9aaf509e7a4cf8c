package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

const orderColumns = `id, order_number, user_id, status, customer_name, customer_phone, customer_email, customer_address,
	customer_note, payment_method, discount_code_id, discount_amount, subtotal, total, stock_restored,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var (
		o          model.Order
		discountID sql.NullString
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email, &o.Customer.Address, &o.Customer.Note,
		&o.PaymentMethod, &discountID, &o.DiscountAmount, &o.Subtotal, &o.Total, &o.StockRestored,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.DiscountCodeID = discountID.String
	return &o, nil
}

// getOrder loads an order with its items. With lock set the order row is
// locked until the surrounding transaction ends.
func getOrder(ctx context.Context, q querier, id string, lock bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	items, err := listOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func listOrderItems(ctx context.Context, q querier, orderID string) ([]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, name, price, quantity, image
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]model.OrderItem, 0)
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Price, &it.Quantity, &it.Image); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateOrder inserts the order and all of its items in one transaction.
func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, customer_name, customer_phone,
			customer_email, customer_address, customer_note, payment_method, discount_code_id,
			discount_amount, subtotal, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.Customer.Name, o.Customer.Phone,
		o.Customer.Email, o.Customer.Address, o.Customer.Note, o.PaymentMethod, nullString(o.DiscountCodeID),
		o.DiscountAmount, o.Subtotal, o.Total,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			// v7 ids sort by creation time, keeping cart order on reads
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate item id: %w", err)
			}
			it.ID = id.String()
		}
		it.OrderID = o.ID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, price, quantity, image)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, it.OrderID, it.ProductID, it.Name, it.Price, it.Quantity, it.Image,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return getOrder(ctx, s.db, id, false)
}

// DeleteOrder removes the order; its items go with it through ON DELETE CASCADE.
func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
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

func (s *PostgresStore) ListOrders(ctx context.Context) ([]*model.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *PostgresStore) listOrders(ctx context.Context, query string, args ...any) ([]*model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := make([]*model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range orders {
		if o.Items, err = listOrderItems(ctx, s.db, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order %s: %w", id, err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
