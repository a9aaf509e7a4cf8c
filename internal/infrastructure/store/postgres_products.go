package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/meatshop-orders/internal/model"
)

const productColumns = `id, name, price, unit, stock, min_stock, is_active, tags, images, nutrition, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Unit, &p.Stock, &p.MinStock, &p.IsActive,
		&p.Tags, &p.Images, &p.Nutrition, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getProduct(ctx context.Context, q querier, id string) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func decrementStock(ctx context.Context, q querier, productID string, quantity int) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = NOW()
		 WHERE id = $2 AND stock >= $1`,
		quantity, productID,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock for %s: %w", productID, err)
	}
	return affected(res)
}

func incrementStock(ctx context.Context, q querier, productID string, quantity int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("increment stock for %s: %w", productID, err)
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

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return getProduct(ctx, s.db, id)
}

func (s *PostgresStore) ListProducts(ctx context.Context, activeOnly bool) ([]*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.Product) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO products (id, name, price, unit, stock, min_stock, is_active, tags, images, nutrition)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Price, p.Unit, p.Stock, p.MinStock, p.IsActive, p.Tags, p.Images, p.Nutrition,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *PostgresStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	return decrementStock(ctx, s.db, productID, quantity)
}

func (s *PostgresStore) IncrementStock(ctx context.Context, productID string, quantity int) error {
	return incrementStock(ctx, s.db, productID, quantity)
}
