package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on PostgreSQL. Stock is only changed by
// conditional UPDATE statements, so concurrent callers never drive it
// below zero.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx StockTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&postgresTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type postgresTx struct {
	q querier
}

func (t *postgresTx) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return getProduct(ctx, t.q, id)
}

func (t *postgresTx) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	return decrementStock(ctx, t.q, productID, quantity)
}

func (t *postgresTx) IncrementStock(ctx context.Context, productID string, quantity int) error {
	return incrementStock(ctx, t.q, productID, quantity)
}

func (t *postgresTx) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return getOrder(ctx, t.q, id, true)
}

func (t *postgresTx) MarkStockRestored(ctx context.Context, orderID string) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE orders SET stock_restored = TRUE, updated_at = NOW()
		 WHERE id = $1 AND status = 'CANCELLED' AND stock_restored = FALSE`,
		orderID,
	)
	if err != nil {
		return false, fmt.Errorf("mark stock restored: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
