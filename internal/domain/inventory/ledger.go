package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/example/meatshop-orders/internal/cache"
	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/model"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
)

// InsufficientStockError names the item that could not be decremented.
// Available is the stock observed when the decrement failed.
type InsufficientStockError struct {
	ProductID string
	Label     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Label, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// StockItem is one line of a multi-item decrement. Label is the name shown
// in errors; it defaults to the product id.
type StockItem struct {
	ProductID string
	Quantity  int
	Label     string
}

func (i StockItem) label() string {
	if i.Label != "" {
		return i.Label
	}
	return i.ProductID
}

type ledgerStore interface {
	store.ProductStore
	store.TxRunner
}

// Ledger is the only writer of product stock. Every decrement is
// conditional on the stock covering the quantity, so stock never goes
// negative regardless of how many callers race.
type Ledger struct {
	store  ledgerStore
	cache  cache.Cache
	logger *slog.Logger
}

func NewLedger(s ledgerStore, c cache.Cache, logger *slog.Logger) *Ledger {
	if c == nil {
		c = cache.Nop{}
	}
	return &Ledger{store: s, cache: c, logger: logger.With("component", "inventory")}
}

// CanDecrement is an advisory read; the answer may be stale by the time
// the caller acts on it.
func (l *Ledger) CanDecrement(ctx context.Context, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	p, err := l.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return false, err
	}
	return p.Stock >= quantity, nil
}

// DecrementOne subtracts quantity from a single product if enough stock
// remains and reports whether it did.
func (l *Ledger) DecrementOne(ctx context.Context, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	ok, err := l.store.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return false, err
	}
	if ok {
		l.invalidate(ctx, productID)
	}
	return ok, nil
}

// DecrementMany applies every decrement in one transaction. If any item
// cannot be covered nothing is changed and the first such item, in the
// order given, is reported. Rows are touched in product id order so that
// concurrent carts always lock them in the same order.
func (l *Ledger) DecrementMany(ctx context.Context, items []StockItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%s: %w", item.label(), ErrInvalidQuantity)
		}
	}

	ordered := slices.Clone(items)
	slices.SortStableFunc(ordered, func(a, b StockItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	err := l.store.WithTx(ctx, func(tx store.StockTx) error {
		short := make(map[string]bool)
		for _, item := range ordered {
			ok, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				short[item.ProductID] = true
			}
		}
		for _, item := range items {
			if short[item.ProductID] {
				return shortage(ctx, tx, item)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	l.invalidate(ctx, ids...)
	return nil
}

func shortage(ctx context.Context, tx store.StockTx, item StockItem) error {
	p, err := tx.GetProduct(ctx, item.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, item.label())
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{
		ProductID: item.ProductID,
		Label:     item.label(),
		Requested: item.Quantity,
		Available: p.Stock,
	}
}

// Restore returns a cancelled order's quantities to stock, at most once
// per order. It reports false when the order is not cancelled or its
// stock was already restored.
func (l *Ledger) Restore(ctx context.Context, orderID string) (bool, error) {
	var restored []string

	err := l.store.WithTx(ctx, func(tx store.StockTx) error {
		restored = nil

		o, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if err != nil {
			return err
		}
		if o.Status != model.StatusCancelled {
			return nil
		}

		flipped, err := tx.MarkStockRestored(ctx, orderID)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}

		items := slices.Clone(o.Items)
		slices.SortStableFunc(items, func(a, b model.OrderItem) int {
			return strings.Compare(a.ProductID, b.ProductID)
		})
		restored = []string{}
		for _, item := range items {
			if err := tx.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("restore %d of %s: %w", item.Quantity, item.ProductID, err)
			}
			restored = append(restored, item.ProductID)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if restored == nil {
		return false, nil
	}

	l.invalidate(ctx, restored...)
	l.logger.Info("stock restored", "order_id", orderID, "products", len(restored))
	return true, nil
}

// Restock adds quantity to a product's stock.
func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	err := l.store.IncrementStock(ctx, productID, quantity)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return err
	}
	l.invalidate(ctx, productID)
	return nil
}

func (l *Ledger) invalidate(ctx context.Context, productIDs ...string) {
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = cache.ProductKey(id)
	}
	if err := l.cache.Delete(ctx, keys...); err != nil {
		l.logger.Warn("failed to invalidate product cache", "error", err)
	}
	if err := l.cache.DeletePrefix(ctx, cache.ProductsPrefix); err != nil {
		l.logger.Warn("failed to invalidate product listings", "error", err)
	}
}
