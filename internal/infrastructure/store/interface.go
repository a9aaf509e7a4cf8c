package store

import (
	"context"
	"errors"

	"github.com/example/meatshop-orders/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// ProductStore reads products and applies the primitive stock updates.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error

	// DecrementStock subtracts quantity only if at least quantity is in
	// stock, and reports whether the row was changed.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

// StockTx is the view of the store available inside a stock transaction.
type StockTx interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	IncrementStock(ctx context.Context, productID string, quantity int) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// MarkStockRestored flips the order's restored flag from false to true
	// and reports whether it did.
	MarkStockRestored(ctx context.Context, orderID string) (bool, error)
}

// TxRunner runs fn in a single transaction. A non-nil error from fn rolls
// back everything fn did.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx StockTx) error) error
}

type OrderStore interface {
	// CreateOrder persists the order and its items in one write.
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	ListOrders(ctx context.Context) ([]*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error)

	// UpdateOrderStatus sets status to `to` only while it is still `from`.
	UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (bool, error)
}

type DiscountStore interface {
	GetDiscountCode(ctx context.Context, id string) (*model.DiscountCode, error)
	GetDiscountCodeByCode(ctx context.Context, code string) (*model.DiscountCode, error)
	CreateDiscountCode(ctx context.Context, d *model.DiscountCode) error

	// IncrementDiscountUsage adds one use unless the usage limit is reached.
	IncrementDiscountUsage(ctx context.Context, id string) (bool, error)
}

type LoyaltyStore interface {
	// EnsureUser returns the user, creating a BRONZE user with no points
	// when none exists.
	EnsureUser(ctx context.Context, id, email string) (*model.User, error)
	UpdateUserLoyalty(ctx context.Context, userID string, points int64, tier model.Tier) error

	// DeductLoyaltyPoints lowers the cached balance only if it covers points.
	DeductLoyaltyPoints(ctx context.Context, userID string, points int64) (bool, error)

	// AppendLoyaltyTransaction inserts t. It returns false without error when
	// an EARN row for the same user and order already exists.
	AppendLoyaltyTransaction(ctx context.Context, t *model.LoyaltyTransaction) (bool, error)
	ListLoyaltyTransactions(ctx context.Context, userID string) ([]*model.LoyaltyTransaction, error)
}

// Store is implemented by PostgresStore and MemoryStore.
type Store interface {
	ProductStore
	OrderStore
	DiscountStore
	LoyaltyStore
	TxRunner
}
