package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/model"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrForbidden       = errors.New("order belongs to another user")
)

type readStore interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context) ([]*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]*model.Product, error)
}

type Handler struct {
	store  readStore
	logger *slog.Logger
}

func NewHandler(s readStore, logger *slog.Logger) *Handler {
	return &Handler{store: s, logger: logger.With("component", "query")}
}

// Orders

// GetOrder returns the order with its items if v owns it or is an admin.
func (h *Handler) GetOrder(ctx context.Context, id string, v Viewer) (*model.Order, error) {
	o, err := h.store.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if !v.IsAdmin && o.UserID != v.UserID {
		h.logger.Warn("order read denied", "order_id", id, "user_id", v.UserID)
		return nil, ErrForbidden
	}
	return o, nil
}

func (h *Handler) ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	orders, err := h.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", userID, err)
	}
	return orders, nil
}

// ListAllOrders returns all orders (for admin use)
func (h *Handler) ListAllOrders(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	orders, err := h.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if status == "" {
		return orders, nil
	}
	filtered := make([]*model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// Inventory

func (h *Handler) GetInventory(ctx context.Context, productID string) (*InventoryReadModel, error) {
	p, err := h.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return inventoryOf(p), nil
}

// ListLowStock returns active products at or below their low-stock mark.
func (h *Handler) ListLowStock(ctx context.Context) ([]*InventoryReadModel, error) {
	products, err := h.store.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	low := make([]*InventoryReadModel, 0)
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, inventoryOf(p))
		}
	}
	return low, nil
}
