package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/meatshop-orders/internal/domain/discount"
	"github.com/example/meatshop-orders/internal/domain/inventory"
	"github.com/example/meatshop-orders/internal/domain/loyalty"
	"github.com/example/meatshop-orders/internal/domain/order"
	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/model"
	"github.com/example/meatshop-orders/internal/notification"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("order belongs to another user")
	ErrConcurrentUpdate   = errors.New("order was modified concurrently")
	ErrStockRestoreFailed = errors.New("order cancelled but stock could not be restored")
	ErrProductInactive    = errors.New("product is no longer available")
)

// FieldError reports a missing or malformed input field. Err, when set,
// is the underlying cause.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.Err}
}

type orderStore interface {
	store.ProductStore
	store.OrderStore
}

// Handler coordinates order placement and status changes across the
// stock ledger, the order records, discounts and loyalty.
type Handler struct {
	store      orderStore
	ledger     *inventory.Ledger
	discounts  *discount.Service
	loyalty    *loyalty.Service
	notifier   notification.Notifier
	logger     *slog.Logger
	maxLookups int
	now        func() time.Time
}

type Option func(*Handler)

// WithMaxConcurrentLookups bounds the product lookups run in parallel for
// one checkout.
func WithMaxConcurrentLookups(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxLookups = n
		}
	}
}

func NewHandler(
	s orderStore,
	ledger *inventory.Ledger,
	discounts *discount.Service,
	loyaltySvc *loyalty.Service,
	notifier notification.Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	h := &Handler{
		store:      s,
		ledger:     ledger,
		discounts:  discounts,
		loyalty:    loyaltySvc,
		notifier:   notifier,
		logger:     logger.With("component", "orders"),
		maxLookups: 8,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// line is one distinct product in the cart with its summed quantity.
type line struct {
	productID string
	name      string
	quantity  int
}

// PlaceOrder validates the cart, persists the order and decrements stock
// for every item. If the decrement fails the order is deleted again and
// the ledger error is returned unchanged.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*model.Order, error) {
	customer, method, err := h.validate(&cmd)
	if err != nil {
		return nil, err
	}

	lines := mergeLines(cmd.Items)
	if err := h.checkAvailability(ctx, lines); err != nil {
		return nil, err
	}

	var subtotal int64
	items := make([]model.OrderItem, len(cmd.Items))
	for i, it := range cmd.Items {
		items[i] = model.OrderItem{
			ProductID: it.ProductID,
			Name:      sanitizeText(it.Name),
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
		}
		subtotal += items[i].LineTotal()
	}

	var discountAmount int64
	if cmd.DiscountCodeID != "" {
		outcome, err := h.discounts.ValidateByID(ctx, cmd.DiscountCodeID, subtotal)
		if errors.Is(err, discount.ErrNotFound) {
			return nil, &FieldError{Field: "discountCodeId", Reason: "discount code not found", Err: err}
		}
		if err != nil {
			return nil, err
		}
		discountAmount = outcome.DiscountAmount
	}
	total := subtotal - discountAmount
	if cmd.Total != 0 && cmd.Total != total {
		h.logger.Warn("client total differs from computed total",
			"user_id", cmd.UserID,
			"client_total", cmd.Total,
			"computed_total", total,
		)
	}

	now := h.now()
	o := &model.Order{
		ID:             uuid.New().String(),
		OrderNumber:    order.NewOrderNumber(now),
		UserID:         cmd.UserID,
		Status:         order.InitialStatus(method),
		Customer:       customer,
		PaymentMethod:  method,
		DiscountCodeID: cmd.DiscountCodeID,
		DiscountAmount: discountAmount,
		Subtotal:       subtotal,
		Total:          total,
		Items:          items,
		CreatedAt:      now,
	}
	if err := h.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if o.DiscountCodeID != "" {
		ok, err := h.discounts.RecordUsage(ctx, o.DiscountCodeID)
		if err != nil {
			h.logger.Warn("failed to record discount usage", "order_id", o.ID, "discount_id", o.DiscountCodeID, "error", err)
		} else if !ok {
			h.logger.Warn("discount usage limit reached after validation", "order_id", o.ID, "discount_id", o.DiscountCodeID)
		}
	}

	stock := make([]inventory.StockItem, len(lines))
	for i, l := range lines {
		stock[i] = inventory.StockItem{ProductID: l.productID, Quantity: l.quantity, Label: l.name}
	}
	if err := h.ledger.DecrementMany(ctx, stock); err != nil {
		h.compensate(ctx, o, err)
		return nil, err
	}

	h.logger.Info("order placed",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"user_id", o.UserID,
		"items", len(o.Items),
		"total", o.Total,
	)

	h.afterPlace(ctx, o, cmd.Email)
	return o, nil
}

func (h *Handler) validate(cmd *PlaceOrder) (model.Customer, model.PaymentMethod, error) {
	if cmd.UserID == "" {
		return model.Customer{}, "", &FieldError{Field: "userId", Reason: "is required"}
	}
	if len(cmd.Items) == 0 {
		return model.Customer{}, "", ErrEmptyCart
	}

	customer := model.Customer{
		Name:    sanitizeText(cmd.Name),
		Phone:   sanitizeText(cmd.Phone),
		Email:   sanitizeText(cmd.Email),
		Address: sanitizeText(cmd.Address),
		Note:    sanitizeText(cmd.Note),
	}
	switch {
	case customer.Name == "":
		return model.Customer{}, "", &FieldError{Field: "name", Reason: "is required"}
	case customer.Phone == "":
		return model.Customer{}, "", &FieldError{Field: "phone", Reason: "is required"}
	case customer.Address == "":
		return model.Customer{}, "", &FieldError{Field: "address", Reason: "is required"}
	}

	var subtotal int64
	quantities := make(map[string]int, len(cmd.Items))
	for i, it := range cmd.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case it.ProductID == "":
			return model.Customer{}, "", &FieldError{Field: field + ".id", Reason: "is required"}
		case it.Quantity <= 0:
			return model.Customer{}, "", &FieldError{Field: field + ".quantity", Reason: "must be positive"}
		case it.Price < 0:
			return model.Customer{}, "", &FieldError{Field: field + ".price", Reason: "must not be negative"}
		case it.Price > 0 && int64(it.Quantity) > math.MaxInt64/it.Price:
			return model.Customer{}, "", &FieldError{Field: field + ".price", Reason: "line total is too large"}
		case quantities[it.ProductID] > math.MaxInt-it.Quantity:
			return model.Customer{}, "", &FieldError{Field: field + ".quantity", Reason: "total quantity is too large"}
		}
		quantities[it.ProductID] += it.Quantity

		lineTotal := it.Price * int64(it.Quantity)
		if subtotal > math.MaxInt64-lineTotal {
			return model.Customer{}, "", &FieldError{Field: "items", Reason: "order total is too large"}
		}
		subtotal += lineTotal
	}

	method, err := order.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return model.Customer{}, "", &FieldError{Field: "paymentMethod", Reason: err.Error()}
	}
	return customer, method, nil
}

// mergeLines sums quantities per product, keeping the order in which each
// product first appears in the cart.
func mergeLines(items []CartItem) []line {
	index := make(map[string]int, len(items))
	var lines []line
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			lines[i].quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, line{productID: it.ProductID, name: sanitizeText(it.Name), quantity: it.Quantity})
	}
	return lines
}

// checkAvailability is the advisory pre-check. It rejects the cart on the
// first line, in cart order, whose product is missing, inactive or short.
func (h *Handler) checkAvailability(ctx context.Context, lines []line) error {
	products := make([]*model.Product, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxLookups)
	for i, l := range lines {
		g.Go(func() error {
			p, err := h.store.GetProduct(gctx, l.productID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to look up products: %w", err)
	}

	for i, l := range lines {
		p := products[i]
		label := l.name
		if p != nil && p.Name != "" {
			label = p.Name
		}
		if label == "" {
			label = l.productID
		}
		lines[i].name = label

		switch {
		case p == nil:
			return fmt.Errorf("%w: %s", inventory.ErrProductNotFound, label)
		case !p.IsActive:
			return fmt.Errorf("%w: %s", ErrProductInactive, label)
		case p.Stock < l.quantity:
			return &inventory.InsufficientStockError{
				ProductID: l.productID,
				Label:     label,
				Requested: l.quantity,
				Available: p.Stock,
			}
		}
	}
	return nil
}

// compensate deletes an order whose stock could not be taken. A failed
// delete leaves an order without stock behind and is logged for manual
// reconciliation.
func (h *Handler) compensate(ctx context.Context, o *model.Order, cause error) {
	if err := h.store.DeleteOrder(context.WithoutCancel(ctx), o.ID); err != nil {
		h.logger.Error("compensation failed: order exists without stock, reconcile manually",
			"order_id", o.ID,
			"order_number", o.OrderNumber,
			"cause", cause,
			"error", err,
		)
		return
	}
	h.logger.Info("order rolled back", "order_id", o.ID, "cause", cause)
}

// afterPlace runs the best-effort side effects of a placed order. The
// stock is already taken, so they run even if the caller has gone away.
func (h *Handler) afterPlace(ctx context.Context, o *model.Order, email string) {
	ctx = context.WithoutCancel(ctx)
	if h.loyalty != nil {
		_, err := h.loyalty.Earn(ctx, loyalty.EarnRequest{
			UserID:     o.UserID,
			Email:      email,
			OrderID:    o.ID,
			OrderTotal: o.Total,
		})
		if err != nil {
			h.logger.Warn("failed to credit loyalty points", "order_id", o.ID, "user_id", o.UserID, "error", err)
		}
	}

	err := h.notifier.Notify(ctx, model.Notification{
		Type:        model.NotificationOrderCreated,
		UserID:      o.UserID,
		Email:       o.Customer.Email,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       o.Total,
		Items:       o.Items,
	})
	if err != nil {
		h.logger.Warn("failed to send order notification", "order_id", o.ID, "error", err)
	}
}

// UpdateOrderStatus moves an order along the status machine. Entering
// CANCELLED restores the order's stock. If that restore fails the new
// status still stands and the returned error wraps ErrStockRestoreFailed.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*model.Order, error) {
	status, err := order.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}

	o, err := h.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return h.transition(ctx, o, status)
}

func (h *Handler) loadOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := h.store.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// transition moves o to status, provided nobody changed it since it was
// loaded.
func (h *Handler) transition(ctx context.Context, o *model.Order, status model.OrderStatus) (*model.Order, error) {
	if o.Status == status {
		return o, nil
	}
	if !order.CanTransition(o.Status, status) {
		return nil, order.TransitionError(o.Status, status)
	}

	ok, err := h.store.UpdateOrderStatus(ctx, o.ID, o.Status, status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentUpdate
	}

	previous := o.Status
	o.Status = status
	o.UpdatedAt = h.now()
	h.logger.Info("order status changed", "order_id", o.ID, "from", previous, "to", status)

	var restoreErr error
	if status == model.StatusCancelled {
		restored, err := h.ledger.Restore(ctx, o.ID)
		if err != nil {
			h.logger.Error("failed to restore stock for cancelled order", "order_id", o.ID, "error", err)
			restoreErr = fmt.Errorf("%w: %w", ErrStockRestoreFailed, err)
		} else if restored {
			o.StockRestored = true
		}
	}

	err = h.notifier.Notify(ctx, model.Notification{
		Type:        model.NotificationOrderStatusChanged,
		UserID:      o.UserID,
		Email:       o.Customer.Email,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Total:       o.Total,
	})
	if err != nil {
		h.logger.Warn("failed to send status notification", "order_id", o.ID, "error", err)
	}

	return o, restoreErr
}

// CancelOrder cancels an order on behalf of its owner. Owners may only
// cancel pending orders; admins may cancel whatever the status machine
// allows.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*model.Order, error) {
	o, err := h.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !cmd.IsAdmin {
		if o.UserID != cmd.UserID {
			return nil, ErrForbidden
		}
		if o.Status != model.StatusCancelled && !order.CustomerCanCancel(o.Status) {
			return nil, order.ErrCancelNotAllowed
		}
	}
	return h.transition(ctx, o, model.StatusCancelled)
}

// RestoreStock retries the stock restore of a cancelled order. It is safe
// to call any number of times.
func (h *Handler) RestoreStock(ctx context.Context, orderID string) (bool, error) {
	restored, err := h.ledger.Restore(ctx, orderID)
	if errors.Is(err, inventory.ErrOrderNotFound) {
		return false, ErrOrderNotFound
	}
	return restored, err
}
