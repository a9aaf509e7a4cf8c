package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. All operations are
// serialized by one mutex, so conditional updates are atomic and WithTx
// gives all-or-nothing semantics through an undo journal.
type MemoryStore struct {
	mu        sync.RWMutex
	products  map[string]*model.Product
	orders    map[string]*model.Order
	discounts map[string]*model.DiscountCode
	users     map[string]*model.User
	loyalty   map[string][]*model.LoyaltyTransaction // userID -> rows
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:  make(map[string]*model.Product),
		orders:    make(map[string]*model.Order),
		discounts: make(map[string]*model.DiscountCode),
		users:     make(map[string]*model.User),
		loyalty:   make(map[string][]*model.LoyaltyTransaction),
	}
}

// Products

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProduct(id)
}

func (s *MemoryStore) getProduct(id string) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, activeOnly bool) ([]*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*model.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		products = append(products, p.Clone())
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrementStock(productID, quantity), nil
}

func (s *MemoryStore) decrementStock(productID string, quantity int) bool {
	p, ok := s.products[productID]
	if !ok || p.Stock < quantity {
		return false
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now()
	return true
}

func (s *MemoryStore) IncrementStock(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementStock(productID, quantity)
}

func (s *MemoryStore) incrementStock(productID string, quantity int) error {
	p, ok := s.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now()
	return nil
}

// Orders

func (s *MemoryStore) CreateOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if _, exists := s.orders[o.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.New().String()
		}
		o.Items[i].OrderID = o.ID
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOrder(id)
}

func (s *MemoryStore) getOrder(id string) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *MemoryStore) ListOrders(ctx context.Context) ([]*model.Order, error) {
	return s.listOrders(func(*model.Order) bool { return true }), nil
}

func (s *MemoryStore) ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.listOrders(func(o *model.Order) bool { return o.UserID == userID }), nil
}

func (s *MemoryStore) listOrders(keep func(*model.Order) bool) []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*model.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			orders = append(orders, o.Clone())
		}
	}
	// newest first
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

// Discount codes

func (s *MemoryStore) GetDiscountCode(ctx context.Context, id string) (*model.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (s *MemoryStore) GetDiscountCodeByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.discounts {
		if strings.EqualFold(d.Code, code) {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateDiscountCode(ctx context.Context, d *model.DiscountCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.discounts {
		if strings.EqualFold(existing.Code, d.Code) {
			return ErrDuplicate
		}
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	s.discounts[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) IncrementDiscountUsage(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discounts[id]
	if !ok {
		return false, ErrNotFound
	}
	if d.LimitReached() {
		return false, nil
	}
	d.UsedCount++
	return true, nil
}

// Loyalty

func (s *MemoryStore) EnsureUser(ctx context.Context, id, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		now := time.Now()
		u = &model.User{
			ID:          id,
			Email:       email,
			LoyaltyTier: model.TierBronze,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.users[id] = u
	} else if u.Email == "" && email != "" {
		u.Email = email
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) UpdateUserLoyalty(ctx context.Context, userID string, points int64, tier model.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LoyaltyPoints = points
	u.LoyaltyTier = tier
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeductLoyaltyPoints(ctx context.Context, userID string, points int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	if u.LoyaltyPoints < points {
		return false, nil
	}
	u.LoyaltyPoints -= points
	u.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) AppendLoyaltyTransaction(ctx context.Context, t *model.LoyaltyTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Type == model.LoyaltyEarn && t.OrderID != "" {
		for _, existing := range s.loyalty[t.UserID] {
			if existing.Type == model.LoyaltyEarn && existing.OrderID == t.OrderID {
				return false, nil
			}
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	c := *t
	s.loyalty[t.UserID] = append(s.loyalty[t.UserID], &c)
	return true, nil
}

func (s *MemoryStore) ListLoyaltyTransactions(ctx context.Context, userID string) ([]*model.LoyaltyTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.loyalty[userID]
	out := make([]*model.LoyaltyTransaction, 0, len(rows))
	for _, t := range rows {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

// Transactions

// WithTx holds the store lock for the whole of fn and undoes fn's writes
// when it fails.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx StockTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return tx.s.getProduct(id)
}

func (tx *memoryTx) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	if !tx.s.decrementStock(productID, quantity) {
		return false, nil
	}
	tx.undo = append(tx.undo, func() { tx.s.products[productID].Stock += quantity })
	return true, nil
}

func (tx *memoryTx) IncrementStock(ctx context.Context, productID string, quantity int) error {
	if err := tx.s.incrementStock(productID, quantity); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { tx.s.products[productID].Stock -= quantity })
	return nil
}

func (tx *memoryTx) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return tx.s.getOrder(id)
}

func (tx *memoryTx) MarkStockRestored(ctx context.Context, orderID string) (bool, error) {
	o, ok := tx.s.orders[orderID]
	if !ok {
		return false, ErrNotFound
	}
	if o.StockRestored || o.Status != model.StatusCancelled {
		return false, nil
	}
	o.StockRestored = true
	tx.undo = append(tx.undo, func() { o.StockRestored = false })
	return true, nil
}
