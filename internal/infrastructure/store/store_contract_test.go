package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every Store implementation must
// share. Records use fresh ids so the suite can run against a shared
// database.
func runStoreContract(t *testing.T, s Store) {
	t.Run("ConditionalDecrement", func(t *testing.T) { testConditionalDecrement(t, s) })
	t.Run("ConcurrentDecrementNeverOversells", func(t *testing.T) { testConcurrentDecrement(t, s) })
	t.Run("IncrementMissingProduct", func(t *testing.T) { testIncrementMissing(t, s) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testWithTxRollback(t, s) })
	t.Run("MarkStockRestoredOnce", func(t *testing.T) { testMarkStockRestored(t, s) })
	t.Run("OrderRoundTrip", func(t *testing.T) { testOrderRoundTrip(t, s) })
	t.Run("OrderStatusCompareAndSet", func(t *testing.T) { testOrderStatusCAS(t, s) })
	t.Run("DiscountUsageLimit", func(t *testing.T) { testDiscountUsageLimit(t, s) })
	t.Run("LoyaltyEarnOncePerOrder", func(t *testing.T) { testLoyaltyEarnOnce(t, s) })
	t.Run("LoyaltyDeduct", func(t *testing.T) { testLoyaltyDeduct(t, s) })
}

func newID() string { return uuid.New().String() }

func seedProduct(t *testing.T, s Store, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		ID:       newID(),
		Name:     "Beef brisket",
		Price:    180000,
		Unit:     "kg",
		Stock:    stock,
		MinStock: 2,
		IsActive: true,
		Tags:     model.StringList{"beef"},
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func seedStoreOrder(t *testing.T, s Store, userID string, items ...model.OrderItem) *model.Order {
	t.Helper()
	o := &model.Order{
		OrderNumber:   "ORD-" + newID(),
		UserID:        userID,
		Status:        model.StatusPending,
		Customer:      model.Customer{Name: "Anna", Phone: "0900000000", Address: "1 Market St"},
		PaymentMethod: model.PaymentCOD,
		Items:         items,
	}
	for _, it := range items {
		o.Subtotal += it.LineTotal()
	}
	o.Total = o.Subtotal
	require.NoError(t, s.CreateOrder(context.Background(), o))
	return o
}

func stockOf(t *testing.T, s Store, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func testConditionalDecrement(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, 3)

	ok, err := s.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, stockOf(t, s, p.ID))

	ok, err = s.DecrementStock(ctx, "missing-"+newID(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentDecrement(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, 5)

	var wg sync.WaitGroup
	var won atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.DecrementStock(ctx, p.ID, 1)
			if err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), won.Load())
	assert.Equal(t, 0, stockOf(t, s, p.ID))
}

func testIncrementMissing(t *testing.T, s Store) {
	err := s.IncrementStock(context.Background(), "missing-"+newID(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testWithTxRollback(t *testing.T, s Store) {
	ctx := context.Background()
	a := seedProduct(t, s, 4)
	b := seedProduct(t, s, 1)
	errShort := errors.New("short")

	err := s.WithTx(ctx, func(tx StockTx) error {
		ok, err := tx.DecrementStock(ctx, a.ID, 3)
		if err != nil || !ok {
			return errors.New("first line should fit")
		}
		ok, err = tx.DecrementStock(ctx, b.ID, 2)
		if err != nil {
			return err
		}
		if !ok {
			return errShort
		}
		return nil
	})

	assert.ErrorIs(t, err, errShort)
	assert.Equal(t, 4, stockOf(t, s, a.ID))
	assert.Equal(t, 1, stockOf(t, s, b.ID))
}

func testMarkStockRestored(t *testing.T, s Store) {
	ctx := context.Background()
	p := seedProduct(t, s, 0)
	o := seedStoreOrder(t, s, newID(), model.OrderItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: 2})

	// not cancelled yet
	err := s.WithTx(ctx, func(tx StockTx) error {
		ok, err := tx.MarkStockRestored(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	ok, err := s.UpdateOrderStatus(ctx, o.ID, model.StatusPending, model.StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	restore := func() (bool, error) {
		var marked bool
		err := s.WithTx(ctx, func(tx StockTx) error {
			var err error
			if marked, err = tx.MarkStockRestored(ctx, o.ID); err != nil || !marked {
				return err
			}
			return tx.IncrementStock(ctx, p.ID, 2)
		})
		return marked, err
	}

	first, err := restore()
	require.NoError(t, err)
	second, err := restore()
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 2, stockOf(t, s, p.ID))

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.StockRestored)
}

func testOrderRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	userID := newID()
	p := seedProduct(t, s, 10)
	first := seedStoreOrder(t, s, userID,
		model.OrderItem{ProductID: p.ID, Name: "Beef brisket", Price: 180000, Quantity: 2},
		model.OrderItem{ProductID: p.ID, Name: "Beef brisket", Price: 175000, Quantity: 1},
	)
	time.Sleep(5 * time.Millisecond)
	second := seedStoreOrder(t, s, userID, model.OrderItem{ProductID: p.ID, Name: "Beef brisket", Price: 180000, Quantity: 1})

	got, err := s.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.OrderNumber, got.OrderNumber)
	assert.Equal(t, int64(535000), got.Subtotal)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(180000), got.Items[0].Price)
	assert.Equal(t, int64(175000), got.Items[1].Price)
	assert.Equal(t, first.ID, got.Items[0].OrderID)

	orders, err := s.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)

	require.NoError(t, s.DeleteOrder(ctx, first.ID))
	_, err = s.GetOrder(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteOrder(ctx, first.ID), ErrNotFound)
}

func testOrderStatusCAS(t *testing.T, s Store) {
	ctx := context.Background()
	o := seedStoreOrder(t, s, newID())

	ok, err := s.UpdateOrderStatus(ctx, o.ID, model.StatusPending, model.StatusShipping)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateOrderStatus(ctx, o.ID, model.StatusPending, model.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpdateOrderStatus(ctx, "missing-"+newID(), model.StatusPending, model.StatusShipping)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testDiscountUsageLimit(t *testing.T, s Store) {
	ctx := context.Background()
	limit := 2
	d := &model.DiscountCode{
		Code:       "MEAT" + strings.ToUpper(newID()[:8]),
		Discount:   decimal.NewFromInt(10),
		UsageLimit: &limit,
		IsActive:   true,
	}
	require.NoError(t, s.CreateDiscountCode(ctx, d))

	var wg sync.WaitGroup
	var used atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.IncrementDiscountUsage(ctx, d.ID); err == nil && ok {
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), used.Load())
	got, err := s.GetDiscountCodeByCode(ctx, d.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)
	assert.True(t, got.Discount.Equal(decimal.NewFromInt(10)))

	assert.ErrorIs(t, s.CreateDiscountCode(ctx, &model.DiscountCode{Code: d.Code, Discount: decimal.NewFromInt(5)}), ErrDuplicate)
}

func testLoyaltyEarnOnce(t *testing.T, s Store) {
	ctx := context.Background()
	userID := newID()
	_, err := s.EnsureUser(ctx, userID, "anna@example.com")
	require.NoError(t, err)
	orderID := newID()

	ok, err := s.AppendLoyaltyTransaction(ctx, &model.LoyaltyTransaction{UserID: userID, Points: 100, Type: model.LoyaltyEarn, OrderID: orderID})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AppendLoyaltyTransaction(ctx, &model.LoyaltyTransaction{UserID: userID, Points: 100, Type: model.LoyaltyEarn, OrderID: orderID})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.AppendLoyaltyTransaction(ctx, &model.LoyaltyTransaction{UserID: userID, Points: 50, Type: model.LoyaltyBonus, OrderID: orderID})
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := s.ListLoyaltyTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func testLoyaltyDeduct(t *testing.T, s Store) {
	ctx := context.Background()
	userID := newID()
	u, err := s.EnsureUser(ctx, userID, "")
	require.NoError(t, err)
	assert.Equal(t, model.TierBronze, u.LoyaltyTier)

	require.NoError(t, s.UpdateUserLoyalty(ctx, userID, 300, model.TierBronze))

	ok, err := s.DeductLoyaltyPoints(ctx, userID, 500)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeductLoyaltyPoints(ctx, userID, 200)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err = s.EnsureUser(ctx, userID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.LoyaltyPoints)
}
