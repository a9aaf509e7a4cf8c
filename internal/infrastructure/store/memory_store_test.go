package store

import (
	"context"
	"testing"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &model.Product{ID: "p1", Name: "Lamb chop", Stock: 4, IsActive: true}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.Stock = 100

	again, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, again.Stock)
}

func TestMemoryStore_ListProductsActiveOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &model.Product{ID: "a", Name: "Active", IsActive: true}))
	require.NoError(t, s.CreateProduct(ctx, &model.Product{ID: "b", Name: "Hidden"}))

	active, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	all, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, s.CreateProduct(ctx, &model.Product{ID: "a"}), ErrDuplicate)
}

func TestMemoryStore_WithTxCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateProduct(context.Background(), &model.Product{ID: "p1", Stock: 3}))

	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithTx(ctx, func(tx StockTx) error {
		_, err := tx.DecrementStock(ctx, "p1", 2)
		cancel()
		return err
	})

	assert.ErrorIs(t, err, context.Canceled)
	p, err := s.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestMemoryStore_DiscountLookupIgnoresCase(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateDiscountCode(ctx, &model.DiscountCode{Code: "BBQ10", IsActive: true}))

	d, err := s.GetDiscountCodeByCode(ctx, "bbq10")
	require.NoError(t, err)
	assert.Equal(t, "BBQ10", d.Code)

	_, err = s.GetDiscountCodeByCode(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
