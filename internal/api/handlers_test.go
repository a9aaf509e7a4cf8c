package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/meatshop-orders/internal/auth"
	"github.com/example/meatshop-orders/internal/cache"
	"github.com/example/meatshop-orders/internal/command"
	"github.com/example/meatshop-orders/internal/domain/discount"
	"github.com/example/meatshop-orders/internal/domain/inventory"
	"github.com/example/meatshop-orders/internal/domain/loyalty"
	"github.com/example/meatshop-orders/internal/domain/order"
	"github.com/example/meatshop-orders/internal/domain/product"
	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/logger"
	"github.com/example/meatshop-orders/internal/model"
	"github.com/example/meatshop-orders/internal/notification"
	"github.com/example/meatshop-orders/internal/query"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	store  *store.MemoryStore
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewMemoryStore()
	c := cache.NewLRU(100, time.Minute)
	log := logger.Discard()
	jwtService := auth.NewJWTService("api-test-secret-api-test-secret-api", "meatshop", time.Hour)

	ledger := inventory.NewLedger(s, c, log)
	discounts := discount.NewService(s, c, log)
	loyaltySvc := loyalty.NewService(s, loyalty.DefaultTierTable(), loyalty.PolicyBalance, notification.Nop{}, log)

	handlers := NewHandlers(Deps{
		Commands:  command.NewHandler(s, ledger, discounts, loyaltySvc, notification.Nop{}, log),
		Queries:   query.NewHandler(s, log),
		Products:  product.NewService(s, c, log),
		Ledger:    ledger,
		Discounts: discounts,
		Loyalty:   loyaltySvc,
		Logger:    log,
	})

	return &testServer{
		t:      t,
		router: NewRouter(RouterConfig{Handlers: handlers, JWTService: jwtService, Logger: log}),
		store:  s,
		jwt:    jwtService,
	}
}

func (ts *testServer) token(userID, role string) string {
	ts.t.Helper()
	token, _, err := ts.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) addProduct(id string, stock int) {
	ts.t.Helper()
	require.NoError(ts.t, ts.store.CreateProduct(context.Background(), &model.Product{
		ID: id, Name: "Wagyu " + id, Price: 200000, Stock: stock, IsActive: true,
	}))
}

func (ts *testServer) stockOf(id string) int {
	ts.t.Helper()
	p, err := ts.store.GetProduct(context.Background(), id)
	require.NoError(ts.t, err)
	return p.Stock
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func orderBody(productID string, qty int) map[string]any {
	return map[string]any{
		"items":         []map[string]any{{"id": productID, "name": "Wagyu " + productID, "price": 200000, "quantity": qty}},
		"total":         200000 * qty,
		"name":          "Le Thi C",
		"phone":         "0912345678",
		"address":       "45 Nguyen Hue, District 1",
		"paymentMethod": "COD",
	}
}

type placedResponse struct {
	Success bool        `json:"success"`
	Order   model.Order `json:"order"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

// ============================================
// Order Endpoint Tests
// ============================================

func TestAPI_Healthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_PlaceOrder_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/orders", "", orderBody("p1", 1))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_PlaceOrder(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 5)

	rec := ts.do(http.MethodPost, "/orders", ts.token("user-1", auth.RoleCustomer), orderBody("p1", 2))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[placedResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "user-1", resp.Order.UserID)
	assert.Equal(t, "user-1@example.com", resp.Order.Customer.Email)
	assert.Equal(t, int64(400000), resp.Order.Total)
	assert.Equal(t, 3, ts.stockOf("p1"))
}

func TestAPI_PlaceOrder_InsufficientStockDetails(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 2)
	token := ts.token("user-1", auth.RoleCustomer)

	rec := ts.do(http.MethodPost, "/orders", token, orderBody("p1", 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodPost, "/orders", token, orderBody("p1", 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Contains(t, resp.Error, "insufficient stock")
	assert.Equal(t, "p1", resp.Details["productId"])
	assert.Equal(t, "Wagyu p1", resp.Details["product"])
	assert.Equal(t, float64(1), resp.Details["requested"])
	assert.Equal(t, float64(0), resp.Details["available"])
}

func TestAPI_PlaceOrder_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 2)
	token := ts.token("user-1", auth.RoleCustomer)

	empty := orderBody("p1", 1)
	empty["items"] = []any{}
	noPhone := orderBody("p1", 1)
	noPhone["phone"] = "   "

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{not json"},
		{"empty cart", empty},
		{"blank phone", noPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/orders", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestAPI_GetOrder_OwnerOrAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 5)
	rec := ts.do(http.MethodPost, "/orders", ts.token("user-1", auth.RoleCustomer), orderBody("p1", 1))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placedResponse](t, rec).Order.ID

	rec = ts.do(http.MethodGet, "/orders/"+id, ts.token("user-1", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/orders/"+id, ts.token("user-2", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/orders/"+id, ts.token("boss", auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/orders/missing", ts.token("boss", auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/orders", ts.token("user-1", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Order](t, rec), 1)
}

func TestAPI_CustomerCancel(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 5)
	token := ts.token("user-1", auth.RoleCustomer)
	rec := ts.do(http.MethodPost, "/orders", token, orderBody("p1", 3))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placedResponse](t, rec).Order.ID

	rec = ts.do(http.MethodPost, "/orders/"+id+"/cancel", ts.token("user-2", auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/orders/"+id+"/cancel", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.stockOf("p1"))

	rec = ts.do(http.MethodPost, "/orders/"+id+"/cancel", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "cancelling twice is a no-op")
	assert.Equal(t, 5, ts.stockOf("p1"))
}

func TestAPI_CancelAwaitingPayment(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 2)
	token := ts.token("user-1", auth.RoleCustomer)
	body := orderBody("p1", 2)
	body["paymentMethod"] = "BANK_TRANSFER"
	rec := ts.do(http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decode[placedResponse](t, rec).Order
	require.Equal(t, model.StatusAwaitingPayment, placed.Status)
	require.Equal(t, 0, ts.stockOf("p1"))

	rec = ts.do(http.MethodPost, "/orders/"+placed.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, ts.stockOf("p1"))

	rec = ts.do(http.MethodPut, "/admin/orders", ts.token("boss", auth.RoleAdmin), map[string]string{"orderId": placed.ID, "status": "CANCELLED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, ts.stockOf("p1"))
}

func TestAPI_PlaceOrder_UnknownDiscountIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 5)
	body := orderBody("p1", 1)
	body["discountCodeId"] = "no-such-code"

	rec := ts.do(http.MethodPost, "/orders", ts.token("user-1", auth.RoleCustomer), body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "discountCodeId", resp.Details["field"])
	assert.Equal(t, 5, ts.stockOf("p1"))
}

// ============================================
// Admin Endpoint Tests
// ============================================

func TestAPI_AdminUpdateOrderStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.addProduct("p1", 5)
	rec := ts.do(http.MethodPost, "/orders", ts.token("user-1", auth.RoleCustomer), orderBody("p1", 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[placedResponse](t, rec).Order.ID
	admin := ts.token("boss", auth.RoleAdmin)

	rec = ts.do(http.MethodPut, "/admin/orders", ts.token("user-1", auth.RoleCustomer), map[string]string{"orderId": id, "status": "CANCELLED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPut, "/admin/orders", admin, map[string]string{"orderId": id, "status": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/admin/orders", admin, map[string]string{"orderId": id, "status": "CANCELLED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, ts.stockOf("p1"))

	rec = ts.do(http.MethodPut, "/admin/orders", admin, map[string]string{"orderId": id, "status": "SHIPPING"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/orders/"+id+"/restore-stock", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"restored": false}, decode[map[string]bool](t, rec))
	assert.Equal(t, 5, ts.stockOf("p1"))

	rec = ts.do(http.MethodGet, "/admin/orders?status=cancelled", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Order](t, rec), 1)
}

func TestAPI_AdminProducts(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token("boss", auth.RoleAdmin)

	rec := ts.do(http.MethodPost, "/admin/products", admin, map[string]any{
		"id": "brisket", "name": "Beef brisket", "price": 320000, "unit": "kg", "stock": 4, "minStock": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Product](t, rec), 1)

	rec = ts.do(http.MethodGet, "/admin/inventory/low-stock", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]query.InventoryReadModel](t, rec), 1)

	rec = ts.do(http.MethodPost, "/admin/products/brisket/restock", admin, map[string]int{"quantity": 6})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[model.Product](t, rec).Stock)

	rec = ts.do(http.MethodGet, "/products/brisket", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[model.Product](t, rec).Stock, "restock invalidates the cached product")

	rec = ts.do(http.MethodPost, "/admin/products/missing/restock", admin, map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/products", admin, map[string]any{"id": "brisket", "name": "Again", "price": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ============================================
// Discount Endpoint Tests
// ============================================

func TestAPI_DiscountPreview(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token("boss", auth.RoleAdmin)
	customer := ts.token("user-1", auth.RoleCustomer)

	rec := ts.do(http.MethodPost, "/admin/discounts", admin, map[string]any{
		"code": "beef10", "discount": 10, "maxDiscount": 50000, "minAmount": 100000, "usageLimit": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/discount?code=BEEF10&subtotal=1000000", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview struct {
		Valid    bool              `json:"valid"`
		Discount discount.Outcome `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.True(t, preview.Valid)
	assert.Equal(t, int64(50000), preview.Discount.DiscountAmount)
	assert.Equal(t, int64(950000), preview.Discount.Total)

	rec = ts.do(http.MethodPost, "/discount", customer, map[string]any{"code": "beef10", "subtotal": 50000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, float64(100000), decode[errorResponse](t, rec).Details["minAmount"])

	rec = ts.do(http.MethodGet, "/discount?code=nope", customer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d, err := ts.store.GetDiscountCodeByCode(context.Background(), "BEEF10")
	require.NoError(t, err)
	assert.Equal(t, 0, d.UsedCount, "previews never count usage")
	assert.True(t, d.Discount.Equal(decimal.NewFromInt(10)))
}

// ============================================
// Loyalty Endpoint Tests
// ============================================

func TestAPI_Loyalty(t *testing.T) {
	ts := newTestServer(t)
	customer := ts.token("user-1", auth.RoleCustomer)
	service := ts.token("checkout", auth.RoleService)
	earn := map[string]any{"userId": "user-1", "orderId": "o-1", "orderTotal": 50000}

	rec := ts.do(http.MethodPost, "/loyalty", customer, earn)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/loyalty", service, earn)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(500), decode[loyalty.EarnResult](t, rec).Points)

	rec = ts.do(http.MethodPost, "/loyalty", service, earn)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[loyalty.EarnResult](t, rec).Duplicate)

	rec = ts.do(http.MethodPut, "/loyalty", customer, map[string]any{"points": 600})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/loyalty", customer, map[string]any{"points": 200, "description": "Voucher"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/loyalty", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[loyalty.Summary](t, rec)
	assert.Equal(t, int64(300), summary.Balance)
	assert.Equal(t, model.TierBronze, summary.Tier)
}

func TestStatusOf_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(assert.AnError))
	assert.Equal(t, http.StatusBadRequest, statusOf(&command.FieldError{Field: "name", Reason: "is required"}))
	assert.Equal(t, http.StatusBadRequest, statusOf(&inventory.InsufficientStockError{ProductID: "p1"}))
	assert.Equal(t, http.StatusConflict, statusOf(order.ErrCancelNotAllowed))
	assert.Equal(t, http.StatusConflict, statusOf(order.ErrOrderShipped))
	assert.Equal(t, http.StatusBadRequest, statusOf(&command.FieldError{Field: "discountCodeId", Reason: "discount code not found", Err: discount.ErrNotFound}))
}
