package api

import (
	"log/slog"
	"net/http"

	"github.com/example/meatshop-orders/internal/api/middleware"
	"github.com/example/meatshop-orders/internal/auth"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	authed := middleware.AuthMiddleware(cfg.JWTService)
	user := func(fn http.HandlerFunc) http.Handler {
		return authed(fn)
	}
	role := func(fn http.HandlerFunc, roles ...string) http.Handler {
		return authed(middleware.RequireRole(roles...)(fn))
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return role(fn, auth.RoleAdmin)
	}

	mux.HandleFunc("GET /healthz", h.Healthz)

	// Products
	mux.HandleFunc("GET /products", h.GetProducts)
	mux.HandleFunc("GET /products/{id}", h.GetProduct)

	// Orders
	mux.Handle("POST /orders", user(h.PlaceOrder))
	mux.Handle("GET /orders", user(h.GetOrders))
	mux.Handle("GET /orders/{id}", user(h.GetOrder))
	mux.Handle("POST /orders/{id}/cancel", user(h.CancelOrder))

	// Discounts
	mux.Handle("GET /discount", user(h.GetDiscount))
	mux.Handle("POST /discount", user(h.ValidateDiscount))

	// Loyalty
	mux.Handle("GET /loyalty", user(h.GetLoyalty))
	mux.Handle("POST /loyalty", role(h.EarnPoints, auth.RoleAdmin, auth.RoleService))
	mux.Handle("PUT /loyalty", user(h.RedeemPoints))

	// Admin
	mux.Handle("GET /admin/orders", admin(h.GetAllOrders))
	mux.Handle("PUT /admin/orders", admin(h.UpdateOrderStatus))
	mux.Handle("POST /admin/orders/{id}/restore-stock", admin(h.RestoreStock))
	mux.Handle("POST /admin/products", admin(h.CreateProduct))
	mux.Handle("POST /admin/products/{id}/restock", admin(h.RestockProduct))
	mux.Handle("GET /admin/inventory/low-stock", admin(h.GetLowStock))
	mux.Handle("GET /admin/inventory/{id}", admin(h.GetInventory))
	mux.Handle("POST /admin/discounts", admin(h.CreateDiscount))

	return middleware.RequestLogger(cfg.Logger)(middleware.Recoverer(cfg.Logger)(mux))
}
