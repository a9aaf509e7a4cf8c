package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/example/meatshop-orders/internal/api/middleware"
	"github.com/example/meatshop-orders/internal/command"
	"github.com/example/meatshop-orders/internal/domain/discount"
	"github.com/example/meatshop-orders/internal/domain/inventory"
	"github.com/example/meatshop-orders/internal/domain/loyalty"
	"github.com/example/meatshop-orders/internal/domain/product"
)

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !p.IsActive {
		h.fail(w, r, product.ErrProductNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd product.CreateProduct
	if err := decodeJSON(r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) RestockProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err := h.ledger.Restock(r.Context(), id, req.Quantity)
	if errors.Is(err, inventory.ErrProductNotFound) {
		err = product.ErrProductNotFound
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Discount Handlers

// GetDiscount previews a code. With a subtotal it also computes the
// discount amount. Usage is never counted here.
func (h *Handlers) GetDiscount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")

	if raw := q.Get("subtotal"); raw != "" {
		subtotal, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(w, r, &command.FieldError{Field: "subtotal", Reason: "must be an integer"})
			return
		}
		h.previewDiscount(w, r, code, subtotal)
		return
	}

	d, err := h.discounts.Lookup(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"valid": true, "discount": d})
}

func (h *Handlers) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Subtotal int64  `json:"subtotal"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.previewDiscount(w, r, req.Code, req.Subtotal)
}

func (h *Handlers) previewDiscount(w http.ResponseWriter, r *http.Request, code string, subtotal int64) {
	outcome, err := h.discounts.Validate(r.Context(), code, subtotal)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"valid": true, "discount": outcome})
}

func (h *Handlers) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var cmd discount.CreateCode
	if err := decodeJSON(r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	d, err := h.discounts.Create(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// Loyalty Handlers

func (h *Handlers) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	summary, err := h.loyalty.Summary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handlers) EarnPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"userId"`
		Email      string `json:"email,omitempty"`
		OrderID    string `json:"orderId"`
		OrderTotal int64  `json:"orderTotal"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.loyalty.Earn(r.Context(), loyalty.EarnRequest{
		UserID:     req.UserID,
		Email:      req.Email,
		OrderID:    req.OrderID,
		OrderTotal: req.OrderTotal,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Points      int64  `json:"points"`
		Description string `json:"description,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ok, err := h.loyalty.Redeem(r.Context(), userID, req.Points, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.fail(w, r, errInsufficientPoints)
		return
	}

	summary, err := h.loyalty.Summary(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "loyalty": summary})
}
