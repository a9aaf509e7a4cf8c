package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/meatshop-orders/internal/api/middleware"
	"github.com/example/meatshop-orders/internal/command"
	"github.com/example/meatshop-orders/internal/domain/discount"
	"github.com/example/meatshop-orders/internal/domain/inventory"
	"github.com/example/meatshop-orders/internal/domain/loyalty"
	"github.com/example/meatshop-orders/internal/domain/order"
	"github.com/example/meatshop-orders/internal/domain/product"
	"github.com/example/meatshop-orders/internal/model"
	"github.com/example/meatshop-orders/internal/query"
)

// maxBodyBytes bounds request bodies; carts are small.
const maxBodyBytes = 1 << 20

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	products     *product.Service
	ledger       *inventory.Ledger
	discounts    *discount.Service
	loyalty      *loyalty.Service
	logger       *slog.Logger
}

type Deps struct {
	Commands  *command.Handler
	Queries   *query.Handler
	Products  *product.Service
	Ledger    *inventory.Ledger
	Discounts *discount.Service
	Loyalty   *loyalty.Service
	Logger    *slog.Logger
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		cmdHandler:   d.Commands,
		queryHandler: d.Queries,
		products:     d.Products,
		ledger:       d.Ledger,
		discounts:    d.Discounts,
		loyalty:      d.Loyalty,
		logger:       d.Logger.With("component", "api"),
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetUserFromContext(r.Context())

	var cmd command.PlaceOrder
	if err := decodeJSON(r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	cmd.UserID = claims.UserID
	cmd.Email = claims.Email

	placed, err := h.cmdHandler.PlaceOrder(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "order": placed})
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrdersByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	v := viewer(r)
	cmd := command.CancelOrder{
		OrderID: r.PathValue("id"),
		UserID:  v.UserID,
		IsAdmin: v.IsAdmin,
	}
	o, err := h.cmdHandler.CancelOrder(r.Context(), cmd)
	if err != nil {
		h.failStatusChange(w, r, o, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

// Admin Handlers

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	orders, err := h.queryHandler.ListAllOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateOrderStatus
	if err := decodeJSON(r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	if cmd.OrderID == "" {
		h.fail(w, r, &command.FieldError{Field: "orderId", Reason: "is required"})
		return
	}

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), cmd)
	if err != nil {
		h.failStatusChange(w, r, o, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

// failStatusChange reports a cancellation whose stock restore failed with
// the order as it now stands, so the caller can retry the restore.
func (h *Handlers) failStatusChange(w http.ResponseWriter, r *http.Request, o *model.Order, err error) {
	if !errors.Is(err, command.ErrStockRestoreFailed) {
		h.fail(w, r, err)
		return
	}
	h.logger.Error("stock restore failed", "path", r.URL.Path, "error", err)
	respondJSON(w, http.StatusInternalServerError, errorBody{
		Error:   command.ErrStockRestoreFailed.Error(),
		Details: map[string]any{"order": o},
	})
}

func (h *Handlers) RestoreStock(w http.ResponseWriter, r *http.Request) {
	restored, err := h.cmdHandler.RestoreStock(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"restored": restored})
}

func (h *Handlers) GetLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.queryHandler.ListLowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	item, err := h.queryHandler.GetInventory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func viewer(r *http.Request) query.Viewer {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return query.Viewer{}
	}
	return query.Viewer{UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
}

func parseStatusFilter(s string) (model.OrderStatus, error) {
	if s == "" {
		return "", nil
	}
	return order.ParseStatus(s)
}
