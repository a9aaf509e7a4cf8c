package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/meatshop-orders/internal/command"
	"github.com/example/meatshop-orders/internal/domain/discount"
	"github.com/example/meatshop-orders/internal/domain/inventory"
	"github.com/example/meatshop-orders/internal/domain/loyalty"
	"github.com/example/meatshop-orders/internal/domain/order"
	"github.com/example/meatshop-orders/internal/domain/product"
	"github.com/example/meatshop-orders/internal/query"
)

var (
	errInvalidBody        = errors.New("invalid request body")
	errInsufficientPoints = errors.New("not enough points")
)

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type stockDetails struct {
	ProductID string `json:"productId"`
	Product   string `json:"product"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// statusTable maps sentinel errors to response codes. Order matters only
// where one error wraps another.
var statusTable = []struct {
	err    error
	status int
}{
	{errInvalidBody, http.StatusBadRequest},
	{errInsufficientPoints, http.StatusBadRequest},

	{command.ErrInvalidInput, http.StatusBadRequest},
	{command.ErrEmptyCart, http.StatusBadRequest},
	{command.ErrProductInactive, http.StatusBadRequest},
	{command.ErrOrderNotFound, http.StatusNotFound},
	{command.ErrForbidden, http.StatusForbidden},
	{command.ErrConcurrentUpdate, http.StatusConflict},

	{inventory.ErrInsufficientStock, http.StatusBadRequest},
	{inventory.ErrProductNotFound, http.StatusBadRequest},
	{inventory.ErrInvalidQuantity, http.StatusBadRequest},
	{inventory.ErrOrderNotFound, http.StatusNotFound},

	{order.ErrInvalidStatus, http.StatusBadRequest},
	{order.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{order.ErrInvalidTransition, http.StatusConflict},
	{order.ErrOrderCancelled, http.StatusConflict},
	{order.ErrOrderCompleted, http.StatusConflict},
	{order.ErrOrderShipped, http.StatusConflict},

	{discount.ErrNotFound, http.StatusNotFound},
	{discount.ErrDuplicateCode, http.StatusConflict},
	{discount.ErrCodeRequired, http.StatusBadRequest},
	{discount.ErrInactive, http.StatusBadRequest},
	{discount.ErrNotYetValid, http.StatusBadRequest},
	{discount.ErrExpired, http.StatusBadRequest},
	{discount.ErrUsageLimitReached, http.StatusBadRequest},
	{discount.ErrBelowMinimum, http.StatusBadRequest},
	{discount.ErrInvalidDiscount, http.StatusBadRequest},
	{discount.ErrInvalidWindow, http.StatusBadRequest},
	{discount.ErrInvalidSubtotal, http.StatusBadRequest},

	{loyalty.ErrUserRequired, http.StatusBadRequest},
	{loyalty.ErrOrderRequired, http.StatusBadRequest},
	{loyalty.ErrInvalidTotal, http.StatusBadRequest},
	{loyalty.ErrInvalidPoints, http.StatusBadRequest},

	{product.ErrProductNotFound, http.StatusNotFound},
	{product.ErrDuplicateID, http.StatusConflict},
	{product.ErrInvalidName, http.StatusBadRequest},
	{product.ErrInvalidPrice, http.StatusBadRequest},
	{product.ErrInvalidStock, http.StatusBadRequest},

	{query.ErrOrderNotFound, http.StatusNotFound},
	{query.ErrProductNotFound, http.StatusNotFound},
	{query.ErrForbidden, http.StatusForbidden},
}

// statusOf returns the response code for err, 500 when it is not a known
// domain error.
func statusOf(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error, details}. Unknown errors are logged and
// reported without their message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}

	var stockErr *inventory.InsufficientStockError
	var fieldErr *command.FieldError
	var minErr *discount.BelowMinimumError
	switch {
	case errors.As(err, &stockErr):
		body.Details = stockDetails{
			ProductID: stockErr.ProductID,
			Product:   stockErr.Label,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		}
	case errors.As(err, &fieldErr):
		body.Details = map[string]string{"field": fieldErr.Field, "reason": fieldErr.Reason}
	case errors.As(err, &minErr):
		body.Details = map[string]int64{"minAmount": minErr.MinAmount, "subtotal": minErr.Subtotal}
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body = errorBody{Error: "internal server error"}
	}
	respondJSON(w, status, body)
}
