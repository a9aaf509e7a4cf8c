package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

var (
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrOrderCancelled       = fmt.Errorf("%w: order is already cancelled", ErrInvalidTransition)
	ErrOrderCompleted       = fmt.Errorf("%w: order is already completed", ErrInvalidTransition)
	ErrOrderShipped         = fmt.Errorf("%w: cannot cancel an order that has shipped", ErrInvalidTransition)
	ErrCancelNotAllowed     = fmt.Errorf("%w: only pending orders can be cancelled by the customer", ErrInvalidTransition)
)

// validTransitions defines allowed state transitions
var validTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending:         {model.StatusAwaitingPayment, model.StatusShipping, model.StatusCancelled},
	model.StatusAwaitingPayment: {model.StatusShipping, model.StatusCancelled},
	model.StatusShipping:        {model.StatusDelivered},
	model.StatusDelivered:       {model.StatusCompleted},
	model.StatusCompleted:       {}, // terminal state
	model.StatusCancelled:       {}, // terminal state
}

// CanTransition checks if an order in status from may move to status to.
func CanTransition(from, to model.OrderStatus) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// CustomerCanCancel reports whether the order's owner may still cancel it.
// Staff may cancel from any status that allows CANCELLED.
func CustomerCanCancel(status model.OrderStatus) bool {
	return status == model.StatusPending
}

// TransitionError returns an appropriate error for an invalid transition
func TransitionError(from, to model.OrderStatus) error {
	switch {
	case from == model.StatusCancelled:
		return ErrOrderCancelled
	case from == model.StatusCompleted:
		return ErrOrderCompleted
	case to == model.StatusCancelled && (from == model.StatusShipping || from == model.StatusDelivered):
		return ErrOrderShipped
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}
}

// ParseStatus accepts any of the six statuses, case-insensitively.
func ParseStatus(s string) (model.OrderStatus, error) {
	status := model.OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range model.OrderStatuses {
		if status == valid {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParsePaymentMethod defaults an empty method to COD.
func ParsePaymentMethod(s string) (model.PaymentMethod, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return model.PaymentCOD, nil
	}
	method := model.PaymentMethod(s)
	for _, valid := range model.PaymentMethods {
		if method == valid {
			return method, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// InitialStatus is PENDING for cash on delivery and AWAITING_PAYMENT for
// prepaid methods.
func InitialStatus(method model.PaymentMethod) model.OrderStatus {
	if method == model.PaymentCOD {
		return model.StatusPending
	}
	return model.StatusAwaitingPayment
}

// NewOrderNumber returns a human-facing number such as ORD-20240315-1A2B3C4D.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
