package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/example/meatshop-orders/internal/email"
	"github.com/example/meatshop-orders/internal/model"
)

// Mailer is implemented by email.Service.
type Mailer interface {
	SendOrderConfirmation(to, orderNumber string, total int64, items []email.OrderItem) error
	SendStatusChanged(to, orderNumber string, status string) error
	SendTierUpgraded(to, tier string, bonusPoints int64) error
}

// Handler turns broker messages into emails.
type Handler struct {
	mailer Mailer
	logger *slog.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, logger *slog.Logger) *Handler {
	return &Handler{mailer: mailer, logger: logger.With("component", "notification-handler")}
}

// HandleEvent processes one broker message. Malformed messages are
// returned as errors; messages without a recipient are skipped.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var n model.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		h.logger.Error("failed to unmarshal notification", "key", string(key), "error", err)
		return err
	}

	if n.Email == "" {
		h.logger.Warn("notification has no recipient, skipping", "id", n.ID, "type", n.Type, "user_id", n.UserID)
		return nil
	}

	var err error
	switch n.Type {
	case model.NotificationOrderCreated:
		err = h.mailer.SendOrderConfirmation(n.Email, orderRef(n), n.Total, emailItems(n.Items))
	case model.NotificationOrderStatusChanged:
		err = h.mailer.SendStatusChanged(n.Email, orderRef(n), string(n.Status))
	case model.NotificationTierUpgraded:
		err = h.mailer.SendTierUpgraded(n.Email, string(n.Tier), n.BonusPoints)
	default:
		h.logger.Debug("ignoring notification type", "type", n.Type)
		return nil
	}
	if err != nil {
		h.logger.Error("failed to send email", "type", n.Type, "to", n.Email, "error", err)
		return err
	}

	h.logger.Info("email sent", "type", n.Type, "to", n.Email, "order_id", n.OrderID)
	return nil
}

func orderRef(n model.Notification) string {
	if n.OrderNumber != "" {
		return n.OrderNumber
	}
	return n.OrderID
}

func emailItems(items []model.OrderItem) []email.OrderItem {
	out := make([]email.OrderItem, len(items))
	for i, item := range items {
		out[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return out
}
