package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

// Notifier hands a notification to whatever delivers it. Callers treat
// delivery as best effort.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Publisher is implemented by the Kafka producer and the RabbitMQ
// publisher.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// BrokerNotifier publishes notifications keyed by user id so that one
// user's messages stay in order.
type BrokerNotifier struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewBrokerNotifier(p Publisher, logger *slog.Logger) *BrokerNotifier {
	return &BrokerNotifier{publisher: p, logger: logger.With("component", "notifier")}
}

func (n *BrokerNotifier) Notify(ctx context.Context, msg model.Notification) error {
	stamp(&msg)
	if err := n.publisher.Publish(ctx, msg.UserID, msg); err != nil {
		return err
	}
	n.logger.Debug("notification published", "type", msg.Type, "user_id", msg.UserID, "order_id", msg.OrderID)
	return nil
}

// LogNotifier only logs. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg model.Notification) error {
	stamp(&msg)
	n.logger.Info("notification",
		"id", msg.ID,
		"type", msg.Type,
		"user_id", msg.UserID,
		"order_id", msg.OrderID,
		"status", msg.Status,
		"tier", msg.Tier,
	)
	return nil
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, model.Notification) error { return nil }

func stamp(msg *model.Notification) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
}
