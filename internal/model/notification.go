package model

import "time"

type NotificationType string

const (
	NotificationOrderCreated       NotificationType = "order_created"
	NotificationOrderStatusChanged NotificationType = "order_status_changed"
	NotificationTierUpgraded       NotificationType = "tier_upgraded"
)

// Notification is the message published to the notification broker.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	UserID      string           `json:"userId"`
	Email       string           `json:"email,omitempty"`
	OrderID     string           `json:"orderId,omitempty"`
	OrderNumber string           `json:"orderNumber,omitempty"`
	Status      OrderStatus      `json:"status,omitempty"`
	Total       int64            `json:"total,omitempty"`
	Items       []OrderItem      `json:"items,omitempty"`
	Tier        Tier             `json:"tier,omitempty"`
	BonusPoints int64            `json:"bonusPoints,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}
