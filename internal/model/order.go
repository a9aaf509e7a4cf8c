package model

import "time"

type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	StatusShipping        OrderStatus = "SHIPPING"
	StatusDelivered       OrderStatus = "DELIVERED"
	StatusCompleted       OrderStatus = "COMPLETED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusAwaitingPayment,
	StatusShipping,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
}

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "COD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentEWallet      PaymentMethod = "E_WALLET"
)

// PaymentMethods lists every accepted payment method.
var PaymentMethods = []PaymentMethod{PaymentCOD, PaymentBankTransfer, PaymentEWallet}

// Customer holds the delivery contact captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	Note    string `json:"note,omitempty"`
}

type Order struct {
	ID             string        `json:"id"`
	OrderNumber    string        `json:"orderNumber"`
	UserID         string        `json:"userId"`
	Status         OrderStatus   `json:"status"`
	Customer       Customer      `json:"customer"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	DiscountCodeID string        `json:"discountCodeId,omitempty"`
	DiscountAmount int64         `json:"discountAmount"`
	Subtotal       int64         `json:"subtotal"`
	Total          int64         `json:"total"`
	StockRestored  bool          `json:"stockRestored"`
	Items          []OrderItem   `json:"items"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// OrderItem is an immutable snapshot of a cart line at purchase time.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// LineTotal returns price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}
