package command

// CartItem is one cart line as sent by the storefront. Name, Price and
// Image are the snapshot stored on the order item.
type CartItem struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Order Commands
type PlaceOrder struct {
	UserID         string     `json:"-"`
	Email          string     `json:"-"`
	Items          []CartItem `json:"items"`
	Total          int64      `json:"total"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Address        string     `json:"address"`
	Note           string     `json:"note,omitempty"`
	PaymentMethod  string     `json:"paymentMethod"`
	DiscountCodeID string     `json:"discountCodeId,omitempty"`
}

type UpdateOrderStatus struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// CancelOrder is a cancellation requested by a customer. Admins may cancel
// any order.
type CancelOrder struct {
	OrderID string `json:"-"`
	UserID  string `json:"-"`
	IsAdmin bool   `json:"-"`
}
