package email

import (
	"fmt"
	"html"
	"strings"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     int64
}

var statusLabels = map[string]string{
	"PENDING":          "received",
	"AWAITING_PAYMENT": "awaiting payment",
	"SHIPPING":         "on its way",
	"DELIVERED":        "delivered",
	"COMPLETED":        "completed",
	"CANCELLED":        "cancelled",
}

// StatusLabel returns the customer-facing wording for an order status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return strings.ToLower(status)
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderNumber string, total int64, items []OrderItem) string {
	var itemsHTML strings.Builder
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s₫</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s₫</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			formatNumber(item.Price),
			formatNumber(item.Price*int64(item.Quantity)),
		))
	}

	content := fmt.Sprintf(`<p style="margin-top: 0;">Thank you for your order. We are preparing it now.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>

		<h2 style="font-size: 18px; border-bottom: 2px solid #b3261e; padding-bottom: 10px;">Your order</h2>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Product</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #b3261e; margin-left: 10px;">%s₫</span>
		</div>`, html.EscapeString(orderNumber), itemsHTML.String(), formatNumber(total))

	return layout("Thank you for your order", content)
}

// BuildStatusChangedBody builds the HTML body for an order status update
func BuildStatusChangedBody(orderNumber, status string) string {
	content := fmt.Sprintf(`<p style="margin-top: 0;">Your order <strong style="font-family: monospace;">%s</strong> is now <strong>%s</strong>.</p>`,
		html.EscapeString(orderNumber), html.EscapeString(StatusLabel(status)))
	return layout("Order update", content)
}

// BuildTierUpgradedBody builds the HTML body for a loyalty tier upgrade
func BuildTierUpgradedBody(tier string, bonusPoints int64) string {
	content := fmt.Sprintf(`<p style="margin-top: 0;">Congratulations, you have reached <strong>%s</strong> membership.</p>`,
		html.EscapeString(tier))
	if bonusPoints > 0 {
		content += fmt.Sprintf(`
		<p>We have added <strong>%s</strong> bonus points to your account.</p>`, formatNumber(bonusPoints))
	}
	return layout("You have been upgraded", content)
}

func layout(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #b3261e 0%%, #7a1712 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">%s</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		%s

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This email was sent automatically. Please contact support if you have any questions.
		</p>
	</div>
</body>
</html>`, html.EscapeString(title), content)
}

// formatNumber formats a number with comma separators
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(",")
	}

	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}

	return result.String()
}
