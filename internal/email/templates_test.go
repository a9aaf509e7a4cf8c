package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{50000, "50,000"},
		{1500000, "1,500,000"},
		{-25000, "-25,000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in))
	}
}

func TestBuildOrderConfirmationBody(t *testing.T) {
	body := BuildOrderConfirmationBody("ORD-20240315-ABCDEF12", 1950000, []OrderItem{
		{ProductID: "p1", Name: "Wagyu <A5>", Quantity: 1, Price: 1500000},
		{ProductID: "p2", Quantity: 3, Price: 150000},
	})

	assert.Contains(t, body, "ORD-20240315-ABCDEF12")
	assert.Contains(t, body, "Wagyu &lt;A5&gt;")
	assert.Contains(t, body, ">p2<", "missing name falls back to product id")
	assert.Contains(t, body, "450,000₫")
	assert.Contains(t, body, "1,950,000₫")
}

func TestBuildStatusChangedBody(t *testing.T) {
	body := BuildStatusChangedBody("ORD-1", "SHIPPING")

	assert.Contains(t, body, "ORD-1")
	assert.Contains(t, body, "on its way")
}

func TestBuildTierUpgradedBody(t *testing.T) {
	assert.Contains(t, BuildTierUpgradedBody("GOLD", 300), "300</strong> bonus points")
	assert.NotContains(t, BuildTierUpgradedBody("BRONZE", 0), "bonus points")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "cancelled", StatusLabel("CANCELLED"))
	assert.Equal(t, "refunded", StatusLabel("REFUNDED"))
}
