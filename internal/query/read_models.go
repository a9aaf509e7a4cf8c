package query

import "github.com/example/meatshop-orders/internal/model"

// InventoryReadModel is the stock view of one product.
type InventoryReadModel struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"minStock"`
	LowStock  bool   `json:"lowStock"`
	IsActive  bool   `json:"isActive"`
}

func inventoryOf(p *model.Product) *InventoryReadModel {
	return &InventoryReadModel{
		ProductID: p.ID,
		Name:      p.Name,
		Stock:     p.Stock,
		MinStock:  p.MinStock,
		LowStock:  p.IsLowStock(),
		IsActive:  p.IsActive,
	}
}

// Viewer is the principal a read is performed for.
type Viewer struct {
	UserID  string
	IsAdmin bool
}
