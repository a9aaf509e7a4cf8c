package model

import "time"

// Product is a sellable item with a single stock counter.
// Stock is only ever changed through the inventory ledger.
type Product struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Price     int64      `json:"price"`
	Unit      string     `json:"unit,omitempty"`
	Stock     int        `json:"stock"`
	MinStock  int        `json:"minStock"`
	IsActive  bool       `json:"isActive"`
	Tags      StringList `json:"tags"`
	Images    StringList `json:"images"`
	Nutrition Nutrition  `json:"nutrition"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsLowStock reports whether stock has fallen to the low-stock threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// Clone returns a copy that shares no slices or maps with p.
func (p *Product) Clone() *Product {
	c := *p
	c.Tags = append(StringList{}, p.Tags...)
	c.Images = append(StringList{}, p.Images...)
	c.Nutrition = make(Nutrition, len(p.Nutrition))
	for k, v := range p.Nutrition {
		c.Nutrition[k] = v
	}
	return &c
}
