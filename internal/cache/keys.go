package cache

const (
	productPrefix  = "product:"
	ProductsPrefix = "products:"
	discountPrefix = "discount:"
)

func ProductKey(id string) string {
	return productPrefix + id
}

// ProductListKey caches the product listing; activeOnly selects the
// storefront view.
func ProductListKey(activeOnly bool) string {
	if activeOnly {
		return ProductsPrefix + "active"
	}
	return ProductsPrefix + "all"
}

// DiscountKey is keyed by the normalized (upper-case) code.
func DiscountKey(code string) string {
	return discountPrefix + code
}
