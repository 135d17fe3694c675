package pos

// DefaultLowStockThreshold is the stock level at or below which a product needs restocking.
const DefaultLowStockThreshold = 5

// LowStock returns the products whose stock is at or below threshold, in input order.
func LowStock(products []*Product, threshold int) []*Product {
	low := make([]*Product, 0)
	for _, p := range products {
		if p.Stock <= threshold {
			low = append(low, p)
		}
	}
	return low
}
