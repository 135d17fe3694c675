package pos

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used for products stored without a category.
const DefaultCategory = "Other"

// Product represents a sellable item tracked by the shop.
type Product struct {
	ID        string              `json:"id"`
	Barcode   string              `json:"barcode"`
	Name      string              `json:"name"`
	Brand     string              `json:"brand"`
	Category  string              `json:"category"`
	CostPrice decimal.NullDecimal `json:"cost_price"`
	Price     decimal.Decimal     `json:"price"`
	Stock     int                 `json:"stock"`
	CreatedAt time.Time           `json:"created_at"`
}

// CategoryOrDefault returns the product category, or DefaultCategory when blank.
func (p *Product) CategoryOrDefault() string {
	return NormalizeCategory(p.Category)
}

// NormalizeCategory maps blank categories to DefaultCategory.
func NormalizeCategory(category string) string {
	if strings.TrimSpace(category) == "" {
		return DefaultCategory
	}
	return category
}

// Sale represents a single unit sold at the register.
type Sale struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	Total       int64     `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProductRequest carries the fields entered when an unknown barcode is registered.
type NewProductRequest struct {
	Barcode   string           `json:"barcode"`
	Name      string           `json:"name"`
	Brand     string           `json:"brand"`
	Category  string           `json:"category"`
	Price     decimal.Decimal  `json:"price"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
}

// ProductView is a product together with its display price.
type ProductView struct {
	*Product
	PriceDisplay string `json:"price_display"`
}

// CatalogRow is one line of the stock table shown per category.
type CatalogRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	Stock        int    `json:"stock"`
	Price        int64  `json:"price"`
	PriceDisplay string `json:"price_display"`
}

// CategoryGroup holds the catalog rows for a single category.
type CategoryGroup struct {
	Category string       `json:"category"`
	Products []CatalogRow `json:"products"`
}
