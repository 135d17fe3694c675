package postgrest

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"api_pos/internal/pos"
)

// flexID accepts identifiers encoded as JSON strings or numbers; older
// tables use serial integer keys.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type productRow struct {
	ID        flexID              `json:"id"`
	Barcode   string              `json:"barcode"`
	Name      string              `json:"name"`
	Brand     *string             `json:"brand"`
	Category  *string             `json:"category"`
	CostPrice decimal.NullDecimal `json:"cost_price"`
	Price     decimal.Decimal     `json:"price"`
	Stock     int                 `json:"stock"`
	CreatedAt time.Time           `json:"created_at"`
}

// productInsert is the body of a product insert. id and created_at are left
// to the table defaults.
type productInsert struct {
	Barcode   string              `json:"barcode"`
	Name      string              `json:"name"`
	Brand     string              `json:"brand"`
	Category  string              `json:"category"`
	CostPrice decimal.NullDecimal `json:"cost_price"`
	Price     decimal.Decimal     `json:"price"`
	Stock     int                 `json:"stock"`
}

func newProductInsert(p *pos.Product) productInsert {
	return productInsert{
		Barcode:   p.Barcode,
		Name:      p.Name,
		Brand:     p.Brand,
		Category:  p.Category,
		CostPrice: p.CostPrice,
		Price:     p.Price,
		Stock:     p.Stock,
	}
}

func (r *productRow) toProduct() *pos.Product {
	p := &pos.Product{
		ID:        string(r.ID),
		Barcode:   r.Barcode,
		Name:      r.Name,
		CostPrice: r.CostPrice,
		Price:     r.Price,
		Stock:     r.Stock,
		CreatedAt: r.CreatedAt,
	}
	if r.Brand != nil {
		p.Brand = *r.Brand
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	return p
}

type saleRow struct {
	ID          flexID          `json:"id"`
	ProductID   flexID          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
}

type saleInsert struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

func newSaleInsert(s *pos.Sale) saleInsert {
	return saleInsert{
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Quantity:    s.Quantity,
		UnitPrice:   decimal.NewFromInt(s.UnitPrice),
		Total:       decimal.NewFromInt(s.Total),
	}
}

func (r *saleRow) toSale() *pos.Sale {
	unit, _ := pos.TruncatePrice(r.UnitPrice)
	total, _ := pos.TruncatePrice(r.Total)
	return &pos.Sale{
		ID:          string(r.ID),
		ProductID:   string(r.ProductID),
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		UnitPrice:   unit,
		Total:       total,
		CreatedAt:   r.CreatedAt,
	}
}
