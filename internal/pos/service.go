package pos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidQuantity is returned when a stock-in quantity is lower than one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrInvalidProduct is returned when a new product is missing required fields.
	ErrInvalidProduct = errors.New("invalid product")
)

// Service provides the register operations on top of a Storage backend.
type Service struct {
	storage   Storage
	logger    *zap.Logger
	threshold int
	location  *time.Location
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLowStockThreshold sets the default threshold used by LowStockProducts.
func WithLowStockThreshold(threshold int) Option {
	return func(s *Service) { s.threshold = threshold }
}

// WithLocation sets the time zone in which report periods start.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock replaces the time source used for report periods.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(storage Storage, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	s := &Service{
		storage:   storage,
		logger:    logger,
		threshold: DefaultLowStockThreshold,
		location:  time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LowStockThreshold returns the configured default threshold.
func (s *Service) LowStockThreshold() int {
	return s.threshold
}

// LookupBarcode finds the product behind a scanned barcode.
func (s *Service) LookupBarcode(ctx context.Context, barcode string) (*ProductView, error) {
	p, err := s.storage.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			s.logger.Warn("barcode not found", zap.String("barcode", barcode))
			return nil, ErrProductNotFound
		}
		s.logger.Error("failed to look up barcode", zap.String("barcode", barcode), zap.Error(err))
		return nil, fmt.Errorf("failed to look up barcode: %w", err)
	}
	return &ProductView{Product: p, PriceDisplay: FormatCurrency(p.Price)}, nil
}

// Sell registers the sale of one unit of the product with the given ID.
func (s *Service) Sell(ctx context.Context, productID string) (*Sale, error) {
	p, err := s.storage.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		s.logger.Error("failed to read product", zap.String("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("failed to read product: %w", err)
	}
	return s.sell(ctx, p)
}

// SellByBarcode registers the sale of one unit of the product behind barcode.
func (s *Service) SellByBarcode(ctx context.Context, barcode string) (*Sale, error) {
	view, err := s.LookupBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	return s.sell(ctx, view.Product)
}

func (s *Service) sell(ctx context.Context, p *Product) (*Sale, error) {
	if p.Stock <= 0 {
		s.logger.Warn("sale refused, no stock", zap.String("product_id", p.ID), zap.String("name", p.Name))
		return nil, ErrOutOfStock
	}

	price, err := TruncatePrice(p.Price)
	if err != nil {
		s.logger.Error("product has an unusable price", zap.String("product_id", p.ID), zap.Error(err))
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}

	sale := &Sale{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    1,
		UnitPrice:   price,
		Total:       price,
	}

	if err := s.storage.SellOne(ctx, p, sale); err != nil {
		if errors.Is(err, ErrOutOfStock) {
			s.logger.Warn("sale refused, stock ran out", zap.String("product_id", p.ID))
			return nil, ErrOutOfStock
		}
		s.logger.Error("failed to register sale", zap.String("product_id", p.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to register sale: %w", err)
	}

	s.logger.Info("sale registered",
		zap.String("sale_id", sale.ID),
		zap.String("product_id", p.ID),
		zap.String("name", p.Name),
		zap.Int64("total", sale.Total),
	)
	return sale, nil
}

// StockIn adds quantity units to the product behind barcode.
func (s *Service) StockIn(ctx context.Context, barcode string, quantity int) (*Product, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	view, err := s.LookupBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}

	p, err := s.storage.AddStock(ctx, view.ID, quantity)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrStockConflict) {
			return nil, err
		}
		s.logger.Error("failed to add stock", zap.String("product_id", view.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to add stock: %w", err)
	}

	s.logger.Info("stock added",
		zap.String("product_id", p.ID),
		zap.Int("quantity", quantity),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}

// CreateProduct registers a product for a barcode seen for the first time.
// The unit in hand is counted, so the product starts with a stock of one.
func (s *Service) CreateProduct(ctx context.Context, req NewProductRequest) (*Product, error) {
	barcode := strings.TrimSpace(req.Barcode)
	name := strings.TrimSpace(req.Name)
	if barcode == "" || name == "" {
		return nil, fmt.Errorf("%w: barcode and name are required", ErrInvalidProduct)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if req.CostPrice != nil && req.CostPrice.IsNegative() {
		return nil, fmt.Errorf("%w: cost price must not be negative", ErrInvalidProduct)
	}

	price, err := TruncatePrice(req.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	p := &Product{
		Barcode:  barcode,
		Name:     name,
		Brand:    strings.TrimSpace(req.Brand),
		Category: NormalizeCategory(strings.TrimSpace(req.Category)),
		Price:    decimal.NewFromInt(price),
		Stock:    1,
	}
	if req.CostPrice != nil {
		p.CostPrice = decimal.NewNullDecimal(*req.CostPrice)
	}

	if err := s.storage.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateBarcode) {
			return nil, ErrDuplicateBarcode
		}
		s.logger.Error("failed to create product", zap.String("barcode", barcode), zap.Error(err))
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("barcode", p.Barcode))
	return p, nil
}

// Catalog returns every product grouped by category, categories in order.
func (s *Service) Catalog(ctx context.Context) ([]CategoryGroup, error) {
	products, err := s.storage.ListProducts(ctx)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	byCategory := map[string][]CatalogRow{}
	for _, p := range products {
		cat := p.CategoryOrDefault()
		price, _ := TruncatePrice(p.Price)
		byCategory[cat] = append(byCategory[cat], CatalogRow{
			ID:           p.ID,
			Name:         p.Name,
			Brand:        p.Brand,
			Stock:        p.Stock,
			Price:        price,
			PriceDisplay: FormatCurrency(p.Price),
		})
	}

	groups := make([]CategoryGroup, 0, len(byCategory))
	for cat, rows := range byCategory {
		groups = append(groups, CategoryGroup{Category: cat, Products: rows})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Category < groups[j].Category })
	return groups, nil
}

// LowStockProducts lists the products at or below threshold.
func (s *Service) LowStockProducts(ctx context.Context, threshold int) ([]*Product, error) {
	products, err := s.storage.ListProducts(ctx)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return LowStock(products, threshold), nil
}

// SalesSummary aggregates the sales of the current day or month.
func (s *Service) SalesSummary(ctx context.Context, period Period) (SalesSummary, error) {
	since := period.Start(s.now().In(s.location))

	sales, err := s.storage.ListSalesSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to list sales", zap.String("period", string(period)), zap.Error(err))
		return SalesSummary{}, fmt.Errorf("failed to retrieve sales: %w", err)
	}

	summary := Summarize(period, since, sales)
	s.logger.Info("sales summary computed",
		zap.String("period", string(period)),
		zap.Int("results_count", len(sales)),
		zap.Int64("total_amount", summary.TotalAmount),
	)
	return summary, nil
}

// GetSale returns a recorded sale.
func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	sale, err := s.storage.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to read sale: %w", err)
	}
	return sale, nil
}
