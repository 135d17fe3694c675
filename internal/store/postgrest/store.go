// Package postgrest implements pos.Storage over a hosted PostgREST endpoint
// (for example a Supabase project) using resty.
//
// PostgREST offers no multi-statement transactions, so a sale is written as
// a compare-and-swap on the observed stock followed by the sale insert. If
// the insert fails the stock is restored with a second compare-and-swap.
//
// The tables must give id and created_at defaults (uuid or identity keys,
// timestamptz default now()); inserts never send them.
package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"api_pos/internal/pos"
)

const (
	productsPath = "/products"
	salesPath    = "/sales"

	// casAttempts bounds the guarded stock writes: a stale read is re-read
	// and tried once more before reporting a conflict.
	casAttempts = 2
)

// Config holds the connection settings of the REST store.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Store is a pos.Storage backed by a PostgREST API.
type Store struct {
	client *resty.Client
	logger *zap.Logger
}

var _ pos.Storage = (*Store)(nil)

// New creates a Store. BaseURL must point at the REST root, e.g.
// https://<project>.supabase.co/rest/v1.
func New(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("apikey", cfg.APIKey).SetAuthToken(cfg.APIKey)
	}

	return &Store{client: client, logger: logger}
}

// Close releases the underlying HTTP client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) request(ctx context.Context) *resty.Request {
	return s.client.R().SetContext(ctx)
}

// statusError turns a non-2xx response into an error, mapping 409 on
// products to a duplicate barcode.
func statusError(op string, res *resty.Response) error {
	if res.StatusCode() == http.StatusConflict {
		return fmt.Errorf("%s: %w", op, pos.ErrDuplicateBarcode)
	}
	return fmt.Errorf("%s: unexpected status %d: %s", op, res.StatusCode(), res.String())
}

func (s *Store) ListProducts(ctx context.Context) ([]*pos.Product, error) {
	var rows []productRow
	res, err := s.request(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", "name.asc").
		SetResult(&rows).
		Get(productsPath)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if res.IsError() {
		return nil, statusError("list products", res)
	}

	products := make([]*pos.Product, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].toProduct())
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*pos.Product, error) {
	return s.getProductBy(ctx, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*pos.Product, error) {
	return s.getProductBy(ctx, "barcode", barcode)
}

func (s *Store) getProductBy(ctx context.Context, column, value string) (*pos.Product, error) {
	var rows []productRow
	res, err := s.request(ctx).
		SetQueryParam("select", "*").
		SetQueryParam(column, "eq."+value).
		SetResult(&rows).
		Get(productsPath)
	if err != nil {
		return nil, fmt.Errorf("get product by %s: %w", column, err)
	}
	if res.IsError() {
		return nil, statusError("get product", res)
	}
	if len(rows) == 0 {
		return nil, pos.ErrProductNotFound
	}
	return rows[0].toProduct(), nil
}

// CreateProduct inserts p and copies back the row the database stored,
// including the id and creation time it assigned.
func (s *Store) CreateProduct(ctx context.Context, p *pos.Product) error {
	var rows []productRow
	res, err := s.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(newProductInsert(p)).
		SetResult(&rows).
		Post(productsPath)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if res.IsError() {
		return statusError("insert product", res)
	}
	if len(rows) == 0 {
		return errors.New("insert product: no row returned")
	}
	*p = *rows[0].toProduct()
	return nil
}

// casStock sets the stock of id to next only if it still equals expected.
// It returns the updated product, or nil when the guard did not match.
func (s *Store) casStock(ctx context.Context, id string, expected, next int) (*pos.Product, error) {
	var rows []productRow
	res, err := s.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetQueryParam("stock", "eq."+strconv.Itoa(expected)).
		SetBody(map[string]int{"stock": next}).
		SetResult(&rows).
		Patch(productsPath)
	if err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}
	if res.IsError() {
		return nil, statusError("update stock", res)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toProduct(), nil
}

// AddStock reads the current stock and writes the sum guarded by the value
// read. If the stock moved in between it is read and tried once more; a
// second miss surfaces as pos.ErrStockConflict.
func (s *Store) AddStock(ctx context.Context, productID string, quantity int) (*pos.Product, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		updated, err := s.casStock(ctx, productID, current.Stock, current.Stock+quantity)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			return updated, nil
		}
	}
	return nil, pos.ErrStockConflict
}

// SellOne takes one unit guarded by the stock in p. When another register
// sold in between, the stock is read again and the swap retried once while
// units remain.
func (s *Store) SellOne(ctx context.Context, p *pos.Product, sale *pos.Sale) error {
	expected := p.Stock
	var updated *pos.Product
	for attempt := 0; attempt < casAttempts && updated == nil; attempt++ {
		if expected <= 0 {
			return pos.ErrOutOfStock
		}

		var err error
		updated, err = s.casStock(ctx, p.ID, expected, expected-1)
		if err != nil {
			return err
		}
		if updated == nil {
			current, err := s.GetProduct(ctx, p.ID)
			if err != nil {
				return err
			}
			expected = current.Stock
		}
	}
	if updated == nil {
		if expected <= 0 {
			return pos.ErrOutOfStock
		}
		return pos.ErrStockConflict
	}

	insertErr := s.insertSale(ctx, sale)
	if insertErr == nil {
		return nil
	}

	// compensación: devolver la unidad al stock
	restored, err := s.casStock(ctx, p.ID, expected-1, expected)
	if err == nil && restored == nil {
		err = pos.ErrStockConflict
	}
	if err != nil {
		s.logger.Error("SellOne: failed to restore stock after sale insert failure",
			zap.String("product_id", p.ID), zap.Error(err), zap.NamedError("insert_error", insertErr))
		return errors.Join(insertErr, fmt.Errorf("restore stock: %w", err))
	}
	return insertErr
}

func (s *Store) insertSale(ctx context.Context, sale *pos.Sale) error {
	var rows []saleRow
	res, err := s.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(newSaleInsert(sale)).
		SetResult(&rows).
		Post(salesPath)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("insert sale: unexpected status %d: %s", res.StatusCode(), res.String())
	}
	if len(rows) == 0 {
		// la venta quedó registrada aunque no vino la representación
		s.logger.Warn("insertSale: no row returned", zap.String("product_id", sale.ProductID))
		return nil
	}
	sale.ID = string(rows[0].ID)
	sale.CreatedAt = rows[0].CreatedAt
	return nil
}

func (s *Store) ListSalesSince(ctx context.Context, since time.Time) ([]*pos.Sale, error) {
	var rows []saleRow
	res, err := s.request(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("created_at", "gte."+since.UTC().Format(time.RFC3339)).
		SetQueryParam("order", "created_at.asc").
		SetResult(&rows).
		Get(salesPath)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("list sales: unexpected status %d: %s", res.StatusCode(), res.String())
	}

	sales := make([]*pos.Sale, 0, len(rows))
	for i := range rows {
		sales = append(sales, rows[i].toSale())
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*pos.Sale, error) {
	var rows []saleRow
	res, err := s.request(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("id", "eq."+id).
		SetResult(&rows).
		Get(salesPath)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get sale: unexpected status %d: %s", res.StatusCode(), res.String())
	}
	if len(rows) == 0 {
		return nil, pos.ErrSaleNotFound
	}
	return rows[0].toSale(), nil
}
