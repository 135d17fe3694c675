package pos

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrProductNotFound is returned when no product matches the given ID or barcode.
	ErrProductNotFound = errors.New("product not found")

	// ErrSaleNotFound is returned when a sale with the given ID is not found.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrOutOfStock is returned when a sale is attempted on a product with no stock.
	ErrOutOfStock = errors.New("product out of stock")

	// ErrDuplicateBarcode is returned when a product is created with a barcode already in use.
	ErrDuplicateBarcode = errors.New("barcode already registered")

	// ErrStockConflict is returned when the stock changed between read and write.
	ErrStockConflict = errors.New("stock changed concurrently")
)

// Storage is the persistence layer for products and sales.
//
// SellOne must decrement the product's stock by one only if it is still
// positive and record the sale in the same unit of work. When the guard
// fails it returns ErrOutOfStock and writes nothing.
type Storage interface {
	ListProducts(ctx context.Context) ([]*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	AddStock(ctx context.Context, productID string, quantity int) (*Product, error)
	SellOne(ctx context.Context, p *Product, sale *Sale) error
	ListSalesSince(ctx context.Context, since time.Time) ([]*Sale, error)
	GetSale(ctx context.Context, id string) (*Sale, error)
}

// LocalStorage provides an in-memory implementation of Storage.
type LocalStorage struct {
	mu       sync.Mutex
	products map[string]*Product
	barcodes map[string]string
	sales    []*Sale
	now      func() time.Time
}

// NewLocalStorage instantiates a new LocalStorage with no products or sales.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		products: map[string]*Product{},
		barcodes: map[string]string{},
		now:      time.Now,
	}
}

func (l *LocalStorage) ListProducts(_ context.Context) ([]*Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	products := make([]*Product, 0, len(l.products))
	for _, p := range l.products {
		cp := *p
		products = append(products, &cp)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

// GetProduct returns a copy of the product with the given ID.
// Returns ErrProductNotFound if the product is not found.
func (l *LocalStorage) GetProduct(_ context.Context, id string) (*Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (l *LocalStorage) GetProductByBarcode(ctx context.Context, barcode string) (*Product, error) {
	l.mu.Lock()
	id, ok := l.barcodes[barcode]
	l.mu.Unlock()
	if !ok {
		return nil, ErrProductNotFound
	}
	return l.GetProduct(ctx, id)
}

// CreateProduct assigns an ID and creation time to p and stores it.
// Returns ErrDuplicateBarcode if the barcode is taken.
func (l *LocalStorage) CreateProduct(_ context.Context, p *Product) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.barcodes[p.Barcode]; ok {
		return ErrDuplicateBarcode
	}
	p.ID = uuid.NewString()
	p.CreatedAt = l.now()

	cp := *p
	l.products[p.ID] = &cp
	l.barcodes[p.Barcode] = p.ID
	return nil
}

func (l *LocalStorage) AddStock(_ context.Context, productID string, quantity int) (*Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.Stock += quantity
	cp := *p
	return &cp, nil
}

func (l *LocalStorage) SellOne(_ context.Context, p *Product, sale *Sale) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.products[p.ID]
	if !ok {
		return ErrProductNotFound
	}
	if stored.Stock <= 0 {
		return ErrOutOfStock
	}
	stored.Stock--

	sale.ID = uuid.NewString()
	sale.CreatedAt = l.now()
	cp := *sale
	l.sales = append(l.sales, &cp)
	return nil
}

func (l *LocalStorage) ListSalesSince(_ context.Context, since time.Time) ([]*Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sales := make([]*Sale, 0)
	for _, s := range l.sales {
		if s.CreatedAt.Before(since) {
			continue
		}
		cp := *s
		sales = append(sales, &cp)
	}
	return sales, nil
}

// GetSale returns the sale with the given ID.
// Returns ErrSaleNotFound if the sale is not found.
func (l *LocalStorage) GetSale(_ context.Context, id string) (*Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.sales {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSaleNotFound
}
