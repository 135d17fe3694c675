// Package sqlstore implements pos.Storage on database/sql for Postgres (pgx)
// and SQLite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"api_pos/internal/pos"
)

// Dialect selects the placeholder style and column types of the backend.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

const productColumns = `id, barcode, name, brand, category, cost_price, price, stock, created_at`

const saleColumns = `id, product_id, product_name, quantity, unit_price, total, created_at`

// Store is a pos.Storage backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

var _ pos.Storage = (*Store)(nil)

// New creates a Store over an open database handle.
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// rebind rewrites '?' placeholders into '$n' for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteTimeLayout matches the created_at column default of the SQLite schema.
const sqliteTimeLayout = "2006-01-02 15:04:05.000+00:00"

// timeArg converts t into a value comparable with stored created_at values.
// SQLite compares the column as text, so t is written in the same layout.
func (s *Store) timeArg(t time.Time) any {
	if s.dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*pos.Product, error) {
	var (
		p        pos.Product
		brand    sql.NullString
		category sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Barcode, &p.Name, &brand, &category, &p.CostPrice, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Brand = brand.String
	p.Category = category.String
	return &p, nil
}

func scanSale(row rowScanner) (*pos.Sale, error) {
	var s pos.Sale
	if err := row.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.Quantity, &s.UnitPrice, &s.Total, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]*pos.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []*pos.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*pos.Product, error) {
	return s.getProductBy(ctx, s.db, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*pos.Product, error) {
	return s.getProductBy(ctx, s.db, "barcode", barcode)
}

func (s *Store) getProductBy(ctx context.Context, dbops DBTX, column, value string) (*pos.Product, error) {
	query := s.rebind(`SELECT ` + productColumns + ` FROM products WHERE ` + column + ` = ?`)
	p, err := scanProduct(dbops.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pos.ErrProductNotFound
		}
		return nil, fmt.Errorf("query product by %s: %w", column, err)
	}
	return p, nil
}

// CreateProduct inserts p and copies back the id and creation time the
// database assigned.
func (s *Store) CreateProduct(ctx context.Context, p *pos.Product) error {
	query := s.rebind(`INSERT INTO products (barcode, name, brand, category, cost_price, price, stock)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING ` + productColumns)
	created, err := scanProduct(s.db.QueryRowContext(ctx, query,
		p.Barcode, p.Name, p.Brand, p.Category, p.CostPrice, p.Price, p.Stock,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return pos.ErrDuplicateBarcode
		}
		s.logger.Error("CreateProduct: insert failed", zap.String("barcode", p.Barcode), zap.Error(err))
		return fmt.Errorf("insert product: %w", err)
	}
	*p = *created
	return nil
}

// AddStock increments the stock in a single statement, so concurrent
// stock-ins never overwrite each other.
func (s *Store) AddStock(ctx context.Context, productID string, quantity int) (*pos.Product, error) {
	query := s.rebind(`UPDATE products SET stock = stock + ? WHERE id = ? RETURNING ` + productColumns)
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, quantity, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pos.ErrProductNotFound
		}
		s.logger.Error("AddStock: update failed", zap.String("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("update stock: %w", err)
	}
	return p, nil
}

// SellOne decrements the stock guarded by stock > 0 and inserts the sale in
// one transaction.
func (s *Store) SellOne(ctx context.Context, p *pos.Product, sale *pos.Sale) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE products SET stock = stock - 1 WHERE id = ? AND stock > 0`), p.ID)
	if err != nil {
		s.logger.Error("SellOne: decrement failed", zap.String("product_id", p.ID), zap.Error(err))
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if affected == 0 {
		if _, err := s.getProductBy(ctx, tx, "id", p.ID); err != nil {
			return err
		}
		return pos.ErrOutOfStock
	}

	insert := s.rebind(`INSERT INTO sales (product_id, product_name, quantity, unit_price, total)
		VALUES (?, ?, ?, ?, ?) RETURNING id, created_at`)
	if err := tx.QueryRowContext(ctx, insert,
		sale.ProductID, sale.ProductName, sale.Quantity, sale.UnitPrice, sale.Total,
	).Scan(&sale.ID, &sale.CreatedAt); err != nil {
		s.logger.Error("SellOne: insert sale failed", zap.String("product_id", p.ID), zap.Error(err))
		return fmt.Errorf("insert sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sale tx: %w", err)
	}
	return nil
}

func (s *Store) ListSalesSince(ctx context.Context, since time.Time) ([]*pos.Sale, error) {
	query := s.rebind(`SELECT ` + saleColumns + ` FROM sales WHERE created_at >= ? ORDER BY created_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, s.timeArg(since))
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	sales := []*pos.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, id string) (*pos.Sale, error) {
	query := s.rebind(`SELECT ` + saleColumns + ` FROM sales WHERE id = ?`)
	sale, err := scanSale(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pos.ErrSaleNotFound
		}
		return nil, fmt.Errorf("query sale: %w", err)
	}
	return sale, nil
}
