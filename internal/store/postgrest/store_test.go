package postgrest

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"api_pos/internal/pos"
)

// fakeREST is a tiny in-memory stand-in for the PostgREST endpoints the store uses.
// Keys are serial integers and created_at is stamped by the server, like
// table defaults would.
type fakeREST struct {
	mu          sync.Mutex
	products    []map[string]any
	sales       []map[string]any
	inserts     []map[string]any
	nextID      int
	failSales   bool
	failRestore bool
	patches     int
	lastAPIKey  string

	// otherRegisters sells one unit of the patched product right before
	// each of the next guarded PATCHes.
	otherRegisters int
}

func idOf(row map[string]any) string {
	return strconv.Itoa(int(row["id"].(float64)))
}

func (f *fakeREST) stamp(row map[string]any) {
	f.inserts = append(f.inserts, maps.Clone(row))
	f.nextID++
	row["id"] = float64(f.nextID)
	row["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
}

func eqParam(r *http.Request, key string) (string, bool) {
	v := r.URL.Query().Get(key)
	if !strings.HasPrefix(v, "eq.") {
		return "", false
	}
	return strings.TrimPrefix(v, "eq."), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAPIKey = r.Header.Get("apikey")

	switch {
	case r.URL.Path == "/products" && r.Method == http.MethodGet:
		out := []map[string]any{}
		for _, p := range f.products {
			if id, ok := eqParam(r, "id"); ok && idOf(p) != id {
				continue
			}
			if bc, ok := eqParam(r, "barcode"); ok && p["barcode"] != bc {
				continue
			}
			out = append(out, p)
		}
		writeJSON(w, http.StatusOK, out)

	case r.URL.Path == "/products" && r.Method == http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		for _, p := range f.products {
			if p["barcode"] == row["barcode"] {
				writeJSON(w, http.StatusConflict, map[string]string{"code": "23505"})
				return
			}
		}
		f.stamp(row)
		f.products = append(f.products, row)
		writeJSON(w, http.StatusCreated, []map[string]any{row})

	case r.URL.Path == "/products" && r.Method == http.MethodPatch:
		f.patches++
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		id, _ := eqParam(r, "id")
		expected, _ := eqParam(r, "stock")
		if f.failRestore && f.patches > 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "down"})
			return
		}
		if f.otherRegisters > 0 {
			f.otherRegisters--
			for _, p := range f.products {
				if idOf(p) == id {
					p["stock"] = p["stock"].(float64) - 1
				}
			}
		}
		out := []map[string]any{}
		for _, p := range f.products {
			if idOf(p) == id && strconv.Itoa(int(p["stock"].(float64))) == expected {
				p["stock"] = float64(body["stock"])
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)

	case r.URL.Path == "/sales" && r.Method == http.MethodPost:
		if f.failSales {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
			return
		}
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		f.stamp(row)
		f.sales = append(f.sales, row)
		writeJSON(w, http.StatusCreated, []map[string]any{row})

	case r.URL.Path == "/sales" && r.Method == http.MethodGet:
		out := []map[string]any{}
		for _, s := range f.sales {
			if id, ok := eqParam(r, "id"); ok && idOf(s) != id {
				continue
			}
			out = append(out, s)
		}
		writeJSON(w, http.StatusOK, out)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeREST) stockOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if idOf(p) == id {
			return int(p["stock"].(float64))
		}
	}
	return -1
}

func newTestStore(t *testing.T) (*Store, *fakeREST) {
	t.Helper()
	fake := &fakeREST{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := New(Config{BaseURL: srv.URL, APIKey: "anon-key", Timeout: 2 * time.Second}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })
	return store, fake
}

func seed(t *testing.T, store *Store, barcode string, stock int) *pos.Product {
	t.Helper()
	p := &pos.Product{Barcode: barcode, Name: "Cargador " + barcode, Price: decimal.RequireFromString("2500.99"), Stock: stock}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func TestFlexID(t *testing.T) {
	var row productRow
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17, "barcode": "1", "price": 1000.0, "stock": 2}`), &row))
	assert.Equal(t, flexID("17"), row.ID)
	assert.Equal(t, int64(1000), row.Price.IntPart())

	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "price": "12.5"}`), &row))
	assert.Equal(t, flexID("abc"), row.ID)
}

func TestStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)
	p := seed(t, store, "7790001", 2)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "anon-key", fake.lastAPIKey)

	got, err := store.GetProductByBarcode(ctx, "7790001")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "$ 2.500", pos.FormatCurrency(got.Price))

	_, err = store.GetProductByBarcode(ctx, "missing")
	assert.ErrorIs(t, err, pos.ErrProductNotFound)

	err = store.CreateProduct(ctx, &pos.Product{Barcode: "7790001", Name: "dup"})
	assert.ErrorIs(t, err, pos.ErrDuplicateBarcode)

	all, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_AddStock(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790002", 2)

	updated, err := store.AddStock(context.Background(), p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, 7, fake.stockOf(p.ID))
	assert.Empty(t, fake.sales)
}

func TestStore_SellOne(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)
	p := seed(t, store, "7790003", 1)

	sale := &pos.Sale{ProductID: p.ID, ProductName: p.Name, Quantity: 1, UnitPrice: 2500, Total: 2500}
	require.NoError(t, store.SellOne(ctx, p, sale))
	assert.Equal(t, 0, fake.stockOf(p.ID))

	got, err := store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Total)

	// snapshot desactualizado: el guard no coincide y el stock real es 0
	err = store.SellOne(ctx, p, &pos.Sale{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, pos.ErrOutOfStock)

	sales, err := store.ListSalesSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	_, err = store.GetSale(ctx, "missing")
	assert.ErrorIs(t, err, pos.ErrSaleNotFound)
}

func TestStore_SellOne_RetriesStaleSnapshot(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790004", 5)

	stale := *p
	stale.Stock = 4
	require.NoError(t, store.SellOne(context.Background(), &stale, &pos.Sale{ProductID: p.ID, Quantity: 1}))
	assert.Equal(t, 4, fake.stockOf(p.ID))
}

func TestStore_SellOne_ConcurrentSaleIsRetried(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790007", 5)

	// otra caja vende entre la lectura y el PATCH
	fake.otherRegisters = 1
	sale := &pos.Sale{ProductID: p.ID, Quantity: 1, UnitPrice: 2500, Total: 2500}
	require.NoError(t, store.SellOne(context.Background(), p, sale))
	assert.Equal(t, 3, fake.stockOf(p.ID))
	assert.NotEmpty(t, sale.ID)
}

func TestStore_SellOne_ConflictAfterRetry(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790008", 5)

	fake.otherRegisters = casAttempts
	err := store.SellOne(context.Background(), p, &pos.Sale{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, pos.ErrStockConflict)
	assert.Equal(t, 3, fake.stockOf(p.ID))
	assert.Empty(t, fake.sales)
}

func TestStore_SellOne_LastUnitTakenByOtherRegister(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790009", 1)

	fake.otherRegisters = 1
	err := store.SellOne(context.Background(), p, &pos.Sale{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, pos.ErrOutOfStock)
	assert.Equal(t, 0, fake.stockOf(p.ID))
}

func TestStore_InsertsLeaveKeysAndTimesToTheDatabase(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestStore(t)
	p := seed(t, store, "7790010", 2)
	assert.Equal(t, "1", p.ID)
	assert.WithinDuration(t, time.Now(), p.CreatedAt, time.Minute)

	sale := &pos.Sale{ProductID: p.ID, ProductName: p.Name, Quantity: 1, UnitPrice: 2500, Total: 2500}
	require.NoError(t, store.SellOne(ctx, p, sale))
	assert.Equal(t, "2", sale.ID)
	assert.WithinDuration(t, time.Now(), sale.CreatedAt, time.Minute)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.inserts, 2)
	for _, body := range fake.inserts {
		assert.NotContains(t, body, "id")
		assert.NotContains(t, body, "created_at")
	}
}

func TestStore_SellOne_RestoresStockWhenInsertFails(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790005", 3)
	fake.failSales = true

	err := store.SellOne(context.Background(), p, &pos.Sale{ProductID: p.ID, Quantity: 1, UnitPrice: 2500, Total: 2500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert sale")
	assert.Equal(t, 3, fake.stockOf(p.ID))
	assert.Empty(t, fake.sales)
}

func TestStore_SellOne_ReportsFailedRestore(t *testing.T) {
	store, fake := newTestStore(t)
	p := seed(t, store, "7790006", 3)
	fake.failSales = true
	fake.failRestore = true

	err := store.SellOne(context.Background(), p, &pos.Sale{ProductID: p.ID, Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert sale")
	assert.Contains(t, err.Error(), "restore stock")
	assert.Equal(t, 2, fake.stockOf(p.ID))
}
