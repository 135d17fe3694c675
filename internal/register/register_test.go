package register

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"api_pos/internal/pos"
)

func setup(t *testing.T, stock int) (*pos.Service, *pos.LocalStorage) {
	t.Helper()
	storage := pos.NewLocalStorage()
	require.NoError(t, storage.CreateProduct(context.Background(), &pos.Product{
		Barcode: "7790001",
		Name:    "Funda iPhone 13",
		Price:   decimal.NewFromFloat(2500.99),
		Stock:   stock,
	}))
	return pos.NewService(storage, zaptest.NewLogger(t)), storage
}

func TestRegister_Run(t *testing.T) {
	t.Run("confirmed sale decrements stock", func(t *testing.T) {
		svc, storage := setup(t, 2)
		var out bytes.Buffer

		state, err := New(svc, &out, zaptest.NewLogger(t)).Run(context.Background(), strings.NewReader("7790001\ns\nq\n"))
		require.NoError(t, err)

		assert.Contains(t, out.String(), "Stock: 2 | Precio: $ 2.500")
		assert.Contains(t, out.String(), "✅ Venta: Funda iPhone 13 $ 2.500")
		assert.Equal(t, 1, state.ScanKey)
		assert.Nil(t, state.Pending)

		p, err := storage.GetProductByBarcode(context.Background(), "7790001")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Stock)
	})

	t.Run("cancelled sale keeps stock", func(t *testing.T) {
		svc, storage := setup(t, 2)
		var out bytes.Buffer

		_, err := New(svc, &out, zaptest.NewLogger(t)).Run(context.Background(), strings.NewReader("7790001\nn\n"))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Venta cancelada")

		p, err := storage.GetProductByBarcode(context.Background(), "7790001")
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)
	})

	t.Run("out of stock is refused", func(t *testing.T) {
		svc, _ := setup(t, 0)
		var out bytes.Buffer

		_, err := New(svc, &out, zaptest.NewLogger(t)).Run(context.Background(), strings.NewReader("7790001\ns\n"))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Sin stock: Funda iPhone 13")
	})

	t.Run("unknown barcode", func(t *testing.T) {
		svc, _ := setup(t, 1)
		var out bytes.Buffer

		state, err := New(svc, &out, nil).Run(context.Background(), strings.NewReader("\n000\n"))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Producto no encontrado: 000")
		assert.Equal(t, 1, state.ScanKey)
	})
}

func TestRegister_StepKeepsPendingUntilAnswered(t *testing.T) {
	svc, _ := setup(t, 1)
	r := New(svc, &bytes.Buffer{}, zaptest.NewLogger(t))
	state := ViewState{}

	r.Step(context.Background(), &state, "7790001")
	require.NotNil(t, state.Pending)
	assert.Equal(t, "7790001", state.Input)

	r.Step(context.Background(), &state, "")
	assert.NotNil(t, state.Pending)
	assert.Equal(t, 0, state.ScanKey)
}

func TestRegister_RunStopsWhenContextIsCancelled(t *testing.T) {
	svc, _ := setup(t, 1)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := New(svc, &bytes.Buffer{}, zaptest.NewLogger(t)).Run(ctx, pr)
		done <- err
	}()

	// nadie escanea: el lector queda bloqueado
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("register kept waiting for input after cancel")
	}
}
