// Package register implements the interactive scan-and-sell loop used at the
// counter. A barcode scanner behaves like a keyboard and types one line per
// scan.
package register

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"api_pos/internal/pos"
)

// Seller is the subset of pos.Service the register needs.
type Seller interface {
	LookupBarcode(ctx context.Context, barcode string) (*pos.ProductView, error)
	Sell(ctx context.Context, productID string) (*pos.Sale, error)
}

// ViewState is everything the register screen keeps between two lines.
type ViewState struct {
	// ScanKey advances on every reset so the next scan starts clean.
	ScanKey int
	// Input is the last line typed.
	Input string
	// Pending is the scanned product waiting for confirmation.
	Pending *pos.ProductView
}

// Reset clears the scan input after a sale or a cancellation.
func (v *ViewState) Reset() {
	v.ScanKey++
	v.Input = ""
	v.Pending = nil
}

// Register reads scans from an input and writes prompts to out.
type Register struct {
	seller Seller
	out    io.Writer
	logger *zap.Logger
}

// New creates a Register.
func New(seller Seller, out io.Writer, logger *zap.Logger) *Register {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Register{seller: seller, out: out, logger: logger}
}

// Run processes lines from in until EOF, "q" or ctx is done. Lines are read
// on a separate goroutine so a cancelled ctx returns at once even while the
// reader is blocked waiting for a scan.
func (r *Register) Run(ctx context.Context, in io.Reader) (ViewState, error) {
	state := ViewState{}
	lines, readErr := readLines(ctx, in)

	r.printf("Escanee un código para vender (q para salir)\n")
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case raw, ok := <-lines:
			if !ok {
				return state, <-readErr
			}
			line := strings.TrimSpace(raw)
			if line == "q" {
				return state, nil
			}
			r.Step(ctx, &state, line)
		}
	}
}

// readLines feeds the lines of in into the returned channel and closes it
// at EOF, after sending the scanner error.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// Step applies one input line to state.
func (r *Register) Step(ctx context.Context, state *ViewState, line string) {
	state.Input = line
	if line == "" {
		return
	}

	if state.Pending != nil {
		r.confirm(ctx, state, line)
		return
	}

	view, err := r.seller.LookupBarcode(ctx, line)
	if err != nil {
		if errors.Is(err, pos.ErrProductNotFound) {
			r.printf("⚠ Producto no encontrado: %s\n", line)
		} else {
			r.printf("Error: %v\n", err)
		}
		state.Reset()
		return
	}

	state.Pending = view
	r.printf("Venta: %s\n", view.Name)
	r.printf("Stock: %d | Precio: %s\n", view.Stock, view.PriceDisplay)
	r.printf("¿Confirmar venta? [s/N] ")
}

func (r *Register) confirm(ctx context.Context, state *ViewState, answer string) {
	pending := state.Pending
	defer state.Reset()

	switch strings.ToLower(answer) {
	case "s", "si", "sí", "y", "yes":
	default:
		r.printf("Venta cancelada\n")
		return
	}

	sale, err := r.seller.Sell(ctx, pending.ID)
	switch {
	case err == nil:
		r.printf("✅ Venta: %s %s\n", sale.ProductName, pos.FormatCurrency(sale.Total))
	case errors.Is(err, pos.ErrOutOfStock):
		r.printf("Sin stock: %s\n", pending.Name)
	default:
		r.logger.Error("register sale failed", zap.String("product_id", pending.ID), zap.Error(err))
		r.printf("Error: %v\n", err)
	}
}

func (r *Register) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
