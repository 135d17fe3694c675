package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"api_pos/api"
	"api_pos/internal/alerts"
	"api_pos/internal/pos"
	"api_pos/internal/register"
	"api_pos/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the low-stock watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, closeStore, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if !a.cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			r := gin.New()
			r.Use(gin.Recovery())
			api.InitRoutes(r, svc, a.logger)

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			watcher := alerts.NewWatcher(svc, a.cfg.LowStockThreshold, a.cfg.AlertInterval, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("error trying to start server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
				defer cancel()
				a.logger.Info("shutting down http server")
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				return watcher.Run(gctx)
			})
			return g.Wait()
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Interactive scan-and-sell register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			svc, closeStore, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			_, err = register.New(svc, cmd.OutOrStdout(), a.logger).Run(ctx, cmd.InOrStdin())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newSellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <barcode>",
		Short: "Sell one unit of the product behind a barcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			sale, err := svc.SellByBarcode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Venta: %s %s (%s)\n", sale.ProductName, pos.FormatCurrency(sale.Total), sale.ID)
			return nil
		},
	}
}

func newStockInCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stock-in <barcode> <quantity>",
		Short: "Add units to an existing product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: %q", pos.ErrInvalidQuantity, args[1])
			}

			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := svc.StockIn(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stock actualizado: %s = %d\n", p.Name, p.Stock)
			return nil
		},
	}
}

func newAlertsCmd(a *app) *cobra.Command {
	var threshold int

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List products at or below the low-stock threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if threshold < 0 {
				threshold = svc.LowStockThreshold()
			}
			low, err := svc.LowStockProducts(cmd.Context(), threshold)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(low) == 0 {
				fmt.Fprintln(out, "Sin alertas de stock")
				return nil
			}
			fmt.Fprintf(out, "⚠️ %d productos con stock <= %d\n", len(low), threshold)
			for _, p := range low {
				fmt.Fprintf(out, "- %s: %d\n", p.Name, p.Stock)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", -1, "low-stock threshold (default: configured value)")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "report [today|month]",
		Short:     "Summarize the sales of today or of the current month",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(pos.PeriodToday), string(pos.PeriodMonth)},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			period, err := pos.ParsePeriod(raw)
			if err != nil {
				return err
			}

			svc, closeStore, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			summary, err := svc.SalesSummary(cmd.Context(), period)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summary.Lines) == 0 {
				fmt.Fprintln(out, "No hay ventas en el período")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCTO\tCANTIDAD\tTOTAL")
			for _, line := range summary.Lines {
				fmt.Fprintf(w, "%s\t%d\t%s\n", line.ProductName, line.Quantity, pos.FormatCurrency(line.Total))
			}
			fmt.Fprintf(w, "TOTAL\t%d\t%s\n", summary.Quantity, pos.FormatCurrency(summary.TotalAmount))
			return w.Flush()
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the products and sales tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.Migrate(cmd.Context(), a.cfg.Store, a.logger); err != nil {
				return err
			}
			a.logger.Info("schema up to date", zap.String("driver", a.cfg.Store.Driver))
			return nil
		},
	}
}
