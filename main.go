package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"api_pos/internal/platform/config"
	"api_pos/internal/platform/logger"
	"api_pos/internal/pos"
	"api_pos/internal/store"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "pos",
		Short:         "Point of sale and inventory for the phone shop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file (env vars override it)")

	root.AddCommand(
		newServeCmd(a),
		newRegisterCmd(a),
		newSellCmd(a),
		newStockInCmd(a),
		newAlertsCmd(a),
		newReportCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// openService opens the configured store and builds the pos service on top.
func (a *app) openService(ctx context.Context) (*pos.Service, func() error, error) {
	storage, closeFn, err := store.Open(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	loc, err := a.cfg.Location()
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	svc := pos.NewService(storage, a.logger,
		pos.WithLowStockThreshold(a.cfg.LowStockThreshold),
		pos.WithLocation(loc),
	)
	return svc, closeFn, nil
}
