package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"geekbudget/internal/backend"
	"geekbudget/internal/cli"
	"geekbudget/internal/config"
	"geekbudget/internal/log"
	"geekbudget/internal/services"
)

var (
	// Backend selection, overriding the environment
	dataBackend string
	dataDir     string
	sqlitePath  string

	currency   string
	showHidden bool
	noColor    bool
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "geekbudget-report",
		Short: "Print budget views in the terminal",
		Long: `geekbudget-report renders the budget matrix and the expense tables
from the configured data backend, and imports seed snapshots into it.

Examples:
  geekbudget-report matrix                          # Current month and the 5 before it
  geekbudget-report matrix --anchor 2024-03 -m 12   # Twelve months ending March 2024
  geekbudget-report tables --sort total --order desc
  geekbudget-report import ./data --backend sqlite  # Load seed files into SQLite`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataBackend, "backend", "",
		fmt.Sprintf("Data backend %v (default from DATA_BACKEND)", backend.GetBackendTypeStrings()))
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "",
		"Seed directory for the memory backend (default from DATA_DIRECTORY)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "db", "",
		"SQLite database path (default from SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&currency, "currency", "c", "",
		"Currency id; empty uses the first currency")
	rootCmd.PersistentFlags().BoolVar(&showHidden, "hidden", false,
		"Include accounts hidden from reports")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable heat colours")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging")
}

// loadConfig applies flag overrides on top of the environment.
func loadConfig() (*config.Config, *log.Logger, error) {
	cfg := config.Load()
	if dataBackend != "" {
		cfg.DataBackend = dataBackend
	}
	if dataDir != "" {
		cfg.DataDirectory = dataDir
	}
	if sqlitePath != "" {
		cfg.SQLiteDBPath = sqlitePath
	}
	if debug {
		cfg.LogLevel = "debug"
	} else if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	logger := cli.SetupLogger(cfg, log.ComponentReport)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openViews builds a view service over the configured backend. The returned
// func releases the backend.
func openViews(ctx context.Context) (*services.ViewService, *backend.BackendResult, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	be, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	svc := services.NewViewService(be.Store, nil, services.ViewServiceConfig{
		CacheSize:           1,
		DefaultWindowMonths: cfg.DefaultWindowMonths,
		DefaultCurrency:     cfg.DefaultCurrency,
	}, logger)
	release := func() {
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	}
	return svc, be, release, nil
}
