package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

var (
	flagOwner   string
	flagMonth   string
	flagTimeout time.Duration
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:           "fintrackctl",
	Short:         "Administer a fintrack deployment",
	Long:          "Run migrations, repair derived budget and goal figures, inspect alerts and backfill the expense ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOwner, "owner", "o", "", "Owner id to operate on")
	rootCmd.PersistentFlags().StringVarP(&flagMonth, "month", "m", "", "Month as YYYY-MM (default: current month)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "Overall command timeout")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

// env is what every command works on.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
	svc     *backend.Services
}

func (e *env) Close() {
	if e.backend != nil && e.backend.Cleanup != nil {
		if err := e.backend.Cleanup(); err != nil {
			e.logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}
}

// open loads configuration and opens the backend. SQL backends apply
// pending migrations as they open.
func open(ctx context.Context, withLedger bool) (*env, error) {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flagQuiet {
		level = "error"
	}
	logger := cli.SetupLogger(level, log.ComponentApp)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc.WithLedger = withLedger && bc.WithLedger
	// Admin commands never announce changes.
	bc.AMQPURL = ""

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	settings, err := backend.SettingsFromAppConfig(cfg)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	return &env{
		cfg:     cfg,
		logger:  logger,
		backend: res,
		svc:     backend.NewServices(res, settings, logger),
	}, nil
}

func requireOwner() error {
	if flagOwner == "" {
		return errors.New("--owner is required")
	}
	return nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), flagTimeout)
}
