package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	res, svc := cli.InitBackend(context.Background(), logger, cfg, false)

	verifier, err := auth.FromConfig(cfg.AuthMode, cfg.AuthTokens)
	if err != nil {
		logger.Error("Invalid auth configuration", log.FieldError, err)
		os.Exit(1)
	}
	clientIP, err := security.NewClientIP(security.ParseCIDRList(cfg.TrustedProxies)...)
	if err != nil {
		logger.Error("Invalid trusted proxies", log.FieldError, err)
		os.Exit(1)
	}

	checks := map[string]func(context.Context) error{}
	if p, ok := res.Store.(interface{ Ping(context.Context) error }); ok {
		checks["storage"] = p.Ping
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Verifier: verifier,
		Limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit,
			Window:            time.Minute,
		}),
		ClientIP: clientIP,
		Logger:   logger,
		Checks:   checks,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16

	svc.Caches.StartCleanup(5 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		svc.Caches.Stop()
		if err := svc.Expenses.Close(); err != nil {
			logger.Warn("Failed to close change publisher", log.FieldError, err)
		}
		if err := res.Store.Close(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_mode", cfg.AuthMode,
		"publisher", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
