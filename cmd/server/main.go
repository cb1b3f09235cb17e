package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invoisku/api/internal/compliance"
	"github.com/invoisku/api/internal/config"
	"github.com/invoisku/api/internal/database"
	apihandlers "github.com/invoisku/api/internal/handlers/api"
	"github.com/invoisku/api/internal/jobs"
	"github.com/invoisku/api/internal/middleware"
	"github.com/invoisku/api/internal/services/invoice"
	"github.com/invoisku/api/internal/services/organization"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	// Connect to database
	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("database connected")

	// Run migrations
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete")

	// Validation engine with configured scoring weights
	engine := compliance.NewEngine(compliance.DefaultCatalog(), compliance.Weights{
		Error:   cfg.Compliance.ErrorWeight,
		Warning: cfg.Compliance.WarningWeight,
		Info:    cfg.Compliance.InfoWeight,
	})

	// Initialize services
	organizationSvc := organization.NewService(pool, logger)
	invoiceSvc := invoice.NewService(pool, engine, logger)

	// Initialize handlers
	organizationHandler := apihandlers.NewOrganizationHandler(organizationSvc, logger)
	invoiceHandler := apihandlers.NewInvoiceHandler(invoiceSvc, cfg.BaseURL, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", apihandlers.Health)
	organizationHandler.RegisterRoutes(mux)
	invoiceHandler.RegisterRoutes(mux)

	// Apply middleware stack (CORS, rate limiting, logging, recovery)
	var chain http.Handler = mux
	chain = middleware.CORS(cfg.BaseURL)(chain)
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.RateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)(chain)
	chain = middleware.Recover(logger)(chain)
	chain = middleware.RequestLogger(logger)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the nightly revalidation job
	revalidator := jobs.NewRevalidator(invoiceSvc, cfg.Compliance, logger)
	if cfg.Compliance.RevalidateEnabled {
		revalidator.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.Compliance.RevalidateEnabled {
		revalidator.Stop()
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
