// Package main is the entry point for the TradeHax governance API server.
//
// It loads configuration, builds the domain services (plan catalog,
// subscription store, usage ledger, billing reconciler, checkout resolver),
// wires them into the HTTP chassis, and serves until SIGINT or SIGTERM.
//
// Subscription persistence is optional: when DATABASE_URL is set, records are
// mirrored to PostgreSQL best-effort and the store is warm-started from it at
// boot. Without it the service runs purely in-memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradehax/internal/api/handlers"
	"tradehax/internal/billing"
	"tradehax/internal/config"
	"tradehax/internal/core"
	"tradehax/internal/external"
	"tradehax/internal/gate"
	"tradehax/internal/ratelimit"
	"tradehax/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tradehax governance API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	clock := types.RealClock{}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), clock)
	identity := gate.NewResolver(gate.TrustPolicy{
		AllowOverride: cfg.Identity.AllowOverride,
		IsProduction:  cfg.IsProduction(),
	}, []byte(cfg.Identity.SessionKey.Unmask()), logger)

	srv, err := core.NewServer(cfg, logger, limiter, identity)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Optional PostgreSQL mirror for subscription records.
	var persister billing.Persister
	var loader *billing.PgxPersister
	if cfg.Database.URL.IsSet() {
		pool, err := newPgxPool(cfg)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		srv.OnShutdown(func(context.Context) error {
			pool.Close()
			return nil
		})
		srv.RegisterHealthProbe(&databaseProbe{pool: pool})

		loader = billing.NewPgxPersister(pool)
		persister = loader
		logger.Info("subscription persistence enabled")
	}

	catalog := billing.NewStaticCatalog()
	subs := billing.NewSubscriptionStore(clock, persister, logger)
	ledger := billing.NewUsageLedger(subs, catalog, clock)
	reconciler := billing.NewReconciler(subs, logger)

	if loader != nil {
		warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		records, err := loader.LoadSubscriptions(warmCtx)
		cancel()
		if err != nil {
			logger.Warn("subscription warm-start failed, starting empty", "error", err)
		} else {
			logger.Info("subscription store warmed", "records", subs.Warm(records))
		}
	}

	// Live Stripe sessions are used only when a secret key is configured;
	// otherwise the resolver falls back to the static URL table.
	var sessions billing.SessionCreator
	if cfg.Billing.StripeSecretKey.IsSet() {
		sessions = external.NewStripeClient(&http.Client{Timeout: 15 * time.Second}, external.StripeClientConfig{
			SecretKey:  cfg.Billing.StripeSecretKey,
			Logger:     logger,
			SuccessURL: cfg.Billing.CheckoutSuccessURL,
			CancelURL:  cfg.Billing.CheckoutCancelURL,
			PriceIDs:   cfg.Billing.StripePriceIDs,
		})
	}
	checkout := billing.NewCheckoutResolver(billing.CheckoutConfig{
		URLs:           cfg.Billing.CheckoutURLs,
		AllowSimulated: cfg.Billing.AllowSimulatedCheckout,
		IsProduction:   cfg.IsProduction(),
	}, sessions, logger)

	verifier := &external.SharedSecretVerifier{
		Secret:       cfg.Billing.WebhookSecret,
		IsProduction: cfg.IsProduction(),
	}

	plansHandler := handlers.NewPlansHandler(catalog)
	subHandler := handlers.NewSubscriptionHandler(subs, logger)
	usageHandler := handlers.NewUsageHandler(ledger)
	checkoutHandler := handlers.NewCheckoutHandler(checkout, logger)
	webhookHandler := handlers.NewBillingWebhookHandler(verifier, reconciler, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		// Public class: catalog plus the identity-resolved caller surface.
		r.Group(func(r chi.Router) {
			r.Use(srv.RateLimit("public", cfg.RateLimit.PublicMax, cfg.RateLimit.PublicWindow))
			plansHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(srv.WithIdentity)
				subHandler.RegisterRoutes(r)
				usageHandler.RegisterRoutes(r)
			})
		})

		// Billing class: tighter window around checkout.
		r.Group(func(r chi.Router) {
			r.Use(srv.RateLimit("billing", cfg.RateLimit.BillingMax, cfg.RateLimit.BillingWindow))
			r.Use(srv.WithIdentity)
			checkoutHandler.RegisterRoutes(r)
		})

		// Admin surface. The gate runs before identity resolution so that
		// admin access unlocks the direct user_id override.
		r.Group(func(r chi.Router) {
			r.Use(srv.RateLimit("admin", cfg.RateLimit.BillingMax, cfg.RateLimit.BillingWindow))
			r.Use(srv.RequireAdminAccess)
			r.Use(srv.WithIdentity)
			subHandler.RegisterAdminRoutes(r)
		})
	})

	srv.WebhookRegistrars = append(srv.WebhookRegistrars, func(r chi.Router) {
		r.Use(srv.RateLimit("webhook", cfg.RateLimit.WebhookMax, cfg.RateLimit.WebhookWindow))
		webhookHandler.RegisterRoutes(r)
	})

	srv.MountRoutes()

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newPgxPool builds the PostgreSQL connection pool from configuration.
func newPgxPool(cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// databaseProbe reports database connectivity on /health.
type databaseProbe struct {
	pool *pgxpool.Pool
}

func (p *databaseProbe) Name() string { return "database" }

func (p *databaseProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
