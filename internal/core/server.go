// Package core provides the API chassis for the TradeHax governance core.
// It creates a chi router and enforces the cross-cutting request pipeline --
// panic recovery, request IDs, logging, origin validation, rate limiting,
// admin gating, and identity resolution -- before requests reach the domain
// handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradehax/internal/config"
	"tradehax/internal/gate"
	"tradehax/internal/ratelimit"
)

// Server encapsulates the dependencies of the HTTP surface, allowing for easy
// injection during testing and distinct configuration per environment.
type Server struct {
	Config   *config.Config
	Logger   *slog.Logger
	Limiter  *ratelimit.Limiter
	Identity *gate.Resolver

	// V1RouteRegistrars mount domain handler routes under /v1. Populated by
	// the application entry point; the indirection avoids an import cycle
	// between core and the handler packages.
	V1RouteRegistrars []func(chi.Router)

	// WebhookRegistrars mount provider webhook routes under /webhooks.
	WebhookRegistrars []func(chi.Router)

	router       *chi.Mux
	onStop       []func(context.Context) error
	adminCfg     gate.AdminConfig
	healthProbes []HealthProbe
}

// NewServer initializes the server chassis. The caller mounts routes (via
// MountRoutes) after construction; the separation lets tests customize route
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger, limiter *ratelimit.Limiter, identity *gate.Resolver) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter must not be nil")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity resolver must not be nil")
	}

	return &Server{
		Config:   cfg,
		Logger:   logger,
		Limiter:  limiter,
		Identity: identity,
		router:   chi.NewRouter(),
		adminCfg: gate.AdminConfig{
			AdminKey:      cfg.Security.AdminAPIKey,
			SuperuserCode: cfg.Security.SuperuserCode,
			IsProduction:  cfg.IsProduction(),
		},
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function executed during Shutdown, in
// registration order.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.onStop = append(s.onStop, fn)
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, fn := range s.onStop {
		if err := fn(ctx); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
