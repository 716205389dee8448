package core

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes defines the top-level routing hierarchy: the global middleware
// chain, the /v1 API group, the /webhooks group, and the health check.
//
// Ordering rationale for the global chain:
//  1. Recoverer       - outermost, catches all panics.
//  2. RequestID       - correlation ID for every log line after it.
//  3. SecurityHeaders - present on all responses including errors.
//  4. RequestLogger   - structured logging with redacted headers.
//  5. OriginGuard     - browser origin validation before any work.
//
// Rate limiting, admin gating, and identity resolution are per-group: the
// route registrars attach them with the limits appropriate to each endpoint
// class.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.OriginGuard)

	s.router.Route("/v1", s.mountV1)
	s.router.Route("/webhooks", s.mountWebhooks)

	s.router.Get("/health", s.HandleHealth)
}

// mountV1 registers the v1 endpoints via registrars populated by the
// application entry point. The indirection avoids import cycles between core
// and the handler packages.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

// mountWebhooks registers provider webhook endpoints. Webhooks bypass the
// identity resolver; their caller is the billing provider, not a user.
func (s *Server) mountWebhooks(r chi.Router) {
	for _, registrar := range s.WebhookRegistrars {
		registrar(r)
	}
}
