package core

import (
	"log/slog"
	"net/http"

	"tradehax/internal/gate"
	"tradehax/internal/types"
)

// HeaderAdminMode echoes the granted admin mode on gated responses.
const HeaderAdminMode = "X-TradeHax-Admin-Mode"

// HeaderWebhookSecret carries the shared secret on webhook deliveries.
const HeaderWebhookSecret = "X-TradeHax-Webhook-Secret"

// RequireAdminAccess gates a route subtree behind the admin credential check.
// On success the granted mode is echoed in X-TradeHax-Admin-Mode and the
// access result is stored in the request context, where the identity resolver
// reads it to permit direct user overrides. Denial is a hard 403 early exit.
func (s *Server) RequireAdminAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access := gate.ResolveAdminAccess(
			r.Header.Get(gate.HeaderAdminKey),
			r.Header.Get(gate.HeaderSuperuserCode),
			s.adminCfg,
		)

		if !access.Allowed {
			s.Logger.Warn("admin access denied",
				slog.String("reason", access.Reason),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(types.ErrCodeAdminUnauthorized, "admin credentials required", nil))
			return
		}

		if access.Mode == types.AdminModeDevFallback {
			s.Logger.Warn("admin access granted via dev fallback; configure ADMIN_API_KEY before deploying")
		}

		w.Header().Set(HeaderAdminMode, string(access.Mode))
		ctx := types.WithAdminAccess(r.Context(), access)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithIdentity resolves the effective user for the request and stores it in
// the context. Must run after RequireAdminAccess on admin-gated routes so the
// resolver can honor admin-permitted overrides. The resolved identifier is
// never empty; anonymous callers get a stable fingerprint-derived id.
func (s *Server) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := s.Identity.Resolve(r, r.URL.Query().Get("user_id"))
		ctx := types.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
