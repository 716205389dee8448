package core

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"tradehax/internal/types"
)

// OriginGuard validates the Origin (or, failing that, Referer) header of
// browser-originated requests against the trusted origin set: the service's
// own public URL plus the configured allow-list.
//
// Requests carrying neither header pass: non-browser clients (curl, SDKs,
// server-to-server calls) send no Origin, and blocking them would break every
// programmatic integration. A present-but-untrusted origin is rejected with
// 403 origin_untrusted.
func (s *Server) OriginGuard(next http.Handler) http.Handler {
	trusted := trustedOriginSet(s.Config.Server.PublicURL, s.Config.Security.TrustedOrigins)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claimed := r.Header.Get("Origin")
		if claimed == "" {
			claimed = r.Header.Get("Referer")
		}
		if claimed == "" {
			next.ServeHTTP(w, r)
			return
		}

		origin := normalizeOrigin(claimed)
		if _, ok := trusted[origin]; ok {
			next.ServeHTTP(w, r)
			return
		}

		s.Logger.Warn("request from untrusted origin rejected",
			slog.String("origin", claimed),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeOriginUntrusted,
			"request origin is not trusted",
			nil,
			map[string]any{"origin": claimed},
		))
	})
}

// trustedOriginSet builds the normalized set of trusted origins.
func trustedOriginSet(publicURL string, allowList []string) map[string]struct{} {
	set := make(map[string]struct{}, len(allowList)+1)
	if o := normalizeOrigin(publicURL); o != "" {
		set[o] = struct{}{}
	}
	for _, raw := range allowList {
		if o := normalizeOrigin(raw); o != "" {
			set[o] = struct{}{}
		}
	}
	return set
}

// normalizeOrigin reduces a URL to its comparable scheme://host[:port] form,
// lowercased, with default ports stripped. Returns empty for unparseable
// values, which never match the trusted set.
func normalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	// Strip the default port for the scheme.
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	return scheme + "://" + host
}
