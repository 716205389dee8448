package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"tradehax/internal/types"
)

// HeaderUserOverride is the header carrying a directly supplied user
// identifier. It is honored only when the trust policy allows override.
const HeaderUserOverride = "X-TradeHax-User"

// maxUserIDLength caps sanitized identifiers.
const maxUserIDLength = 64

// TrustPolicy determines whether a caller-supplied identity claim may be
// accepted without session verification.
type TrustPolicy struct {
	// AllowOverride is the configured flag permitting direct client-supplied
	// identity. Without it, direct claims are trusted only outside production
	// or when the caller already passed the admin gate.
	AllowOverride bool
	IsProduction  bool
}

// permitsDirect reports whether a direct identifier may be used for the
// request. hasAdminAccess reflects whether the caller already passed the
// admin gate.
func (p TrustPolicy) permitsDirect(hasAdminAccess bool) bool {
	return p.AllowOverride || !p.IsProduction || hasAdminAccess
}

// Resolver derives a stable per-request user identifier.
//
// Precedence: a directly supplied identifier (body/query field or the
// dedicated header), subject to the trust policy; then a decoded session
// token; then a stable anonymous fingerprint. The ordering means a malicious
// client cannot impersonate another user in production unless they already
// hold a valid session or admin credential.
type Resolver struct {
	policy     TrustPolicy
	sessionKey []byte // HMAC key for session token verification; empty parses unverified
	logger     *slog.Logger
}

// NewResolver creates an identity Resolver. sessionKey may be empty, in which
// case session tokens are parsed without signature verification (matching the
// trust model of anonymous-fingerprint fallback). A nil logger defaults to
// slog.Default.
func NewResolver(policy TrustPolicy, sessionKey []byte, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{policy: policy, sessionKey: sessionKey, logger: logger}
}

// Resolve returns the user identifier for the request. explicitID is the
// candidate identifier from the request body or query string; the dedicated
// override header is also consulted. The result is never empty.
func (rs *Resolver) Resolve(r *http.Request, explicitID string) string {
	_, hasAdmin := types.GetAdminAccess(r.Context())

	if rs.policy.permitsDirect(hasAdmin) {
		if id := SanitizeUserID(explicitID); id != "" {
			return id
		}
		if id := SanitizeUserID(r.Header.Get(HeaderUserOverride)); id != "" {
			return id
		}
	}

	if id := rs.resolveSession(r); id != "" {
		return id
	}

	return AnonymousID(CallerAddress(r), r.Header.Get("User-Agent"), r.Header.Get("Accept-Language"))
}

// resolveSession decodes a Bearer session token and derives acct_<subject>.
// Returns empty when no usable token is present.
func (rs *Resolver) resolveSession(r *http.Request) string {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return ""
	}

	var (
		tok jwt.Token
		err error
	)
	if len(rs.sessionKey) > 0 {
		tok, err = jwt.Parse([]byte(token), jwt.WithKey(jwa.HS256, rs.sessionKey), jwt.WithValidate(false))
	} else {
		tok, err = jwt.ParseInsecure([]byte(token))
	}
	if err != nil {
		rs.logger.Debug("session token rejected", "error", err)
		return ""
	}

	subject := tok.Subject()
	if subject == "" {
		if email, ok := tok.Get("email"); ok {
			if s, ok := email.(string); ok {
				subject = s
			}
		}
	}
	if sanitized := SanitizeUserID(subject); sanitized != "" {
		return "acct_" + sanitized
	}
	return ""
}

// SanitizeUserID lowercases the input, strips every character outside
// [a-z0-9_-], and caps the length. Returns empty for inputs that leave no
// usable characters.
func SanitizeUserID(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, c := range raw {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			b.WriteRune(c)
		}
		if b.Len() >= maxUserIDLength {
			break
		}
	}
	return b.String()
}

// AnonymousID derives a stable anonymous identifier from the caller's
// network fingerprint. Identical (address, user-agent, accept-language)
// triples yield identical identifiers.
func AnonymousID(addr, userAgent, acceptLanguage string) string {
	sum := sha256.Sum256([]byte(addr + "|" + userAgent + "|" + acceptLanguage))
	return "anon_" + hex.EncodeToString(sum[:])[:16]
}

// CallerAddress extracts the caller's address from the request: the first
// entry of X-Forwarded-For when present (the original client behind a
// proxy), otherwise the RemoteAddr host. Returns "unknown" when neither
// yields a usable value.
func CallerAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr == "" {
		return "unknown"
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may not carry a port (e.g., in tests).
		return r.RemoteAddr
	}
	return ip
}

// bearerToken parses an Authorization header value and returns the token.
// Expects "Bearer <token>" with a case-insensitive scheme per RFC 7235.
func bearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
