package gate

import (
	"net/http/httptest"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehax/internal/types"
)

// signSessionToken builds an HS256 session token for tests.
func signSessionToken(t *testing.T, key []byte, subject, email string) string {
	t.Helper()
	builder := jwt.NewBuilder()
	if subject != "" {
		builder = builder.Subject(subject)
	}
	if email != "" {
		builder = builder.Claim("email", email)
	}
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestResolve_DirectOverrideAllowedByFlag(t *testing.T) {
	rs := NewResolver(TrustPolicy{AllowOverride: true, IsProduction: true}, nil, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	got := rs.Resolve(r, "Trader_One")

	assert.Equal(t, "trader_one", got)
}

func TestResolve_DirectOverrideViaHeader(t *testing.T) {
	rs := NewResolver(TrustPolicy{AllowOverride: false, IsProduction: false}, nil, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	r.Header.Set(HeaderUserOverride, "HeaderUser!!")
	got := rs.Resolve(r, "")

	assert.Equal(t, "headeruser", got)
}

func TestResolve_DirectOverrideDeniedInProduction(t *testing.T) {
	rs := NewResolver(TrustPolicy{AllowOverride: false, IsProduction: true}, nil, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	r.Header.Set(HeaderUserOverride, "attacker")
	r.RemoteAddr = "203.0.113.7:55110"
	got := rs.Resolve(r, "victim")

	// Without a session or admin access, production falls through to the
	// anonymous fingerprint -- the direct claim is untrusted.
	assert.NotEqual(t, "victim", got)
	assert.NotEqual(t, "attacker", got)
	assert.Contains(t, got, "anon_")
}

func TestResolve_AdminAccessPermitsDirectInProduction(t *testing.T) {
	rs := NewResolver(TrustPolicy{AllowOverride: false, IsProduction: true}, nil, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	ctx := types.WithAdminAccess(r.Context(), types.AdminAccessResult{Allowed: true, Mode: types.AdminModeKey})
	r = r.WithContext(ctx)

	got := rs.Resolve(r, "support-target")
	assert.Equal(t, "support-target", got)
}

func TestResolve_SessionSubjectWins(t *testing.T) {
	key := []byte("session-signing-key-0123456789ab")
	rs := NewResolver(TrustPolicy{AllowOverride: false, IsProduction: true}, key, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	r.Header.Set("Authorization", "Bearer "+signSessionToken(t, key, "User-42", ""))
	got := rs.Resolve(r, "")

	assert.Equal(t, "acct_user-42", got)
}

func TestResolve_SessionEmailClaimFallback(t *testing.T) {
	key := []byte("session-signing-key-0123456789ab")
	rs := NewResolver(TrustPolicy{IsProduction: true}, key, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	r.Header.Set("Authorization", "Bearer "+signSessionToken(t, key, "", "Trader@Example.com"))
	got := rs.Resolve(r, "")

	assert.Equal(t, "acct_traderexamplecom", got)
}

func TestResolve_BadSignatureFallsThrough(t *testing.T) {
	key := []byte("session-signing-key-0123456789ab")
	other := []byte("a-completely-different-key-xxxxx")
	rs := NewResolver(TrustPolicy{IsProduction: true}, key, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	r.Header.Set("Authorization", "Bearer "+signSessionToken(t, other, "user-42", ""))
	r.RemoteAddr = "198.51.100.9:40000"
	got := rs.Resolve(r, "")

	assert.Contains(t, got, "anon_")
}

func TestResolve_UnverifiedParseWithoutSessionKey(t *testing.T) {
	// No session key configured: tokens are parsed without verification.
	rs := NewResolver(TrustPolicy{IsProduction: true}, nil, nil)

	r := httptest.NewRequest("GET", "/v1/usage", nil)
	r.Header.Set("Authorization", "Bearer "+signSessionToken(t, []byte("whatever-key-works-here-000000"), "subject-x", ""))
	got := rs.Resolve(r, "")

	assert.Equal(t, "acct_subject-x", got)
}

func TestResolve_AnonymousFingerprintStable(t *testing.T) {
	rs := NewResolver(TrustPolicy{IsProduction: true}, nil, nil)

	build := func(addr, ua, lang string) string {
		r := httptest.NewRequest("GET", "/v1/usage", nil)
		r.RemoteAddr = addr
		r.Header.Set("User-Agent", ua)
		r.Header.Set("Accept-Language", lang)
		return rs.Resolve(r, "")
	}

	a := build("203.0.113.7:1000", "haxclient/2.1", "en-US")
	b := build("203.0.113.7:2000", "haxclient/2.1", "en-US")
	assert.Equal(t, a, b, "same fingerprint triple yields the same id (port is not part of the triple)")

	c := build("203.0.113.7:1000", "haxclient/2.2", "en-US")
	assert.NotEqual(t, a, c, "a single differing header yields a different id")

	d := build("203.0.113.8:1000", "haxclient/2.1", "en-US")
	assert.NotEqual(t, a, d)
}

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Trader_One", "trader_one"},
		{"  user-1  ", "user-1"},
		{"weird!!chars##", "weirdchars"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeUserID(tt.in), "input %q", tt.in)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, SanitizeUserID(string(long)), maxUserIDLength)
}

func TestCallerAddress(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:33000"
	assert.Equal(t, "192.0.2.10", CallerAddress(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.44, 10.0.0.1")
	assert.Equal(t, "203.0.113.44", CallerAddress(r), "first forwarded entry wins")

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ""
	assert.Equal(t, "unknown", CallerAddress(r))
}
