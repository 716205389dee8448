// Package gate implements the privileged-access gate and per-request identity
// resolution for the TradeHax governance core.
package gate

import (
	"crypto/subtle"

	"tradehax/internal/types"
)

// Credential header names checked by the admin gate.
const (
	HeaderAdminKey      = "X-TradeHax-Admin-Key"
	HeaderSuperuserCode = "X-TradeHax-Superuser-Code"
)

// AdminConfig holds the configured secrets and runtime mode for the gate.
type AdminConfig struct {
	AdminKey      types.SecretString
	SuperuserCode types.SecretString
	IsProduction  bool
}

// ResolveAdminAccess compares the supplied credential header values against
// the configured secrets and returns the access verdict.
//
// Each credential is compared independently with a constant-time comparison:
// the length is checked first, then the full value is compared regardless of
// where a mismatch occurs. A dev fallback grants access only when NEITHER
// secret is configured and the runtime is non-production -- configuring
// either secret disables the fallback everywhere, including local dev.
func ResolveAdminAccess(adminKeyHeader, superuserHeader string, cfg AdminConfig) types.AdminAccessResult {
	if secretMatches(adminKeyHeader, cfg.AdminKey) {
		return types.AdminAccessResult{Allowed: true, Mode: types.AdminModeKey}
	}
	if secretMatches(superuserHeader, cfg.SuperuserCode) {
		return types.AdminAccessResult{Allowed: true, Mode: types.AdminModeSuperuserCode}
	}

	if !cfg.AdminKey.IsSet() && !cfg.SuperuserCode.IsSet() {
		if !cfg.IsProduction {
			return types.AdminAccessResult{Allowed: true, Mode: types.AdminModeDevFallback}
		}
		return types.AdminAccessResult{Allowed: false, Reason: "admin access not configured"}
	}

	return types.AdminAccessResult{Allowed: false, Reason: "invalid admin credentials"}
}

// secretMatches performs the constant-time credential comparison. An
// unconfigured secret or empty candidate never matches.
// subtle.ConstantTimeCompare returns 0 immediately on length mismatch and
// otherwise examines every byte, which is exactly the contract required here.
func secretMatches(candidate string, secret types.SecretString) bool {
	if !secret.IsSet() || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret.Unmask())) == 1
}
