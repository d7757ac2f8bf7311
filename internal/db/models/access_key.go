package models

import "time"

// KeyScope identifies what an access key is good for.
//
// Install keys are minted by the web app for a single component install: they
// expire minutes after issuance and carry exactly one use, consumed atomically
// when an install is authorized. CLI keys are long-lived credentials pasted
// into the developer's machine during `login`; they never expire and their
// remaining use count is not consumed by CLI authentication.
type KeyScope string

const (
	ScopeInstall KeyScope = "install"
	ScopeCLI     KeyScope = "cli"
)

// AccessKey represents a bearer credential issued to a user
type AccessKey struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	KeyHash       string     `json:"-"`          // Bcrypt hash of the full key
	KeyPrefix     string     `json:"key_prefix"` // First 10 chars for display and candidate lookup (e.g., "shopcn_ab1")
	Scope         KeyScope   `json:"scope"`      // "install" or "cli"
	RemainingUses int        `json:"remaining_uses"`
	ExpiresAt     *time.Time `json:"expires_at"` // nil for CLI keys
	LastUsedAt    *time.Time `json:"last_used_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsExpired returns true when the key carries an expiry that has passed.
func (k *AccessKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
