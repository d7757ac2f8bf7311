// issuer.go mints and validates access keys. Install keys are short-lived
// single-use credentials handed to the web app right before an install; CLI
// keys are long-lived credentials created once per developer machine.
package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopcn/shopcn/internal/auth"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/telemetry"
)

// KeyStore is the access key persistence the issuer and authorizer need
type KeyStore interface {
	CreateAccessKey(ctx context.Context, key *models.AccessKey) error
	GetAccessKeysByPrefix(ctx context.Context, keyPrefix string) ([]*models.AccessKey, error)
	ConsumeUse(ctx context.Context, keyID string) (bool, error)
	UpdateLastUsed(ctx context.Context, keyID string) error
}

// IssuerConfig carries the key shape parameters from application configuration
type IssuerConfig struct {
	InstallPrefix string        // e.g. "shopcn"
	InstallTTL    time.Duration // e.g. 5m
	CLIPrefix     string        // e.g. "cli"
}

// IssuedKey pairs the stored key record with its plaintext, which exists only
// in this value and is never persisted.
type IssuedKey struct {
	PlainKey string
	Key      *models.AccessKey
}

// Issuer mints access keys
type Issuer struct {
	keys KeyStore
	cfg  IssuerConfig
}

// NewIssuer creates an Issuer
func NewIssuer(keys KeyStore, cfg IssuerConfig) *Issuer {
	return &Issuer{keys: keys, cfg: cfg}
}

// IssueInstallKey mints a single-use install key that expires after the
// configured TTL
func (i *Issuer) IssueInstallKey(ctx context.Context, userID string) (*IssuedKey, error) {
	return i.issue(ctx, userID, models.ScopeInstall, i.cfg.InstallPrefix, i.cfg.InstallTTL)
}

// IssueCLIKey mints a CLI key with no expiry
func (i *Issuer) IssueCLIKey(ctx context.Context, userID string) (*IssuedKey, error) {
	return i.issue(ctx, userID, models.ScopeCLI, i.cfg.CLIPrefix, 0)
}

func (i *Issuer) issue(ctx context.Context, userID string, scope models.KeyScope, prefix string, ttl time.Duration) (*IssuedKey, error) {
	plainKey, hash, displayPrefix, err := auth.GenerateAccessKey(prefix)
	if err != nil {
		return nil, err
	}

	key := &models.AccessKey{
		UserID:        userID,
		KeyHash:       hash,
		KeyPrefix:     displayPrefix,
		Scope:         scope,
		RemainingUses: 1,
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		key.ExpiresAt = &expires
	}

	if err := i.keys.CreateAccessKey(ctx, key); err != nil {
		return nil, err
	}

	telemetry.AccessKeysIssuedTotal.WithLabelValues(string(scope)).Inc()
	slog.Info("access key issued", "scope", scope, "user_id", userID, "key_id", key.ID)

	return &IssuedKey{PlainKey: plainKey, Key: key}, nil
}

// ValidateKey resolves a raw key to its stored record. It checks the scope
// prefix, narrows candidates by display prefix, runs the bcrypt comparison
// against each candidate, and rejects expired and exhausted keys. The
// authorizer's atomic ConsumeUse remains the authority for the final use
// under concurrent requests.
func (i *Issuer) ValidateKey(ctx context.Context, rawKey string, scope models.KeyScope) (*models.AccessKey, error) {
	prefix := i.cfg.InstallPrefix
	if scope == models.ScopeCLI {
		prefix = i.cfg.CLIPrefix
	}
	if !auth.HasKeyPrefix(rawKey, prefix) {
		return nil, ErrInvalidKey
	}

	candidates, err := i.keys.GetAccessKeysByPrefix(ctx, auth.DisplayPrefix(rawKey))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, k := range candidates {
		if k.Scope != scope {
			continue
		}
		if !auth.ValidateAccessKey(rawKey, k.KeyHash) {
			continue
		}
		if k.IsExpired(now) {
			return nil, ErrInvalidKey
		}
		if k.RemainingUses <= 0 {
			return nil, ErrInvalidKey
		}
		return k, nil
	}

	return nil, ErrInvalidKey
}
