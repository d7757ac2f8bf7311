// authorizer.go implements the ordered install decision. The check sequence is
// part of the public contract: clients rely on the distinction between an
// invalid key (401), an unknown or unpublished product (404), and a missing
// purchase (403).
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/shopcn/shopcn/internal/auth"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/telemetry"
)

// ProductStore is the product lookup the authorizer needs
type ProductStore interface {
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
}

// ArtifactStore is the artifact lookup the authorizer needs
type ArtifactStore interface {
	GetArtifactByProductID(ctx context.Context, productID string) (*models.RegistryArtifact, error)
}

// EntitlementLedger is the purchase check the authorizer needs
type EntitlementLedger interface {
	HasCompletedPurchase(ctx context.Context, productID, userID string) (bool, error)
}

// Authorizer decides whether an install request may download an artifact
type Authorizer struct {
	issuer    *Issuer
	products  ProductStore
	artifacts ArtifactStore
	ledger    EntitlementLedger
}

// NewAuthorizer creates an Authorizer
func NewAuthorizer(issuer *Issuer, products ProductStore, artifacts ArtifactStore, ledger EntitlementLedger) *Authorizer {
	return &Authorizer{
		issuer:    issuer,
		products:  products,
		artifacts: artifacts,
		ledger:    ledger,
	}
}

// Authorize runs the ordered install checks for a product slug and a raw
// install key. On success it consumes one use of the key and returns the
// artifact payload verbatim.
//
// Check order: key shape, product existence and published state, key
// validity, completed purchase, use consumption, artifact presence. The
// atomic consumption step guarantees a single-use key admits exactly one of
// any number of concurrent installs.
func (a *Authorizer) Authorize(ctx context.Context, slug, rawKey string) (json.RawMessage, error) {
	// Shape-only rejection happens before any lookup: a key without the
	// install prefix can never validate, so it is refused immediately.
	if !auth.HasKeyPrefix(rawKey, a.issuer.cfg.InstallPrefix) {
		telemetry.InstallDecisionsTotal.WithLabelValues("invalid_key").Inc()
		return nil, ErrInvalidKey
	}

	product, err := a.products.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsPublished {
		telemetry.InstallDecisionsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	key, err := a.issuer.ValidateKey(ctx, rawKey, models.ScopeInstall)
	if errors.Is(err, ErrInvalidKey) {
		telemetry.InstallDecisionsTotal.WithLabelValues("invalid_key").Inc()
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, err
	}

	owned, err := a.ledger.HasCompletedPurchase(ctx, product.ID, key.UserID)
	if err != nil {
		return nil, err
	}
	if !owned {
		telemetry.InstallDecisionsTotal.WithLabelValues("forbidden").Inc()
		slog.Info("install denied: no completed purchase",
			"slug", slug, "user_id", key.UserID)
		return nil, ErrForbidden
	}

	consumed, err := a.issuer.keys.ConsumeUse(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		telemetry.InstallDecisionsTotal.WithLabelValues("exhausted").Inc()
		return nil, errKeyExhausted
	}

	artifact, err := a.artifacts.GetArtifactByProductID(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		telemetry.InstallDecisionsTotal.WithLabelValues("no_artifact").Inc()
		slog.Warn("published product has no artifact", "slug", slug, "product_id", product.ID)
		return nil, ErrNotFound
	}

	telemetry.InstallDecisionsTotal.WithLabelValues("granted").Inc()
	telemetry.ArtifactDownloadsTotal.WithLabelValues(slug).Inc()

	return artifact.Payload, nil
}
