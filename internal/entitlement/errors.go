// Package entitlement implements the install-time purchase check: key
// issuance, the ordered authorization decision that gates artifact downloads,
// and webhook-driven reconciliation of the purchase ledger.
package entitlement

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the authorizer and reconciler. HTTP handlers
// map these to status codes; everything else is a 500.
var (
	// ErrInvalidKey covers unknown, expired, wrong-scope, and exhausted keys.
	// Callers deliberately cannot distinguish those cases.
	ErrInvalidKey = errors.New("invalid access key")

	// ErrNotFound covers missing products, unpublished products, and products
	// without an attached artifact.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the key's owner holds no completed purchase of the product
	ErrForbidden = errors.New("product not purchased")

	// ErrConflict means the buyer already owns the product
	ErrConflict = errors.New("product already purchased")

	// ErrInvalidSignature means a webhook delivery failed signature verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// errKeyExhausted wraps ErrInvalidKey so metrics can count exhausted keys
// separately while clients still see a generic invalid-key rejection.
var errKeyExhausted = fmt.Errorf("%w: no remaining uses", ErrInvalidKey)
