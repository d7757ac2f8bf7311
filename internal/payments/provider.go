// Package payments wraps the payment provider behind a narrow interface so the
// checkout and webhook paths can be tested without network access. The only
// concrete implementation talks to Stripe.
package payments

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the payment provider could not be reached or did
// not answer within the configured timeout. Callers fail closed: no
// entitlement is granted and no ledger state changes on this error.
var ErrUnavailable = errors.New("payment provider unavailable")

// SessionStatus is the provider's authoritative state for a checkout session
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

// CheckoutRequest describes the purchase a session should collect payment for
type CheckoutRequest struct {
	ProductName string
	ProductSlug string
	PriceCents  int64
	Currency    string
	BuyerEmail  string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the provider's handle for an in-flight payment
type CheckoutSession struct {
	ID     string
	URL    string // hosted payment page the buyer is redirected to
	Status SessionStatus
}

// WebhookEvent is a verified event delivered by the provider
type WebhookEvent struct {
	Type      string // e.g. "checkout.session.completed"
	SessionID string
}

// Provider is the payment backend used by checkout and reconciliation
type Provider interface {
	// CreateSession opens a hosted checkout session for the request
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// GetSession re-fetches the authoritative session state. Reconciliation
	// never trusts the webhook body alone; it confirms against this call.
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// VerifyWebhook checks the delivery signature and parses the event
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
