package models

import "time"

// LedgerEntry records one purchase of one product by one user.
//
// An entry is created in the pending state (PaymentCompleted=false) when a
// checkout session is opened, keyed by the provider's session ID. The webhook
// reconciler flips PaymentCompleted to true once the provider confirms the
// session completed. Only completed entries grant install entitlement.
type LedgerEntry struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"product_id"`
	OwnedBy           string    `json:"owned_by"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	PaymentCompleted  bool      `json:"payment_completed"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
