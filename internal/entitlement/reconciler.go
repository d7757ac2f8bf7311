// reconciler.go processes payment webhook deliveries. A delivery is only a
// hint: the reconciler re-fetches the session from the provider and overwrites
// the ledger entry with that answer alone, paid or unpaid.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopcn/shopcn/internal/payments"
	"github.com/shopcn/shopcn/internal/telemetry"
)

// CompletionLedger is the ledger write the reconciler needs
type CompletionLedger interface {
	MarkCompletedBySession(ctx context.Context, sessionID string, completed bool) (bool, error)
}

// ReconcileResult describes how a webhook delivery was handled
type ReconcileResult string

const (
	// ResultReconciled means a ledger entry was marked paid
	ResultReconciled ReconcileResult = "reconciled"
	// ResultIgnored means the event type was not actionable
	ResultIgnored ReconcileResult = "ignored"
	// ResultReverted means the provider reported the session as not complete
	// and the matching ledger entry was overwritten to unpaid
	ResultReverted ReconcileResult = "reverted"
	// ResultUnmatched means the session references no known checkout
	ResultUnmatched ReconcileResult = "unmatched"
)

// sessionCompletedEvent is the only event type that grants entitlement
const sessionCompletedEvent = "checkout.session.completed"

// Reconciler applies verified payment events to the purchase ledger
type Reconciler struct {
	provider payments.Provider
	ledger   CompletionLedger
}

// NewReconciler creates a Reconciler
func NewReconciler(provider payments.Provider, ledger CompletionLedger) *Reconciler {
	return &Reconciler{provider: provider, ledger: ledger}
}

// HandleDelivery verifies and processes one raw webhook delivery.
//
// Deliveries are at-least-once: replays of a completed session run the same
// overwrite and converge on the same ledger state. A provider outage during
// the authoritative re-fetch returns payments.ErrUnavailable so the caller
// can ask the provider to redeliver later.
func (r *Reconciler) HandleDelivery(ctx context.Context, payload []byte, signatureHeader string) (ReconcileResult, error) {
	event, err := r.provider.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		telemetry.WebhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != sessionCompletedEvent {
		telemetry.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		slog.Debug("webhook event ignored", "type", event.Type)
		return ResultIgnored, nil
	}

	if event.SessionID == "" {
		telemetry.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		slog.Warn("completed-session event carried no session ID")
		return ResultIgnored, nil
	}

	// Never trust the delivery body: confirm the session state with the provider.
	session, err := r.provider.GetSession(ctx, event.SessionID)
	if err != nil {
		telemetry.WebhookEventsTotal.WithLabelValues("provider_error").Inc()
		return "", err
	}

	// The ledger mirrors whatever state the provider reports. Writing an
	// explicit false for a non-complete session clears any earlier optimistic
	// or out-of-order completion.
	completed := session.Status == payments.SessionComplete

	matched, err := r.ledger.MarkCompletedBySession(ctx, event.SessionID, completed)
	if err != nil {
		return "", err
	}
	if !matched {
		telemetry.WebhookEventsTotal.WithLabelValues("unmatched").Inc()
		slog.Warn("webhook session matches no ledger entry", "session_id", event.SessionID)
		return ResultUnmatched, nil
	}

	if !completed {
		telemetry.WebhookEventsTotal.WithLabelValues("reverted").Inc()
		slog.Warn("completed-session event for non-complete session",
			"session_id", event.SessionID, "status", session.Status)
		return ResultReverted, nil
	}

	telemetry.WebhookEventsTotal.WithLabelValues("reconciled").Inc()
	slog.Info("purchase reconciled", "session_id", event.SessionID)
	return ResultReconciled, nil
}
