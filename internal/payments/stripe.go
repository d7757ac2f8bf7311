// stripe.go implements Provider against the Stripe hosted checkout API.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider talks to Stripe's checkout session and webhook APIs
type StripeProvider struct {
	sc             *client.API
	webhookSecret  string
	requestTimeout time.Duration
}

// NewStripeProvider creates a StripeProvider with its own API client
func NewStripeProvider(secretKey, webhookSecret string, requestTimeout time.Duration) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{
		sc:             sc,
		webhookSecret:  webhookSecret,
		requestTimeout: requestTimeout,
	}
}

// CreateSession opens a hosted checkout session for a single product
func (p *StripeProvider) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"product_slug": req.ProductSlug,
		},
	}
	if req.BuyerEmail != "" {
		params.CustomerEmail = stripe.String(req.BuyerEmail)
	}
	params.Context = ctx

	s, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeErr(err)
	}

	return &CheckoutSession{
		ID:     s.ID,
		URL:    s.URL,
		Status: mapSessionStatus(s.Status),
	}, nil
}

// GetSession re-fetches a session's authoritative state from Stripe
func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripeErr(err)
	}

	return &CheckoutSession{
		ID:     s.ID,
		URL:    s.URL,
		Status: mapSessionStatus(s.Status),
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header and parses the event body
func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	ev := &WebhookEvent{Type: string(event.Type)}

	// Checkout events embed the session object; only its ID matters because
	// reconciliation re-fetches the session anyway.
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err == nil {
		ev.SessionID = session.ID
	}

	return ev, nil
}

// classifyStripeErr maps transport-level failures to ErrUnavailable so callers
// can fail closed, keeping genuine API rejections (bad request, invalid key)
// distinguishable.
func classifyStripeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	// Anything that is not a structured Stripe error is a transport failure.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func mapSessionStatus(s stripe.CheckoutSessionStatus) SessionStatus {
	switch s {
	case stripe.CheckoutSessionStatusComplete:
		return SessionComplete
	case stripe.CheckoutSessionStatusExpired:
		return SessionExpired
	default:
		return SessionOpen
	}
}
