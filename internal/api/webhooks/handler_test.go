package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/entitlement"
	"github.com/shopcn/shopcn/internal/payments"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProvider implements payments.Provider with scripted webhook behavior
type fakeProvider struct {
	event      *payments.WebhookEvent
	verifyErr  error
	session    *payments.CheckoutSession
	sessionErr error
}

func (f *fakeProvider) CreateSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) GetSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeProvider) VerifyWebhook(payload []byte, signatureHeader string) (*payments.WebhookEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

func newWebhookRouter(t *testing.T, provider payments.Provider) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reconciler := entitlement.NewReconciler(provider, repositories.NewLedgerRepository(db))
	h := NewHandler(reconciler)

	r := gin.New()
	r.POST("/webhooks/payment", h.PaymentWebhookHandler())
	return mock, r
}

func deliver(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPaymentWebhookHandler_Reconciled(t *testing.T) {
	provider := &fakeProvider{
		event:   &payments.WebhookEvent{Type: "checkout.session.completed", SessionID: "cs_123"},
		session: &payments.CheckoutSession{ID: "cs_123", Status: payments.SessionComplete},
	}
	mock, r := newWebhookRouter(t, provider)

	mock.ExpectExec("UPDATE ledger_entries").
		WithArgs("cs_123", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := deliver(r, []byte(`{}`), "t=1,v1=sig")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["result"] != "reconciled" {
		t.Errorf("expected reconciled, got %q", resp["result"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// The delivery claims completion but the re-fetched session is still open:
// the ledger row is overwritten to unpaid.
func TestPaymentWebhookHandler_OpenSessionReverted(t *testing.T) {
	provider := &fakeProvider{
		event:   &payments.WebhookEvent{Type: "checkout.session.completed", SessionID: "cs_123"},
		session: &payments.CheckoutSession{ID: "cs_123", Status: payments.SessionOpen},
	}
	mock, r := newWebhookRouter(t, provider)

	mock.ExpectExec("UPDATE ledger_entries").
		WithArgs("cs_123", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := deliver(r, []byte(`{}`), "t=1,v1=sig")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["result"] != "reverted" {
		t.Errorf("expected reverted, got %q", resp["result"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPaymentWebhookHandler_InvalidSignature(t *testing.T) {
	provider := &fakeProvider{verifyErr: errors.New("signature mismatch")}
	_, r := newWebhookRouter(t, provider)

	w := deliver(r, []byte(`{}`), "t=1,v1=bad")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPaymentWebhookHandler_UnmatchedSessionAcknowledged(t *testing.T) {
	provider := &fakeProvider{
		event:   &payments.WebhookEvent{Type: "checkout.session.completed", SessionID: "cs_unknown"},
		session: &payments.CheckoutSession{ID: "cs_unknown", Status: payments.SessionComplete},
	}
	mock, r := newWebhookRouter(t, provider)

	mock.ExpectExec("UPDATE ledger_entries").
		WithArgs("cs_unknown", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := deliver(r, []byte(`{}`), "t=1,v1=sig")

	// Unmatched deliveries are acknowledged so the provider stops retrying.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["result"] != "unmatched" {
		t.Errorf("expected unmatched, got %q", resp["result"])
	}
}

func TestPaymentWebhookHandler_IgnoredEventType(t *testing.T) {
	provider := &fakeProvider{
		event: &payments.WebhookEvent{Type: "invoice.paid", SessionID: "cs_123"},
	}
	_, r := newWebhookRouter(t, provider)

	w := deliver(r, []byte(`{}`), "t=1,v1=sig")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["result"] != "ignored" {
		t.Errorf("expected ignored, got %q", resp["result"])
	}
}

func TestPaymentWebhookHandler_ProviderDownAsksForRedelivery(t *testing.T) {
	provider := &fakeProvider{
		event:      &payments.WebhookEvent{Type: "checkout.session.completed", SessionID: "cs_123"},
		sessionErr: payments.ErrUnavailable,
	}
	_, r := newWebhookRouter(t, provider)

	w := deliver(r, []byte(`{}`), "t=1,v1=sig")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
