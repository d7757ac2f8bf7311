package entitlement

import (
	"context"
	"sync"

	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/payments"
)

// In-memory fakes for the narrow store interfaces. The key store mimics the
// conditional-decrement semantics of the SQL implementation, including under
// concurrent ConsumeUse calls.

type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]*models.AccessKey
	err  error
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]*models.AccessKey)}
}

func (s *fakeKeyStore) CreateAccessKey(_ context.Context, key *models.AccessKey) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.ID == "" {
		key.ID = "key-" + key.KeyPrefix
	}
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *fakeKeyStore) GetAccessKeysByPrefix(_ context.Context, keyPrefix string) ([]*models.AccessKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AccessKey, 0)
	for _, k := range s.keys {
		if k.KeyPrefix == keyPrefix {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) ConsumeUse(_ context.Context, keyID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok || k.RemainingUses <= 0 {
		return false, nil
	}
	k.RemainingUses--
	return true, nil
}

func (s *fakeKeyStore) UpdateLastUsed(context.Context, string) error { return nil }

type fakeProductStore struct {
	products map[string]*models.Product
}

func (s *fakeProductStore) GetProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	return s.products[slug], nil
}

type fakeArtifactStore struct {
	byProduct map[string]*models.RegistryArtifact
}

func (s *fakeArtifactStore) GetArtifactByProductID(_ context.Context, productID string) (*models.RegistryArtifact, error) {
	return s.byProduct[productID], nil
}

type fakeLedger struct {
	mu        sync.Mutex
	completed map[string]bool // productID|userID
	sessions  map[string]bool // sessionID -> entry exists
	paid      map[string]bool // sessionID -> last written payment_completed
	markCalls int
	markErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		completed: make(map[string]bool),
		sessions:  make(map[string]bool),
		paid:      make(map[string]bool),
	}
}

func (l *fakeLedger) HasCompletedPurchase(_ context.Context, productID, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed[productID+"|"+userID], nil
}

func (l *fakeLedger) MarkCompletedBySession(_ context.Context, sessionID string, completed bool) (bool, error) {
	if l.markErr != nil {
		return false, l.markErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markCalls++
	if !l.sessions[sessionID] {
		return false, nil
	}
	l.paid[sessionID] = completed
	return true, nil
}

type fakeProvider struct {
	verifyErr  error
	event      *payments.WebhookEvent
	sessions   map[string]*payments.CheckoutSession
	getErr     error
	createResp *payments.CheckoutSession
	createErr  error
}

func (p *fakeProvider) CreateSession(context.Context, payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	return p.createResp, p.createErr
}

func (p *fakeProvider) GetSession(_ context.Context, sessionID string) (*payments.CheckoutSession, error) {
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.sessions[sessionID], nil
}

func (p *fakeProvider) VerifyWebhook([]byte, string) (*payments.WebhookEvent, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.event, nil
}
