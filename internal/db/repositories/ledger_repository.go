// ledger_repository.go implements LedgerRepository, providing database queries for
// purchase ledger entries: pending-entry creation at checkout, idempotent completion
// keyed by the provider's checkout session ID, and entitlement lookups.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/shopcn/shopcn/internal/db/models"
)

// LedgerRepository handles purchase ledger database operations
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateEntry records a pending purchase for a newly opened checkout session
func (r *LedgerRepository) CreateEntry(ctx context.Context, e *models.LedgerEntry) error {
	e.ID = uuid.New().String()
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
		INSERT INTO ledger_entries (id, product_id, owned_by, checkout_session_id, payment_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.ProductID,
		e.OwnedBy,
		e.CheckoutSessionID,
		e.PaymentCompleted,
		e.CreatedAt,
		e.UpdatedAt,
	)

	return err
}

// GetEntryBySessionID retrieves the ledger entry for a checkout session
func (r *LedgerRepository) GetEntryBySessionID(ctx context.Context, sessionID string) (*models.LedgerEntry, error) {
	query := `
		SELECT id, product_id, owned_by, checkout_session_id, payment_completed, created_at, updated_at
		FROM ledger_entries
		WHERE checkout_session_id = $1
	`

	e := &models.LedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&e.ID,
		&e.ProductID,
		&e.OwnedBy,
		&e.CheckoutSessionID,
		&e.PaymentCompleted,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return e, nil
}

// MarkCompletedBySession overwrites payment_completed for the entry keyed by
// the provider's session ID with the provider-confirmed state. An explicit
// false write rolls back an earlier optimistic completion, and replayed
// webhook deliveries converge on the same state. Returns false when no entry
// matches the session ID.
func (r *LedgerRepository) MarkCompletedBySession(ctx context.Context, sessionID string, completed bool) (bool, error) {
	query := `
		UPDATE ledger_entries
		SET payment_completed = $2, updated_at = $3
		WHERE checkout_session_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, sessionID, completed, time.Now())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// HasCompletedPurchase reports whether the user holds a completed purchase of
// the product. This is the entitlement test consulted on every install.
func (r *LedgerRepository) HasCompletedPurchase(ctx context.Context, productID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE product_id = $1 AND owned_by = $2 AND payment_completed = TRUE
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, productID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// PurchaseRecord is a ledger entry joined with its product listing, returned
// by purchase history queries.
type PurchaseRecord struct {
	models.LedgerEntry
	ProductSlug string `json:"product_slug"`
	ProductName string `json:"product_name"`
	PriceCents  int64  `json:"price_cents"`
}

// ListCompletedByUser retrieves the user's completed purchases with product details
func (r *LedgerRepository) ListCompletedByUser(ctx context.Context, userID string) ([]*PurchaseRecord, error) {
	query := `
		SELECT le.id, le.product_id, le.owned_by, le.checkout_session_id, le.payment_completed,
		       le.created_at, le.updated_at, p.slug, p.name, p.price_cents
		FROM ledger_entries le
		JOIN products p ON le.product_id = p.id
		WHERE le.owned_by = $1 AND le.payment_completed = TRUE
		ORDER BY le.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*PurchaseRecord, 0)
	for rows.Next() {
		rec := &PurchaseRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.ProductID,
			&rec.OwnedBy,
			&rec.CheckoutSessionID,
			&rec.PaymentCompleted,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&rec.ProductSlug,
			&rec.ProductName,
			&rec.PriceCents,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
