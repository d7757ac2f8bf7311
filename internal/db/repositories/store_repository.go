// store_repository.go implements StoreRepository, providing the read queries behind
// the public storefront: published product listings with seller attribution and
// aggregate store statistics for the admin dashboard.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// StoreRepository handles storefront read queries
type StoreRepository struct {
	db *sqlx.DB
}

// NewStoreRepository creates a new StoreRepository
func NewStoreRepository(db *sqlx.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// ProductListing is a published product joined with its seller's display name
type ProductListing struct {
	ID          string    `db:"id" json:"id"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	SellerName  string    `db:"seller_name" json:"seller_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ListPublishedListings retrieves all published products, newest first
func (r *StoreRepository) ListPublishedListings(ctx context.Context) ([]*ProductListing, error) {
	query := `
		SELECT p.id, p.slug, p.name, p.description, p.price_cents,
		       u.name AS seller_name, p.created_at
		FROM products p
		JOIN users u ON u.id = p.created_by
		WHERE p.is_published = TRUE
		ORDER BY p.created_at DESC
	`

	listings := make([]*ProductListing, 0)
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetListingBySlug retrieves one published product with seller attribution.
// Unpublished products are invisible here, same as on the install path.
func (r *StoreRepository) GetListingBySlug(ctx context.Context, slug string) (*ProductListing, error) {
	query := `
		SELECT p.id, p.slug, p.name, p.description, p.price_cents,
		       u.name AS seller_name, p.created_at
		FROM products p
		JOIN users u ON u.id = p.created_by
		WHERE p.slug = $1 AND p.is_published = TRUE
	`

	var listing ProductListing
	err := r.db.GetContext(ctx, &listing, query, slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// StoreStats are the aggregate counts shown on the admin dashboard
type StoreStats struct {
	Users              int64 `db:"user_count" json:"users"`
	PublishedProducts  int64 `db:"published_count" json:"published_products"`
	Drafts             int64 `db:"draft_count" json:"drafts"`
	CompletedPurchases int64 `db:"purchase_count" json:"completed_purchases"`
	RevenueCents       int64 `db:"revenue_cents" json:"revenue_cents"`
}

// GetStoreStats returns dashboard counts in a single round-trip
func (r *StoreRepository) GetStoreStats(ctx context.Context) (*StoreStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS user_count,
			(SELECT COUNT(*) FROM products WHERE is_published = TRUE) AS published_count,
			(SELECT COUNT(*) FROM registry_artifacts WHERE product_id IS NULL) AS draft_count,
			(SELECT COUNT(*) FROM ledger_entries WHERE payment_completed = TRUE) AS purchase_count,
			(SELECT COALESCE(SUM(p.price_cents), 0)
			 FROM ledger_entries le
			 JOIN products p ON p.id = le.product_id
			 WHERE le.payment_completed = TRUE) AS revenue_cents
	`

	var stats StoreStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, err
	}
	return &stats, nil
}
