// product_repository.go implements ProductRepository, providing database queries for
// product creation, slug lookup, and catalog listing.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/shopcn/shopcn/internal/db/models"
)

// ProductRepository handles product database operations
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// CreateProduct creates a new product listing
func (r *ProductRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	p.ID = uuid.New().String()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, slug, name, description, price_cents, is_published, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Slug,
		p.Name,
		p.Description,
		p.PriceCents,
		p.IsPublished,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)

	return err
}

// GetProductBySlug retrieves a product by its slug
func (r *ProductRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	query := `
		SELECT id, slug, name, description, price_cents, is_published, created_by, created_at, updated_at
		FROM products
		WHERE slug = $1
	`

	p := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.IsPublished,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

// GetProductByID retrieves a product by ID
func (r *ProductRepository) GetProductByID(ctx context.Context, productID string) (*models.Product, error) {
	query := `
		SELECT id, slug, name, description, price_cents, is_published, created_by, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	p := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.IsPublished,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

// ListPublishedProducts retrieves all published products, newest first
func (r *ProductRepository) ListPublishedProducts(ctx context.Context) ([]*models.Product, error) {
	query := `
		SELECT id, slug, name, description, price_cents, is_published, created_by, created_at, updated_at
		FROM products
		WHERE is_published = TRUE
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p := &models.Product{}
		err := rows.Scan(
			&p.ID,
			&p.Slug,
			&p.Name,
			&p.Description,
			&p.PriceCents,
			&p.IsPublished,
			&p.CreatedBy,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// SetPublished toggles a product's published flag
func (r *ProductRepository) SetPublished(ctx context.Context, productID string, published bool) error {
	query := `
		UPDATE products
		SET is_published = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, productID, published, time.Now())
	return err
}

// PromoteDraft creates a product and attaches the draft artifact to it in one
// transaction. The conditional UPDATE makes promotion once-only: if the
// artifact is already attached to a product the transaction rolls back and
// (false, nil) is returned, leaving no orphaned product row. A unique
// violation on the slug propagates to the caller.
func (r *ProductRepository) PromoteDraft(ctx context.Context, p *models.Product, artifactID string) (bool, error) {
	p.ID = uuid.New().String()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO products (id, slug, name, description, price_cents, is_published, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		p.ID,
		p.Slug,
		p.Name,
		p.Description,
		p.PriceCents,
		p.IsPublished,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, err
	}

	attachQuery := `
		UPDATE registry_artifacts
		SET product_id = $2
		WHERE id = $1 AND product_id IS NULL
	`
	result, err := tx.ExecContext(ctx, attachQuery, artifactID, p.ID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	return true, tx.Commit()
}
