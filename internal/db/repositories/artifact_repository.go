// artifact_repository.go implements ArtifactRepository, providing database queries for
// registry artifact storage: draft upload, product attachment at publish time, and
// payload retrieval for authorized installs.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/shopcn/shopcn/internal/db/models"
)

// ArtifactRepository handles registry artifact database operations
type ArtifactRepository struct {
	db *sql.DB
}

// NewArtifactRepository creates a new ArtifactRepository
func NewArtifactRepository(db *sql.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// CreateArtifact stores a new artifact. ProductID is left nil for drafts.
func (r *ArtifactRepository) CreateArtifact(ctx context.Context, a *models.RegistryArtifact) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now()

	query := `
		INSERT INTO registry_artifacts (id, payload, product_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		[]byte(a.Payload),
		a.ProductID,
		a.CreatedBy,
		a.CreatedAt,
	)

	return err
}

// GetArtifactByID retrieves an artifact by ID
func (r *ArtifactRepository) GetArtifactByID(ctx context.Context, artifactID string) (*models.RegistryArtifact, error) {
	query := `
		SELECT id, payload, product_id, created_by, created_at
		FROM registry_artifacts
		WHERE id = $1
	`

	a := &models.RegistryArtifact{}
	var payload []byte

	err := r.db.QueryRowContext(ctx, query, artifactID).Scan(
		&a.ID,
		&payload,
		&a.ProductID,
		&a.CreatedBy,
		&a.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	a.Payload = payload
	return a, nil
}

// GetArtifactByProductID retrieves the artifact attached to a product.
// When several artifacts reference the same product the newest wins.
func (r *ArtifactRepository) GetArtifactByProductID(ctx context.Context, productID string) (*models.RegistryArtifact, error) {
	query := `
		SELECT id, payload, product_id, created_by, created_at
		FROM registry_artifacts
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	a := &models.RegistryArtifact{}
	var payload []byte

	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&a.ID,
		&payload,
		&a.ProductID,
		&a.CreatedBy,
		&a.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	a.Payload = payload
	return a, nil
}

// AttachToProduct links a draft artifact to a product. The conditional WHERE
// clause refuses to re-attach an artifact that already belongs to a product,
// so a draft can be promoted at most once. Returns false when the artifact
// does not exist or is already attached.
func (r *ArtifactRepository) AttachToProduct(ctx context.Context, artifactID, productID string) (bool, error) {
	query := `
		UPDATE registry_artifacts
		SET product_id = $2
		WHERE id = $1 AND product_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, artifactID, productID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// ListDrafts retrieves all artifacts not yet attached to a product, newest first
func (r *ArtifactRepository) ListDrafts(ctx context.Context) ([]*models.RegistryArtifact, error) {
	query := `
		SELECT id, payload, product_id, created_by, created_at
		FROM registry_artifacts
		WHERE product_id IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts := make([]*models.RegistryArtifact, 0)
	for rows.Next() {
		a := &models.RegistryArtifact{}
		var payload []byte
		err := rows.Scan(
			&a.ID,
			&payload,
			&a.ProductID,
			&a.CreatedBy,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		a.Payload = payload
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}
