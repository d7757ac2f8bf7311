// access_key_repository.go implements AccessKeyRepository, providing database queries
// for access key lookup by prefix, creation, atomic use consumption, expiry cleanup,
// and last-used timestamp updates.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/shopcn/shopcn/internal/db/models"
)

// AccessKeyRepository handles access key database operations
type AccessKeyRepository struct {
	db *sql.DB
}

// NewAccessKeyRepository creates a new AccessKeyRepository
func NewAccessKeyRepository(db *sql.DB) *AccessKeyRepository {
	return &AccessKeyRepository{db: db}
}

// CreateAccessKey creates a new access key
func (r *AccessKeyRepository) CreateAccessKey(ctx context.Context, key *models.AccessKey) error {
	key.ID = uuid.New().String()
	key.CreatedAt = time.Now()

	query := `
		INSERT INTO access_keys (id, user_id, key_hash, key_prefix, scope, remaining_uses, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.UserID,
		key.KeyHash,
		key.KeyPrefix,
		key.Scope,
		key.RemainingUses,
		key.ExpiresAt,
		key.LastUsedAt,
		key.CreatedAt,
	)

	return err
}

// GetAccessKeysByPrefix retrieves access keys matching a display prefix.
// The prefix narrows the candidate set before the caller runs the bcrypt
// comparison against each key hash.
func (r *AccessKeyRepository) GetAccessKeysByPrefix(ctx context.Context, keyPrefix string) ([]*models.AccessKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, scope, remaining_uses, expires_at, last_used_at, created_at
		FROM access_keys
		WHERE key_prefix = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, keyPrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.AccessKey, 0)
	for rows.Next() {
		k := &models.AccessKey{}
		err := rows.Scan(
			&k.ID,
			&k.UserID,
			&k.KeyHash,
			&k.KeyPrefix,
			&k.Scope,
			&k.RemainingUses,
			&k.ExpiresAt,
			&k.LastUsedAt,
			&k.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// GetAccessKeyByID retrieves an access key by ID
func (r *AccessKeyRepository) GetAccessKeyByID(ctx context.Context, keyID string) (*models.AccessKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, scope, remaining_uses, expires_at, last_used_at, created_at
		FROM access_keys
		WHERE id = $1
	`

	k := &models.AccessKey{}
	err := r.db.QueryRowContext(ctx, query, keyID).Scan(
		&k.ID,
		&k.UserID,
		&k.KeyHash,
		&k.KeyPrefix,
		&k.Scope,
		&k.RemainingUses,
		&k.ExpiresAt,
		&k.LastUsedAt,
		&k.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return k, nil
}

// ConsumeUse atomically decrements the remaining use count of a key.
// The conditional WHERE clause makes the decrement safe under concurrent
// requests: exactly one of N racing calls observes remaining_uses > 0 for
// the final use. Returns true when a use was consumed, false when the key
// was already exhausted.
func (r *AccessKeyRepository) ConsumeUse(ctx context.Context, keyID string) (bool, error) {
	query := `
		UPDATE access_keys
		SET remaining_uses = remaining_uses - 1, last_used_at = $2
		WHERE id = $1 AND remaining_uses > 0
	`

	result, err := r.db.ExecContext(ctx, query, keyID, time.Now())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// UpdateLastUsed updates the last_used_at timestamp for an access key
func (r *AccessKeyRepository) UpdateLastUsed(ctx context.Context, keyID string) error {
	query := `
		UPDATE access_keys
		SET last_used_at = $2
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, keyID, time.Now())
	return err
}

// ListAccessKeysByUser retrieves all access keys for a user
func (r *AccessKeyRepository) ListAccessKeysByUser(ctx context.Context, userID string) ([]*models.AccessKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, scope, remaining_uses, expires_at, last_used_at, created_at
		FROM access_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*models.AccessKey, 0)
	for rows.Next() {
		k := &models.AccessKey{}
		err := rows.Scan(
			&k.ID,
			&k.UserID,
			&k.KeyHash,
			&k.KeyPrefix,
			&k.Scope,
			&k.RemainingUses,
			&k.ExpiresAt,
			&k.LastUsedAt,
			&k.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// RevokeAccessKey deletes an access key
func (r *AccessKeyRepository) RevokeAccessKey(ctx context.Context, keyID string) error {
	query := `DELETE FROM access_keys WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, keyID)
	return err
}

// DeleteExpiredKeys deletes all expired access keys (for cleanup job)
func (r *AccessKeyRepository) DeleteExpiredKeys(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM access_keys
		WHERE expires_at IS NOT NULL AND expires_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
