package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// APIKey is a hashed organization credential that can be exchanged for a token.
type APIKey struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	KeyHash        string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// CreateAPIKey stores a new key hash for an organization.
func (db *DB) CreateAPIKey(ctx context.Context, organizationID uuid.UUID, name, keyHash string) (*APIKey, error) {
	var key APIKey
	err := db.pool.QueryRow(ctx,
		`INSERT INTO api_keys (organization_id, name, key_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, organization_id, name, key_hash, created_at, revoked_at`,
		organizationID, name, keyHash,
	).Scan(&key.ID, &key.OrganizationID, &key.Name, &key.KeyHash, &key.CreatedAt, &key.RevokedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}
	return &key, nil
}

// ListActiveAPIKeys returns the unrevoked keys of an organization.
func (db *DB) ListActiveAPIKeys(ctx context.Context, organizationID uuid.UUID) ([]APIKey, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, organization_id, name, key_hash, created_at, revoked_at
		 FROM api_keys
		 WHERE organization_id = $1 AND revoked_at IS NULL
		 ORDER BY created_at DESC`,
		organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.OrganizationID, &key.Name, &key.KeyHash, &key.CreatedAt, &key.RevokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey disables a key.
func (db *DB) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}
