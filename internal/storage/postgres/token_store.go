package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voralis/indexwatch/internal/indexer"
)

// TokenStore persists per-property OAuth credential state:
//
//	CREATE TABLE property_tokens (
//	    property_id   TEXT PRIMARY KEY,
//	    access_token  TEXT NOT NULL,
//	    refresh_token TEXT NOT NULL DEFAULT '',
//	    expiry        TIMESTAMPTZ NOT NULL
//	);
type TokenStore struct {
	pool querier
}

// NewTokenStore constructs a store from an existing pool.
func NewTokenStore(pool querier) (*TokenStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &TokenStore{pool: pool}, nil
}

// LoadToken returns the stored credential, or indexer.ErrNotFound.
func (s *TokenStore) LoadToken(ctx context.Context, propertyID string) (indexer.StoredToken, error) {
	const query = "SELECT access_token, refresh_token, expiry FROM property_tokens WHERE property_id = $1"

	var tok indexer.StoredToken
	err := s.pool.QueryRow(ctx, query, propertyID).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.Expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return indexer.StoredToken{}, fmt.Errorf("token for property %s: %w", propertyID, indexer.ErrNotFound)
	}
	if err != nil {
		return indexer.StoredToken{}, fmt.Errorf("select token for %s: %w", propertyID, err)
	}
	return tok, nil
}

// SaveToken inserts or replaces the credential for a property.
func (s *TokenStore) SaveToken(ctx context.Context, propertyID string, tok indexer.StoredToken) error {
	const query = `
INSERT INTO property_tokens (property_id, access_token, refresh_token, expiry)
VALUES ($1, $2, $3, $4)
ON CONFLICT (property_id) DO UPDATE SET
    access_token  = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expiry        = EXCLUDED.expiry`

	_, err := s.pool.Exec(ctx, query, propertyID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
	if err != nil {
		return fmt.Errorf("save token for %s: %w", propertyID, err)
	}
	return nil
}
