package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voralis/indexwatch/internal/indexer"
)

// PropertyStore persists managed properties:
//
//	CREATE TABLE properties (
//	    id                   TEXT PRIMARY KEY,
//	    site_url             TEXT NOT NULL,
//	    tenant_id            TEXT NOT NULL,
//	    active               BOOLEAN NOT NULL DEFAULT TRUE,
//	    auto_inspect_new     BOOLEAN NOT NULL DEFAULT TRUE,
//	    auto_inspect_updated BOOLEAN NOT NULL DEFAULT FALSE,
//	    last_sync_at         TIMESTAMPTZ
//	);
type PropertyStore struct {
	pool querier
}

// NewPropertyStore constructs a store from an existing pool.
func NewPropertyStore(pool querier) (*PropertyStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PropertyStore{pool: pool}, nil
}

const propertyColumns = "id, site_url, tenant_id, active, auto_inspect_new, auto_inspect_updated, last_sync_at"

// GetProperty returns one property, or indexer.ErrNotFound.
func (s *PropertyStore) GetProperty(ctx context.Context, id string) (indexer.Property, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE id = $1", propertyColumns)

	var p indexer.Property
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.SiteURL, &p.TenantID, &p.Active,
		&p.AutoInspectNew, &p.AutoInspectUpdated, &p.LastSyncAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return indexer.Property{}, fmt.Errorf("property %s: %w", id, indexer.ErrNotFound)
	}
	if err != nil {
		return indexer.Property{}, fmt.Errorf("select property %s: %w", id, err)
	}
	return p, nil
}

// ListAutoInspect returns active properties with at least one auto-inspect
// flag set, the population a sweep walks.
func (s *PropertyStore) ListAutoInspect(ctx context.Context) ([]indexer.Property, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM properties
WHERE active AND (auto_inspect_new OR auto_inspect_updated)
ORDER BY id`, propertyColumns)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select auto-inspect properties: %w", err)
	}
	defer rows.Close()

	var out []indexer.Property
	for rows.Next() {
		var p indexer.Property
		if err := rows.Scan(&p.ID, &p.SiteURL, &p.TenantID, &p.Active,
			&p.AutoInspectNew, &p.AutoInspectUpdated, &p.LastSyncAt); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return out, nil
}

// TouchLastSync records when the property last completed a successful batch.
func (s *PropertyStore) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, "UPDATE properties SET last_sync_at = $2 WHERE id = $1", id, at)
	if err != nil {
		return fmt.Errorf("touch last sync for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("property %s: %w", id, indexer.ErrNotFound)
	}
	return nil
}
