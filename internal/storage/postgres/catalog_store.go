package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voralis/indexwatch/internal/indexer"
)

// CatalogStore reads discovered URLs. It assumes tables:
//
//	CREATE TABLE catalog_entries (
//	    id          TEXT PRIMARY KEY,
//	    property_id TEXT NOT NULL,
//	    url         TEXT NOT NULL,
//	    lastmod     TIMESTAMPTZ,
//	    active      BOOLEAN NOT NULL DEFAULT TRUE,
//	    source      TEXT NOT NULL DEFAULT 'sitemap',
//	    UNIQUE (property_id, url)
//	);
//
// plus the inspections table documented on InspectionStore.
type CatalogStore struct {
	pool querier
}

// NewCatalogStore constructs a store from an existing pool.
func NewCatalogStore(pool querier) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CatalogStore{pool: pool}, nil
}

const catalogEntryColumns = "e.id, e.property_id, e.url, e.lastmod, e.active, e.source"

// ListNeverInspected returns active entries with no inspection record, in
// insertion order.
func (s *CatalogStore) ListNeverInspected(ctx context.Context, propertyID string, limit int) ([]indexer.CatalogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s
FROM catalog_entries e
LEFT JOIN inspections i ON i.property_id = e.property_id AND i.url = e.url
WHERE e.property_id = $1 AND e.active AND i.url IS NULL
ORDER BY e.id
LIMIT $2`, catalogEntryColumns)

	rows, err := s.pool.Query(ctx, query, propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("select never-inspected: %w", err)
	}
	return scanEntries(rows)
}

// ListOldestInspected returns active entries ordered by inspection age,
// staleest first, skipping the excluded URLs.
func (s *CatalogStore) ListOldestInspected(ctx context.Context, propertyID string, limit int, exclude []string) ([]indexer.CatalogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s
FROM catalog_entries e
JOIN inspections i ON i.property_id = e.property_id AND i.url = e.url
WHERE e.property_id = $1 AND e.active AND e.url <> ALL($2)
ORDER BY i.inspected_at ASC, e.id
LIMIT $3`, catalogEntryColumns)

	rows, err := s.pool.Query(ctx, query, propertyID, asTextArray(exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("select oldest-inspected: %w", err)
	}
	return scanEntries(rows)
}

// ListUpdatedSinceInspection returns active entries whose source lastmod is
// strictly newer than their last inspection, most recently modified first.
func (s *CatalogStore) ListUpdatedSinceInspection(ctx context.Context, propertyID string, limit int, exclude []string) ([]indexer.CatalogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s
FROM catalog_entries e
JOIN inspections i ON i.property_id = e.property_id AND i.url = e.url
WHERE e.property_id = $1 AND e.active
  AND e.lastmod IS NOT NULL AND e.lastmod > i.inspected_at
  AND e.url <> ALL($2)
ORDER BY e.lastmod DESC, e.id
LIMIT $3`, catalogEntryColumns)

	rows, err := s.pool.Query(ctx, query, propertyID, asTextArray(exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("select updated-since-inspection: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]indexer.CatalogEntry, error) {
	defer rows.Close()
	var out []indexer.CatalogEntry
	for rows.Next() {
		var e indexer.CatalogEntry
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.URL, &e.LastMod, &e.Active, &e.Source); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return out, nil
}

// asTextArray keeps `<> ALL($n)` true for an empty exclusion set; a nil
// slice would make the comparison NULL and drop every row.
func asTextArray(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
