package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/voralis/indexwatch/internal/indexer"
)

// InspectionStore persists the latest inspection outcome per URL:
//
//	CREATE TABLE inspections (
//	    property_id      TEXT NOT NULL,
//	    entry_id         TEXT,
//	    url              TEXT NOT NULL,
//	    verdict          TEXT NOT NULL,
//	    coverage_state   TEXT NOT NULL DEFAULT '',
//	    indexing_state   TEXT NOT NULL DEFAULT '',
//	    robots_state     TEXT NOT NULL DEFAULT '',
//	    page_fetch_state TEXT NOT NULL DEFAULT '',
//	    google_canonical TEXT NOT NULL DEFAULT '',
//	    last_crawl_time  TIMESTAMPTZ,
//	    inspected_at     TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (property_id, url)
//	);
type InspectionStore struct {
	pool querier
}

// NewInspectionStore constructs a store from an existing pool.
func NewInspectionStore(pool querier) (*InspectionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &InspectionStore{pool: pool}, nil
}

// UpsertInspection inserts or overwrites the record for (property, url).
func (s *InspectionStore) UpsertInspection(ctx context.Context, rec indexer.InspectionRecord) error {
	const query = `
INSERT INTO inspections (
    property_id, entry_id, url, verdict,
    coverage_state, indexing_state, robots_state, page_fetch_state,
    google_canonical, last_crawl_time, inspected_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (property_id, url) DO UPDATE SET
    entry_id         = EXCLUDED.entry_id,
    verdict          = EXCLUDED.verdict,
    coverage_state   = EXCLUDED.coverage_state,
    indexing_state   = EXCLUDED.indexing_state,
    robots_state     = EXCLUDED.robots_state,
    page_fetch_state = EXCLUDED.page_fetch_state,
    google_canonical = EXCLUDED.google_canonical,
    last_crawl_time  = EXCLUDED.last_crawl_time,
    inspected_at     = EXCLUDED.inspected_at`

	_, err := s.pool.Exec(ctx, query,
		rec.PropertyID, rec.EntryID, rec.URL, string(rec.Verdict),
		rec.CoverageState, rec.IndexingState, rec.RobotsState, rec.PageFetchState,
		rec.GoogleCanonical, rec.LastCrawlTime, rec.InspectedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert inspection %s: %w", rec.URL, err)
	}
	return nil
}

// SnapshotStore copies inspection rows into a history table so verdict drift
// can be queried over time:
//
//	CREATE TABLE inspection_snapshots (
//	    property_id  TEXT NOT NULL,
//	    url          TEXT NOT NULL,
//	    verdict      TEXT NOT NULL,
//	    inspected_at TIMESTAMPTZ NOT NULL,
//	    taken_at     TIMESTAMPTZ NOT NULL
//	);
type SnapshotStore struct {
	pool querier
}

// NewSnapshotStore constructs a store from an existing pool.
func NewSnapshotStore(pool querier) (*SnapshotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SnapshotStore{pool: pool}, nil
}

// Snapshot records the property's current inspection state at the given time.
func (s *SnapshotStore) Snapshot(ctx context.Context, propertyID string, at time.Time) error {
	const query = `
INSERT INTO inspection_snapshots (property_id, url, verdict, inspected_at, taken_at)
SELECT property_id, url, verdict, inspected_at, $2
FROM inspections
WHERE property_id = $1`

	_, err := s.pool.Exec(ctx, query, propertyID, at)
	if err != nil {
		return fmt.Errorf("snapshot property %s: %w", propertyID, err)
	}
	return nil
}
