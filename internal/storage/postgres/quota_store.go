package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voralis/indexwatch/internal/indexer"
)

// quotaColumns maps a budget kind onto its counter/day column pair. The map
// is the only source of identifiers interpolated into quota SQL.
var quotaColumns = map[indexer.QuotaKind]struct {
	used string
	day  string
}{
	indexer.QuotaInspection: {used: "inspection_used", day: "inspection_day"},
	indexer.QuotaSubmission: {used: "submission_used", day: "submission_day"},
}

// QuotaStore persists per-property daily usage counters. It assumes a table:
//
//	CREATE TABLE property_quota (
//	    property_id     TEXT PRIMARY KEY,
//	    inspection_used INTEGER NOT NULL DEFAULT 0,
//	    inspection_day  DATE,
//	    submission_used INTEGER NOT NULL DEFAULT 0,
//	    submission_day  DATE
//	);
type QuotaStore struct {
	pool querier
}

// NewQuotaStore constructs a store from an existing pool.
func NewQuotaStore(pool querier) (*QuotaStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &QuotaStore{pool: pool}, nil
}

// Usage reads the stored (counter, day) pair for one budget kind. A missing
// row reads as zero usage with no day.
func (s *QuotaStore) Usage(ctx context.Context, propertyID string, kind indexer.QuotaKind) (indexer.QuotaUsage, error) {
	cols, ok := quotaColumns[kind]
	if !ok {
		return indexer.QuotaUsage{}, fmt.Errorf("unknown quota kind %q", kind)
	}
	query := fmt.Sprintf(
		"SELECT %s, COALESCE(%s::text, '') FROM property_quota WHERE property_id = $1",
		cols.used, cols.day,
	)
	var usage indexer.QuotaUsage
	err := s.pool.QueryRow(ctx, query, propertyID).Scan(&usage.Used, &usage.Day)
	if errors.Is(err, pgx.ErrNoRows) {
		return indexer.QuotaUsage{}, nil
	}
	if err != nil {
		return indexer.QuotaUsage{}, fmt.Errorf("select quota usage: %w", err)
	}
	return usage, nil
}

// AddUsage adds n to the counter for the given day. The upsert is date-aware
// and additive in SQL, so concurrent commits accumulate instead of clobbering
// and a stale-day counter is replaced rather than grown.
func (s *QuotaStore) AddUsage(ctx context.Context, propertyID string, kind indexer.QuotaKind, n int, day string) error {
	cols, ok := quotaColumns[kind]
	if !ok {
		return fmt.Errorf("unknown quota kind %q", kind)
	}
	query := fmt.Sprintf(`
INSERT INTO property_quota (property_id, %[1]s, %[2]s)
VALUES ($1, $2, $3::date)
ON CONFLICT (property_id) DO UPDATE SET
	%[1]s = CASE
		WHEN property_quota.%[2]s = EXCLUDED.%[2]s
		THEN property_quota.%[1]s + EXCLUDED.%[1]s
		ELSE EXCLUDED.%[1]s
	END,
	%[2]s = EXCLUDED.%[2]s`, cols.used, cols.day)

	if _, err := s.pool.Exec(ctx, query, propertyID, n, day); err != nil {
		return fmt.Errorf("upsert quota usage: %w", err)
	}
	return nil
}
