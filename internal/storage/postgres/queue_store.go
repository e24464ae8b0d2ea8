package postgres

import (
	"context"
	"fmt"

	"github.com/voralis/indexwatch/internal/indexer"
)

// QueueStore persists deferred and failed submissions:
//
//	CREATE TABLE submission_queue (
//	    id          TEXT NOT NULL,
//	    property_id TEXT NOT NULL,
//	    url         TEXT NOT NULL,
//	    action      TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    attempts    INTEGER NOT NULL DEFAULT 0,
//	    last_error  TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (property_id, url, action)
//	);
type QueueStore struct {
	pool querier
}

// NewQueueStore constructs a store from an existing pool.
func NewQueueStore(pool querier) (*QueueStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &QueueStore{pool: pool}, nil
}

// UpsertQueueItem inserts or replaces the row for (property, url, action).
// The original id and created_at survive an update so queue ordering stays
// stable across retries.
func (s *QueueStore) UpsertQueueItem(ctx context.Context, item indexer.QueueItem) error {
	const query = `
INSERT INTO submission_queue (
    id, property_id, url, action, status, attempts, last_error, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (property_id, url, action) DO UPDATE SET
    status     = EXCLUDED.status,
    attempts   = EXCLUDED.attempts,
    last_error = EXCLUDED.last_error,
    updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		item.ID, item.PropertyID, item.URL, string(item.Action),
		string(item.Status), item.Attempts, item.LastError,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert queue item %s: %w", item.URL, err)
	}
	return nil
}

// ListRetryable returns pending and failed items oldest-touched first.
func (s *QueueStore) ListRetryable(ctx context.Context, propertyID string, limit int) ([]indexer.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	const query = `
SELECT id, property_id, url, action, status, attempts, last_error, created_at, updated_at
FROM submission_queue
WHERE property_id = $1 AND status IN ('pending', 'failed')
ORDER BY updated_at ASC, id
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, propertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("select retryable: %w", err)
	}
	defer rows.Close()

	var out []indexer.QueueItem
	for rows.Next() {
		var (
			item   indexer.QueueItem
			action string
			status string
		)
		if err := rows.Scan(&item.ID, &item.PropertyID, &item.URL, &action,
			&status, &item.Attempts, &item.LastError, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.Action = indexer.SubmitAction(action)
		item.Status = indexer.QueueStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return out, nil
}
