package indexer

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// PropertyStore persists managed properties.
type PropertyStore interface {
	GetProperty(ctx context.Context, id string) (Property, error)
	ListAutoInspect(ctx context.Context) ([]Property, error)
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}

// CatalogStore provides read access to discovered URLs. The exclude set lets
// a merged selection avoid returning a URL already claimed by another policy.
type CatalogStore interface {
	ListNeverInspected(ctx context.Context, propertyID string, limit int) ([]CatalogEntry, error)
	ListOldestInspected(ctx context.Context, propertyID string, limit int, exclude []string) ([]CatalogEntry, error)
	ListUpdatedSinceInspection(ctx context.Context, propertyID string, limit int, exclude []string) ([]CatalogEntry, error)
}

// InspectionStore persists the latest inspection outcome per (property, url).
type InspectionStore interface {
	UpsertInspection(ctx context.Context, rec InspectionRecord) error
}

// QuotaStore holds per-property daily consumption counters. AddUsage must be
// additive and date-aware at the storage layer so concurrent commits cannot
// clobber each other.
type QuotaStore interface {
	Usage(ctx context.Context, propertyID string, kind QuotaKind) (QuotaUsage, error)
	AddUsage(ctx context.Context, propertyID string, kind QuotaKind, n int, day string) error
}

// QueueStore persists deferred and failed submissions, unique per
// (property, url, action).
type QueueStore interface {
	UpsertQueueItem(ctx context.Context, item QueueItem) error
	ListRetryable(ctx context.Context, propertyID string, limit int) ([]QueueItem, error)
}

// TokenStore persists OAuth credentials per property.
type TokenStore interface {
	LoadToken(ctx context.Context, propertyID string) (StoredToken, error)
	SaveToken(ctx context.Context, propertyID string, tok StoredToken) error
}

// TokenSource yields a valid access token for a property, refreshing and
// persisting it when near expiry.
type TokenSource interface {
	Token(ctx context.Context, propertyID string) (string, error)
}

// Inspector wraps the external inspection/indexing API.
type Inspector interface {
	Inspect(ctx context.Context, token, pageURL, siteURL string) (InspectionOutcome, error)
	Submit(ctx context.Context, token, pageURL string, action SubmitAction) error
}

// Snapshotter copies current inspection state into a history table. Failures
// are non-fatal to the caller.
type Snapshotter interface {
	Snapshot(ctx context.Context, propertyID string, at time.Time) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces row IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
