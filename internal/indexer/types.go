// Package indexer defines core types shared across subsystems.
package indexer

import "time"

// Verdict is the classified indexation state of a URL.
type Verdict string

// Verdict values persisted per inspection.
const (
	VerdictIndexed              Verdict = "indexed"
	VerdictNotIndexed           Verdict = "not_indexed"
	VerdictCrawledNotIndexed    Verdict = "crawled_not_indexed"
	VerdictDiscoveredNotIndexed Verdict = "discovered_not_indexed"
	VerdictNoindex              Verdict = "noindex"
	VerdictBlockedRobots        Verdict = "blocked_robots"
	VerdictError                Verdict = "error"
	VerdictUnknown              Verdict = "unknown"
)

// QuotaKind identifies which daily budget an operation draws from.
type QuotaKind string

// Budget kinds with independent daily limits.
const (
	QuotaInspection QuotaKind = "inspection"
	QuotaSubmission QuotaKind = "submission"
)

// SubmitAction is the notification type sent to the indexing endpoint.
type SubmitAction string

// Supported submission actions.
const (
	ActionURLUpdated SubmitAction = "URL_UPDATED"
	ActionURLDeleted SubmitAction = "URL_DELETED"
)

// QueueStatus is the lifecycle state of a deferred or retried submission.
type QueueStatus string

// Queue item states.
const (
	QueuePending   QueueStatus = "pending"
	QueueSubmitted QueueStatus = "submitted"
	QueueFailed    QueueStatus = "failed"
)

// Property is a managed web site under indexation control.
type Property struct {
	ID                 string     `json:"id"`
	SiteURL            string     `json:"site_url"`
	TenantID           string     `json:"tenant_id"`
	Active             bool       `json:"active"`
	AutoInspectNew     bool       `json:"auto_inspect_new"`
	AutoInspectUpdated bool       `json:"auto_inspect_updated"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
}

// CatalogEntry is one discoverable URL belonging to a Property.
// Rows are produced by the URL-discovery pipeline; this core only reads them.
type CatalogEntry struct {
	ID         string     `json:"id"`
	PropertyID string     `json:"property_id"`
	URL        string     `json:"url"`
	LastMod    *time.Time `json:"lastmod,omitempty"`
	Active     bool       `json:"active"`
	Source     string     `json:"source"`
}

// InspectionOutcome is the diagnostic result of one external inspection call,
// with the verdict already classified.
type InspectionOutcome struct {
	Verdict         Verdict    `json:"verdict"`
	CoverageState   string     `json:"coverage_state,omitempty"`
	IndexingState   string     `json:"indexing_state,omitempty"`
	RobotsState     string     `json:"robots_state,omitempty"`
	PageFetchState  string     `json:"page_fetch_state,omitempty"`
	GoogleCanonical string     `json:"google_canonical,omitempty"`
	LastCrawlTime   *time.Time `json:"last_crawl_time,omitempty"`
}

// InspectionRecord is the latest known indexation outcome for one URL.
// Exactly zero or one record exists per (property, url); new inspections
// overwrite the prior row.
type InspectionRecord struct {
	PropertyID      string     `json:"property_id"`
	EntryID         string     `json:"entry_id,omitempty"`
	URL             string     `json:"url"`
	Verdict         Verdict    `json:"verdict"`
	CoverageState   string     `json:"coverage_state,omitempty"`
	IndexingState   string     `json:"indexing_state,omitempty"`
	RobotsState     string     `json:"robots_state,omitempty"`
	PageFetchState  string     `json:"page_fetch_state,omitempty"`
	GoogleCanonical string     `json:"google_canonical,omitempty"`
	LastCrawlTime   *time.Time `json:"last_crawl_time,omitempty"`
	InspectedAt     time.Time  `json:"inspected_at"`
}

// QuotaUsage is the stored (counter, day) pair for one budget kind.
// If Day does not equal the current UTC date the counter is semantically
// zero; callers must check rather than trust the raw value.
type QuotaUsage struct {
	Used int
	Day  string
}

// QueueItem is a submission awaiting processing against the daily budget,
// unique per (property, url, action).
type QueueItem struct {
	ID         string       `json:"id"`
	PropertyID string       `json:"property_id"`
	URL        string       `json:"url"`
	Action     SubmitAction `json:"action"`
	Status     QueueStatus  `json:"status"`
	Attempts   int          `json:"attempts"`
	LastError  string       `json:"last_error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ItemResult reports the outcome of one processed URL within a batch.
type ItemResult struct {
	URL     string      `json:"url"`
	Verdict Verdict     `json:"verdict,omitempty"`
	Status  QueueStatus `json:"status,omitempty"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

// BatchResult is returned by every processing cycle, including zero-progress
// quota-exhausted runs.
type BatchResult struct {
	Processed      int          `json:"processed"`
	Succeeded      int          `json:"succeeded"`
	Enqueued       int          `json:"enqueued,omitempty"`
	QuotaRemaining int          `json:"quota_remaining"`
	Results        []ItemResult `json:"results"`
}

// PropertyReport is one property's slice of a sweep result.
type PropertyReport struct {
	PropertyID     string `json:"property_id"`
	Processed      int    `json:"processed"`
	Succeeded      int    `json:"succeeded"`
	Retried        int    `json:"retried,omitempty"`
	QuotaRemaining int    `json:"quota_remaining"`
	Error          string `json:"error,omitempty"`
}

// SweepReport aggregates one autonomous pass over all eligible properties.
type SweepReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Properties []PropertyReport `json:"properties"`
}

// StoredToken is the persisted OAuth credential state for one property.
type StoredToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
