// Package recorder persists per-URL processing outcomes.
package recorder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/metrics"
)

// Recorder writes inspection and submission outcomes. Every write is an
// idempotent upsert, so re-running a cycle for the same URL is safe.
type Recorder struct {
	inspections indexer.InspectionStore
	queue       indexer.QueueStore
	ids         indexer.IDGenerator
	clock       indexer.Clock
	logger      *zap.Logger
}

// New constructs a Recorder.
func New(
	inspections indexer.InspectionStore,
	queue indexer.QueueStore,
	ids indexer.IDGenerator,
	clock indexer.Clock,
	logger *zap.Logger,
) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		inspections: inspections,
		queue:       queue,
		ids:         ids,
		clock:       clock,
		logger:      logger,
	}
}

// RecordInspection upserts the latest outcome for one URL, overwriting any
// prior record for the (property, url) pair.
func (r *Recorder) RecordInspection(ctx context.Context, propertyID, entryID, url string, outcome indexer.InspectionOutcome) error {
	rec := indexer.InspectionRecord{
		PropertyID:      propertyID,
		EntryID:         entryID,
		URL:             url,
		Verdict:         outcome.Verdict,
		CoverageState:   outcome.CoverageState,
		IndexingState:   outcome.IndexingState,
		RobotsState:     outcome.RobotsState,
		PageFetchState:  outcome.PageFetchState,
		GoogleCanonical: outcome.GoogleCanonical,
		LastCrawlTime:   outcome.LastCrawlTime,
		InspectedAt:     r.clock.Now(),
	}
	if err := r.inspections.UpsertInspection(ctx, rec); err != nil {
		return fmt.Errorf("upsert inspection: %w", err)
	}
	metrics.ObserveInspection(propertyID, string(outcome.Verdict))
	return nil
}

// RecordSubmission upserts the queue row for one attempted submission,
// marking it submitted on success or failed with the error text.
func (r *Recorder) RecordSubmission(ctx context.Context, propertyID, url string, action indexer.SubmitAction, attempts int, submitErr error) error {
	status := indexer.QueueSubmitted
	errText := ""
	if submitErr != nil {
		status = indexer.QueueFailed
		errText = submitErr.Error()
	}
	item, err := r.newItem(propertyID, url, action, status, attempts, errText)
	if err != nil {
		return err
	}
	if err := r.queue.UpsertQueueItem(ctx, item); err != nil {
		return fmt.Errorf("upsert queue item: %w", err)
	}
	metrics.ObserveSubmission(propertyID, string(status))
	return nil
}

// EnqueueDeferred records a submission that exceeded today's budget as a
// pending queue item for a later retry sweep.
func (r *Recorder) EnqueueDeferred(ctx context.Context, propertyID, url string, action indexer.SubmitAction) error {
	item, err := r.newItem(propertyID, url, action, indexer.QueuePending, 0, "")
	if err != nil {
		return err
	}
	if err := r.queue.UpsertQueueItem(ctx, item); err != nil {
		return fmt.Errorf("enqueue deferred submission: %w", err)
	}
	r.logger.Debug("submission deferred",
		zap.String("property_id", propertyID),
		zap.String("url", url),
	)
	metrics.ObserveSubmission(propertyID, string(indexer.QueuePending))
	return nil
}

func (r *Recorder) newItem(propertyID, url string, action indexer.SubmitAction, status indexer.QueueStatus, attempts int, errText string) (indexer.QueueItem, error) {
	id, err := r.ids.NewID()
	if err != nil {
		return indexer.QueueItem{}, fmt.Errorf("generate queue item id: %w", err)
	}
	now := r.clock.Now()
	return indexer.QueueItem{
		ID:         id,
		PropertyID: propertyID,
		URL:        url,
		Action:     action,
		Status:     status,
		Attempts:   attempts,
		LastError:  errText,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
