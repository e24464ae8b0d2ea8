// Package runner executes one quota-governed processing cycle per call.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/metrics"
	"github.com/voralis/indexwatch/internal/selector"
)

// ErrInvalidRequest marks client errors that must be rejected before any
// external call is made.
var ErrInvalidRequest = errors.New("invalid request")

// Ledger is the quota surface the runner needs.
type Ledger interface {
	Acquire(propertyID string) func()
	Remaining(ctx context.Context, propertyID string, kind indexer.QuotaKind) (int, error)
	Commit(ctx context.Context, propertyID string, kind indexer.QuotaKind, n int) error
}

// CandidateSelector picks inspection candidates by policy.
type CandidateSelector interface {
	Select(ctx context.Context, propertyID string, max int, policies selector.Policies) ([]indexer.CatalogEntry, error)
}

// OutcomeRecorder persists per-item results.
type OutcomeRecorder interface {
	RecordInspection(ctx context.Context, propertyID, entryID, url string, outcome indexer.InspectionOutcome) error
	RecordSubmission(ctx context.Context, propertyID, url string, action indexer.SubmitAction, attempts int, submitErr error) error
	EnqueueDeferred(ctx context.Context, propertyID, url string, action indexer.SubmitAction) error
}

// Pacer inserts the inter-call delay required by the external service's own
// rate limit.
type Pacer interface {
	Wait(ctx context.Context, propertyID string, kind indexer.QuotaKind) error
}

// Config controls Runner behavior.
type Config struct {
	// DefaultBatchSize caps one cycle when the caller gives no limit. It
	// exists to keep a fully paced batch under the host execution ceiling.
	DefaultBatchSize int
}

// Runner orchestrates budget check, candidate selection, paced external
// calls, result recording, and the final quota commit.
type Runner struct {
	properties indexer.PropertyStore
	ledger     Ledger
	selector   CandidateSelector
	inspector  indexer.Inspector
	recorder   OutcomeRecorder
	queue      indexer.QueueStore
	tokens     indexer.TokenSource
	pacer      Pacer
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Runner.
func New(
	properties indexer.PropertyStore,
	ledger Ledger,
	sel CandidateSelector,
	inspector indexer.Inspector,
	rec OutcomeRecorder,
	queue indexer.QueueStore,
	tokens indexer.TokenSource,
	pacer Pacer,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		properties: properties,
		ledger:     ledger,
		selector:   sel,
		inspector:  inspector,
		recorder:   rec,
		queue:      queue,
		tokens:     tokens,
		pacer:      pacer,
		cfg:        cfg,
		logger:     logger,
	}
}

// InspectionRequest describes one inspection cycle. A non-empty URL list
// bypasses the selector; otherwise Policies decides the candidate pool.
type InspectionRequest struct {
	PropertyID string
	URLs       []string
	Limit      int
	Policies   selector.Policies
}

// SubmissionRequest describes one submission cycle over an explicit URL list.
type SubmissionRequest struct {
	PropertyID string
	URLs       []string
	Action     indexer.SubmitAction
}

// RunInspection executes one inspection batch. Quota exhaustion is a normal
// zero-progress outcome, not an error; a token failure aborts the whole
// cycle with nothing committed.
func (r *Runner) RunInspection(ctx context.Context, req InspectionRequest) (indexer.BatchResult, error) {
	if err := validatePropertyID(req.PropertyID); err != nil {
		return indexer.BatchResult{}, err
	}
	explicit, err := normalizeURLs(req.URLs)
	if err != nil {
		return indexer.BatchResult{}, err
	}

	prop, err := r.properties.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return indexer.BatchResult{}, fmt.Errorf("load property: %w", err)
	}

	release := r.ledger.Acquire(prop.ID)
	defer release()

	remaining, err := r.ledger.Remaining(ctx, prop.ID, indexer.QuotaInspection)
	if err != nil {
		return indexer.BatchResult{}, err
	}
	if remaining == 0 {
		return indexer.BatchResult{QuotaRemaining: 0, Results: []indexer.ItemResult{}}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.cfg.DefaultBatchSize
	}
	count := min(limit, remaining)

	var candidates []indexer.CatalogEntry
	if len(explicit) > 0 {
		if len(explicit) > count {
			explicit = explicit[:count]
		}
		for _, u := range explicit {
			candidates = append(candidates, indexer.CatalogEntry{PropertyID: prop.ID, URL: u})
		}
	} else {
		policies := req.Policies
		if !policies.NeverInspected && !policies.RecentlyUpdated && !policies.OldestInspected {
			policies = selector.Policies{NeverInspected: true, OldestInspected: true}
		}
		candidates, err = r.selector.Select(ctx, prop.ID, count, policies)
		if err != nil {
			return indexer.BatchResult{}, err
		}
	}
	if len(candidates) == 0 {
		return indexer.BatchResult{QuotaRemaining: remaining, Results: []indexer.ItemResult{}}, nil
	}

	token, err := r.tokens.Token(ctx, prop.ID)
	if err != nil {
		return indexer.BatchResult{}, fmt.Errorf("acquire token: %w", err)
	}

	results := make([]indexer.ItemResult, 0, len(candidates))
	succeeded := 0
	for _, cand := range candidates {
		if err := r.pacer.Wait(ctx, prop.ID, indexer.QuotaInspection); err != nil {
			// context gone: commit what already succeeded, then bail
			r.commit(prop.ID, indexer.QuotaInspection, succeeded, remaining)
			return indexer.BatchResult{
				Processed:      len(results),
				Succeeded:      succeeded,
				QuotaRemaining: remaining - succeeded,
				Results:        results,
			}, err
		}

		outcome, callErr := r.inspector.Inspect(ctx, token, cand.URL, prop.SiteURL)
		if callErr != nil {
			outcome = indexer.InspectionOutcome{Verdict: indexer.VerdictUnknown}
			if recErr := r.recorder.RecordInspection(ctx, prop.ID, cand.ID, cand.URL, outcome); recErr != nil {
				r.logger.Warn("record failed inspection",
					zap.String("url", cand.URL), zap.Error(recErr))
			}
			results = append(results, indexer.ItemResult{
				URL:     cand.URL,
				Verdict: indexer.VerdictUnknown,
				Success: false,
				Error:   callErr.Error(),
			})
			continue
		}

		if recErr := r.recorder.RecordInspection(ctx, prop.ID, cand.ID, cand.URL, outcome); recErr != nil {
			r.logger.Error("record inspection",
				zap.String("url", cand.URL), zap.Error(recErr))
			results = append(results, indexer.ItemResult{
				URL:     cand.URL,
				Verdict: outcome.Verdict,
				Success: false,
				Error:   recErr.Error(),
			})
			continue
		}

		succeeded++
		results = append(results, indexer.ItemResult{
			URL:     cand.URL,
			Verdict: outcome.Verdict,
			Success: true,
		})
	}

	r.commit(prop.ID, indexer.QuotaInspection, succeeded, remaining)
	return indexer.BatchResult{
		Processed:      len(results),
		Succeeded:      succeeded,
		QuotaRemaining: remaining - succeeded,
		Results:        results,
	}, nil
}

// RunSubmission submits as many URLs as today's budget allows and defers the
// overflow as pending queue items.
func (r *Runner) RunSubmission(ctx context.Context, req SubmissionRequest) (indexer.BatchResult, error) {
	if err := validatePropertyID(req.PropertyID); err != nil {
		return indexer.BatchResult{}, err
	}
	if len(req.URLs) == 0 {
		return indexer.BatchResult{}, fmt.Errorf("%w: urls required", ErrInvalidRequest)
	}
	urls, err := normalizeURLs(req.URLs)
	if err != nil {
		return indexer.BatchResult{}, err
	}
	action := req.Action
	if action == "" {
		action = indexer.ActionURLUpdated
	}

	prop, err := r.properties.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return indexer.BatchResult{}, fmt.Errorf("load property: %w", err)
	}

	release := r.ledger.Acquire(prop.ID)
	defer release()

	remaining, err := r.ledger.Remaining(ctx, prop.ID, indexer.QuotaSubmission)
	if err != nil {
		return indexer.BatchResult{}, err
	}

	direct := min(len(urls), remaining)
	results := make([]indexer.ItemResult, 0, len(urls))
	succeeded := 0

	if direct > 0 {
		token, err := r.tokens.Token(ctx, prop.ID)
		if err != nil {
			return indexer.BatchResult{}, fmt.Errorf("acquire token: %w", err)
		}
		for _, u := range urls[:direct] {
			if err := r.pacer.Wait(ctx, prop.ID, indexer.QuotaSubmission); err != nil {
				r.commit(prop.ID, indexer.QuotaSubmission, succeeded, remaining)
				return indexer.BatchResult{
					Processed:      len(results),
					Succeeded:      succeeded,
					QuotaRemaining: remaining - succeeded,
					Results:        results,
				}, err
			}
			callErr := r.inspector.Submit(ctx, token, u, action)
			recErr := r.recorder.RecordSubmission(ctx, prop.ID, u, action, 1, callErr)
			switch {
			case callErr != nil:
				results = append(results, indexer.ItemResult{
					URL: u, Status: indexer.QueueFailed, Success: false, Error: callErr.Error(),
				})
			case recErr != nil:
				results = append(results, indexer.ItemResult{
					URL: u, Status: indexer.QueueFailed, Success: false, Error: recErr.Error(),
				})
			default:
				succeeded++
				results = append(results, indexer.ItemResult{
					URL: u, Status: indexer.QueueSubmitted, Success: true,
				})
			}
		}
	}

	enqueued := 0
	for _, u := range urls[direct:] {
		if err := r.recorder.EnqueueDeferred(ctx, prop.ID, u, action); err != nil {
			results = append(results, indexer.ItemResult{
				URL: u, Status: indexer.QueueFailed, Success: false, Error: err.Error(),
			})
			continue
		}
		enqueued++
		results = append(results, indexer.ItemResult{
			URL: u, Status: indexer.QueuePending, Success: true,
		})
	}

	r.commit(prop.ID, indexer.QuotaSubmission, succeeded, remaining)
	return indexer.BatchResult{
		Processed:      direct,
		Succeeded:      succeeded,
		Enqueued:       enqueued,
		QuotaRemaining: remaining - succeeded,
		Results:        results,
	}, nil
}

// RetryQueued drains failed and pending queue items, oldest first, under
// today's submission budget.
func (r *Runner) RetryQueued(ctx context.Context, propertyID string) (indexer.BatchResult, error) {
	if err := validatePropertyID(propertyID); err != nil {
		return indexer.BatchResult{}, err
	}
	prop, err := r.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return indexer.BatchResult{}, fmt.Errorf("load property: %w", err)
	}

	release := r.ledger.Acquire(prop.ID)
	defer release()

	remaining, err := r.ledger.Remaining(ctx, prop.ID, indexer.QuotaSubmission)
	if err != nil {
		return indexer.BatchResult{}, err
	}
	if remaining == 0 {
		return indexer.BatchResult{QuotaRemaining: 0, Results: []indexer.ItemResult{}}, nil
	}

	items, err := r.queue.ListRetryable(ctx, prop.ID, min(remaining, r.cfg.DefaultBatchSize))
	if err != nil {
		return indexer.BatchResult{}, fmt.Errorf("list retryable submissions: %w", err)
	}
	if len(items) == 0 {
		return indexer.BatchResult{QuotaRemaining: remaining, Results: []indexer.ItemResult{}}, nil
	}

	token, err := r.tokens.Token(ctx, prop.ID)
	if err != nil {
		return indexer.BatchResult{}, fmt.Errorf("acquire token: %w", err)
	}

	results := make([]indexer.ItemResult, 0, len(items))
	succeeded := 0
	for _, item := range items {
		if err := r.pacer.Wait(ctx, prop.ID, indexer.QuotaSubmission); err != nil {
			r.commit(prop.ID, indexer.QuotaSubmission, succeeded, remaining)
			return indexer.BatchResult{
				Processed:      len(results),
				Succeeded:      succeeded,
				QuotaRemaining: remaining - succeeded,
				Results:        results,
			}, err
		}
		callErr := r.inspector.Submit(ctx, token, item.URL, item.Action)
		recErr := r.recorder.RecordSubmission(ctx, prop.ID, item.URL, item.Action, item.Attempts+1, callErr)
		switch {
		case callErr != nil:
			results = append(results, indexer.ItemResult{
				URL: item.URL, Status: indexer.QueueFailed, Success: false, Error: callErr.Error(),
			})
		case recErr != nil:
			results = append(results, indexer.ItemResult{
				URL: item.URL, Status: indexer.QueueFailed, Success: false, Error: recErr.Error(),
			})
		default:
			succeeded++
			results = append(results, indexer.ItemResult{
				URL: item.URL, Status: indexer.QueueSubmitted, Success: true,
			})
		}
	}

	r.commit(prop.ID, indexer.QuotaSubmission, succeeded, remaining)
	return indexer.BatchResult{
		Processed:      len(results),
		Succeeded:      succeeded,
		QuotaRemaining: remaining - succeeded,
		Results:        results,
	}, nil
}

func (r *Runner) commit(propertyID string, kind indexer.QuotaKind, succeeded, before int) {
	// a failed commit under-reports usage; the batch result still stands
	if err := r.ledger.Commit(context.Background(), propertyID, kind, succeeded); err != nil {
		r.logger.Error("quota commit",
			zap.String("property_id", propertyID),
			zap.String("kind", string(kind)),
			zap.Int("count", succeeded),
			zap.Error(err),
		)
	}
	metrics.SetQuotaRemaining(propertyID, string(kind), before-succeeded)
}

func validatePropertyID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: property id required", ErrInvalidRequest)
	}
	return nil
}

// normalizeURLs validates and deduplicates an explicit URL list, preserving
// first-seen order.
func normalizeURLs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		trimmed := strings.TrimSpace(u)
		parsed, err := url.Parse(trimmed)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("%w: invalid url %q", ErrInvalidRequest, u)
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out, nil
}
