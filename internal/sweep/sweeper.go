// Package sweep runs the autonomous periodic pass over all eligible
// properties.
package sweep

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/metrics"
	"github.com/voralis/indexwatch/internal/runner"
	"github.com/voralis/indexwatch/internal/selector"
)

// BatchRunner is the per-property cycle surface the sweeper needs.
type BatchRunner interface {
	RunInspection(ctx context.Context, req runner.InspectionRequest) (indexer.BatchResult, error)
	RetryQueued(ctx context.Context, propertyID string) (indexer.BatchResult, error)
}

// Config controls sweep behavior.
type Config struct {
	// Concurrency bounds how many properties run at once. Items within one
	// property stay strictly sequential regardless.
	Concurrency int
}

// Sweeper iterates all auto-enabled properties, isolating per-property
// failures so one bad property never stops the rest.
type Sweeper struct {
	properties indexer.PropertyStore
	runner     BatchRunner
	snapshots  indexer.Snapshotter
	clock      indexer.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Sweeper. snapshots may be nil to disable the history
// side effect.
func New(
	properties indexer.PropertyStore,
	batchRunner BatchRunner,
	snapshots indexer.Snapshotter,
	clock indexer.Clock,
	cfg Config,
	logger *zap.Logger,
) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		properties: properties,
		runner:     batchRunner,
		snapshots:  snapshots,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one full pass and reports per-property outcomes. Only a
// failure to list the properties themselves is returned as an error.
func (s *Sweeper) Run(ctx context.Context) (indexer.SweepReport, error) {
	metrics.ObserveSweepRun()
	report := indexer.SweepReport{StartedAt: s.clock.Now()}

	props, err := s.properties.ListAutoInspect(ctx)
	if err != nil {
		return report, fmt.Errorf("list auto-inspect properties: %w", err)
	}
	s.logger.Info("sweep started", zap.Int("properties", len(props)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, prop := range props {
		g.Go(func() error {
			pr := s.sweepProperty(gctx, prop)
			mu.Lock()
			report.Properties = append(report.Properties, pr)
			mu.Unlock()
			// per-property errors live in the report, never abort the group
			return nil
		})
	}
	// the group never returns an error; Wait only fences the goroutines
	_ = g.Wait()

	report.FinishedAt = s.clock.Now()
	s.logger.Info("sweep finished",
		zap.Int("properties", len(report.Properties)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *Sweeper) sweepProperty(ctx context.Context, prop indexer.Property) indexer.PropertyReport {
	pr := indexer.PropertyReport{PropertyID: prop.ID}
	logger := s.logger.With(zap.String("property_id", prop.ID))

	res, err := s.runner.RunInspection(ctx, runner.InspectionRequest{
		PropertyID: prop.ID,
		Policies: selector.Policies{
			NeverInspected:  prop.AutoInspectNew,
			RecentlyUpdated: prop.AutoInspectUpdated,
		},
	})
	if err != nil {
		logger.Error("property sweep failed", zap.Error(err))
		metrics.ObserveSweepPropertyFailure()
		pr.Error = err.Error()
		return pr
	}
	pr.Processed = res.Processed
	pr.Succeeded = res.Succeeded
	pr.QuotaRemaining = res.QuotaRemaining

	retry, err := s.runner.RetryQueued(ctx, prop.ID)
	if err != nil {
		// retries ride along; their failure does not fail the property
		logger.Warn("queued submission retry failed", zap.Error(err))
	} else {
		pr.Retried = retry.Succeeded
	}

	if res.Succeeded > 0 {
		s.afterSuccess(ctx, prop, logger)
	}
	return pr
}

// afterSuccess triggers the non-fatal side effects of a productive cycle.
func (s *Sweeper) afterSuccess(ctx context.Context, prop indexer.Property, logger *zap.Logger) {
	now := s.clock.Now()
	if s.snapshots != nil {
		if err := s.snapshots.Snapshot(ctx, prop.ID, now); err != nil {
			logger.Warn("inspection snapshot failed", zap.Error(err))
		}
	}
	if err := s.properties.TouchLastSync(ctx, prop.ID, now); err != nil {
		logger.Warn("touch last sync failed", zap.Error(err))
	}
}
