// Package quota tracks per-property daily consumption against fixed budgets.
package quota

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/indexer"
)

// DayFormat is the storage layout of a quota day.
const DayFormat = "2006-01-02"

// Config fixes the daily limits per budget kind.
type Config struct {
	InspectionDailyLimit int
	SubmissionDailyLimit int
}

// Ledger reads and commits daily usage counters. Commits are additive and
// date-aware at the storage layer; on top of that a keyed mutex serializes
// whole reserve-to-commit cycles per property in-process, so two concurrent
// cycles cannot both read a stale remaining value.
type Ledger struct {
	store  indexer.QuotaStore
	clock  indexer.Clock
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger constructs a Ledger.
func NewLedger(store indexer.QuotaStore, clock indexer.Clock, cfg Config, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Acquire locks the property for one full processing cycle and returns the
// release function.
func (l *Ledger) Acquire(propertyID string) func() {
	l.mu.Lock()
	m, ok := l.locks[propertyID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[propertyID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Remaining returns the unconsumed budget for today. A stored counter under
// a stale date is treated as zero; the raw value is never trusted.
func (l *Ledger) Remaining(ctx context.Context, propertyID string, kind indexer.QuotaKind) (int, error) {
	usage, err := l.store.Usage(ctx, propertyID, kind)
	if err != nil {
		return 0, fmt.Errorf("read quota usage: %w", err)
	}
	today := l.today()
	effective := usage.Used
	if usage.Day != today {
		effective = 0
	}
	remaining := l.limit(kind) - effective
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Commit adds the number of successful operations to today's counter.
// Failed calls never consume budget; a zero or negative count is a no-op.
func (l *Ledger) Commit(ctx context.Context, propertyID string, kind indexer.QuotaKind, n int) error {
	if n <= 0 {
		return nil
	}
	today := l.today()
	if err := l.store.AddUsage(ctx, propertyID, kind, n, today); err != nil {
		return fmt.Errorf("commit quota usage: %w", err)
	}
	l.logger.Debug("quota committed",
		zap.String("property_id", propertyID),
		zap.String("kind", string(kind)),
		zap.Int("count", n),
		zap.String("day", today),
	)
	return nil
}

// Limit returns the fixed daily budget for a kind.
func (l *Ledger) Limit(kind indexer.QuotaKind) int {
	return l.limit(kind)
}

func (l *Ledger) limit(kind indexer.QuotaKind) int {
	switch kind {
	case indexer.QuotaSubmission:
		return l.cfg.SubmissionDailyLimit
	default:
		return l.cfg.InspectionDailyLimit
	}
}

func (l *Ledger) today() string {
	return l.clock.Now().UTC().Format(DayFormat)
}
