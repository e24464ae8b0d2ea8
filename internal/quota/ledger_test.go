package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voralis/indexwatch/internal/indexer"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// memQuotaStore is an in-memory QuotaStore with the same date-aware
// additive semantics as the Postgres implementation.
type memQuotaStore struct {
	mu    sync.Mutex
	usage map[string]indexer.QuotaUsage
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{usage: make(map[string]indexer.QuotaUsage)}
}

func (s *memQuotaStore) key(propertyID string, kind indexer.QuotaKind) string {
	return propertyID + "/" + string(kind)
}

func (s *memQuotaStore) Usage(_ context.Context, propertyID string, kind indexer.QuotaKind) (indexer.QuotaUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[s.key(propertyID, kind)], nil
}

func (s *memQuotaStore) AddUsage(_ context.Context, propertyID string, kind indexer.QuotaKind, n int, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(propertyID, kind)
	cur := s.usage[k]
	if cur.Day == day {
		cur.Used += n
	} else {
		cur.Used = n
		cur.Day = day
	}
	s.usage[k] = cur
	return nil
}

func (s *memQuotaStore) seed(propertyID string, kind indexer.QuotaKind, used int, day string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[s.key(propertyID, kind)] = indexer.QuotaUsage{Used: used, Day: day}
}

func newTestLedger(store indexer.QuotaStore, now time.Time) *Ledger {
	return NewLedger(store, fakeClock{now: now}, Config{
		InspectionDailyLimit: 2000,
		SubmissionDailyLimit: 200,
	}, nil)
}

func TestRemainingFullWhenUnused(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ledger := newTestLedger(newMemQuotaStore(), now)

	remaining, err := ledger.Remaining(context.Background(), "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Equal(t, 2000, remaining)
}

func TestRemainingResetsOnNewDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	store := newMemQuotaStore()
	store.seed("prop-1", indexer.QuotaInspection, 1999, "2026-03-09")
	ledger := newTestLedger(store, now)

	remaining, err := ledger.Remaining(context.Background(), "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Equal(t, 2000, remaining)
}

func TestRemainingSubtractsTodayUsage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemQuotaStore()
	store.seed("prop-1", indexer.QuotaInspection, 1998, "2026-03-10")
	ledger := newTestLedger(store, now)

	remaining, err := ledger.Remaining(context.Background(), "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Equal(t, 2, remaining)
}

func TestRemainingNeverNegative(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemQuotaStore()
	store.seed("prop-1", indexer.QuotaSubmission, 500, "2026-03-10")
	ledger := newTestLedger(store, now)

	remaining, err := ledger.Remaining(context.Background(), "prop-1", indexer.QuotaSubmission)
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
}

func TestCommitIsAdditiveAndMonotonic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemQuotaStore()
	ledger := newTestLedger(store, now)
	ctx := context.Background()

	require.NoError(t, ledger.Commit(ctx, "prop-1", indexer.QuotaInspection, 5))
	require.NoError(t, ledger.Commit(ctx, "prop-1", indexer.QuotaInspection, 3))

	usage, err := store.Usage(ctx, "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Equal(t, 8, usage.Used)
	require.Equal(t, "2026-03-10", usage.Day)
}

func TestCommitZeroIsNoOp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemQuotaStore()
	ledger := newTestLedger(store, now)
	ctx := context.Background()

	require.NoError(t, ledger.Commit(ctx, "prop-1", indexer.QuotaInspection, 0))
	require.NoError(t, ledger.Commit(ctx, "prop-1", indexer.QuotaInspection, -4))

	usage, err := store.Usage(ctx, "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Zero(t, usage.Used)
}

func TestKindsHaveIndependentBudgets(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemQuotaStore()
	store.seed("prop-1", indexer.QuotaInspection, 2000, "2026-03-10")
	ledger := newTestLedger(store, now)
	ctx := context.Background()

	inspRemaining, err := ledger.Remaining(ctx, "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Zero(t, inspRemaining)

	subRemaining, err := ledger.Remaining(ctx, "prop-1", indexer.QuotaSubmission)
	require.NoError(t, err)
	require.Equal(t, 200, subRemaining)
}

func TestAcquireSerializesCyclesPerProperty(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemQuotaStore()
	ledger := NewLedger(store, fakeClock{now: now}, Config{
		InspectionDailyLimit: 10,
		SubmissionDailyLimit: 10,
	}, nil)
	ctx := context.Background()

	// Each goroutine runs a full reserve-then-commit cycle under the
	// property lock; the sum of commits must never exceed the limit.
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := ledger.Acquire("prop-1")
			defer release()

			remaining, err := ledger.Remaining(ctx, "prop-1", indexer.QuotaInspection)
			require.NoError(t, err)
			if remaining == 0 {
				return
			}
			n := 3
			if n > remaining {
				n = remaining
			}
			require.NoError(t, ledger.Commit(ctx, "prop-1", indexer.QuotaInspection, n))
		}()
	}
	wg.Wait()

	usage, err := store.Usage(ctx, "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.LessOrEqual(t, usage.Used, 10)
	require.Equal(t, 10, usage.Used)
}

func TestAcquireDistinctPropertiesDoNotBlock(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(newMemQuotaStore(), time.Now().UTC())

	releaseA := ledger.Acquire("prop-a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := ledger.Acquire("prop-b")
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different property blocked")
	}
}
