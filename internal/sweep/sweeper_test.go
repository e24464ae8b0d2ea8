package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/runner"
	"github.com/voralis/indexwatch/internal/selector"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeProperties struct {
	mu      sync.Mutex
	props   []indexer.Property
	listErr error
	touched []string
}

func (f *fakeProperties) GetProperty(_ context.Context, id string) (indexer.Property, error) {
	for _, p := range f.props {
		if p.ID == id {
			return p, nil
		}
	}
	return indexer.Property{}, errors.New("not found")
}

func (f *fakeProperties) ListAutoInspect(context.Context) ([]indexer.Property, error) {
	return f.props, f.listErr
}

func (f *fakeProperties) TouchLastSync(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type fakeRunner struct {
	mu          sync.Mutex
	results     map[string]indexer.BatchResult
	errs        map[string]error
	policies    map[string]selector.Policies
	retried     []string
	retryErr    error
	inspections []string
}

func (f *fakeRunner) RunInspection(_ context.Context, req runner.InspectionRequest) (indexer.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspections = append(f.inspections, req.PropertyID)
	if f.policies == nil {
		f.policies = make(map[string]selector.Policies)
	}
	f.policies[req.PropertyID] = req.Policies
	if err := f.errs[req.PropertyID]; err != nil {
		return indexer.BatchResult{}, err
	}
	return f.results[req.PropertyID], nil
}

func (f *fakeRunner) RetryQueued(_ context.Context, propertyID string) (indexer.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, propertyID)
	if f.retryErr != nil {
		return indexer.BatchResult{}, f.retryErr
	}
	return indexer.BatchResult{Succeeded: 1}, nil
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, propertyID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, propertyID)
	return f.err
}

func prop(id string, autoNew, autoUpdated bool) indexer.Property {
	return indexer.Property{
		ID: id, SiteURL: "https://" + id + ".example.com/",
		Active: true, AutoInspectNew: autoNew, AutoInspectUpdated: autoUpdated,
	}
}

func TestSweepIsolatesPropertyFailure(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{props: []indexer.Property{
		prop("p1", true, false),
		prop("p2", true, true),
		prop("p3", false, true),
	}}
	r := &fakeRunner{
		results: map[string]indexer.BatchResult{
			"p1": {Processed: 2, Succeeded: 2, QuotaRemaining: 10},
			"p3": {Processed: 1, Succeeded: 1, QuotaRemaining: 5},
		},
		errs: map[string]error{"p2": errors.New("acquire token: refresh rejected")},
	}
	snaps := &fakeSnapshotter{}
	s := New(props, r, snaps, fakeClock{now: time.Now().UTC()}, Config{Concurrency: 1}, nil)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Properties, 3)

	byID := make(map[string]indexer.PropertyReport)
	for _, pr := range report.Properties {
		byID[pr.PropertyID] = pr
	}
	require.Empty(t, byID["p1"].Error)
	require.Contains(t, byID["p2"].Error, "refresh rejected")
	require.Empty(t, byID["p3"].Error)

	// all three were attempted despite p2 failing
	require.Len(t, r.inspections, 3)
}

func TestSweepMapsAutoFlagsToPolicies(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{props: []indexer.Property{
		prop("new-only", true, false),
		prop("both", true, true),
	}}
	r := &fakeRunner{results: map[string]indexer.BatchResult{}}
	s := New(props, r, nil, fakeClock{now: time.Now().UTC()}, Config{}, nil)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, selector.Policies{NeverInspected: true}, r.policies["new-only"])
	require.Equal(t, selector.Policies{NeverInspected: true, RecentlyUpdated: true}, r.policies["both"])
}

func TestSweepSnapshotOnlyAfterSuccess(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{props: []indexer.Property{
		prop("productive", true, false),
		prop("idle", true, false),
	}}
	r := &fakeRunner{results: map[string]indexer.BatchResult{
		"productive": {Processed: 3, Succeeded: 3},
		"idle":       {Processed: 0, Succeeded: 0},
	}}
	snaps := &fakeSnapshotter{}
	s := New(props, r, snaps, fakeClock{now: time.Now().UTC()}, Config{}, nil)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"productive"}, snaps.calls)
	require.Equal(t, []string{"productive"}, props.touched)
}

func TestSweepSnapshotFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{props: []indexer.Property{prop("p1", true, false)}}
	r := &fakeRunner{results: map[string]indexer.BatchResult{
		"p1": {Processed: 1, Succeeded: 1},
	}}
	snaps := &fakeSnapshotter{err: errors.New("snapshot table full")}
	s := New(props, r, snaps, fakeClock{now: time.Now().UTC()}, Config{}, nil)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Properties[0].Error)
}

func TestSweepRetriesQueuedSubmissions(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{props: []indexer.Property{prop("p1", true, false)}}
	r := &fakeRunner{results: map[string]indexer.BatchResult{
		"p1": {Processed: 1, Succeeded: 1},
	}}
	s := New(props, r, nil, fakeClock{now: time.Now().UTC()}, Config{}, nil)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, r.retried)
	require.Equal(t, 1, report.Properties[0].Retried)
}

func TestSweepListFailureIsFatal(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{listErr: errors.New("db unreachable")}
	s := New(props, &fakeRunner{}, nil, fakeClock{now: time.Now().UTC()}, Config{}, nil)

	_, err := s.Run(context.Background())
	require.Error(t, err)
}

func TestSweepBoundedConcurrencyCoversAllProperties(t *testing.T) {
	t.Parallel()

	var list []indexer.Property
	results := map[string]indexer.BatchResult{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		list = append(list, prop(id, true, true))
		results[id] = indexer.BatchResult{Processed: 1, Succeeded: 1}
	}
	props := &fakeProperties{props: list}
	r := &fakeRunner{results: results}
	s := New(props, r, nil, fakeClock{now: time.Now().UTC()}, Config{Concurrency: 3}, nil)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Properties, 6)
	require.Len(t, r.inspections, 6)
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	t.Parallel()

	props := &fakeProperties{}
	s := New(props, &fakeRunner{}, nil, fakeClock{now: time.Now().UTC()}, Config{}, nil)

	_, err := NewScheduler("not a cron", s, nil)
	require.Error(t, err)

	sched, err := NewScheduler("0 3 * * *", s, nil)
	require.NoError(t, err)
	require.NotNil(t, sched)
}
