package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/voralis/indexwatch/internal/indexer"
)

func propertyRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "site_url", "tenant_id", "active",
		"auto_inspect_new", "auto_inspect_updated", "last_sync_at",
	})
}

func TestPropertyStoreGetProperty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPropertyStore(mock)
	require.NoError(t, err)

	synced := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("FROM properties").
		WithArgs("prop-1").
		WillReturnRows(propertyRows().
			AddRow("prop-1", "https://example.com/", "tenant-1", true, true, false, &synced))

	p, err := store.GetProperty(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", p.SiteURL)
	require.True(t, p.AutoInspectNew)
	require.False(t, p.AutoInspectUpdated)
	require.NotNil(t, p.LastSyncAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyStoreGetPropertyMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPropertyStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("FROM properties").
		WithArgs("nope").
		WillReturnRows(propertyRows())

	_, err = store.GetProperty(context.Background(), "nope")
	require.ErrorIs(t, err, indexer.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyStoreListAutoInspect(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPropertyStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("auto_inspect_new OR auto_inspect_updated").
		WillReturnRows(propertyRows().
			AddRow("prop-1", "https://example.com/", "tenant-1", true, true, false, nil).
			AddRow("prop-2", "https://example.org/", "tenant-1", true, false, true, nil))

	props, err := store.ListAutoInspect(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 2)
	require.Equal(t, "prop-2", props[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyStoreTouchLastSync(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPropertyStore(mock)
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE properties SET last_sync_at").
		WithArgs("prop-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.TouchLastSync(context.Background(), "prop-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyStoreTouchLastSyncMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPropertyStore(mock)
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE properties SET last_sync_at").
		WithArgs("nope", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.TouchLastSync(context.Background(), "nope", at)
	require.ErrorIs(t, err, indexer.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
