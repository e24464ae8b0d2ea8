package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/voralis/indexwatch/internal/indexer"
)

func TestQuotaStoreUsageReadsCounterAndDay(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewQuotaStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("FROM property_quota").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"inspection_used", "inspection_day"}).
			AddRow(1998, "2026-08-31"))

	usage, err := store.Usage(context.Background(), "prop-1", indexer.QuotaInspection)
	require.NoError(t, err)
	require.Equal(t, indexer.QuotaUsage{Used: 1998, Day: "2026-08-31"}, usage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaStoreUsageMissingRowIsZero(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewQuotaStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("FROM property_quota").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"submission_used", "submission_day"}))

	usage, err := store.Usage(context.Background(), "prop-1", indexer.QuotaSubmission)
	require.NoError(t, err)
	require.Zero(t, usage.Used)
	require.Empty(t, usage.Day)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaStoreAddUsageUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewQuotaStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO property_quota").
		WithArgs("prop-1", 3, "2026-08-31").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.AddUsage(context.Background(), "prop-1", indexer.QuotaInspection, 3, "2026-08-31")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaStoreRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewQuotaStore(mock)
	require.NoError(t, err)

	_, err = store.Usage(context.Background(), "prop-1", indexer.QuotaKind("bandwidth"))
	require.Error(t, err)

	err = store.AddUsage(context.Background(), "prop-1", indexer.QuotaKind("bandwidth"), 1, "2026-08-31")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
