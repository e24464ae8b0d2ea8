package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/voralis/indexwatch/internal/indexer"
)

func TestTokenStoreLoadToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTokenStore(mock)
	require.NoError(t, err)

	expiry := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("FROM property_tokens").
		WithArgs("prop-1").
		WillReturnRows(pgxmock.NewRows([]string{"access_token", "refresh_token", "expiry"}).
			AddRow("at-1", "rt-1", expiry))

	tok, err := store.LoadToken(context.Background(), "prop-1")
	require.NoError(t, err)
	require.Equal(t, indexer.StoredToken{AccessToken: "at-1", RefreshToken: "rt-1", Expiry: expiry}, tok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreLoadTokenMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTokenStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("FROM property_tokens").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"access_token", "refresh_token", "expiry"}))

	_, err = store.LoadToken(context.Background(), "nope")
	require.ErrorIs(t, err, indexer.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreSaveToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTokenStore(mock)
	require.NoError(t, err)

	expiry := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO property_tokens").
		WithArgs("prop-1", "at-2", "rt-1", expiry).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.SaveToken(context.Background(), "prop-1", indexer.StoredToken{
		AccessToken:  "at-2",
		RefreshToken: "rt-1",
		Expiry:       expiry,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
