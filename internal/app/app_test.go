package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresDatabaseDSN(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "db.dsn")
}

func TestNewRejectsMissingConfigFile(t *testing.T) {
	_, err := New(context.Background(), "/does/not/exist.yaml")
	require.Error(t, err)
}
