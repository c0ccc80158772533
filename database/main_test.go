package database

import (
	"io"
	"log/slog"
	"testing"

	"github.com/siherrmann/vidrag/helper"
	"github.com/stretchr/testify/require"
)

// initDB opens a fresh SQLite database in a per-test temporary directory.
func initDB(t *testing.T) *helper.Database {
	t.Helper()

	dataDir := t.TempDir()
	helper.SetTestConfigEnvs(t, dataDir)

	config, err := helper.NewConfiguration()
	require.NoError(t, err, "Expected NewConfiguration to not return an error")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := helper.NewDatabase("vidrag_test", config, logger)
	require.NoError(t, err, "Expected NewDatabase to not return an error")

	t.Cleanup(func() {
		database.Instance.Close()
	})

	return database
}
