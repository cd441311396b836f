package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"nrega-scraper/internal/credentials"
	"nrega-scraper/internal/model"

	"github.com/stretchr/testify/require"
)

func TestRunClosesHistoryOnStartupError(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	configPath := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`{
		targets_file: %q,
		history: {file: %q},
	}`, filepath.Join(dir, "targets.json5"), dbPath)), 0600))

	t.Setenv(credentials.EnvVar, "")
	t.Setenv("PORT", "")
	t.Setenv("SCHEDULE", "")

	err := run(context.Background(), configPath, false)
	require.Equal(t, model.KindConfig, model.KindOf(err))
	require.ErrorContains(t, err, "credentials")

	// the history database was created and then closed, sqlite removes the
	// write-ahead log once the last connection is gone
	require.FileExists(t, dbPath)
	require.NoFileExists(t, dbPath+"-wal")
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Setenv("SCHEDULE", "every morning")
	err := run(context.Background(), filepath.Join(t.TempDir(), "config.json5"), false)
	require.Equal(t, model.KindConfig, model.KindOf(err))
}
