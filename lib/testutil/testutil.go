package testutil

import (
	"database/sql"
	"log/slog"
	"strings"
	"testing"

	devenv "nrega-scraper/dev/env"
	"nrega-scraper/lib/telemetry"

	_ "modernc.org/sqlite"
)

type DBParams struct {
	// if unspecified, no schema is applied
	Schema string
	// if unspecified, it will use `:memory:`
	Path string
}

// SetupDB opens a sqlite database for a test, the database is closed when
// the test ends.
func SetupDB(t testing.TB, params DBParams) *sql.DB {
	t.Helper()
	telemetry.InitSlog(testing.Verbose())

	dbpath := ":memory:"
	if params.Path != "" && params.Path != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.Path)
		if err != nil {
			t.Fatal(err)
		}
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every pooled connection to :memory: would be a different database
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() {
		err := sqlite.Close()
		if err != nil {
			slog.Warn("close test db", "err", err)
		}
	})

	if params.Schema != "" {
		_, err = sqlite.Exec(params.Schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}
	return sqlite
}
