package targets

import (
	"os"
	"path/filepath"
	"testing"

	"nrega-scraper/internal/model"

	"github.com/stretchr/testify/require"
)

var a1 = Target{Name: "a1", Aliases: []string{"A1.cjs"}, DefaultTab: "R1.1"}
var works = Target{Name: "works", DefaultTab: "Sheet5", DefaultReadTab: "Sheet3"}

func envOf(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestResolveFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json5")
	err := os.WriteFile(path, []byte(`{
		targets: {
			"A1.cjs": {spreadsheetId: "sheet-a1", tab: "R1.1 copy"},
			works: {spreadsheetId: "sheet-works", readTab: "Sheet3", writeTab: "Sheet5"},
			labour: {tab: "L"},
		},
		log: {spreadsheetId: "sheet-log", tab: "Runs"},
	}`), 0600)
	require.NoError(t, err)

	r, err := Load(path)
	require.NoError(t, err)
	require.True(t, r.HasFile())

	dest, err := r.Resolve(a1)
	require.NoError(t, err)
	require.Equal(t, model.Destination{SpreadsheetID: "sheet-a1", Tab: "R1.1 copy", ReadTab: "R1.1 copy"}, dest)

	dest, err = r.Resolve(works)
	require.NoError(t, err)
	require.Equal(t, "Sheet5", dest.Tab)
	require.Equal(t, "Sheet3", dest.ReadTab)

	_, err = r.Resolve(Target{Name: "master"})
	require.ErrorContains(t, err, "no mapping")
	require.Equal(t, model.KindConfig, model.KindOf(err))

	_, err = r.Resolve(Target{Name: "labour"})
	require.ErrorContains(t, err, "missing spreadsheet id")

	log, err := r.Log()
	require.NoError(t, err)
	require.Equal(t, "sheet-log", log.SpreadsheetID)

	require.Equal(t, []string{"A1.cjs", "labour", "works"}, r.Targets())
}

func TestResolveEnvFallback(t *testing.T) {
	r := FromEnv(envOf(map[string]string{
		"SHEET_ID":    "shared",
		"A1_SHEET_ID": "a1-only",
	}))

	dest, err := r.Resolve(a1)
	require.NoError(t, err)
	require.Equal(t, "a1-only", dest.SpreadsheetID)
	require.Equal(t, "R1.1", dest.Tab)

	dest, err = r.Resolve(works)
	require.NoError(t, err)
	require.Equal(t, "shared", dest.SpreadsheetID)
	require.Equal(t, "Sheet5", dest.Tab)
	require.Equal(t, "Sheet3", dest.ReadTab)

	log, err := r.Log()
	require.NoError(t, err)
	require.Equal(t, model.Destination{SpreadsheetID: "shared", Tab: "Runs"}, log)
}

func TestResolveEnvTabOverride(t *testing.T) {
	r := FromEnv(envOf(map[string]string{
		"SHEET_ID":  "shared",
		"SHEET_TAB": "Everything",
		"A1_TAB":    "R1.2",
	}))

	dest, err := r.Resolve(a1)
	require.NoError(t, err)
	require.Equal(t, "R1.2", dest.Tab)

	dest, err = r.Resolve(Target{Name: "master", DefaultTab: "M"})
	require.NoError(t, err)
	require.Equal(t, "Everything", dest.Tab)
}

func TestResolveNoID(t *testing.T) {
	r := FromEnv(envOf(nil))
	_, err := r.Resolve(a1)
	require.ErrorContains(t, err, "missing spreadsheet id")
	_, err = r.Log()
	require.Equal(t, model.KindConfig, model.KindOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "targets.json5"))
	require.NoError(t, err)
	require.False(t, r.HasFile())
	require.Empty(t, r.Targets())
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{targets: `), 0600))
	_, err := Load(path)
	require.Equal(t, model.KindConfig, model.KindOf(err))
}
