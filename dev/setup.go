package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	devenv "nrega-scraper/dev/env"
	"nrega-scraper/internal/history/db"
)

const historyFile = "<dev_state>/history.db"

func CreateHistoryDB() error {
	path, err := devenv.ResolvePath(historyFile)
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer database.Close()
	_, err = database.Exec(db.Schema)
	return err
}

const exampleConfig = `{
  port: 8080,
  targets_file: "config/targets.json5",
  // every day at 06:00 IST
  schedule: "0 6 * * *",
  history: { file: "<dev_state>/history.db" },
  diagnostics: { auto_run: "never" },
}
`

const exampleTargets = `{
  // keys are job names, the old script names (e.g. "A1.cjs") work too
  targets: {
    tracking: { spreadsheetId: "", tab: "data" },
    a1: { spreadsheetId: "", tab: "R1.1" },
    labour: { spreadsheetId: "", tab: "R6.09" },
    master: { spreadsheetId: "", tab: "Sheet5" },
    link: { spreadsheetId: "", tab: "link" },
    achiv: { spreadsheetId: "", tab: "achiv" },
    works: { spreadsheetId: "", readTab: "Sheet3", writeTab: "Sheet5" },
  },
  log: { spreadsheetId: "", tab: "Runs" },
}
`

func writeIfMissing(path, contents string) error {
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("config already present at", path)
		return nil
	}
	err = os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return err
	}
	fmt.Println("writing example config to", path)
	return os.WriteFile(path, []byte(contents), 0644)
}

// WriteExampleConfigs writes local overrides, they are merged over the
// checked in files by configutil.ReadConfig.
func WriteExampleConfigs() error {
	err := writeIfMissing("config.local.json5", exampleConfig)
	if err != nil {
		return err
	}
	return writeIfMissing("config/targets.local.json5", exampleTargets)
}

func PrintConfigLocations() {
	slog.Info("fill in the spreadsheet ids in config/targets.local.json5 and put the base64 service account key into GOOGLE_CREDENTIALS_BASE64 (a .env file works) before running cmd/scraper-cli.")
}
