package sheets

import (
	"context"

	"nrega-scraper/internal/model"
)

// Mode controls how written values are interpreted by the spreadsheet.
type Mode string

const (
	// Raw stores values literally.
	Raw Mode = "RAW"
	// UserEntered parses values as if typed into the UI (numbers, dates, formulas).
	UserEntered Mode = "USER_ENTERED"
)

// API is the set of spreadsheet operations jobs and the orchestrator need.
//
// note: fault injection point
type API interface {
	// Append adds rows after the last row of the table found in rng.
	Append(ctx context.Context, spreadsheetID, rng string, rows model.Grid) error
	// Update overwrites the cells starting at rng.
	Update(ctx context.Context, spreadsheetID, rng string, rows model.Grid, mode Mode) error
	// Read returns the values in rng, an empty grid when there are none.
	Read(ctx context.Context, spreadsheetID, rng string) (model.Grid, error)
	// Clear empties every cell in rng.
	Clear(ctx context.Context, spreadsheetID, rng string) error
}
