package sheets

import (
	"context"
	"sync"

	"nrega-scraper/internal/model"
)

type Call struct {
	Op            string
	SpreadsheetID string
	Range         string
	Rows          model.Grid
	Mode          Mode
}

// Memory is an in-memory API that records every call, used in tests of the
// packages that write to sheets.
type Memory struct {
	mu    sync.Mutex
	calls []Call
	// Values are returned by Read, keyed by range.
	Values map[string]model.Grid
	// Fail, if set, is consulted before every call and its error returned.
	Fail func(op, rng string) error
}

func NewMemory() *Memory {
	return &Memory{Values: map[string]model.Grid{}}
}

func (m *Memory) record(call Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		err := m.Fail(call.Op, call.Range)
		if err != nil {
			return err
		}
	}
	m.calls = append(m.calls, call)
	return nil
}

func (m *Memory) Append(ctx context.Context, spreadsheetID, rng string, rows model.Grid) error {
	return m.record(Call{Op: "append", SpreadsheetID: spreadsheetID, Range: rng, Rows: rows})
}

func (m *Memory) Update(ctx context.Context, spreadsheetID, rng string, rows model.Grid, mode Mode) error {
	return m.record(Call{Op: "update", SpreadsheetID: spreadsheetID, Range: rng, Rows: rows, Mode: mode})
}

func (m *Memory) Clear(ctx context.Context, spreadsheetID, rng string) error {
	return m.record(Call{Op: "clear", SpreadsheetID: spreadsheetID, Range: rng})
}

func (m *Memory) Read(ctx context.Context, spreadsheetID, rng string) (model.Grid, error) {
	err := m.record(Call{Op: "read", SpreadsheetID: spreadsheetID, Range: rng})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Values[rng], nil
}

func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Ops returns the calls with the given op, in order.
func (m *Memory) Ops(op string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Appended concatenates every row appended to the given range.
func (m *Memory) Appended(spreadsheetID, rng string) model.Grid {
	var out model.Grid
	for _, c := range m.Ops("append") {
		if c.SpreadsheetID == spreadsheetID && c.Range == rng {
			out = append(out, c.Rows...)
		}
	}
	return out
}
