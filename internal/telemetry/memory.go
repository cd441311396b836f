package telemetry

import "sync"

type Event struct {
	Level  string
	ID     string
	Params []any
}

// MemoryAPI keeps every report in memory so tests can assert on them.
type MemoryAPI struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryAPI) record(level, id string, params []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Level: level, ID: id, Params: params})
}

func (m *MemoryAPI) ReportBroken(id string, params ...any)  { m.record("broken", id, params) }
func (m *MemoryAPI) ReportWarning(id string, params ...any) { m.record("warning", id, params) }
func (m *MemoryAPI) ReportDebug(msg string, params ...any)  { m.record("debug", msg, params) }
func (m *MemoryAPI) ReportCount(id string, count int64)     { m.record("count", id, []any{count}) }

func (m *MemoryAPI) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Find returns every event with the given level and id.
func (m *MemoryAPI) Find(level, id string) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Level == level && e.ID == id {
			out = append(out, e)
		}
	}
	return out
}
