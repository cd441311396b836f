package extract

import (
	"fmt"
	"strings"

	"nrega-scraper/internal/model"
	"nrega-scraper/lib/textutil"

	"github.com/antzucaro/matchr"
)

type Match int

const (
	All Match = iota
	Any
)

// Selector is one strategy for locating a table on a page.
type Selector interface {
	Select(page *Page) (Table, bool)
	String() string
}

// ByIndex picks the table at Index if it has at least MinRows non-empty rows.
type ByIndex struct {
	Index   int
	MinRows int
}

func (s ByIndex) Select(page *Page) (Table, bool) {
	if s.Index < 0 || s.Index >= len(page.Tables) {
		return Table{}, false
	}
	t := page.Tables[s.Index]
	if len(t.NonEmptyRows()) < s.MinRows {
		return Table{}, false
	}
	return t, true
}

func (s ByIndex) String() string {
	return fmt.Sprintf("index %d (min rows %d)", s.Index, s.MinRows)
}

// ByHeader picks the first table whose first non-empty row carries the
// keywords. With Fuzzy > 0 a keyword also matches a header cell whose
// Jaro-Winkler similarity is at least Fuzzy.
type ByHeader struct {
	Keywords []string
	Match    Match
	MinRows  int
	Fuzzy    float64
}

func (s ByHeader) cellMatches(cells []string, keyword string) bool {
	if textutil.MatchKeywords(strings.Join(cells, " | "), []string{keyword}, true) {
		return true
	}
	if s.Fuzzy <= 0 {
		return false
	}
	upper := strings.ToUpper(keyword)
	for _, cell := range cells {
		if matchr.JaroWinkler(strings.ToUpper(cell), upper, false) >= s.Fuzzy {
			return true
		}
	}
	return false
}

func (s ByHeader) headerMatches(header []string) bool {
	if len(s.Keywords) == 0 {
		return false
	}
	for _, k := range s.Keywords {
		found := s.cellMatches(header, k)
		if s.Match == All && !found {
			return false
		}
		if s.Match == Any && found {
			return true
		}
	}
	return s.Match == All
}

func (s ByHeader) Select(page *Page) (Table, bool) {
	for _, t := range page.Tables {
		rows := t.NonEmptyRows()
		if len(rows) == 0 || len(rows) < s.MinRows {
			continue
		}
		if s.headerMatches(rows[0]) {
			return t, true
		}
	}
	return Table{}, false
}

func (s ByHeader) String() string {
	return fmt.Sprintf("header %v", s.Keywords)
}

// ByText picks the first table whose flattened text carries the keywords.
type ByText struct {
	Keywords []string
	Match    Match
}

func (s ByText) Select(page *Page) (Table, bool) {
	for _, t := range page.Tables {
		if textutil.MatchKeywords(t.Text, s.Keywords, s.Match == All) {
			return t, true
		}
	}
	return Table{}, false
}

func (s ByText) String() string {
	return fmt.Sprintf("text %v", s.Keywords)
}

// ByLeadingCell picks the innermost table holding a row whose first cell is
// exactly Text.
type ByLeadingCell struct {
	Text string
}

func (s ByLeadingCell) Select(page *Page) (Table, bool) {
	var (
		found Table
		ok    bool
	)
	for _, t := range page.Tables {
		if leadIndex(t.Rows, s.Text) < 0 {
			continue
		}
		// nested tables come after their parents and have fewer rows
		if !ok || len(t.Rows) <= len(found.Rows) {
			found, ok = t, true
		}
	}
	return found, ok
}

func (s ByLeadingCell) String() string {
	return fmt.Sprintf("leading cell %q", s.Text)
}

// Largest picks the table with the most non-empty rows.
type Largest struct{}

func (Largest) Select(page *Page) (Table, bool) {
	var (
		best  Table
		count = -1
	)
	for _, t := range page.Tables {
		n := len(t.NonEmptyRows())
		if n > count {
			best, count = t, n
		}
	}
	return best, count > 0
}

func (Largest) String() string {
	return "largest"
}

func leadIndex(rows model.Grid, text string) int {
	for i, row := range rows {
		if len(row) > 0 && row[0] == text {
			return i
		}
	}
	return -1
}

// Pick tries selectors in order and returns the first match along with the
// position of the selector that produced it.
func Pick(page *Page, selectors []Selector, what string) (Table, int, error) {
	for i, s := range selectors {
		t, ok := s.Select(page)
		if ok {
			return t, i, nil
		}
	}
	return Table{}, -1, model.ParseError{
		URL:    page.URL,
		Reason: what + " not found",
	}
}
