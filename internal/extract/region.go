package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"nrega-scraper/internal/model"
	"nrega-scraper/lib/htmlutil"
)

// Region describes which rows of which table make up a block of data.
type Region struct {
	Selectors []Selector
	// SkipHead and SkipTail drop rows by position before empty rows are
	// removed, e.g. to drop banner rows and a trailing total.
	SkipHead int
	SkipTail int
	// StartAtLead starts the region at the first row whose first cell equals
	// this text.
	StartAtLead string
	// UniformWidth stops the region at the first row whose width differs
	// from the first row of the region, or which is entirely empty.
	UniformWidth bool
	// Optional regions contribute no rows instead of failing when no
	// selector matches.
	Optional bool
}

func (r Region) Extract(page *Page, what string) (model.Grid, error) {
	t, _, err := Pick(page, r.Selectors, what)
	if err != nil {
		if r.Optional {
			return nil, nil
		}
		return nil, err
	}
	return r.slice(t.Rows), nil
}

func (r Region) slice(rows model.Grid) model.Grid {
	if r.StartAtLead != "" {
		idx := leadIndex(rows, r.StartAtLead)
		if idx < 0 {
			return nil
		}
		rows = rows[idx:]
	}

	if r.SkipHead > 0 {
		if r.SkipHead >= len(rows) {
			return nil
		}
		rows = rows[r.SkipHead:]
	}
	if r.SkipTail > 0 {
		if r.SkipTail >= len(rows) {
			return nil
		}
		rows = rows[:len(rows)-r.SkipTail]
	}

	if r.UniformWidth && len(rows) > 0 {
		width := len(rows[0])
		end := len(rows)
		for i := 1; i < len(rows); i++ {
			if len(rows[i]) != width || len(htmlutil.DropEmptyRows(rows[i:i+1])) == 0 {
				end = i
				break
			}
		}
		rows = rows[:end]
	}

	return htmlutil.DropEmptyRows(rows)
}

// InfoRow is a single cell summarizing a page, either the flattened text of
// a region or a formatted regex capture out of it.
type InfoRow struct {
	Selectors []Selector
	// Pattern, if set, is matched against the region text and its first
	// capture group formatted with Format.
	Pattern *regexp.Regexp
	Format  string
	// Missing is used when Pattern does not match. When the region itself
	// is missing the job fails unless Missing is set.
	Missing string
}

func (i InfoRow) Extract(page *Page) (string, error) {
	t, _, err := Pick(page, i.Selectors, "info table")
	if err != nil {
		if i.Missing != "" {
			return i.Missing, nil
		}
		return "", err
	}
	if i.Pattern == nil {
		return t.Text, nil
	}
	groups := i.Pattern.FindStringSubmatch(t.Text)
	if len(groups) < 2 {
		return i.Missing, nil
	}
	format := i.Format
	if format == "" {
		format = "%s"
	}
	return fmt.Sprintf(format, groups[1]), nil
}

// MetaField is one value prefixed to every data row.
type MetaField struct {
	Name string
	// Const is used verbatim when set.
	Const string
	// Label is looked up in the meta region text as "LABEL : value".
	Label string
	// URLParam is read from the page url query.
	URLParam string
	// Default is used when Label or URLParam yield nothing.
	Default string
}

// MetaRule reads per-page fields (district, block, ...) out of a region.
type MetaRule struct {
	Selectors []Selector
	Fields    []MetaField
	// Terminators are extra words that end a labeled value, the labels of
	// all other fields always do.
	Terminators []string
}

// Header returns the field names in order.
func (m MetaRule) Header() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}

func (m MetaRule) labelPattern(field MetaField) *regexp.Regexp {
	var stops []string
	for _, other := range m.Fields {
		if other.Label != "" && other.Label != field.Label {
			stops = append(stops, regexp.QuoteMeta(other.Label))
		}
	}
	for _, t := range m.Terminators {
		stops = append(stops, regexp.QuoteMeta(t))
	}
	end := `$`
	if len(stops) > 0 {
		end = `(?:\b(?:` + strings.Join(stops, "|") + `)\b|$)`
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(field.Label) + `\b\s*:?\s*(.*?)\s*` + end)
}

func cleanValue(v string) string {
	return strings.Trim(strings.TrimSpace(v), ":-,|")
}

// Values resolves every field for page. A missing meta region leaves the
// labeled fields at their defaults.
func (m MetaRule) Values(page *Page) []string {
	var text string
	t, _, err := Pick(page, m.Selectors, "meta table")
	if err == nil {
		text = t.Text
	}

	var query url.Values
	parsed, err := url.Parse(page.URL)
	if err == nil {
		query = parsed.Query()
	}

	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		var value string
		switch {
		case f.Const != "":
			value = f.Const
		case f.URLParam != "":
			value = query.Get(f.URLParam)
		case f.Label != "" && text != "":
			groups := m.labelPattern(f).FindStringSubmatch(text)
			if len(groups) >= 2 {
				value = strings.TrimSpace(cleanValue(groups[1]))
			}
		}
		if value == "" {
			value = f.Default
		}
		out[i] = value
	}
	return out
}
