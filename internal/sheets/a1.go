package sheets

import (
	"strings"
)

func needsQuote(tab string) bool {
	if tab == "" {
		return false
	}
	for _, r := range tab {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return true
		}
	}
	return false
}

// Range joins a tab name and a cell reference into an A1 range, quoting the
// tab when it contains anything other than letters, digits and underscores.
func Range(tab, cells string) string {
	if needsQuote(tab) {
		tab = "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	}
	if cells == "" {
		return tab
	}
	return tab + "!" + cells
}

// TabOf extracts the unquoted tab name from an A1 range.
func TabOf(rng string) string {
	if strings.HasPrefix(rng, "'") {
		// quoted names escape ' as ''
		var out strings.Builder
		for i := 1; i < len(rng); i++ {
			if rng[i] != '\'' {
				out.WriteByte(rng[i])
				continue
			}
			if i+1 < len(rng) && rng[i+1] == '\'' {
				out.WriteByte('\'')
				i++
				continue
			}
			break
		}
		return out.String()
	}
	idx := strings.Index(rng, "!")
	if idx < 0 {
		return rng
	}
	return rng[:idx]
}
