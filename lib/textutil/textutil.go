package textutil

import (
	"strings"
)

// CollapseSpace replaces every run of unicode whitespace (including NBSP,
// which report pages use for padding) with one space and trims both ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchKeywords checks keywords against text case-insensitively. With all set,
// every keyword must be present, otherwise any single one suffices. An empty
// keyword list never matches.
func MatchKeywords(text string, keywords []string, all bool) bool {
	if len(keywords) == 0 {
		return false
	}
	upper := strings.ToUpper(text)
	for _, k := range keywords {
		found := strings.Contains(upper, strings.ToUpper(k))
		if all && !found {
			return false
		}
		if !all && found {
			return true
		}
	}
	return all
}

// Dedupe returns values with later duplicates removed, order preserved.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
