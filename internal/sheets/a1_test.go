package sheets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	cases := []struct {
		tab, cells, expect string
	}{
		{"Runs", "A:Z", "Runs!A:Z"},
		{"Sheet_5", "C3", "Sheet_5!C3"},
		{"R1.1", "A4", "'R1.1'!A4"},
		{"My Tab", "A1", "'My Tab'!A1"},
		{"Bob's", "B2", "'Bob''s'!B2"},
		{"Runs", "", "Runs"},
	}
	for _, test := range cases {
		rng := Range(test.tab, test.cells)
		require.Equal(t, test.expect, rng)
		require.Equal(t, test.tab, TabOf(rng))
	}
}
