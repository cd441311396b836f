package extract

import (
	"context"
	"testing"

	"nrega-scraper/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParsePageNormalizesCells(t *testing.T) {
	body := []byte(`<html><body><table>
		<tr><th>  S.No </th><th>Panchayat&nbsp;&nbsp;Name</th></tr>
		<tr><td>&nbsp;</td><td>   </td></tr>
		<tr><td>1</td><td>
			BHOTA
			(GP)	</td></tr>
	</table><a href="/a.aspx">A</a><a>no href</a><a href=" ">blank</a></body></html>`)

	page, err := ParsePage(context.Background(), "https://example.test/r", body)
	require.NoError(t, err)
	require.Len(t, page.Tables, 1)

	rows := page.Tables[0].NonEmptyRows()
	require.Equal(t, model.Grid{
		{"S.No", "Panchayat Name"},
		{"1", "BHOTA (GP)"},
	}, rows)
	for _, row := range rows {
		for _, cell := range row {
			require.NotRegexp(t, `^\s|\s$|\s\s`, cell)
		}
	}
	// positional rows keep the blank row
	require.Len(t, page.Tables[0].Rows, 3)
	require.Equal(t, []string{"/a.aspx"}, page.Hrefs)
}

func TestParsePageNestedTables(t *testing.T) {
	body := []byte(`<table><tr><td>outer<table><tr><td>inner</td></tr></table></td></tr></table>`)
	page, err := ParsePage(context.Background(), "", body)
	require.NoError(t, err)
	require.Len(t, page.Tables, 2)
	require.Equal(t, "inner", page.Tables[1].Text)
}
