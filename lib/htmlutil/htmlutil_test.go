package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<table id="t">
  <tr><th> SNo. </th><th>Name
  </th></tr>
  <tr><td>1</td><td>  Ram   Kumar </td></tr>
  <tr><td> </td><td>&nbsp;</td></tr>
</table>
<a href="https://nreganarep.nic.in/netnrega/a.aspx?x=1">  Report
 A </a>
<a>no href</a>
<a href="">empty</a>
<a href="  /b.aspx?fin_year=2024-2025 ">B</a>
</body></html>`

func load(t *testing.T) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestTableRows(t *testing.T) {
	doc := load(t)
	rows := TableRows(doc.Find("#t"))
	require.Equal(t, [][]string{
		{"SNo.", "Name"},
		{"1", "Ram Kumar"},
		{"", ""},
	}, rows)
	require.Len(t, DropEmptyRows(rows), 2)
}

func TestGetAnchors(t *testing.T) {
	doc := load(t)
	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "Report A", Href: "https://nreganarep.nic.in/netnrega/a.aspx?x=1"},
		{Name: "B", Href: "/b.aspx?fin_year=2024-2025"},
	}, anchors)
}
