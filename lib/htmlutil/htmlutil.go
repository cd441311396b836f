package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"nrega-scraper/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("nrega.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FlatText is the whitespace-collapsed text of everything under sel.
func FlatText(sel *goquery.Selection) string {
	return textutil.CollapseSpace(sel.Text())
}

// TableRows reads every <tr> under table (nested rows included, like a css
// "tr" descendant query) into normalized cell text. Rows are kept even when
// all cells are empty, use DropEmptyRows for that.
func TableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, textutil.CollapseSpace(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return rows
}

// DropEmptyRows removes rows without any non-empty cell.
func DropEmptyRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		for _, cell := range row {
			if cell != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

type Anchor struct {
	Name string
	// Href is the attribute as written in the markup, only surrounding
	// whitespace is removed.
	Href string
}

// GetAnchors lists every anchor in sel with a non-blank href that parses as
// a url, in document order.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		var href string
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = strings.TrimSpace(a.Val)
				break
			}
		}
		if href == "" {
			continue
		}

		_, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := textutil.CollapseSpace(GetText(n))
		anchors = append(anchors, Anchor{Name: name, Href: href})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", href),
		))
	}
	span.SetAttributes(attribute.Int("anchors", len(anchors)))

	return anchors
}
