package extract

import (
	"bytes"
	"context"

	"nrega-scraper/internal/model"
	"nrega-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("nrega.extract")

// Table is one <table> of a page, in document order (nested tables count).
type Table struct {
	Index int
	// Rows holds every <tr> under the table with normalized cell text,
	// empty rows included so that positional skips line up with the markup.
	Rows model.Grid
	// Text is the whitespace collapsed text of the whole table.
	Text string
}

// NonEmptyRows returns Rows without fully empty rows.
func (t Table) NonEmptyRows() model.Grid {
	return htmlutil.DropEmptyRows(t.Rows)
}

// Page is a parsed report page.
type Page struct {
	URL    string
	Tables []Table
	// Hrefs lists the href attribute of every anchor, as written in the markup.
	Hrefs []string

	doc *goquery.Document
}

func ParsePage(ctx context.Context, url string, body []byte) (*Page, error) {
	ctx, span := tracer.Start(ctx, "ParsePage")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, model.ParseError{URL: url, Reason: "invalid html: " + err.Error()}
	}

	page := &Page{URL: url, doc: doc}
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		page.Tables = append(page.Tables, Table{
			Index: i,
			Rows:  htmlutil.TableRows(table),
			Text:  htmlutil.FlatText(table),
		})
	})
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a")) {
		page.Hrefs = append(page.Hrefs, anchor.Href)
	}

	span.SetAttributes(
		attribute.Int("tables", len(page.Tables)),
		attribute.Int("anchors", len(page.Hrefs)),
	)
	return page, nil
}
