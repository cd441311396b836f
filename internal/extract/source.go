package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"nrega-scraper/internal/model"
	"nrega-scraper/internal/sheets"
	"nrega-scraper/lib/textutil"
)

// Fetcher is the part of the http client a source needs.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	PostForm(ctx context.Context, url string, form url.Values) ([]byte, error)
}

// Env is everything a job touches outside of its own descriptor.
type Env struct {
	Fetcher Fetcher
	Sheets  sheets.API
	Dest    model.Destination
}

// Document is one fetched page. Err is set when fetching it failed, which
// only happens for sources that tolerate per-url failures.
type Document struct {
	URL  string
	Body []byte
	Err  error
}

// ErrNoSource is returned by sources that discovered no url to fetch.
var ErrNoSource = errors.New("no source urls")

// Source produces the documents a job extracts from.
type Source interface {
	Fetch(ctx context.Context, env Env) ([]Document, error)
	// Multi reports whether the source yields independent pages whose
	// failures should not fail the job.
	Multi() bool
	String() string
}

// StaticURL fetches one fixed url.
type StaticURL struct {
	URL string
}

func (s StaticURL) Fetch(ctx context.Context, env Env) ([]Document, error) {
	body, err := env.Fetcher.Get(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	return []Document{{URL: s.URL, Body: body}}, nil
}

func (StaticURL) Multi() bool { return false }

func (s StaticURL) String() string { return s.URL }

// SheetCell reads the url to fetch from a single cell of the read tab.
type SheetCell struct {
	Cell string
}

func (s SheetCell) Fetch(ctx context.Context, env Env) ([]Document, error) {
	rng := sheets.Range(env.Dest.ReadTab, s.Cell)
	grid, err := env.Sheets.Read(ctx, env.Dest.SpreadsheetID, rng)
	if err != nil {
		return nil, err
	}
	var target string
	if len(grid) > 0 && len(grid[0]) > 0 {
		target = strings.TrimSpace(grid[0][0])
	}
	if target == "" {
		return nil, model.ParseError{Reason: fmt.Sprintf("url not found in %s", rng)}
	}

	body, err := env.Fetcher.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	return []Document{{URL: target, Body: body}}, nil
}

func (SheetCell) Multi() bool { return false }

func (s SheetCell) String() string { return "cell " + s.Cell }

var httpURL = regexp.MustCompile(`(?i)^https?://`)

// DiscoverURLs flattens a grid into unique http(s) urls, order preserved.
func DiscoverURLs(grid model.Grid) []string {
	var flat []string
	for _, row := range grid {
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			flat = append(flat, cell)
		}
	}
	var out []string
	for _, u := range textutil.Dedupe(flat) {
		if httpURL.MatchString(u) {
			out = append(out, u)
		}
	}
	return out
}

// SheetColumn reads a list of urls from a range of the read tab and fetches
// each of them in order.
type SheetColumn struct {
	Range string
}

func (s SheetColumn) Fetch(ctx context.Context, env Env) ([]Document, error) {
	rng := sheets.Range(env.Dest.ReadTab, s.Range)
	grid, err := env.Sheets.Read(ctx, env.Dest.SpreadsheetID, rng)
	if err != nil {
		return nil, err
	}
	urls := DiscoverURLs(grid)
	if len(urls) == 0 {
		return nil, ErrNoSource
	}

	docs := make([]Document, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			return docs, ctx.Err()
		}
		body, err := env.Fetcher.Get(ctx, u)
		docs = append(docs, Document{URL: u, Body: body, Err: err})
	}
	return docs, nil
}

func (SheetColumn) Multi() bool { return true }

func (s SheetColumn) String() string { return "column " + s.Range }
