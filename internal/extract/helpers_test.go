package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"nrega-scraper/internal/model"
)

func tableHTML(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<table>")
	for i, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			tag := "td"
			if i == 0 {
				tag = "th"
			}
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, cell, tag)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

func pageHTML(tables ...string) []byte {
	return []byte("<html><body>" + strings.Join(tables, "\n") + "</body></html>")
}

type post struct {
	URL  string
	Form url.Values
}

// fakeFetcher serves canned bodies keyed by url and records form posts.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string][]byte
	errors map[string]error
	onPost func(url string, form url.Values) ([]byte, error)
	gets   []string
	posts  []post
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string][]byte{}, errors: map[string]error{}}
}

func (f *fakeFetcher) Get(ctx context.Context, u string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, u)
	if err, ok := f.errors[u]; ok {
		return nil, err
	}
	body, ok := f.pages[u]
	if !ok {
		return nil, model.HttpStatusError{URL: u, StatusCode: 404}
	}
	return body, nil
}

func (f *fakeFetcher) PostForm(ctx context.Context, u string, form url.Values) ([]byte, error) {
	f.mu.Lock()
	f.posts = append(f.posts, post{URL: u, Form: form})
	onPost := f.onPost
	f.mu.Unlock()
	return onPost(u, form)
}
