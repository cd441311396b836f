package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

// dumps land on disk, bearer tokens and session cookies stay out of them
var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// the big NREGA district reports run into megabytes
const maxDumpBody = 256 << 10

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			if redactedHeaders[http.CanonicalHeaderKey(k)] {
				v = "<redacted>"
			}
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func clampBody(body string) string {
	if len(body) <= maxDumpBody {
		return body
	}
	return fmt.Sprintf("%s\n... (%d bytes omitted)", body[:maxDumpBody], len(body)-maxDumpBody)
}

// form bodies are shown one field per line, ASP.NET postbacks carry a
// viewstate blob that is unreadable otherwise
func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}

	if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return clampBody(string(raw))
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return clampBody(string(raw))
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if len(v) > 120 {
				v = fmt.Sprintf("%s... (%d bytes)", v[:120], len(v))
			}
			fmt.Fprintf(&out, "%s=%s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		fmt.Fprintf(&out, "%s\n\n", formatHeaders(res.Request.RawRequest.Header))
		fmt.Fprintf(&out, "%s\n\n", formatRequestBody(res.Request.RawRequest))
	}

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	out.WriteString("---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%d %s (%s)\n\n", res.StatusCode(), responseUrl, res.Time())
	fmt.Fprintf(&out, "%s\n\n", formatHeaders(res.Header()))
	out.WriteString(clampBody(res.String()))
	return out.String()
}
