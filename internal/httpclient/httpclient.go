package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"syscall"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/telemetry"
	"nrega-scraper/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("nrega.httpclient")

const (
	report_fetch_retry = "fetch-retry"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

type Options struct {
	// Timeout bounds a single attempt, 60s when zero.
	Timeout time.Duration
	// Attempts is the total number of tries including the first, 3 when zero.
	Attempts int
	// Backoff is the base delay, the delay before retry i is Backoff * i^2.
	// 1s when zero.
	Backoff time.Duration
	// MaxRedirects defaults to 5.
	MaxRedirects int
	UserAgent    string
	// Proxy overrides the HTTP(S)_PROXY environment variables.
	Proxy string
	// Cloudflare wraps the transport with a browser-like TLS fingerprint.
	Cloudflare bool
	// Output receives request/response dumps when debug logging is on.
	Output restyutil.InstrumentOutput
	Tel    telemetry.API
	Sleep  chrono.SleepFunc
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 5
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Tel == nil {
		o.Tel = telemetry.SlogAPI{}
	}
	if o.Sleep == nil {
		o.Sleep = chrono.Sleep
	}
	return o
}

// Client fetches report pages. It keeps cookies between requests so that
// ASP.NET postback sequences carry their session.
type Client struct {
	http *resty.Client
	opts Options
	tel  telemetry.API
}

func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.Cloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9,hi;q=0.8")
	client.SetHeader("Cache-Control", "no-cache")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
	client.SetTimeout(opts.Timeout)

	restyutil.InstrumentClient(client, otel.Tracer("nrega.httpclient/resty"), opts.Output)

	return &Client{
		http: client,
		opts: opts,
		tel:  opts.Tel,
	}, nil
}

// Backoff is the delay before retry number attempt (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt*attempt)
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, "GET", url, nil)
}

// PostForm submits form as application/x-www-form-urlencoded to url.
func (c *Client) PostForm(ctx context.Context, url string, form url.Values) ([]byte, error) {
	return c.do(ctx, "POST", url, form)
}

// Status fetches url once, without retries, and returns the status code.
// It is meant for reachability probes.
func (c *Client) Status(ctx context.Context, url string) (int, error) {
	res, err := c.attempt(ctx, "GET", url, nil)
	if res == nil {
		return 0, err
	}
	return res.StatusCode(), err
}

func (c *Client) do(ctx context.Context, method, target string, form url.Values) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("method", method),
		attribute.String("url", target),
	)

	var lastErr error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		res, err := c.attempt(ctx, method, target, form)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return res.Body(), nil
		}
		lastErr = err

		if attempt == c.opts.Attempts || !Retryable(err) || ctx.Err() != nil {
			break
		}

		delay := Backoff(c.opts.Backoff, attempt)
		c.tel.ReportWarning(
			report_fetch_retry,
			fmt.Sprintf("retry %d for %s after %s", attempt, target, delay),
			err,
		)
		err = c.opts.Sleep(ctx, delay)
		if err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "fetch failed")
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, target string, form url.Values) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if form != nil {
		req.SetFormDataFromValues(form)
	}
	res, err := req.Execute(method, target)
	if err != nil {
		return nil, classify(ctx, target, err)
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 400 {
		return res, model.HttpStatusError{
			URL:        target,
			StatusCode: res.StatusCode(),
		}
	}
	return res, nil
}

// classify turns a transport error into a NetworkError, marking the
// failures that are worth another attempt. A done caller context is
// returned as is so that it never reads as retryable.
func classify(ctx context.Context, target string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("fetch %s: %w", target, ctx.Err())
	}
	return model.NetworkError{
		URL:       target,
		Retryable: transient(err),
		Err:       err,
	}
}

func transient(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "eai_again") ||
		strings.Contains(msg, "temporary failure in name resolution")
}

// Retryable reports whether err is a transient network failure or a 5xx.
func Retryable(err error) bool {
	var netErr model.NetworkError
	if errors.As(err, &netErr) {
		return netErr.Retryable
	}
	var statusErr model.HttpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return false
}
