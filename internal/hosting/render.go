package hosting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nrega-scraper/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("nrega.hosting")

const DefaultRenderURL = "https://api.render.com/v1"

type RenderConfig struct {
	BaseURL   string `json:"base_url"`
	ServiceID string `json:"service_id"`
	// ApiKey falls back to RENDER_API_KEY.
	ApiKey string `json:"api_key"`
	// SuspendAfterRun suspends the service once a run has been recorded so
	// a free tier instance stops accruing hours.
	SuspendAfterRun bool `json:"suspend_after_run"`
}

func (c RenderConfig) Enabled() bool {
	return c.ServiceID != "" && c.ApiKey != ""
}

// Service is the subset of the render service object that is used.
type Service struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Suspended string `json:"suspended"`
}

// Render controls the web service the scraper itself is deployed as.
type Render struct {
	http      *resty.Client
	serviceID string
}

func NewRender(config RenderConfig, output restyutil.InstrumentOutput) Render {
	if config.BaseURL == "" {
		config.BaseURL = DefaultRenderURL
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(config.BaseURL, "/"))
	client.SetTimeout(30 * time.Second)
	client.SetAuthToken(config.ApiKey)
	client.SetHeader("Accept", "application/json")
	restyutil.InstrumentClient(client, otel.Tracer("nrega.hosting/resty"), output)
	return Render{http: client, serviceID: config.ServiceID}
}

func (r Render) do(ctx context.Context, name string, build func(req *resty.Request) (*resty.Response, error)) error {
	ctx, span := tracer.Start(ctx, "render:"+name)
	defer span.End()
	span.SetAttributes(attribute.String("service_id", r.serviceID))

	res, err := build(r.http.R().SetContext(ctx).SetPathParam("id", r.serviceID))
	if err == nil && res.IsError() {
		err = fmt.Errorf("render %s: status %d: %s", name, res.StatusCode(), strings.TrimSpace(res.String()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render api call failed")
		return err
	}
	return nil
}

func (r Render) Get(ctx context.Context) (Service, error) {
	var service Service
	err := r.do(ctx, "get", func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&service).Get("/services/{id}")
	})
	return service, err
}

func (r Render) Suspend(ctx context.Context) error {
	return r.do(ctx, "suspend", func(req *resty.Request) (*resty.Response, error) {
		return req.Post("/services/{id}/suspend")
	})
}

func (r Render) Resume(ctx context.Context) error {
	return r.do(ctx, "resume", func(req *resty.Request) (*resty.Response, error) {
		return req.Post("/services/{id}/resume")
	})
}
