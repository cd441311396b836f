package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	var cfg config
	require.Equal(t, 30*time.Second, cfg.metricInterval())
	require.Equal(t, "AlwaysOnSampler", cfg.sampler().Description())

	cfg.MetricIntervalSeconds = 5
	cfg.SampleRatio = 0.25
	require.Equal(t, 5*time.Second, cfg.metricInterval())
	require.Contains(t, cfg.sampler().Description(), "TraceIDRatioBased{0.25}")
}

func TestExporterConfig(t *testing.T) {
	require.False(t, exporterConfig{}.enabled())
	require.Equal(t, "http", exporterConfig{HttpEndpoint: "http://localhost:4318"}.transport())
	require.Equal(t, "grpc", exporterConfig{GrpcEndpoint: "http://localhost:4317"}.transport())
}

func TestSetupWithoutExporters(t *testing.T) {
	tel, err := Setup(context.Background(), "scraper-test", config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}
