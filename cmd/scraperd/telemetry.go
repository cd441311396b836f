package main

import (
	"context"
	"log/slog"
	"time"

	"nrega-scraper/lib/serviceutil"
	"nrega-scraper/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	tel, err := telemetry.SetupFromEnv(ctx, "scraperd")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := tel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	telemetry.InstrumentPerfStats(ctx, 30*time.Second)
}
