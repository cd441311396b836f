package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"nrega-scraper/internal/app"
	"nrega-scraper/internal/chrono"
	internaltel "nrega-scraper/internal/telemetry"
	"nrega-scraper/lib/configutil"
	"nrega-scraper/lib/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "Path to the service config.")
	flag.Parse()

	err := configutil.LoadDotEnv(".env")
	if err != nil {
		serviceutil.Fatal("load .env", err)
	}

	ctx := serviceutil.SignalContext()
	InitTelemetry(ctx, *verbose)

	err = run(ctx, *configPath, *verbose)
	if err != nil {
		serviceutil.Fatal("scraperd stopped", err)
	}
}

// run serves until ctx is done. Everything it opens is closed before it
// returns, including on startup errors.
func run(ctx context.Context, configPath string, verbose bool) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	tel := internaltel.SlogAPI{}
	a, err := app.New(ctx, cfg, tel, verbose)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	// credentials are checked up front so a broken deployment fails loudly
	_, err = a.Credentials()
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}

	coordinator, err := a.Coordinator(ctx)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}
	// an active run still writes history, it has to finish before Close
	defer coordinator.Wait()

	if cfg.Schedule != "" {
		cron := chrono.NewStandardCron(tel)
		defer cron.Stop()
		err = cron.Cron(cfg.Schedule, func() {
			if !coordinator.Start() {
				slog.Info("scheduled run skipped, a run is already active")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		slog.Info("runs scheduled", "schedule", cfg.Schedule)
	}
	if cfg.RunOnStart {
		coordinator.Start()
	}

	err = serviceutil.StartHttpServer(ctx, cfg.Port, coordinator.Handler())
	if err != nil {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}
