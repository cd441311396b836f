package cmd

import (
	"context"
	"fmt"
	"os"

	"nrega-scraper/internal/app"
	"nrega-scraper/internal/telemetry"
	"nrega-scraper/lib/configutil"
	libtelemetry "nrega-scraper/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "scraper-cli",
	Short: "scraper-cli runs and inspects the NREGA report scraper without the http service.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		libtelemetry.InitSlog(verbose)
		return configutil.LoadDotEnv(".env")
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging and request dumps.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "Path to the service config.")
}

// newApp loads the config and builds the app, the caller closes it.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, telemetry.SlogAPI{}, verbose)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
