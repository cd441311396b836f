package cmd

import (
	"errors"
	"fmt"

	"nrega-scraper/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(hostingCmd)
}

var hostingCmd = &cobra.Command{
	Use:       "hosting <status|suspend|resume>",
	Short:     "Shows, suspends or resumes the render service the scraper is deployed as.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"status", "suspend", "resume"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := serviceutil.SignalContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		render, ok := a.Render()
		if !ok {
			return errors.New("render is not configured (set render.service_id and RENDER_API_KEY)")
		}

		switch args[0] {
		case "suspend":
			err = render.Suspend(ctx)
		case "resume":
			err = render.Resume(ctx)
		}
		if err != nil {
			return err
		}

		service, err := render.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", service.Name, service.ID, service.Suspended)
		return nil
	},
}
