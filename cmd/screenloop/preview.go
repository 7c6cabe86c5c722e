package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/config"
	"github.com/mrjrask/oled-display-waveshare-1in5/internal/engine"
)

func previewCmd() *cobra.Command {
	var (
		cfgPath  string
		count    int
		pass     int
		at       string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the next N screens without advancing anything",
		Long: `Resolves the upcoming screens exactly as the run loop would, but
against a throwaway scheduler, so rule state on a live instance is
untouched. --pass starts the simulation from a given pass counter and
--at pins the clock for time-of-day conditions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(logLevel)

			loader, err := config.NewLoader()
			if err != nil {
				return err
			}
			result, err := loader.Load(cfgPath)
			if err != nil {
				return err
			}

			opts := []engine.Option{engine.WithLogger(logger)}
			if at != "" {
				pinned, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				opts = append(opts, engine.WithClock(func() time.Time { return pinned }))
			}

			sched, err := engine.NewScheduler(result.Document, opts...)
			if err != nil {
				return err
			}
			if pass > 0 {
				sched.Restore(engine.Checkpoint{Pass: pass})
			}

			screens := sched.Peek(cmd.Context(), count)
			if len(screens) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing scheduled")
				return nil
			}
			for i, screen := range screens {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-24s %s\n", i+1, screen.ScreenID, screen.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfig(), "playlist document path")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of screens to preview")
	cmd.Flags().IntVar(&pass, "pass", 0, "start the simulation from this pass counter")
	cmd.Flags().StringVar(&at, "at", "", "evaluate time conditions at this RFC3339 instant")
	cmd.Flags().StringVar(&logLevel, "log-level", defaultLevel(), "log level (debug, info, warn, error)")
	return cmd
}
