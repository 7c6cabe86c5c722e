package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/config"
	"github.com/mrjrask/oled-display-waveshare-1in5/internal/engine"
	"github.com/mrjrask/oled-display-waveshare-1in5/internal/logging"
)

func runCmd() *cobra.Command {
	var (
		cfgPath  string
		interval time.Duration
		watch    bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the display loop from a playlist document",
		Long: `Loads the playlist document, then advances the schedule on a fixed
interval, logging each screen as it is presented. With --watch the
document is reloaded in place whenever the file changes on disk;
reloads that fail validation are rejected and the active document
keeps running.`,
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
			for _, w := range result.Warnings {
				logger.Warn("config warning", "path", w.Path, "message", w.Message)
			}
			if result.Migrated {
				logger.Info("legacy config migrated in memory", "path", cfgPath)
			}

			sched, err := engine.NewScheduler(result.Document, engine.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watch {
				watcher := config.NewWatcher(cfgPath, loader, func(r *config.LoadResult) {
					sched.Reload(r.Document, true)
				}, logger)
				go func() {
					if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
						logger.Error("config watcher stopped", "error", err)
					}
				}()
			}

			logger.Info("display loop started",
				"config", cfgPath, "interval", interval, "watch", watch)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				tickCtx := logging.WithPass(ctx, sched.Pass())
				screen, ok := sched.Advance(tickCtx)
				if ok {
					logger.InfoContext(logging.WithScreenID(tickCtx, screen.ScreenID),
						"presenting screen", "source", screen.Path)
				} else {
					logger.DebugContext(tickCtx, "idle pass, nothing scheduled")
				}

				select {
				case <-ctx.Done():
					logger.Info("display loop stopping", "pass", sched.Pass())
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfig(), "playlist document path")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "time between screens")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the document when the file changes")
	cmd.Flags().StringVar(&logLevel, "log-level", defaultLevel(), "log level (debug, info, warn, error)")
	return cmd
}
