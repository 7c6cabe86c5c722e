package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/config"
	"github.com/mrjrask/oled-display-waveshare-1in5/internal/store"
)

func versionsCmd() *cobra.Command {
	var (
		cfgPath string
		dbPath  string
	)

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Manage the config version history",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfig(), "playlist document path")
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB(), "history database path (defaults next to the config)")

	openLedger := func(cmd *cobra.Command) (*store.Ledger, error) {
		ledger, err := store.Open(ledgerDSN(dbPath, cfgPath))
		if err != nil {
			return nil, err
		}
		if err := ledger.Migrate(cmd.Context()); err != nil {
			ledger.Close()
			return nil, err
		}
		return ledger, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			ledger, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()

			versions, err := ledger.ListVersions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no versions saved")
				return nil
			}
			for _, v := range versions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-12s %s\n",
					v.ID, v.CreatedAt.Local().Format(time.RFC3339), v.Actor, v.Summary)
			}
			return nil
		},
	}
	list.Flags().Int("limit", 20, "maximum number of versions to show")

	save := &cobra.Command{
		Use:   "save",
		Short: "Save the current config as a new version",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")
			summary, _ := cmd.Flags().GetString("summary")

			loader, err := config.NewLoader()
			if err != nil {
				return err
			}
			result, err := loader.Load(cfgPath)
			if err != nil {
				return err
			}

			ledger, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()

			version, err := ledger.Save(cmd.Context(), result.Document, actor, summary, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %s\n", version.ID, version.Summary)
			return nil
		},
	}
	save.Flags().String("actor", "cli", "who is saving this version")
	save.Flags().String("summary", "", "change summary (computed from the diff when empty)")

	show := &cobra.Command{
		Use:   "show <version-id>",
		Short: "Print the document stored under a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()

			_, doc, err := ledger.GetVersion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Restore a saved version and write it to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")

			ledger, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()

			doc, err := ledger.Rollback(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			out = append(out, '\n')
			if err := os.WriteFile(cfgPath, out, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", cfgPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s to version %s\n", cfgPath, args[0])
			return nil
		},
		Args: cobra.ExactArgs(1),
	}
	rollback.Flags().String("actor", "cli", "who is rolling back")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old versions, always keeping the newest",
		RunE: func(cmd *cobra.Command, args []string) error {
			retain, _ := cmd.Flags().GetInt("retain")
			maxAge, _ := cmd.Flags().GetDuration("max-age")

			ledger, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()

			removed, err := ledger.Prune(cmd.Context(), retain, maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d version(s)\n", removed)
			return nil
		},
	}
	prune.Flags().Int("retain", 20, "number of recent versions to keep")
	prune.Flags().Duration("max-age", 0, "also drop versions older than this (0 disables)")

	cmd.AddCommand(list, save, show, rollback, prune)
	return cmd
}
