package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "screenloop",
		Short: "Playlist scheduling engine for the OLED display loop",
		Long: `screenloop decides which screen the unattended display shows next.
It loads the v2 playlist configuration (migrating legacy formats on the
way in), resolves nested playlists, rules, and conditions into a screen
sequence, and keeps an append-only version ledger with rollback.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(versionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
