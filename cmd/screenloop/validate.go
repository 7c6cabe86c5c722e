package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/config"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a playlist document and report every issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			result, migrated, err := loader.Check(data)
			if err != nil {
				return err
			}
			if migrated {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: legacy format, migrated before validation")
			}

			if out := config.FormatIssues(result.Errors); out != "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
			}
			if out := config.FormatIssues(result.Warnings); out != "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
			}

			if !result.Valid() {
				return fmt.Errorf("%d error(s) found", len(result.Errors))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
