package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/config"
)

func migrateCmd() *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert a legacy config to the current document format",
		Long: `Reads a legacy (v1) config, converts it to the current playlist
document format, and writes the result. The input file is never
modified. Without --output the migrated document is written to
stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader()
			if err != nil {
				return err
			}
			result, err := loader.Load(input)
			if err != nil {
				return err
			}
			if !result.Migrated {
				fmt.Fprintln(cmd.ErrOrStderr(), "input is already in the current format")
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Path, w.Message)
			}

			out, err := json.MarshalIndent(result.Document, "", "  ")
			if err != nil {
				return err
			}
			out = append(out, '\n')

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "legacy config path")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (stdout when omitted)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
