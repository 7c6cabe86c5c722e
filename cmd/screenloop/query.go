package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/expressions"
)

func queryCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "query <jq-expression>",
		Short: "Run a jq expression against the raw config document",
		Example: `  screenloop query '.playlists | keys' -c screens_config.json
  screenloop query '.sequence[].playlist'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(cfgPath)
			if err != nil {
				return err
			}
			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parsing %s: %w", cfgPath, err)
			}

			out, err := expressions.NewGoJQEngine().Evaluate(cmd.Context(), args[0], doc)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfig(), "playlist document path")
	return cmd
}
