package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scrapscii/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the converter, directories and source before converting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			failed := preflight.Failed(results)

			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				fmt.Fprintln(out, "Preflight checks")
				for _, result := range results {
					fmt.Fprintln(out, renderCheckLine(result.Name, result.Passed, result.Detail, colorize))
				}
				if cfg.Source.Location == "" {
					fmt.Fprintln(out, "  Source not configured; set source.location or pass --source to convert")
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}
