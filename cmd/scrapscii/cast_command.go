package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scrapscii/internal/shard"
)

func newCastCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:         "cast <records.json>...",
		Short:       "Convert JSON record exports into parquet files",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath != "" && len(args) > 1 {
				return errors.New("--out can only be used with a single input")
			}
			out := cmd.OutOrStdout()
			var errs []error
			for _, input := range args {
				cast, err := shard.Cast(input, outPath)
				if err != nil {
					errs = append(errs, err)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", input, err)
					continue
				}
				fmt.Fprintf(out, "Wrote %s (%d rows, %s)\n", cast.Path, cast.Rows, formatBytes(cast.Size))
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (defaults to the input with a .parquet extension)")
	return cmd
}
