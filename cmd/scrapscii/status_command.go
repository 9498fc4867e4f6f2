package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scrapscii/internal/config"
	"scrapscii/internal/ledger"
	"scrapscii/internal/shard"
	"scrapscii/internal/stats"
)

type statusReport struct {
	Source string       `json:"source,omitempty"`
	Resume *resumeView  `json:"resume,omitempty"`
	Runs   []ledger.Run `json:"runs"`
	Totals stats.Stats  `json:"totals"`
}

type resumeView struct {
	Offset    int64  `json:"offset"`
	NextIndex int    `json:"next_index"`
	NextShard string `json:"next_shard"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent conversion runs and the resume point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				report := statusReport{Source: cfg.Source.Location, Runs: runs}
				if report.Runs == nil {
					report.Runs = []ledger.Run{}
				}
				for _, run := range report.Runs {
					report.Totals = report.Totals.Merge(run.Stats)
				}
				if cfg.Source.Location != "" {
					point, err := store.Resume(cmd.Context(), cfg.Source.Location)
					if err != nil {
						return err
					}
					report.Resume = &resumeView{
						Offset:    point.Offset,
						NextIndex: point.NextIndex,
						NextShard: shard.FileName(point.NextIndex),
					}
				}

				if jsonOutput {
					return writeJSON(cmd, report)
				}
				renderStatusReport(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 for all)")
	return cmd
}

func renderStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	if report.Resume != nil {
		fmt.Fprintf(out, "Source: %s\n", report.Source)
		fmt.Fprintf(out, "Resume: sample %d, shard %s\n", report.Resume.Offset, report.Resume.NextShard)
	}
	if len(report.Runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	rows := make([][]string, 0, len(report.Runs))
	for _, run := range report.Runs {
		rows = append(rows, []string{
			shortID(run.ID),
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			strconv.FormatInt(run.StartOffset, 10),
			strconv.FormatInt(run.Cursor, 10),
			strconv.Itoa(run.Stats.Total()),
			strconv.Itoa(run.Stats.Valid),
			strconv.Itoa(run.Stats.Invalid.Sum()),
			strconv.Itoa(run.Stats.Saved),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Status", "Started", "From", "Cursor", "Samples", "Valid", "Invalid", "Saved"},
		rows,
		[]string{"Total", "", "", "", "", strconv.Itoa(report.Totals.Total()), strconv.Itoa(report.Totals.Valid), strconv.Itoa(report.Totals.Invalid.Sum()), strconv.Itoa(report.Totals.Saved)},
		3, 4, 5, 6, 7, 8,
	))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newShardsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "shards",
		Short: "List the shards in the dataset directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				onDisk, err := shard.List(cfg.Paths.DatasetDir)
				if err != nil {
					return err
				}
				recorded, err := store.Shards(cmd.Context())
				if err != nil {
					return err
				}
				owners := make(map[int]string, len(recorded))
				for _, entry := range recorded {
					owners[entry.Index] = entry.RunID
				}
				if onDisk == nil {
					onDisk = []shard.Shard{}
				}

				if jsonOutput {
					return writeJSON(cmd, onDisk)
				}
				out := cmd.OutOrStdout()
				if len(onDisk) == 0 {
					fmt.Fprintf(out, "No shards in %s\n", cfg.Paths.DatasetDir)
					return nil
				}
				var rowsTotal, sizeTotal int64
				rows := make([][]string, 0, len(onDisk))
				for _, sh := range onDisk {
					rowsTotal += sh.Rows
					sizeTotal += sh.Size
					owner := shortID(owners[sh.Index])
					if owner == "" {
						owner = "-"
					}
					rows = append(rows, []string{
						shard.FileName(sh.Index),
						strconv.FormatInt(sh.Rows, 10),
						formatBytes(sh.Size),
						owner,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Shard", "Rows", "Size", "Run"},
					rows,
					[]string{strconv.Itoa(len(onDisk)), strconv.FormatInt(rowsTotal, 10), formatBytes(sizeTotal), ""},
					1, 2,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
