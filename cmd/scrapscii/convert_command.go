package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scrapscii/internal/acquire"
	"scrapscii/internal/config"
	"scrapscii/internal/converter"
	"scrapscii/internal/ledger"
	"scrapscii/internal/logging"
	"scrapscii/internal/options"
	"scrapscii/internal/pipeline"
	"scrapscii/internal/preflight"
	"scrapscii/internal/record"
	"scrapscii/internal/shard"
	"scrapscii/internal/source"
	"scrapscii/internal/stats"
	"scrapscii/internal/statusapi"
	"scrapscii/internal/workspace"
)

const staleWorkspaceAge = time.Hour

type convertFlags struct {
	source     string
	skip       int64
	totalLen   int
	shardLen   int
	workers    int
	seed       uint64
	statusBind string
	noResume   bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert source samples into ASCII-art shards",
		Long: "Stream image/caption samples from the configured source, convert each image\n" +
			"with a randomly sampled converter option set, and persist the accepted\n" +
			"records as parquet shards. Runs resume from the last checkpoint unless\n" +
			"--no-resume is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.RequireSource(); err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return runConvert(cmd, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "Sample stream: JSON-lines file, - for stdin, or http(s) URL")
	cmd.Flags().Int64Var(&flags.skip, "skip", 0, "Samples to skip when not resuming")
	cmd.Flags().IntVar(&flags.totalLen, "total", 0, "Samples to consume (0 reads until the stream ends)")
	cmd.Flags().IntVar(&flags.shardLen, "window", 0, "Samples per window")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent conversions per window")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "Seed for option and caption sampling")
	cmd.Flags().StringVar(&flags.statusBind, "status-bind", "", "Serve live stats over HTTP on this address")
	cmd.Flags().BoolVar(&flags.noResume, "no-resume", false, "Ignore the ledger cursor and start at --skip")
	return cmd
}

// apply overrides config values with the flags that were set explicitly.
func (f convertFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("source") {
		cfg.Source.Location = strings.TrimSpace(f.source)
		if config.IsLocalSource(cfg.Source.Location) {
			if expanded, err := config.ExpandPath(cfg.Source.Location); err == nil {
				cfg.Source.Location = expanded
			}
		}
	}
	if changed("skip") {
		cfg.Source.Skip = f.skip
	}
	if changed("total") {
		cfg.Source.TotalLen = f.totalLen
	}
	if changed("window") {
		cfg.Source.ShardLen = f.shardLen
	}
	if changed("workers") {
		cfg.Convert.Workers = f.workers
	}
	if changed("seed") {
		cfg.Convert.Seed = f.seed
	}
	if changed("status-bind") {
		cfg.Status.Bind = strings.TrimSpace(f.statusBind)
	}
	if f.noResume {
		cfg.Source.Resume = false
	}
}

func runConvert(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	log := logging.NewComponentLogger(logger, "convert")

	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return fmt.Errorf("preflight failed (run 'scrapscii check' for details): %s", strings.Join(details, "; "))
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire dataset lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("dataset directory %s is in use by another convert run", cfg.Paths.DatasetDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("release dataset lock failed", logging.Error(err))
		}
	}()

	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	offset, startIndex, err := resumePoint(ctx, cfg, store)
	if err != nil {
		return err
	}

	stream, err := source.Open(ctx, cfg.Source.Location)
	if err != nil {
		return err
	}
	defer stream.Close()

	skipped, err := source.Skip(ctx, stream, offset)
	if err != nil {
		return fmt.Errorf("skip %d samples: %w", offset, err)
	}
	if skipped < offset {
		logging.WarnWithContext(log, "source ended before the resume offset", "source_exhausted",
			logging.Int64("offset", offset),
			logging.Int64("available", skipped),
			logging.String(logging.FieldErrorHint, "rerun with --no-resume or point source.location at a longer stream"),
			logging.String(logging.FieldImpact, "no samples converted"),
		)
	}

	for _, failure := range workspace.CleanStale(cfg.Paths.TempDir, staleWorkspaceAge, logger).Errors {
		log.Warn("stale workspace cleanup failed", logging.String("path", failure.Path), logging.Error(failure.Error))
	}
	ws, err := workspace.New(cfg.Paths.TempDir)
	if err != nil {
		return err
	}
	defer ws.Close()

	writer, err := shard.NewParquetWriter(cfg.Paths.DatasetDir)
	if err != nil {
		return err
	}

	sampler, assembler := newSamplers(cfg)
	tracker := stats.NewTracker(stats.Stats{})
	runID := uuid.NewString()

	if err := store.BeginRun(ctx, ledger.Run{
		ID:          runID,
		Source:      cfg.Source.Location,
		StartOffset: offset,
		StartIndex:  startIndex,
	}); err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	server := statusapi.New(cfg.Status.Bind, runID, tracker, store, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	driver, err := pipeline.New(pipeline.Config{
		RunID:       runID,
		Source:      cfg.Source.Location,
		TotalLen:    cfg.Source.TotalLen,
		ShardLen:    cfg.Source.ShardLen,
		TableLen:    cfg.Convert.TableLen,
		StartIndex:  startIndex,
		StartOffset: offset,
		Workers:     cfg.Convert.Workers,
		MinLength:   cfg.Convert.WidthMin,
		ErrorMarker: cfg.Convert.ErrorMarker,
	}, pipeline.Dependencies{
		Fetcher: acquire.New(&http.Client{}, acquire.OptionsFromConfig(cfg)),
		Converter: converter.NewCLI(
			converter.WithBinary(cfg.ConverterBinary()),
			converter.WithTimeout(cfg.ConvertTimeout()),
		),
		Writer:    writer,
		Workspace: ws,
		Sampler:   sampler,
		Assembler: assembler,
		Ledger:    store,
		Tracker:   tracker,
		Logger:    logger,
		Progress:  progressReporter(cmd, cfg, log),
	})
	if err != nil {
		return err
	}

	result, runErr := driver.Run(ctx, stream)
	if isTerminal(cmd.ErrOrStderr()) {
		progressLine{out: cmd.ErrOrStderr()}.done()
	}

	status := ledger.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = ledger.StatusInterrupted
	case runErr != nil:
		status = ledger.StatusFailed
	}
	if err := store.FinishRun(context.WithoutCancel(ctx), runID, status, result.Stats, runErr); err != nil {
		log.Warn("record run result failed", logging.Error(err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s %s\n", runID, status)
	fmt.Fprintln(out, renderStats(result.Stats))
	fmt.Fprintf(out, "Shards written: %d (%d records)\n", len(result.Shards), result.Stats.Saved)
	fmt.Fprintf(out, "Next run resumes at sample %d, shard %s\n", result.Cursor, shard.FileName(result.NextIndex))
	return runErr
}

// resumePoint picks the first source offset and shard index of a run. The
// shard index never reuses a file already present in the dataset directory.
func resumePoint(ctx context.Context, cfg *config.Config, store *ledger.Store) (int64, int, error) {
	point, err := store.Resume(ctx, cfg.Source.Location)
	if err != nil {
		return 0, 0, fmt.Errorf("read resume point: %w", err)
	}
	onDisk, err := shard.NextIndex(cfg.Paths.DatasetDir)
	if err != nil {
		return 0, 0, fmt.Errorf("scan dataset directory: %w", err)
	}
	offset := cfg.Source.Skip
	if cfg.Source.Resume && point.Offset > 0 {
		offset = point.Offset
	}
	return offset, max(point.NextIndex, onDisk), nil
}

func newSamplers(cfg *config.Config) (*options.Sampler, *record.Assembler) {
	samplerCfg := options.Config{
		WidthMin:  cfg.Convert.WidthMin,
		WidthMax:  cfg.Convert.WidthMax,
		Color:     cfg.Convert.Color,
		Threshold: cfg.Convert.Threshold,
	}
	if cfg.Convert.Seed == 0 {
		return options.NewSampler(samplerCfg, nil), record.NewAssembler(nil)
	}
	return options.NewSampler(samplerCfg, options.NewSeeded(cfg.Convert.Seed)),
		record.NewAssembler(options.NewSeeded(cfg.Convert.Seed + 1))
}

// progressReporter redraws a status line on terminals and otherwise logs
// sampled progress.
func progressReporter(cmd *cobra.Command, cfg *config.Config, log *slog.Logger) func(stats.Stats) {
	if isTerminal(cmd.ErrOrStderr()) {
		line := progressLine{out: cmd.ErrOrStderr()}
		return line.update
	}
	sampler := logging.NewProgressSampler(10)
	return func(s stats.Stats) {
		done := s.Total()
		if !sampler.ShouldLog(done, cfg.Source.TotalLen, (done-1)/cfg.Source.ShardLen) {
			return
		}
		log.Info("conversion progress",
			logging.Int("done", done),
			logging.Int("total_len", cfg.Source.TotalLen),
			logging.Int("saved", s.Saved),
			logging.Int("valid", s.Valid),
			logging.Int("invalid", s.Invalid.Sum()),
		)
	}
}
