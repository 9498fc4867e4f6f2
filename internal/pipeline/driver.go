package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"scrapscii/internal/acquire"
	"scrapscii/internal/converter"
	"scrapscii/internal/logging"
	"scrapscii/internal/options"
	"scrapscii/internal/record"
	"scrapscii/internal/services"
	"scrapscii/internal/shard"
	"scrapscii/internal/source"
	"scrapscii/internal/stats"
)

// Acquirer downloads and validates one image.
type Acquirer interface {
	Acquire(ctx context.Context, url string) (acquire.Asset, error)
}

// Workspace stages image bytes for the converter.
type Workspace interface {
	acquire.Stager
	Purge() error
}

// Ledger persists resume state. A nil Ledger disables resume bookkeeping.
type Ledger interface {
	RecordShard(ctx context.Context, runID string, sh shard.Shard) error
	Checkpoint(ctx context.Context, runID, source string, offset int64, snapshot stats.Stats) error
}

// Config bounds a run.
type Config struct {
	RunID  string
	Source string
	// TotalLen caps the number of samples consumed; zero runs to exhaustion.
	TotalLen int
	// ShardLen is the number of samples per window.
	ShardLen int
	// TableLen is the number of records per shard.
	TableLen   int
	StartIndex int
	// StartOffset is the source position of the first sample the iterator
	// yields.
	StartOffset int64
	Workers    int
	// MinLength is the shortest accepted converter output in characters.
	MinLength   int
	ErrorMarker string
}

// Dependencies are the collaborators of a Driver. Fetcher, Converter,
// Writer, Workspace, Sampler and Assembler are required.
type Dependencies struct {
	Fetcher   Acquirer
	Converter converter.Converter
	Writer    shard.Writer
	Workspace Workspace
	Sampler   *options.Sampler
	Assembler *record.Assembler
	Ledger    Ledger
	Tracker   *stats.Tracker
	Logger    *slog.Logger
	// Observe receives one event per sample, in input order, from a single
	// goroutine.
	Observe func(Event)
	// Progress receives the stats after every sample.
	Progress func(stats.Stats)
}

// Result summarizes a run.
type Result struct {
	Stats     stats.Stats
	Shards    []shard.Shard
	Consumed  int
	NextIndex int
	// Cursor is the source position a resumed run should start from.
	Cursor int64
}

// Driver runs the conversion pipeline.
type Driver struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger
}

// New validates cfg and deps and returns a Driver.
func New(cfg Config, deps Dependencies) (*Driver, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher required")
	case deps.Converter == nil:
		return nil, errors.New("pipeline: converter required")
	case deps.Writer == nil:
		return nil, errors.New("pipeline: shard writer required")
	case deps.Workspace == nil:
		return nil, errors.New("pipeline: workspace required")
	case deps.Sampler == nil:
		return nil, errors.New("pipeline: option sampler required")
	case deps.Assembler == nil:
		return nil, errors.New("pipeline: record assembler required")
	}
	if cfg.ShardLen <= 0 {
		return nil, fmt.Errorf("pipeline: shard length must be positive, got %d", cfg.ShardLen)
	}
	if cfg.TableLen <= 0 {
		return nil, fmt.Errorf("pipeline: table length must be positive, got %d", cfg.TableLen)
	}
	if cfg.TotalLen < 0 {
		cfg.TotalLen = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if deps.Tracker == nil {
		deps.Tracker = stats.NewTracker(stats.Stats{})
	}
	return &Driver{
		cfg:  cfg,
		deps: deps,
		log:  logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// Tracker exposes the live stats of the run.
func (d *Driver) Tracker() *stats.Tracker {
	return d.deps.Tracker
}

// run carries the mutable state of one Run call.
type run struct {
	batcher *shard.Batcher
	result  Result
	// pending holds the source positions of records appended but not yet
	// persisted; the checkpoint cursor never passes the first of them.
	pending []int64
	next    int64
	started bool
}

// Run consumes it window by window until TotalLen samples were read or the
// source is exhausted, then flushes the residual table.
func (d *Driver) Run(ctx context.Context, it source.Iterator) (Result, error) {
	ctx = services.WithRunID(ctx, d.cfg.RunID)
	state := &run{
		batcher: shard.NewBatcher(d.deps.Writer, d.cfg.TableLen, d.cfg.StartIndex),
		next:    d.cfg.StartOffset,
	}
	d.deps.Tracker.SetIndex(d.cfg.StartIndex)

	d.log.Info("conversion run started",
		logging.String(logging.FieldRunID, d.cfg.RunID),
		logging.String("source", d.cfg.Source),
		logging.Int("start_index", d.cfg.StartIndex),
		logging.Int("total_len", d.cfg.TotalLen),
		logging.Int("shard_len", d.cfg.ShardLen),
		logging.Int("table_len", d.cfg.TableLen),
		logging.Int("workers", d.cfg.Workers),
	)

	if d.cfg.TotalLen > 0 {
		it = source.Limit(it, d.cfg.TotalLen)
	}
	for window := 0; ; window++ {
		samples, readErr := readWindow(ctx, it, d.cfg.ShardLen)
		if len(samples) > 0 {
			if err := d.processWindow(ctx, window, samples, state); err != nil {
				return d.abort(ctx, state, err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return d.abort(ctx, state, ctxErr)
			}
			return d.abort(ctx, state, fmt.Errorf("read source: %w", readErr))
		}
	}

	if err := d.flush(ctx, state); err != nil {
		return d.finish(state), err
	}
	if err := d.checkpoint(ctx, state); err != nil {
		return d.finish(state), err
	}

	result := d.finish(state)
	d.log.Info("conversion run finished",
		logging.String(logging.FieldRunID, d.cfg.RunID),
		logging.Int("shards", len(result.Shards)),
		logging.String("stats", result.Stats.String()),
	)
	return result, nil
}

// abort ends the run on err. On cancellation the residual table is still
// persisted since its records are complete.
func (d *Driver) abort(ctx context.Context, state *run, err error) (Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		detached := context.WithoutCancel(ctx)
		if flushErr := d.flush(detached, state); flushErr != nil {
			err = errors.Join(err, flushErr)
		} else if cpErr := d.checkpoint(detached, state); cpErr != nil {
			err = errors.Join(err, cpErr)
		}
		d.log.Warn("conversion run interrupted",
			logging.String(logging.FieldRunID, d.cfg.RunID),
			logging.String("stats", d.deps.Tracker.Snapshot().String()),
			logging.String(logging.FieldEventType, "run_interrupted"),
			logging.String(logging.FieldErrorHint, "rerun convert to resume from the last checkpoint"),
			logging.String(logging.FieldImpact, "remaining samples not processed"),
		)
		return d.finish(state), err
	}
	logging.ErrorWithContext(d.log, "conversion run aborted", "run_aborted",
		logging.String(logging.FieldRunID, d.cfg.RunID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check dataset_dir and state_dir, then rerun convert"),
	)
	return d.finish(state), err
}

func (d *Driver) finish(state *run) Result {
	result := state.result
	result.Stats = d.deps.Tracker.Snapshot()
	result.NextIndex = state.batcher.NextIndex()
	result.Cursor = d.cursor(state)
	return result
}

func readWindow(ctx context.Context, it source.Iterator, size int) ([]source.Sample, error) {
	samples := make([]source.Sample, 0, size)
	for len(samples) < size {
		sample, err := it.Next(ctx)
		if err != nil {
			return samples, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// outcome is the result of the concurrent part of a sample's processing.
type outcome struct {
	opts    options.Options
	content string
	cause   stats.Outcome
	err     error
	stages  []Stage
}

func (d *Driver) processWindow(ctx context.Context, window int, samples []source.Sample, state *run) error {
	outcomes := make([]outcome, len(samples))
	for i, sample := range samples {
		if isSkipped(sample) {
			outcomes[i] = outcome{cause: stats.OutcomeSkipped}
			continue
		}
		outcomes[i].opts = d.deps.Sampler.Sample()
	}

	defer func() {
		if purgeErr := d.deps.Workspace.Purge(); purgeErr != nil {
			logging.WarnWithContext(d.log, "failed to purge run workspace", "workspace_purge_failed",
				logging.Int(logging.FieldWindow, window),
				logging.Error(purgeErr),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "staged images remain until the run ends"),
			)
		}
	}()

	var group errgroup.Group
	group.SetLimit(d.cfg.Workers)
	for i := range samples {
		if outcomes[i].cause == stats.OutcomeSkipped {
			continue
		}
		group.Go(func() error {
			outcomes[i] = d.convert(ctx, samples[i], outcomes[i].opts)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, sample := range samples {
		if err := d.collect(ctx, sample, outcomes[i], state); err != nil {
			return err
		}
	}
	state.result.Consumed += len(samples)

	if err := d.checkpoint(ctx, state); err != nil {
		return err
	}
	snapshot := d.deps.Tracker.Snapshot()
	d.log.Info("window converted",
		logging.Int(logging.FieldWindow, window),
		logging.Int("samples", len(samples)),
		logging.Int(logging.FieldShardIndex, state.batcher.NextIndex()),
		logging.String("stats", snapshot.String()),
	)
	return nil
}

func isSkipped(sample source.Sample) bool {
	return sample.URL == "" || len(sample.Captions) == 0
}

// convert runs the acquisition and conversion gates for one sample.
func (d *Driver) convert(ctx context.Context, sample source.Sample, opts options.Options) outcome {
	ctx = services.WithSample(ctx, sample.Position)
	result := outcome{opts: opts}

	asset, err := d.deps.Fetcher.Acquire(services.WithStage(ctx, string(StageFetching)), sample.URL)
	if err != nil {
		cause, ok := services.FailureCause(err)
		if !ok {
			cause = stats.OutcomeResponse
		}
		result.cause, result.err, result.stages = cause, err, acquisitionStages(cause)
		return result
	}
	result.stages = []Stage{StageFetching, StageValidatingExtension, StageValidatingBytes, StageWritingTemp}

	path, err := acquire.Stage(d.deps.Workspace, asset, sample.Position)
	if err != nil {
		result.cause, result.err = stats.OutcomeImage, err
		return result
	}

	result.stages = append(result.stages, StageConverting)
	content, err := d.deps.Converter.Convert(services.WithStage(ctx, string(StageConverting)), path, opts.Args())
	if err != nil {
		result.cause, result.err = stats.OutcomeASCIIArt, err
		return result
	}

	result.stages = append(result.stages, StageValidatingOutput)
	if err := converter.CheckOutput(content, d.cfg.MinLength, d.cfg.ErrorMarker); err != nil {
		result.cause, result.err = stats.OutcomeASCIIArt, err
		return result
	}

	result.content = content
	result.cause = stats.OutcomeValid
	return result
}

// collect counts one outcome and appends its record. It runs on the
// driver goroutine only.
func (d *Driver) collect(ctx context.Context, sample source.Sample, out outcome, state *run) error {
	state.next = sample.Position + 1
	state.started = true
	event := Event{Position: sample.Position, URL: sample.URL, Stages: out.stages, Outcome: out.cause}

	if out.cause == stats.OutcomeValid {
		event.Stages = append(event.Stages, StageAssembling)
		rec, err := d.deps.Assembler.Assemble(sample.Captions, out.content, out.opts.Labels())
		if err != nil {
			out.cause, out.err = stats.OutcomeSkipped, err
			event.Outcome = stats.OutcomeSkipped
		} else {
			d.record(ctx, sample, stats.OutcomeValid, nil)
			event.Stages = append(event.Stages, StageBatched)
			d.emit(event)
			state.pending = append(state.pending, sample.Position)
			sh, err := state.batcher.Append(rec)
			if err != nil {
				return err
			}
			if sh != nil {
				return d.persisted(ctx, state, *sh)
			}
			return nil
		}
	}

	event.Stages = append(event.Stages, StageRejected)
	d.record(ctx, sample, out.cause, out.err)
	d.emit(event)
	return nil
}

func (d *Driver) record(ctx context.Context, sample source.Sample, cause stats.Outcome, err error) {
	snapshot := d.deps.Tracker.Record(cause)
	if cause != stats.OutcomeValid && d.log.Enabled(ctx, slog.LevelDebug) {
		attrs := []logging.Attr{
			logging.Int64(logging.FieldSample, sample.Position),
			logging.String(logging.FieldCause, string(cause)),
			logging.String(logging.FieldURL, sample.URL),
		}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		d.log.LogAttrs(ctx, slog.LevelDebug, "sample rejected", attrs...)
	}
	if d.deps.Progress != nil {
		d.deps.Progress(snapshot)
	}
}

func (d *Driver) emit(event Event) {
	if d.deps.Observe != nil {
		d.deps.Observe(event)
	}
}

func (d *Driver) flush(ctx context.Context, state *run) error {
	sh, err := state.batcher.Flush()
	if err != nil {
		return err
	}
	if sh == nil {
		return nil
	}
	return d.persisted(ctx, state, *sh)
}

// persisted books a shard the batcher just wrote.
func (d *Driver) persisted(ctx context.Context, state *run, sh shard.Shard) error {
	state.pending = state.pending[:0]
	state.result.Shards = append(state.result.Shards, sh)
	d.deps.Tracker.SetIndex(state.batcher.NextIndex())
	d.deps.Tracker.AddSaved(int(sh.Rows))

	d.log.Info("shard persisted",
		logging.Int(logging.FieldShardIndex, sh.Index),
		logging.Int64("rows", sh.Rows),
		logging.String("path", sh.Path),
	)
	if d.deps.Ledger == nil {
		return nil
	}
	if err := d.deps.Ledger.RecordShard(ctx, d.cfg.RunID, sh); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// cursor is the first source position whose outcome is not yet durable.
func (d *Driver) cursor(state *run) int64 {
	if len(state.pending) > 0 {
		return state.pending[0]
	}
	return state.next
}

func (d *Driver) checkpoint(ctx context.Context, state *run) error {
	if d.deps.Ledger == nil || !state.started {
		return nil
	}
	if err := d.deps.Ledger.Checkpoint(ctx, d.cfg.RunID, d.cfg.Source, d.cursor(state), d.deps.Tracker.Snapshot()); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}
