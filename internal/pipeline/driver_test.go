package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"scrapscii/internal/acquire"
	"scrapscii/internal/options"
	"scrapscii/internal/record"
	"scrapscii/internal/services"
	"scrapscii/internal/shard"
	"scrapscii/internal/source"
	"scrapscii/internal/stats"
)

const art = "@@@@@@@@########........\n@@@@@@@@########........\n"

// fakeFetcher decides the acquisition outcome from the URL host.
type fakeFetcher struct{}

func (fakeFetcher) Acquire(ctx context.Context, url string) (acquire.Asset, error) {
	if err := ctx.Err(); err != nil {
		return acquire.Asset{}, services.Wrap(services.ErrResponse, "acquire", "download", "", err)
	}
	switch {
	case strings.Contains(url, "://down/"):
		return acquire.Asset{}, services.Wrap(services.ErrResponse, "acquire", "download", "status 404", nil)
	case strings.Contains(url, "://html/"):
		return acquire.Asset{}, services.Wrap(services.ErrExtension, "acquire", "detect extension", "text/html", nil)
	case strings.Contains(url, "://placeholder/"):
		return acquire.Asset{}, services.Wrap(services.ErrImage, "acquire", "validate bytes", "placeholder", nil)
	case strings.Contains(url, "://weird/"):
		return acquire.Asset{}, errors.New("unclassified failure")
	}
	return acquire.Asset{URL: url, Bytes: []byte(url), Extension: "png", ContentHash: acquire.ContentHash([]byte(url))}, nil
}

// fakeConverter echoes art unless the staged file name says otherwise.
type fakeConverter struct {
	mu    sync.Mutex
	args  map[string][]string
	delay func() time.Duration
	ws    *memWorkspace
}

func (c *fakeConverter) Convert(ctx context.Context, imagePath string, args []string) (string, error) {
	if c.delay != nil {
		time.Sleep(c.delay())
	}
	c.mu.Lock()
	if c.args == nil {
		c.args = map[string][]string{}
	}
	c.args[filepath.Base(imagePath)] = append([]string(nil), args...)
	c.mu.Unlock()

	url := string(c.ws.read(imagePath))
	switch {
	case strings.Contains(url, "://empty/"):
		return "", nil
	case strings.Contains(url, "://crash/"):
		return "", services.Wrap(services.ErrASCIIArt, "convert", "run converter", "exit status 1", nil)
	case strings.Contains(url, "://marker/"):
		return "Error: cannot decode " + art, nil
	case strings.Contains(url, "://short/"):
		return "##", nil
	}
	return art + url, nil
}

type memWorkspace struct {
	mu      sync.Mutex
	files   map[string][]byte
	purges  int
	failFor string
}

func newMemWorkspace() *memWorkspace {
	return &memWorkspace{files: map[string][]byte{}}
}

func (w *memWorkspace) Write(name string, data []byte) (string, error) {
	if w.failFor != "" && strings.Contains(string(data), w.failFor) {
		return "", errors.New("no space left on device")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	path := "/ws/" + name
	w.files[path] = data
	return path, nil
}

func (w *memWorkspace) read(path string) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path]
}

func (w *memWorkspace) Purge() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purges++
	clear(w.files)
	return nil
}

type memWriter struct {
	tables [][]record.Record
	shards []shard.Shard
	fail   error
}

func (m *memWriter) Write(index int, records []record.Record) (shard.Shard, error) {
	if m.fail != nil {
		return shard.Shard{}, m.fail
	}
	m.tables = append(m.tables, append([]record.Record(nil), records...))
	sh := shard.Shard{Index: index, Path: shard.FileName(index), Rows: int64(len(records))}
	m.shards = append(m.shards, sh)
	return sh, nil
}

type memLedger struct {
	shards  []int
	cursors []int64
	fail    error
}

func (l *memLedger) RecordShard(_ context.Context, _ string, sh shard.Shard) error {
	if l.fail != nil {
		return l.fail
	}
	l.shards = append(l.shards, sh.Index)
	return nil
}

func (l *memLedger) Checkpoint(_ context.Context, _, _ string, offset int64, _ stats.Stats) error {
	if l.fail != nil {
		return l.fail
	}
	l.cursors = append(l.cursors, offset)
	return nil
}

type harness struct {
	cfg       Config
	writer    *memWriter
	ws        *memWorkspace
	converter *fakeConverter
	ledger    *memLedger
	events    []Event
}

func newHarness() *harness {
	ws := newMemWorkspace()
	return &harness{
		cfg: Config{
			RunID:       "run-test",
			Source:      "samples.jsonl",
			ShardLen:    8,
			TableLen:    4,
			Workers:     1,
			MinLength:   16,
			ErrorMarker: "error",
		},
		writer:    &memWriter{},
		ws:        ws,
		converter: &fakeConverter{ws: ws},
		ledger:    &memLedger{},
	}
}

func (h *harness) driver(t *testing.T) *Driver {
	t.Helper()
	driver, err := New(h.cfg, Dependencies{
		Fetcher:   fakeFetcher{},
		Converter: h.converter,
		Writer:    h.writer,
		Workspace: h.ws,
		Sampler:   options.NewSampler(options.Config{WidthMin: 16, WidthMax: 128, Color: true, Threshold: true}, options.NewSeeded(1)),
		Assembler: record.NewAssembler(rand.New(rand.NewPCG(1, 1))),
		Ledger:    h.ledger,
		Observe:   func(e Event) { h.events = append(h.events, e) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return driver
}

func samples(urls ...string) []source.Sample {
	out := make([]source.Sample, len(urls))
	for i, url := range urls {
		out[i] = source.Sample{URL: url, Captions: []string{"caption " + url}}
	}
	return out
}

func validURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://ok/%03d.png", i)
	}
	return urls
}

func TestRunRecordsExactlyOneOutcomePerSample(t *testing.T) {
	h := newHarness()
	input := samples(
		"https://ok/a.png",
		"https://down/b.png",
		"https://html/c",
		"https://placeholder/d.jpg",
		"https://weird/e.png",
		"https://empty/f.png",
		"https://crash/g.png",
		"https://marker/h.png",
		"https://short/i.png",
		"",
		"https://ok/j.png",
	)
	input = append(input, source.Sample{URL: "https://ok/no-captions.png"})

	result, err := h.driver(t).Run(context.Background(), source.FromSlice(input))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := result.Stats
	if got.Total() != len(input) {
		t.Fatalf("expected total %d, got %s", len(input), got)
	}
	want := map[stats.Outcome]int{
		stats.OutcomeValid:     2,
		stats.OutcomeResponse:  2,
		stats.OutcomeExtension: 1,
		stats.OutcomeImage:     1,
		stats.OutcomeASCIIArt:  4,
		stats.OutcomeSkipped:   2,
	}
	for outcome, count := range want {
		if got.Count(outcome) != count {
			t.Fatalf("expected %d %s, got %s", count, outcome, got)
		}
	}
	if got.Saved != 2 || len(result.Shards) != 1 || result.Shards[0].Rows != 2 {
		t.Fatalf("expected one residual shard of 2 records, got %+v", result)
	}

	if len(h.events) != len(input) {
		t.Fatalf("expected one event per sample, got %d", len(h.events))
	}
	for i, event := range h.events {
		if event.Position != int64(i) {
			t.Fatalf("events must arrive in input order: %d at %d", event.Position, i)
		}
		last := event.Stages[len(event.Stages)-1]
		if event.Outcome == stats.OutcomeValid && last != StageBatched {
			t.Fatalf("valid sample %d must end batched: %v", i, event.Stages)
		}
		if event.Outcome != stats.OutcomeValid && last != StageRejected {
			t.Fatalf("rejected sample %d must end rejected: %v", i, event.Stages)
		}
	}
}

func TestRunGateOrder(t *testing.T) {
	h := newHarness()
	input := samples("https://down/a.png", "https://html/b", "https://placeholder/c.png", "https://empty/d.png", "")
	if _, err := h.driver(t).Run(context.Background(), source.FromSlice(input)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := [][]Stage{
		{StageFetching, StageRejected},
		{StageFetching, StageValidatingExtension, StageRejected},
		{StageFetching, StageValidatingExtension, StageValidatingBytes, StageRejected},
		{StageFetching, StageValidatingExtension, StageValidatingBytes, StageWritingTemp, StageConverting, StageValidatingOutput, StageRejected},
		{StageRejected},
	}
	for i, stages := range want {
		if !slices.Equal(h.events[i].Stages, stages) {
			t.Fatalf("sample %d: expected stages %v, got %v", i, stages, h.events[i].Stages)
		}
	}
}

func TestRunShardsContinueFromStartIndex(t *testing.T) {
	h := newHarness()
	h.cfg.StartIndex = 5
	h.cfg.TableLen = 4
	h.cfg.ShardLen = 3

	result, err := h.driver(t).Run(context.Background(), source.FromSlice(samples(validURLs(10)...)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var indices []int
	for _, table := range h.writer.tables {
		if len(table) > h.cfg.TableLen {
			t.Fatalf("shard holds %d records, more than table length %d", len(table), h.cfg.TableLen)
		}
	}
	for _, sh := range h.writer.shards {
		indices = append(indices, sh.Index)
	}
	if !slices.Equal(indices, []int{5, 6, 7}) {
		t.Fatalf("expected shard indices 5,6,7, got %v", indices)
	}
	if result.NextIndex != 8 || result.Stats.Index != 8 {
		t.Fatalf("expected next index 8, got %d (stats %s)", result.NextIndex, result.Stats)
	}
	if result.Stats.Saved != 10 || result.Consumed != 10 {
		t.Fatalf("expected 10 saved and consumed, got %+v", result)
	}
	if !slices.Equal(h.ledger.shards, []int{5, 6, 7}) {
		t.Fatalf("expected ledger to see every shard, got %v", h.ledger.shards)
	}
}

func TestRunStopsAtTotalLen(t *testing.T) {
	h := newHarness()
	h.cfg.TotalLen = 11
	h.cfg.ShardLen = 4

	it := source.FromSlice(samples(validURLs(20)...))
	result, err := h.driver(t).Run(context.Background(), it)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Consumed != 11 || result.Stats.Total() != 11 {
		t.Fatalf("expected exactly 11 samples consumed, got %+v", result)
	}
	next, err := it.Next(context.Background())
	if err != nil || next.Position != 11 {
		t.Fatalf("expected sample 11 to remain unread, got %+v %v", next, err)
	}
	if h.ws.purges != 3 {
		t.Fatalf("expected one purge per window, got %d", h.ws.purges)
	}
	if result.Cursor != 11 {
		t.Fatalf("expected cursor 11, got %d", result.Cursor)
	}
}

func TestRunTotalLenOnWindowBoundary(t *testing.T) {
	h := newHarness()
	h.cfg.TotalLen = 8
	h.cfg.ShardLen = 4

	it := source.FromSlice(samples(validURLs(12)...))
	result, err := h.driver(t).Run(context.Background(), it)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Consumed != 8 || h.ws.purges != 2 {
		t.Fatalf("expected two full windows, got %d consumed and %d purges", result.Consumed, h.ws.purges)
	}
	next, err := it.Next(context.Background())
	if err != nil || next.Position != 8 {
		t.Fatalf("expected sample 8 to remain unread, got %+v %v", next, err)
	}
}

func TestRunWorkersKeepInputOrder(t *testing.T) {
	h := newHarness()
	h.cfg.Workers = 8
	h.cfg.TableLen = 64
	h.cfg.ShardLen = 32
	jitter := rand.New(rand.NewPCG(9, 9))
	var jitterMu sync.Mutex
	h.converter.delay = func() time.Duration {
		jitterMu.Lock()
		defer jitterMu.Unlock()
		return time.Duration(jitter.IntN(3)) * time.Millisecond
	}

	urls := validURLs(40)
	if _, err := h.driver(t).Run(context.Background(), source.FromSlice(samples(urls...))); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var contents []string
	for _, table := range h.writer.tables {
		for _, rec := range table {
			contents = append(contents, strings.TrimPrefix(rec.Content, art))
		}
	}
	if !slices.Equal(contents, urls) {
		t.Fatalf("records out of input order: %v", contents)
	}
}

// sharedPathConverter tracks how many conversions hold each image path at once.
type sharedPathConverter struct {
	ws       *memWorkspace
	mu       sync.Mutex
	inFlight map[string]int
	overlaps int
}

func (c *sharedPathConverter) Convert(ctx context.Context, imagePath string, args []string) (string, error) {
	c.mu.Lock()
	if c.inFlight[imagePath] > 0 {
		c.overlaps++
	}
	c.inFlight[imagePath]++
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	content := string(c.ws.read(imagePath))

	c.mu.Lock()
	c.inFlight[imagePath]--
	c.mu.Unlock()
	return art + content, nil
}

func TestRunRepeatedURLsStageSeparateFiles(t *testing.T) {
	h := newHarness()
	h.cfg.Workers = 4
	conv := &sharedPathConverter{ws: h.ws, inFlight: map[string]int{}}

	driver, err := New(h.cfg, Dependencies{
		Fetcher:   fakeFetcher{},
		Converter: conv,
		Writer:    h.writer,
		Workspace: h.ws,
		Sampler:   options.NewSampler(options.Config{WidthMin: 16, WidthMax: 128}, options.NewSeeded(1)),
		Assembler: record.NewAssembler(rand.New(rand.NewPCG(1, 1))),
		Ledger:    h.ledger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	url := "https://ok/same.png"
	result, err := driver.Run(context.Background(), source.FromSlice(samples(url, url, url, url)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if conv.overlaps != 0 {
		t.Fatalf("expected each sample to convert its own staged file, got %d overlaps", conv.overlaps)
	}
	if result.Stats.Valid != 4 {
		t.Fatalf("expected 4 valid samples, got %s", result.Stats)
	}
}

func TestRunLabelsMatchConverterArgs(t *testing.T) {
	h := newHarness()
	urls := validURLs(30)
	if _, err := h.driver(t).Run(context.Background(), source.FromSlice(samples(urls...))); err != nil {
		t.Fatalf("Run: %v", err)
	}

	i := 0
	for _, table := range h.writer.tables {
		for _, rec := range table {
			args := h.converter.args[acquire.TempName(urls[i], int64(i), "png")]
			joined := strings.Join(args, " ")
			for _, label := range strings.Split(rec.Labels, ",") {
				if !strings.Contains(joined, "--"+label) {
					t.Fatalf("label %q of record %d has no converter arg in %q", label, i, joined)
				}
			}
			if strings.Contains(rec.Labels, "dither") && !strings.Contains(rec.Labels, "braille") {
				t.Fatalf("dither without braille in %q", rec.Labels)
			}
			i++
		}
	}
}

func TestRunTempWriteFailureIsImage(t *testing.T) {
	h := newHarness()
	h.ws.failFor = "https://ok/001.png"
	result, err := h.driver(t).Run(context.Background(), source.FromSlice(samples(validURLs(3)...)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.Invalid.Image != 1 || result.Stats.Valid != 2 {
		t.Fatalf("expected one image failure, got %s", result.Stats)
	}
	if len(h.ws.files) != 0 {
		t.Fatalf("expected workspace to be empty after the run, got %v", h.ws.files)
	}
}

func TestRunCheckpointNeverPassesUnpersistedRecords(t *testing.T) {
	h := newHarness()
	h.cfg.TableLen = 16
	h.cfg.ShardLen = 4
	h.cfg.StartOffset = 100

	input := samples(validURLs(6)...)
	for i := range input {
		input[i].Position = int64(100 + i)
	}
	result, err := h.driver(t).Run(context.Background(), &fixedIterator{samples: input})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(h.ledger.cursors, []int64{100, 100, 106}) {
		t.Fatalf("unexpected checkpoint cursors %v", h.ledger.cursors)
	}
	if result.Cursor != 106 {
		t.Fatalf("expected final cursor 106, got %d", result.Cursor)
	}
}

func TestRunAbortsOnShardWriteFailure(t *testing.T) {
	h := newHarness()
	boom := errors.New("read-only file system")
	h.writer.fail = boom

	_, err := h.driver(t).Run(context.Background(), source.FromSlice(samples(validURLs(8)...)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected shard write failure to abort the run, got %v", err)
	}
}

func TestRunAbortsOnLedgerFailure(t *testing.T) {
	h := newHarness()
	h.ledger.fail = errors.New("database is locked")

	_, err := h.driver(t).Run(context.Background(), source.FromSlice(samples(validURLs(2)...)))
	if err == nil || !strings.Contains(err.Error(), "ledger") {
		t.Fatalf("expected ledger failure to abort the run, got %v", err)
	}
}

func TestRunAbortsOnSourceFailure(t *testing.T) {
	h := newHarness()
	boom := errors.New("connection reset")
	it := &fixedIterator{samples: samples(validURLs(3)...), err: boom}

	result, err := h.driver(t).Run(context.Background(), it)
	if !errors.Is(err, boom) {
		t.Fatalf("expected source failure to abort the run, got %v", err)
	}
	if result.Stats.Total() != 3 {
		t.Fatalf("expected samples read before the failure to be counted, got %s", result.Stats)
	}
}

func TestRunCancellationFlushesResidualTable(t *testing.T) {
	h := newHarness()
	h.cfg.ShardLen = 5
	h.cfg.TableLen = 4

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	it := &cancelingIterator{inner: source.FromSlice(samples(validURLs(20)...)), after: 10, cancel: cancel}

	result, err := h.driver(t).Run(ctx, it)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Stats.Valid != 10 || result.Stats.Saved != 10 {
		t.Fatalf("expected 10 converted and saved records, got %s", result.Stats)
	}
	if len(result.Shards) != 3 || result.Shards[2].Rows != 2 {
		t.Fatalf("expected residual shard to be flushed, got %+v", result.Shards)
	}
	if last := h.ledger.cursors[len(h.ledger.cursors)-1]; last != 10 {
		t.Fatalf("expected final checkpoint at 10, got %d", last)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	h := newHarness()
	if _, err := New(h.cfg, Dependencies{}); err == nil {
		t.Fatal("expected missing dependencies to be rejected")
	}
	h.cfg.ShardLen = 0
	_, err := New(h.cfg, Dependencies{
		Fetcher:   fakeFetcher{},
		Converter: h.converter,
		Writer:    h.writer,
		Workspace: h.ws,
		Sampler:   options.NewSampler(options.Config{WidthMin: 16, WidthMax: 16}, nil),
		Assembler: record.NewAssembler(nil),
	})
	if err == nil {
		t.Fatal("expected zero shard length to be rejected")
	}
}

type fixedIterator struct {
	samples []source.Sample
	next    int
	err     error
}

func (f *fixedIterator) Next(ctx context.Context) (source.Sample, error) {
	if f.next >= len(f.samples) {
		if f.err != nil {
			return source.Sample{}, f.err
		}
		return source.Sample{}, io.EOF
	}
	sample := f.samples[f.next]
	f.next++
	return sample, nil
}

type cancelingIterator struct {
	inner  source.Iterator
	after  int
	seen   int
	cancel context.CancelFunc
}

func (c *cancelingIterator) Next(ctx context.Context) (source.Sample, error) {
	if c.seen == c.after {
		c.cancel()
	}
	c.seen++
	return c.inner.Next(ctx)
}
