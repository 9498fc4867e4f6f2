// Package source reads the upstream stream of (url, caption choices) samples.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Sample is one upstream entry. Position is its zero-based offset in the
// stream. A malformed entry keeps its position with an empty URL.
type Sample struct {
	Position int64
	URL      string
	Captions []string
}

// Iterator yields samples in stream order and returns io.EOF when exhausted.
type Iterator interface {
	Next(ctx context.Context) (Sample, error)
}

// Stream is an Iterator that owns an underlying reader.
type Stream interface {
	Iterator
	Close() error
}

const maxLineBytes = 4 << 20

// Open returns a stream for location: "-" for stdin, an http(s) URL, or a
// JSON-lines file path.
func Open(ctx context.Context, location string) (Stream, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("source location required")
	case location == "-":
		return NewReader(io.NopCloser(os.Stdin)), nil
	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		return openHTTP(ctx, location)
	default:
		file, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		return NewReader(file), nil
	}
}

func openHTTP(ctx context.Context, location string) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch source: status %d", resp.StatusCode)
	}
	return NewReader(resp.Body), nil
}

type lineReader struct {
	closer   io.Closer
	reader   *bufio.Reader
	position int64
}

// NewReader returns a stream over JSON lines read from rc.
func NewReader(rc io.ReadCloser) Stream {
	return &lineReader{closer: rc, reader: bufio.NewReaderSize(rc, 64*1024)}
}

func (r *lineReader) Next(ctx context.Context) (Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		line, err := r.readLine()
		if err != nil {
			return Sample{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sample := parseLine(line)
		sample.Position = r.position
		r.position++
		return sample, nil
	}
}

// readLine returns the next line without its terminator. Lines longer than
// maxLineBytes are consumed and returned truncated, which makes them parse as
// malformed.
func (r *lineReader) readLine() (string, error) {
	var buf strings.Builder
	for {
		chunk, err := r.reader.ReadSlice('\n')
		if buf.Len() < maxLineBytes {
			buf.Write(chunk)
		}
		switch {
		case err == nil:
			return strings.TrimRight(buf.String(), "\r\n"), nil
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if buf.Len() == 0 {
				return "", io.EOF
			}
			return buf.String(), nil
		default:
			return "", fmt.Errorf("read source: %w", err)
		}
	}
}

func (r *lineReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

type rawSample struct {
	URL      *string  `json:"url"`
	Captions []string `json:"captions"`
	URLText  *string  `json:"url.txt"`
	Synth    *struct {
		Text []string `json:"syn_text"`
	} `json:"syn.json"`
}

func parseLine(line string) Sample {
	var raw rawSample
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Sample{}
	}
	var sample Sample
	switch {
	case raw.URL != nil:
		sample.URL = strings.TrimSpace(*raw.URL)
	case raw.URLText != nil:
		sample.URL = strings.TrimSpace(*raw.URLText)
	}
	sample.Captions = raw.Captions
	if len(sample.Captions) == 0 && raw.Synth != nil {
		sample.Captions = raw.Synth.Text
	}
	captions := sample.Captions[:0:0]
	for _, caption := range sample.Captions {
		if strings.TrimSpace(caption) != "" {
			captions = append(captions, caption)
		}
	}
	sample.Captions = captions
	return sample
}

// Skip consumes up to n samples and returns how many were consumed. Reaching
// the end of the stream early is not an error.
func Skip(ctx context.Context, it Iterator, n int64) (int64, error) {
	var skipped int64
	for skipped < n {
		if _, err := it.Next(ctx); err != nil {
			if err == io.EOF {
				return skipped, nil
			}
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

type limited struct {
	it        Iterator
	remaining int
}

// Limit returns an iterator that stops after n samples.
func Limit(it Iterator, n int) Iterator {
	return &limited{it: it, remaining: n}
}

func (l *limited) Next(ctx context.Context) (Sample, error) {
	if l.remaining <= 0 {
		return Sample{}, io.EOF
	}
	sample, err := l.it.Next(ctx)
	if err != nil {
		return Sample{}, err
	}
	l.remaining--
	return sample, nil
}

// Slice is an in-memory Iterator, mostly useful in tests and for replaying
// a fixed list of samples.
type Slice struct {
	samples []Sample
	next    int
}

// FromSlice returns an iterator over samples, assigning positions in order.
func FromSlice(samples []Sample) *Slice {
	copied := make([]Sample, len(samples))
	for i, sample := range samples {
		sample.Position = int64(i)
		copied[i] = sample
	}
	return &Slice{samples: copied}
}

// Next returns the next sample or io.EOF.
func (s *Slice) Next(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	if s.next >= len(s.samples) {
		return Sample{}, io.EOF
	}
	sample := s.samples[s.next]
	s.next++
	return sample, nil
}
