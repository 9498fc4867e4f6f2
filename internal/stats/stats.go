package stats

import (
	"fmt"
	"sync"
)

// Outcome is the terminal classification of one sample.
type Outcome string

const (
	OutcomeValid     Outcome = "valid"
	OutcomeResponse  Outcome = "response"
	OutcomeExtension Outcome = "extension"
	OutcomeImage     Outcome = "image"
	OutcomeASCIIArt  Outcome = "asciiart"
	OutcomeSkipped   Outcome = "skipped"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeValid,
	OutcomeResponse,
	OutcomeExtension,
	OutcomeImage,
	OutcomeASCIIArt,
	OutcomeSkipped,
}

// Invalid holds the rejection counters by cause.
type Invalid struct {
	Response  int `json:"response"`
	Extension int `json:"extension"`
	Image     int `json:"image"`
	ASCIIArt  int `json:"asciiart"`
}

// Sum returns the number of rejected samples.
func (i Invalid) Sum() int {
	return i.Response + i.Extension + i.Image + i.ASCIIArt
}

// Stats is an immutable snapshot of run counters.
type Stats struct {
	Index   int     `json:"index"`
	Saved   int     `json:"saved"`
	Skipped int     `json:"skipped"`
	Valid   int     `json:"valid"`
	Invalid Invalid `json:"invalid"`
}

// Total is the number of outcomes recorded so far.
func (s Stats) Total() int {
	return s.Valid + s.Skipped + s.Invalid.Sum()
}

// Record returns a copy of s with one more sample counted under o. Unknown
// outcomes leave the counters untouched.
func (s Stats) Record(o Outcome) Stats {
	switch o {
	case OutcomeValid:
		s.Valid++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeResponse:
		s.Invalid.Response++
	case OutcomeExtension:
		s.Invalid.Extension++
	case OutcomeImage:
		s.Invalid.Image++
	case OutcomeASCIIArt:
		s.Invalid.ASCIIArt++
	}
	return s
}

// Count returns the counter for a single outcome.
func (s Stats) Count(o Outcome) int {
	switch o {
	case OutcomeValid:
		return s.Valid
	case OutcomeSkipped:
		return s.Skipped
	case OutcomeResponse:
		return s.Invalid.Response
	case OutcomeExtension:
		return s.Invalid.Extension
	case OutcomeImage:
		return s.Invalid.Image
	case OutcomeASCIIArt:
		return s.Invalid.ASCIIArt
	default:
		return 0
	}
}

// WithIndex returns a copy of s pointing at the given shard index.
func (s Stats) WithIndex(index int) Stats {
	s.Index = index
	return s
}

// WithSaved returns a copy of s with n more persisted records.
func (s Stats) WithSaved(n int) Stats {
	s.Saved += n
	return s
}

// Merge adds the counters of other to s. Index keeps the larger value.
func (s Stats) Merge(other Stats) Stats {
	s.Index = max(s.Index, other.Index)
	s.Saved += other.Saved
	s.Skipped += other.Skipped
	s.Valid += other.Valid
	s.Invalid.Response += other.Invalid.Response
	s.Invalid.Extension += other.Invalid.Extension
	s.Invalid.Image += other.Invalid.Image
	s.Invalid.ASCIIArt += other.Invalid.ASCIIArt
	return s
}

// String renders the one-line progress summary.
func (s Stats) String() string {
	return fmt.Sprintf(
		"index=%d total=%d saved=%d skipped=%d valid=%d invalid=%d (response=%d extension=%d image=%d asciiart=%d)",
		s.Index,
		s.Total(),
		s.Saved,
		s.Skipped,
		s.Valid,
		s.Invalid.Sum(),
		s.Invalid.Response,
		s.Invalid.Extension,
		s.Invalid.Image,
		s.Invalid.ASCIIArt,
	)
}

// Tracker serializes updates from concurrent workers.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
}

// NewTracker starts a tracker from an initial snapshot.
func NewTracker(initial Stats) *Tracker {
	return &Tracker{stats: initial}
}

// Record counts one outcome and returns the updated snapshot.
func (t *Tracker) Record(o Outcome) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = t.stats.Record(o)
	return t.stats
}

// SetIndex moves the tracked shard index.
func (t *Tracker) SetIndex(index int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = t.stats.WithIndex(index)
	return t.stats
}

// AddSaved counts persisted records.
func (t *Tracker) AddSaved(n int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = t.stats.WithSaved(n)
	return t.stats
}

// Snapshot returns the current value.
func (t *Tracker) Snapshot() Stats {
	if t == nil {
		return Stats{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
