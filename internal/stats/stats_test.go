package stats

import (
	"sync"
	"testing"
)

func TestRecordCountsExactlyOneOutcome(t *testing.T) {
	for _, outcome := range Outcomes {
		before := Stats{}
		after := before.Record(outcome)
		if after.Total() != 1 {
			t.Fatalf("%s: expected total 1, got %d", outcome, after.Total())
		}
		if after.Count(outcome) != 1 {
			t.Fatalf("%s: expected counter 1, got %d", outcome, after.Count(outcome))
		}
		if before.Total() != 0 {
			t.Fatalf("%s: record mutated the receiver", outcome)
		}
	}
}

func TestRecordUnknownOutcomeIsNoop(t *testing.T) {
	s := Stats{}.Record(Outcome("bogus"))
	if s.Total() != 0 {
		t.Fatalf("expected unknown outcome to be ignored, got total %d", s.Total())
	}
}

func TestTotalIsSumOfOutcomes(t *testing.T) {
	s := Stats{}
	sequence := []Outcome{OutcomeValid, OutcomeValid, OutcomeResponse, OutcomeImage, OutcomeSkipped, OutcomeASCIIArt, OutcomeExtension}
	for _, o := range sequence {
		s = s.Record(o)
	}
	if s.Total() != len(sequence) {
		t.Fatalf("expected total %d, got %d", len(sequence), s.Total())
	}
	if s.Invalid.Sum() != 4 {
		t.Fatalf("expected 4 invalid, got %d", s.Invalid.Sum())
	}
}

func TestStringFormat(t *testing.T) {
	s := Stats{}.
		Record(OutcomeValid).
		Record(OutcomeResponse).
		Record(OutcomeASCIIArt).
		WithIndex(3).
		WithSaved(16)

	want := "index=3 total=3 saved=16 skipped=0 valid=1 invalid=2 (response=1 extension=0 image=0 asciiart=1)"
	first := s.String()
	if first != want {
		t.Fatalf("unexpected summary:\n got %q\nwant %q", first, want)
	}
	if second := s.String(); second != first {
		t.Fatalf("formatting is not stable: %q vs %q", first, second)
	}
}

func TestMerge(t *testing.T) {
	a := Stats{Index: 2, Valid: 1, Saved: 16}
	b := Stats{Index: 5, Valid: 2, Invalid: Invalid{Image: 1}}
	merged := a.Merge(b)
	if merged.Index != 5 || merged.Valid != 3 || merged.Saved != 16 || merged.Invalid.Image != 1 {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}

func TestTrackerConcurrentRecord(t *testing.T) {
	tracker := NewTracker(Stats{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.Record(Outcomes[i%len(Outcomes)])
		}(i)
	}
	wg.Wait()
	if got := tracker.Snapshot().Total(); got != 50 {
		t.Fatalf("expected 50 outcomes, got %d", got)
	}
}
