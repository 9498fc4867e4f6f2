package logging

// ProgressSampler thins per-sample progress logs to one line per completed
// percentage bucket of a run, plus one at the start of every window.
type ProgressSampler struct {
	bucketSize float64
	lastWindow int
	lastBucket int
}

// NewProgressSampler returns a sampler emitting every bucketSize percent
// (default 5).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastWindow: -1, lastBucket: -1}
}

// ShouldLog reports whether progress at done of total samples, inside window,
// deserves a log line. A non-positive total means the run length is unknown,
// so only window changes emit.
func (s *ProgressSampler) ShouldLog(done, total, window int) bool {
	if s == nil {
		return true
	}
	emit := false
	if window > s.lastWindow {
		s.lastWindow = window
		emit = true
	}
	if total > 0 && done >= 0 {
		percent := float64(done) * 100 / float64(total)
		bucket := int(min(percent, 100) / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset forgets what was logged, e.g. when a new run starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastWindow = -1
	s.lastBucket = -1
}
