package ledger

import (
	"time"

	"scrapscii/internal/stats"
)

// Status describes the lifecycle of a conversion run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Run is one invocation of the conversion pipeline.
type Run struct {
	ID          string      `json:"id"`
	Source      string      `json:"source"`
	Status      Status      `json:"status"`
	StartOffset int64       `json:"start_offset"`
	Cursor      int64       `json:"cursor"`
	StartIndex  int         `json:"start_index"`
	Stats       stats.Stats `json:"stats"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	FinishedAt  time.Time   `json:"finished_at,omitzero"`
}

// ShardEntry is a persisted shard as recorded by the run that wrote it.
type ShardEntry struct {
	Index     int       `json:"index"`
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Rows      int64     `json:"rows"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ResumePoint tells a new run where to pick up.
type ResumePoint struct {
	// Offset is the number of samples of the source already consumed.
	Offset int64
	// NextIndex is the first unused shard index.
	NextIndex int
}
