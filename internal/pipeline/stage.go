package pipeline

import "scrapscii/internal/stats"

// Stage names a step of the per-sample state machine.
type Stage string

const (
	StageFetching            Stage = "fetching"
	StageValidatingExtension Stage = "validating_extension"
	StageValidatingBytes     Stage = "validating_bytes"
	StageWritingTemp         Stage = "writing_temp"
	StageConverting          Stage = "converting"
	StageValidatingOutput    Stage = "validating_output"
	StageAssembling          Stage = "assembling"
	StageBatched             Stage = "batched"
	StageRejected            Stage = "rejected"
)

// Event reports the stages one sample went through and how it ended.
type Event struct {
	Position int64
	URL      string
	Stages   []Stage
	Outcome  stats.Outcome
}

// acquisitionStages returns the stages a sample passed through before the
// acquisition gate that rejected it with cause.
func acquisitionStages(cause stats.Outcome) []Stage {
	switch cause {
	case stats.OutcomeExtension:
		return []Stage{StageFetching, StageValidatingExtension}
	case stats.OutcomeImage:
		return []Stage{StageFetching, StageValidatingExtension, StageValidatingBytes}
	default:
		return []Stage{StageFetching}
	}
}
