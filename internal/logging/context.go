package logging

import (
	"context"
	"log/slog"

	"scrapscii/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for conversion run identifiers.
	FieldRunID = "run_id"
	// FieldStage is the standardized structured logging key for sample processing stages.
	FieldStage = "stage"
	// FieldSample is the standardized structured logging key for the absolute
	// position of a sample in the upstream stream.
	FieldSample = "sample"
	// FieldShardIndex is the standardized structured logging key for shard indices.
	FieldShardIndex = "shard_index"
	// FieldWindow is the standardized structured logging key for shard window numbers.
	FieldWindow = "window"
	// FieldCause is the standardized structured logging key for sample rejection causes.
	FieldCause = "cause"
	// FieldURL is the standardized structured logging key for sample URLs.
	FieldURL = "url"
	// FieldEventType tags log lines with a machine-friendly event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact carries the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if pos, ok := services.SampleFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldSample, pos))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(asArgs(fields)...)
}
