package services

import (
	"errors"
	"fmt"
	"strings"

	"scrapscii/internal/stats"
)

// Sample rejection markers. Exactly one of them tags every per-sample failure.
var (
	ErrResponse  = errors.New("invalid response")
	ErrExtension = errors.New("invalid extension")
	ErrImage     = errors.New("invalid image")
	ErrASCIIArt  = errors.New("invalid ascii art")
)

// Run-level markers.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureCause maps a per-sample error to the outcome counted in the run
// stats. The second result is false when err carries no sample marker, in
// which case the caller picks the cause nearest to the failing call.
func FailureCause(err error) (stats.Outcome, bool) {
	switch {
	case err == nil:
		return stats.OutcomeValid, true
	case errors.Is(err, ErrResponse):
		return stats.OutcomeResponse, true
	case errors.Is(err, ErrExtension):
		return stats.OutcomeExtension, true
	case errors.Is(err, ErrImage):
		return stats.OutcomeImage, true
	case errors.Is(err, ErrASCIIArt):
		return stats.OutcomeASCIIArt, true
	default:
		return "", false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
