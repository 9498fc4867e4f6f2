// Package services defines shared utilities consumed by the conversion
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and sample positions
//     for logging.
//   - Structured error markers plus the Wrap helper. The four sample markers
//     (response, extension, image, asciiart) drive both control flow and the
//     run statistics through FailureCause.
//
// Use these helpers when adding a new stage so rejected samples stay
// classified the same way everywhere.
package services
