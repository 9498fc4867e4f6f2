// Package converter runs the external image-to-text converter and validates
// what it prints.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"scrapscii/internal/services"
)

var commandContext = exec.CommandContext

const (
	// DefaultBinary is the converter executable looked up on PATH.
	DefaultBinary = "ascii-image-converter"

	stderrLimit = 512
	waitDelay   = 100 * time.Millisecond
)

// Converter turns a staged image into text art.
type Converter interface {
	Convert(ctx context.Context, imagePath string, args []string) (string, error)
}

// Option configures the CLI converter.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary = strings.TrimSpace(binary); binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout >= 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the converter command-line tool.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI converter using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: DefaultBinary}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs `<binary> args... imagePath` and returns its standard output.
// Every failure is tagged services.ErrASCIIArt; nothing here aborts a run.
func (c *CLI) Convert(ctx context.Context, imagePath string, args []string) (string, error) {
	if strings.TrimSpace(imagePath) == "" {
		return "", services.Wrap(services.ErrASCIIArt, "convert", "validate input", "image path required", nil)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	argv := make([]string, 0, len(args)+1)
	argv = append(argv, args...)
	argv = append(argv, imagePath)

	cmd := commandContext(ctx, c.binary, argv...) //nolint:gosec
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrASCIIArt, "convert", "run converter",
				fmt.Sprintf("timed out after %s", c.timeout), errors.Join(services.ErrTimeout, err))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", services.Wrap(services.ErrASCIIArt, "convert", "run converter",
				fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), summarize(stderr.String())), nil)
		}
		return "", services.Wrap(services.ErrASCIIArt, "convert", "launch converter", c.binary,
			errors.Join(services.ErrExternalTool, err))
	}

	output := stdout.Bytes()
	if !utf8.Valid(output) {
		return "", services.Wrap(services.ErrASCIIArt, "convert", "decode output", "output is not valid UTF-8", nil)
	}
	return string(output), nil
}

func summarize(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return "no stderr output"
	}
	if len(stderr) > stderrLimit {
		stderr = stderr[:stderrLimit] + "..."
	}
	return stderr
}

// ValidOutput reports whether converter output is usable: non-empty, at least
// minLen characters long, and free of the case-insensitive error marker.
func ValidOutput(content string, minLen int, marker string) bool {
	if content == "" {
		return false
	}
	if utf8.RuneCountInString(content) < minLen {
		return false
	}
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker != "" && strings.Contains(strings.ToLower(content), marker) {
		return false
	}
	return true
}

// CheckOutput wraps ValidOutput with the sample marker used by the pipeline.
func CheckOutput(content string, minLen int, marker string) error {
	if ValidOutput(content, minLen, marker) {
		return nil
	}
	return services.Wrap(services.ErrASCIIArt, "convert", "validate output",
		fmt.Sprintf("%d characters rejected", utf8.RuneCountInString(content)), nil)
}
