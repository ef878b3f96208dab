package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

// diagnosticTail bounds how much stderr is retained on failure.
const diagnosticTail = 4 << 10

// Runner executes a command to completion.
type Runner func(ctx context.Context, binary string, args ...string) error

// ExitError reports an abnormal ffmpeg termination.
type ExitError struct {
	Binary   string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Binary, e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Run executes binary with args, discarding stdout and keeping the tail of
// stderr for diagnostics. The process is killed when ctx is cancelled.
func Run(ctx context.Context, binary string, args ...string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitErr := &ExitError{Binary: binary, ExitCode: -1, Output: tail(stderr.String()), Err: err}
	var procErr *exec.ExitError
	if errors.As(err, &procErr) {
		exitErr.ExitCode = procErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		exitErr.Err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return exitErr
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= diagnosticTail {
		return s
	}
	return s[len(s)-diagnosticTail:]
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
