package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"sessionmix/internal/ffmpeg"
	"sessionmix/internal/logging"
	"sessionmix/internal/services"
)

const stageName = "mix"

// Mixer launches ffmpeg amix processes.
type Mixer struct {
	logger  *slog.Logger
	binary  string
	run     ffmpeg.Runner
	limit   int
	slots   *semaphore.Weighted
	timeout time.Duration
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithBinary sets the ffmpeg executable.
func WithBinary(binary string) Option {
	return func(m *Mixer) {
		if b := strings.TrimSpace(binary); b != "" {
			m.binary = b
		}
	}
}

// WithConcurrency caps the number of mix processes running at once. Values
// below 1 select one per CPU.
func WithConcurrency(n int) Option {
	return func(m *Mixer) {
		m.limit = n
	}
}

// WithTimeout bounds each mix process. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Mixer) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r ffmpeg.Runner) Option {
	return func(m *Mixer) {
		if r != nil {
			m.run = r
		}
	}
}

// New constructs a Mixer.
func New(logger *slog.Logger, opts ...Option) *Mixer {
	m := &Mixer{
		logger: logging.NewComponentLogger(logger, "mixer"),
		binary: ffmpeg.DefaultBinary,
		run:    ffmpeg.Run,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limit < 1 {
		m.limit = runtime.NumCPU()
	}
	m.slots = semaphore.NewWeighted(int64(m.limit))
	return m
}

// Concurrency reports the effective process cap.
func (m *Mixer) Concurrency() int {
	return m.limit
}

// Result describes a completed mix.
type Result struct {
	Index   int
	Output  string
	Tracks  int
	Queued  time.Duration
	Elapsed time.Duration
}

// Handle represents one in-flight mix. Index identifies the owning recording
// by position, so attribution does not depend on the recording's lifetime.
type Handle struct {
	Index  int
	Output string
	Tracks []string

	done   chan struct{}
	result Result
	err    error
}

// Wait blocks until the mix process has exited and returns its outcome.
// It does not abandon the process early: cancelling the launch context kills
// ffmpeg, after which Wait returns.
func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.result, h.err
}

// Done is closed once the mix process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Launch starts mixing tracks into output and returns without waiting. The
// mix queues for a concurrency slot in the background.
func (m *Mixer) Launch(ctx context.Context, index int, tracks []string, output string) (*Handle, error) {
	dir := filepath.Dir(output)
	if len(tracks) == 0 {
		return nil, services.Fail(services.ErrNoTracksFound, stageName, index, dir, errors.New("refusing to mix zero inputs"))
	}
	if strings.TrimSpace(output) == "" {
		return nil, services.Fail(services.ErrMixFailed, stageName, index, dir, errors.New("output path is required"))
	}

	h := &Handle{
		Index:  index,
		Output: output,
		Tracks: append([]string(nil), tracks...),
		done:   make(chan struct{}),
	}
	logger := m.logger.With(logging.Int(logging.FieldRecordingIndex, index))
	logger.Debug("mix queued",
		logging.String("output", output),
		logging.Int("tracks", len(tracks)),
		logging.Strings("inputs", tracks),
	)

	go m.execute(ctx, h, logger)
	return h, nil
}

func (m *Mixer) execute(ctx context.Context, h *Handle, logger *slog.Logger) {
	defer close(h.done)
	dir := filepath.Dir(h.Output)
	fail := func(err error) {
		h.err = services.Fail(services.ErrMixFailed, stageName, h.Index, dir, err)
	}

	queuedAt := time.Now()
	if err := m.slots.Acquire(ctx, 1); err != nil {
		fail(fmt.Errorf("waiting for mix slot: %w", err))
		return
	}
	defer m.slots.Release(1)
	if err := ctx.Err(); err != nil {
		fail(fmt.Errorf("waiting for mix slot: %w", err))
		return
	}

	runCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	queued := start.Sub(queuedAt)
	logger.Info("mix started",
		logging.String(logging.FieldEventType, "mix_started"),
		logging.Int("tracks", len(h.Tracks)),
		logging.Duration("queued", queued),
	)

	err := m.run(runCtx, m.binary, ffmpeg.MixArgs(h.Tracks, h.Output)...)
	elapsed := time.Since(start)
	if err != nil {
		if runCtx.Err() != nil && !errors.Is(err, runCtx.Err()) {
			err = fmt.Errorf("%w: %w", runCtx.Err(), err)
		}
		_ = os.Remove(h.Output)
		fail(err)
		logging.ErrorWithContext(logger, "mix failed", "mix_failed",
			logging.Error(err),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "inspect the ffmpeg output above; a track may be corrupt or in a different format"),
		)
		return
	}
	if _, err := os.Stat(h.Output); err != nil {
		fail(fmt.Errorf("ffmpeg exited cleanly but produced no output: %w", err))
		return
	}

	h.result = Result{
		Index:   h.Index,
		Output:  h.Output,
		Tracks:  len(h.Tracks),
		Queued:  queued,
		Elapsed: elapsed,
	}
	logger.Info("mix finished",
		logging.String(logging.FieldEventType, "mix_finished"),
		logging.String("output", h.Output),
		logging.Duration("elapsed", elapsed),
	)
}
