package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sessionmix/internal/ffmpeg"
	"sessionmix/internal/fileutil"
	"sessionmix/internal/logging"
	"sessionmix/internal/media/ffprobe"
	"sessionmix/internal/services"
)

const stageName = "export"

// Mode records how the destination was produced.
type Mode int

const (
	ModeNone Mode = iota
	ModeMove
	ModeConcat
)

func (m Mode) String() string {
	switch m {
	case ModeMove:
		return "move"
	case ModeConcat:
		return "concat"
	default:
		return "none"
	}
}

// Exporter writes the session output file.
type Exporter struct {
	logger        *slog.Logger
	ffmpegBinary  string
	run           ffmpeg.Runner
	ffprobeBinary string
	inspect       ffprobe.Inspector
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithFFmpegBinary sets the ffmpeg executable used for concatenation.
func WithFFmpegBinary(binary string) Option {
	return func(e *Exporter) {
		if b := strings.TrimSpace(binary); b != "" {
			e.ffmpegBinary = b
		}
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r ffmpeg.Runner) Option {
	return func(e *Exporter) {
		if r != nil {
			e.run = r
		}
	}
}

// WithVerification probes concatenated output before it replaces the
// destination. A nil inspector uses ffprobe.Inspect.
func WithVerification(ffprobeBinary string, inspect ffprobe.Inspector) Option {
	return func(e *Exporter) {
		if inspect == nil {
			inspect = ffprobe.Inspect
		}
		e.inspect = inspect
		e.ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	}
}

// New constructs an Exporter. Verification is off unless requested.
func New(logger *slog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		logger:       logging.NewComponentLogger(logger, "exporter"),
		ffmpegBinary: ffmpeg.DefaultBinary,
		run:          ffmpeg.Run,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes paths, in order, to destination. One path is moved and is
// gone afterwards; two or more are concatenated. An empty list is
// services.ErrNoRecordings and touches nothing.
func (e *Exporter) Export(ctx context.Context, paths []string, destination string) (Mode, error) {
	switch len(paths) {
	case 0:
		return ModeNone, services.Fail(services.ErrNoRecordings, stageName, services.NoIndex, destination,
			errors.New("no mixed recordings to export"))
	case 1:
		return ModeMove, e.move(paths[0], destination)
	default:
		return ModeConcat, e.concat(ctx, paths, destination)
	}
}

func (e *Exporter) move(src, destination string) error {
	fail := func(err error) error {
		return services.Fail(services.ErrMove, stageName, 0, destination, err)
	}
	if err := requireDir(filepath.Dir(destination)); err != nil {
		return fail(err)
	}
	if err := fileutil.MoveFile(src, destination); err != nil {
		return fail(fmt.Errorf("move %s: %w", src, err))
	}
	e.logger.Info("session exported",
		logging.String(logging.FieldEventType, "export_moved"),
		logging.String("source", src),
		logging.String("destination", destination),
	)
	return nil
}

func (e *Exporter) concat(ctx context.Context, paths []string, destination string) error {
	fail := func(index int, err error) error {
		return services.Fail(services.ErrConcat, stageName, index, destination, err)
	}
	dir := filepath.Dir(destination)
	if err := requireDir(dir); err != nil {
		return fail(services.NoIndex, err)
	}
	for i, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fail(i, fmt.Errorf("mixed recording: %w", err))
		}
	}

	ext := filepath.Ext(destination)
	stem := strings.TrimSuffix(filepath.Base(destination), ext)
	tmp, err := os.CreateTemp(dir, "."+stem+"-*.partial"+ext)
	if err != nil {
		return fail(services.NoIndex, fmt.Errorf("create temporary output: %w", err))
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	start := time.Now()
	if err := e.run(ctx, e.ffmpegBinary, ffmpeg.ConcatArgs(paths, tmpPath)...); err != nil {
		logging.ErrorWithContext(e.logger, "concat failed", "concat_failed",
			logging.Error(err),
			logging.Int("inputs", len(paths)),
			logging.String(logging.FieldErrorHint, "check that every mixed recording shares the same format"),
		)
		return fail(services.NoIndex, err)
	}
	if err := e.verify(ctx, tmpPath); err != nil {
		return fail(services.NoIndex, err)
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return fail(services.NoIndex, fmt.Errorf("commit output: %w", err))
	}
	committed = true

	e.logger.Info("session exported",
		logging.String(logging.FieldEventType, "export_concatenated"),
		logging.Int("inputs", len(paths)),
		logging.String("destination", destination),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (e *Exporter) verify(ctx context.Context, path string) error {
	if e.inspect == nil {
		return nil
	}
	probe, err := e.inspect(ctx, e.ffprobeBinary, path)
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	if video := probe.VideoStreamCount(); video != 0 {
		return fmt.Errorf("verify output: expected no video streams, found %d", video)
	}
	if audio := probe.AudioStreamCount(); audio != 1 {
		return fmt.Errorf("verify output: expected one audio stream, found %d", audio)
	}
	e.logger.Debug("output verified",
		logging.String("path", path),
		logging.Any("duration_seconds", probe.DurationSeconds()),
	)
	return nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination directory: %s is not a directory", dir)
	}
	return nil
}
