package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sessionmix/internal/archive"
	"sessionmix/internal/export"
	"sessionmix/internal/ffmpeg"
	"sessionmix/internal/logging"
	"sessionmix/internal/media/ffprobe"
	"sessionmix/internal/mixer"
	"sessionmix/internal/services"
)

const tracerName = "sessionmix/internal/session"

// ErrAlreadyRun is returned when Run is called more than once.
var ErrAlreadyRun = errors.New("session orchestrator already ran")

// Orchestrator runs a single session. It is not reusable.
type Orchestrator struct {
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	expander *archive.Expander
	mixer    *mixer.Mixer
	exporter *export.Exporter
	newRunID func() string

	mu      sync.Mutex
	started bool
	state   State
	err     error
	output  string
}

type settings struct {
	runner  ffmpeg.Runner
	inspect ffprobe.Inspector
	tracer  trace.Tracer
	runID   func() string
}

// Option customizes an Orchestrator.
type Option func(*settings)

// WithCommandRunner replaces the ffmpeg runner for mixing and export.
func WithCommandRunner(r ffmpeg.Runner) Option {
	return func(s *settings) { s.runner = r }
}

// WithInspector replaces the ffprobe inspector used for output verification.
func WithInspector(i ffprobe.Inspector) Option {
	return func(s *settings) { s.inspect = i }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithRunIDGenerator overrides run ID generation.
func WithRunIDGenerator(fn func() string) Option {
	return func(s *settings) { s.runID = fn }
}

// New validates opts and wires the pipeline components.
func New(opts Options, logger *slog.Logger, options ...Option) (*Orchestrator, error) {
	normalized, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	s := settings{
		tracer: otel.Tracer(tracerName),
		runID:  uuid.NewString,
	}
	for _, opt := range options {
		opt(&s)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	mixOpts := []mixer.Option{
		mixer.WithBinary(normalized.FFmpegBinary),
		mixer.WithConcurrency(normalized.MaxConcurrentMixes),
		mixer.WithTimeout(normalized.MixTimeout),
		mixer.WithCommandRunner(s.runner),
	}
	exportOpts := []export.Option{
		export.WithFFmpegBinary(normalized.FFmpegBinary),
		export.WithCommandRunner(s.runner),
	}
	if normalized.VerifyOutput {
		exportOpts = append(exportOpts, export.WithVerification(normalized.FFprobeBinary, s.inspect))
	}

	return &Orchestrator{
		opts:     normalized,
		logger:   logging.NewComponentLogger(logger, "session"),
		tracer:   s.tracer,
		expander: archive.NewExpander(logger),
		mixer:    mixer.New(logger, mixOpts...),
		exporter: export.New(logger, exportOpts...),
		newRunID: s.runID,
		state:    StateInitializing,
	}, nil
}

// Name returns the sanitized session name.
func (o *Orchestrator) Name() string {
	return o.opts.Name
}

// DestinationPath is where the session file is written.
func (o *Orchestrator) DestinationPath() string {
	return filepath.Join(o.opts.OutputDir, o.opts.Name+"."+o.opts.Format)
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error that moved the orchestrator to Failed.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// OutputPath returns the session file once Done.
func (o *Orchestrator) OutputPath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.output
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	o.state = next
	o.mu.Unlock()
}

// Run executes the pipeline once. The returned Result is populated as far as
// the run progressed, even on failure.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return Result{}, ErrAlreadyRun
	}
	o.started = true
	o.mu.Unlock()

	runID := o.newRunID()
	ctx = services.WithRunID(ctx, runID)
	ctx, span := o.tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.name", o.opts.Name),
		attribute.String("session.run_id", runID),
		attribute.Int("session.archives", len(o.opts.Archives)),
	))
	defer span.End()

	logger := o.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldSession, o.opts.Name),
	)
	logger.Info("session started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.Int("archives", len(o.opts.Archives)),
		logging.String("format", o.opts.Format),
		logging.Int("max_concurrent_mixes", o.mixer.Concurrency()),
	)

	start := time.Now()
	sess, mode, err := o.run(ctx, logger)
	result := Result{
		RunID:      runID,
		Session:    o.opts.Name,
		Elapsed:    time.Since(start),
		Recordings: summarize(sess),
	}

	o.mu.Lock()
	if err != nil {
		o.state = StateFailed
		o.err = err
	} else {
		o.state = StateDone
		o.output = sess.Output
		result.Output = sess.Output
		result.Mode = mode.String()
	}
	result.State = o.state.String()
	o.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.ErrorWithContext(logger, "session failed", "session_failed",
			logging.Error(err),
			logging.Duration("elapsed", result.Elapsed),
			logging.String(logging.FieldImpact, "no session file was produced"),
		)
		return result, err
	}
	span.SetAttributes(attribute.String("session.output", result.Output), attribute.String("session.mode", result.Mode))
	logger.Info("session finished",
		logging.String(logging.FieldEventType, "session_finished"),
		logging.String("output", result.Output),
		logging.String("mode", result.Mode),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger) (*Session, export.Mode, error) {
	if len(o.opts.Archives) == 0 {
		return nil, export.ModeNone, services.Fail(services.ErrNoRecordings, "initialize", services.NoIndex, "",
			errors.New("no archives supplied"))
	}

	sess := &Session{
		Name:   o.opts.Name,
		Format: o.opts.Format,
		Output: o.DestinationPath(),
		RawDir: o.opts.RawDir,
	}

	lock, err := o.lock(sess)
	if err != nil {
		return nil, export.ModeNone, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release session lock failed", logging.Error(err))
		}
	}()

	if err := o.initialize(ctx, sess, logger); err != nil {
		return sess, export.ModeNone, err
	}

	o.transition(StateMixing)
	if err := o.mix(ctx, sess, logger); err != nil {
		return sess, export.ModeNone, err
	}

	o.transition(StateConcatenating)
	mode, err := o.export(ctx, sess)
	if err != nil {
		return sess, mode, err
	}

	if o.opts.CleanupRaw {
		if err := os.RemoveAll(sess.Dir()); err != nil {
			logging.WarnWithContext(logger, "raw cleanup failed", "raw_cleanup_failed",
				logging.Error(err),
				logging.String("dir", sess.Dir()),
				logging.String(logging.FieldImpact, "extracted files remain on disk"),
			)
		}
	}
	return sess, mode, nil
}

func (o *Orchestrator) lock(sess *Session) (*flock.Flock, error) {
	if err := os.MkdirAll(sess.RawDir, 0o755); err != nil {
		return nil, services.Fail(services.ErrExtraction, "initialize", services.NoIndex, sess.RawDir, err)
	}
	path := filepath.Join(sess.RawDir, sess.Name+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Fail(services.ErrSessionLocked, "initialize", services.NoIndex, path, err)
	}
	if !ok {
		return nil, services.Fail(services.ErrSessionLocked, "initialize", services.NoIndex, path,
			fmt.Errorf("session %q is already running", sess.Name))
	}
	return lock, nil
}

func (o *Orchestrator) initialize(ctx context.Context, sess *Session, logger *slog.Logger) error {
	ctx, span := o.tracer.Start(ctx, "session.extract")
	defer span.End()
	ctx = services.WithStage(ctx, "extract")

	for index, archivePath := range o.opts.Archives {
		desc, err := o.expander.Expand(ctx, index, archivePath, archive.DestinationDir(sess.RawDir, sess.Name, index))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "extraction failed")
			return err
		}
		sess.Recordings = append(sess.Recordings, &Recording{
			Index:   index,
			Archive: archivePath,
			Dir:     desc.Dir,
			Format:  sess.Format,
		})
		logging.WithContext(services.WithRecordingIndex(ctx, index), logger).Debug("recording ready",
			logging.String("dir", desc.Dir),
			logging.Int("files", desc.Files),
		)
	}
	return nil
}

func (o *Orchestrator) mix(ctx context.Context, sess *Session, logger *slog.Logger) error {
	ctx, span := o.tracer.Start(ctx, "session.mix", trace.WithAttributes(
		attribute.Int("session.recordings", len(sess.Recordings)),
	))
	defer span.End()
	ctx = services.WithStage(ctx, "mix")
	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mixing failed")
		return err
	}

	for _, rec := range sess.Recordings {
		tracks, err := mixer.DiscoverTracks(rec.Dir, rec.Format)
		if err != nil {
			return fail(services.WithIndex(err, rec.Index))
		}
		rec.Tracks = tracks
	}

	handles := make([]*mixer.Handle, 0, len(sess.Recordings))
	var launchErr error
	for _, rec := range sess.Recordings {
		h, err := o.mixer.Launch(ctx, rec.Index, rec.Tracks, mixer.MixedPath(rec.Dir, rec.Format))
		if err != nil {
			launchErr = err
			break
		}
		handles = append(handles, h)
	}
	logging.WithContext(ctx, logger).Info("mixes launched",
		logging.String(logging.FieldEventType, "mixes_launched"),
		logging.Int("launched", len(handles)),
	)

	// Every handle is drained before reporting, so no ffmpeg process outlives
	// the stage.
	var firstErr error
	results := make([]mixer.Result, len(handles))
	for i, h := range handles {
		res, err := h.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results[i] = res
	}
	if firstErr == nil {
		firstErr = launchErr
	}
	if firstErr != nil {
		return fail(firstErr)
	}

	for _, res := range results {
		rec := sess.Recordings[res.Index]
		if err := rec.setMixed(res.Output, res.Elapsed); err != nil {
			return fail(services.Fail(services.ErrMixFailed, "mix", rec.Index, rec.Dir, err))
		}
	}
	return nil
}

func (o *Orchestrator) export(ctx context.Context, sess *Session) (export.Mode, error) {
	ctx, span := o.tracer.Start(ctx, "session.export")
	defer span.End()
	ctx = services.WithStage(ctx, "export")

	mode, err := o.exporter.Export(ctx, sess.MixedPaths(), sess.Output)
	span.SetAttributes(attribute.String("export.mode", mode.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
	}
	return mode, err
}
