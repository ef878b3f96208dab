package mixer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sessionmix/internal/ffmpeg"
	"sessionmix/internal/logging"
	"sessionmix/internal/mixer"
	"sessionmix/internal/services"
	"sessionmix/internal/testsupport"
)

func newMixer(fake *testsupport.FakeFFmpeg, opts ...mixer.Option) *mixer.Mixer {
	opts = append([]mixer.Option{mixer.WithCommandRunner(fake.Run)}, opts...)
	return mixer.New(logging.NewNop(), opts...)
}

func TestLaunchMixesTracks(t *testing.T) {
	dir := t.TempDir()
	tracks := testsupport.WriteTracks(t, dir, "a.flac", "b.flac")
	fake := &testsupport.FakeFFmpeg{}
	m := newMixer(fake)

	out := mixer.MixedPath(dir, "flac")
	h, err := m.Launch(context.Background(), 3, tracks, out)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	res, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Index != 3 || res.Output != out || res.Tracks != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "track:a.flactrack:b.flac" {
		t.Fatalf("unexpected output %q", data)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	joined := strings.Join(calls[0], " ")
	if !strings.Contains(joined, "amix=inputs=2:duration=longest") {
		t.Fatalf("missing amix filter: %s", joined)
	}
}

func TestLaunchLogsTrackList(t *testing.T) {
	dir := t.TempDir()
	tracks := testsupport.WriteTracks(t, dir, "a.flac", "b.flac")
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := mixer.New(logger, mixer.WithCommandRunner((&testsupport.FakeFFmpeg{}).Run))

	h, err := m.Launch(context.Background(), 0, tracks, mixer.MixedPath(dir, "flac"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	var entry struct {
		Msg    string   `json:"msg"`
		Inputs []string `json:"inputs"`
	}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	if entry.Msg != "mix queued" || len(entry.Inputs) != 2 || entry.Inputs[0] != tracks[0] {
		t.Fatalf("unexpected queued entry %+v", entry)
	}
}

func TestLaunchRejectsEmptyTrackList(t *testing.T) {
	fake := &testsupport.FakeFFmpeg{}
	m := newMixer(fake)
	_, err := m.Launch(context.Background(), 0, nil, filepath.Join(t.TempDir(), "mixed.flac"))
	if !errors.Is(err, services.ErrNoTracksFound) {
		t.Fatalf("expected ErrNoTracksFound, got %v", err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatal("ffmpeg must not run without tracks")
	}
}

func TestLaunchDoesNotBlockAndCapsConcurrency(t *testing.T) {
	release := make(chan struct{})
	fake := &testsupport.FakeFFmpeg{Block: release}
	m := newMixer(fake, mixer.WithConcurrency(2))
	if m.Concurrency() != 2 {
		t.Fatalf("Concurrency = %d", m.Concurrency())
	}

	var handles []*mixer.Handle
	for i := 0; i < 5; i++ {
		dir := t.TempDir()
		tracks := testsupport.WriteTracks(t, dir, "x.flac")
		h, err := m.Launch(context.Background(), i, tracks, mixer.MixedPath(dir, "flac"))
		if err != nil {
			t.Fatalf("Launch %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	testsupport.Eventually(t, func() bool { return fake.Active() == 2 })
	time.Sleep(20 * time.Millisecond)
	if fake.Active() != 2 {
		t.Fatalf("expected 2 active mixes, got %d", fake.Active())
	}
	close(release)

	for i, h := range handles {
		res, err := h.Wait()
		if err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
		if res.Index != i {
			t.Fatalf("handle %d reported index %d", i, res.Index)
		}
	}
	if got := fake.MaxActive(); got != 2 {
		t.Fatalf("max concurrent mixes = %d, want 2", got)
	}
}

func TestDefaultConcurrencyIsPositive(t *testing.T) {
	m := mixer.New(logging.NewNop(), mixer.WithConcurrency(0))
	if m.Concurrency() < 1 {
		t.Fatalf("Concurrency = %d", m.Concurrency())
	}
}

func TestWaitReportsFailure(t *testing.T) {
	dir := t.TempDir()
	tracks := testsupport.WriteTracks(t, dir, "a.flac")
	out := mixer.MixedPath(dir, "flac")
	fake := &testsupport.FakeFFmpeg{Fail: func(args []string) error {
		_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
		return &ffmpeg.ExitError{Binary: "ffmpeg", ExitCode: 1, Output: "Invalid data found"}
	}}
	m := newMixer(fake)

	h, err := m.Launch(context.Background(), 7, tracks, out)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	_, err = h.Wait()
	if !errors.Is(err, services.ErrMixFailed) {
		t.Fatalf("expected ErrMixFailed, got %v", err)
	}
	var exitErr *ffmpeg.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode != 1 {
		t.Fatalf("expected ffmpeg exit detail, got %v", err)
	}
	if idx, ok := services.FailureIndex(err); !ok || idx != 7 {
		t.Fatalf("failure index = %d, %v", idx, ok)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat err = %v", statErr)
	}
}

func TestWaitReportsMissingOutput(t *testing.T) {
	dir := t.TempDir()
	tracks := testsupport.WriteTracks(t, dir, "a.flac")
	m := newMixer(&testsupport.FakeFFmpeg{SkipOutput: true})

	h, err := m.Launch(context.Background(), 0, tracks, mixer.MixedPath(dir, "flac"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := h.Wait(); !errors.Is(err, services.ErrMixFailed) {
		t.Fatalf("expected ErrMixFailed, got %v", err)
	}
}

func TestMixTimeout(t *testing.T) {
	dir := t.TempDir()
	tracks := testsupport.WriteTracks(t, dir, "a.flac")
	block := make(chan struct{})
	defer close(block)
	m := newMixer(&testsupport.FakeFFmpeg{Block: block}, mixer.WithTimeout(20*time.Millisecond))

	h, err := m.Launch(context.Background(), 0, tracks, mixer.MixedPath(dir, "flac"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	_, err = h.Wait()
	if !errors.Is(err, services.ErrMixFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timed-out mix failure, got %v", err)
	}
}

func TestCancelledContextFailsQueuedMixes(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	fake := &testsupport.FakeFFmpeg{Block: block}
	m := newMixer(fake, mixer.WithConcurrency(1))
	ctx, cancel := context.WithCancel(context.Background())

	var handles []*mixer.Handle
	for i := 0; i < 3; i++ {
		dir := t.TempDir()
		tracks := testsupport.WriteTracks(t, dir, "a.flac")
		h, err := m.Launch(ctx, i, tracks, mixer.MixedPath(dir, "flac"))
		if err != nil {
			t.Fatalf("Launch: %v", err)
		}
		handles = append(handles, h)
	}
	testsupport.Eventually(t, func() bool { return fake.Active() == 1 })
	cancel()

	for i, h := range handles {
		if _, err := h.Wait(); !errors.Is(err, context.Canceled) {
			t.Fatalf("handle %d: expected cancellation, got %v", i, err)
		}
	}
	if len(fake.Calls()) != 1 {
		t.Fatalf("queued mixes must not start after cancellation, got %d calls", len(fake.Calls()))
	}
}
