package mixer_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sessionmix/internal/mixer"
	"sessionmix/internal/services"
	"sessionmix/internal/testsupport"
)

func TestDiscoverTracksFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteTracks(t, dir,
		"guitar.flac",
		"Bass.FLAC",
		"drums.flac",
		"notes.txt",
		"vocals.wav",
		"mixed.wav",
		"nested/keys.flac",
	)
	if err := os.Mkdir(filepath.Join(dir, "folder.flac"), 0o755); err != nil {
		t.Fatal(err)
	}

	tracks, err := mixer.DiscoverTracks(dir, "flac")
	if err != nil {
		t.Fatalf("DiscoverTracks: %v", err)
	}
	want := []string{
		filepath.Join(dir, "Bass.FLAC"),
		filepath.Join(dir, "drums.flac"),
		filepath.Join(dir, "guitar.flac"),
	}
	if !reflect.DeepEqual(tracks, want) {
		t.Fatalf("tracks = %v, want %v", tracks, want)
	}
}

func TestDiscoverTracksAcceptsDottedFormat(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteTracks(t, dir, "a.wav")
	tracks, err := mixer.DiscoverTracks(dir, ".WAV")
	if err != nil || len(tracks) != 1 {
		t.Fatalf("expected one wav track, got %v, %v", tracks, err)
	}
}

func TestDiscoverTracksRejectsMixOutputName(t *testing.T) {
	for _, name := range []string{"mixed.flac", "Mixed.FLAC"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			testsupport.WriteTracks(t, dir, "a.flac", name)

			_, err := mixer.DiscoverTracks(dir, "flac")
			if !errors.Is(err, services.ErrMixFailed) {
				t.Fatalf("expected ErrMixFailed, got %v", err)
			}
			var failure *services.Failure
			if !errors.As(err, &failure) || failure.Path != filepath.Join(dir, name) {
				t.Fatalf("expected failure naming %s, got %v", name, err)
			}
		})
	}
}

func TestDiscoverTracksNoneFound(t *testing.T) {
	cases := map[string]func(t *testing.T) string{
		"empty": func(t *testing.T) string { return t.TempDir() },
		"wrong format": func(t *testing.T) string {
			dir := t.TempDir()
			testsupport.WriteTracks(t, dir, "a.wav", "b.mp3")
			return dir
		},
		"missing directory": func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "absent")
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			dir := setup(t)
			_, err := mixer.DiscoverTracks(dir, "flac")
			if !errors.Is(err, services.ErrNoTracksFound) {
				t.Fatalf("expected ErrNoTracksFound, got %v", err)
			}
		})
	}
}

func TestMixedPath(t *testing.T) {
	if got := mixer.MixedPath("/raw/s/2", "ogg"); got != filepath.Join("/raw/s/2", "mixed.ogg") {
		t.Fatalf("MixedPath = %q", got)
	}
}
