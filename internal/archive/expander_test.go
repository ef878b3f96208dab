package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sessionmix/internal/archive"
	"sessionmix/internal/logging"
	"sessionmix/internal/services"
	"sessionmix/internal/testsupport"
)

func TestDestinationDirIsUniquePerIndex(t *testing.T) {
	a := archive.DestinationDir("/raw", "standup", 0)
	b := archive.DestinationDir("/raw", "standup", 1)
	if a == b {
		t.Fatalf("expected distinct dirs, got %q", a)
	}
	if want := filepath.Join("/raw", "standup", "1"); b != want {
		t.Fatalf("unexpected dir %q want %q", b, want)
	}
}

func TestExpandZip(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "alice.zip")
	testsupport.WriteZip(t, src, map[string]string{
		"1-alice.flac": "a",
		"2-bob.flac":   "b",
		"info.txt":     "notes",
	})
	dest := archive.DestinationDir(filepath.Join(base, "raw"), "demo", 0)

	desc, err := archive.NewExpander(logging.NewNop()).Expand(context.Background(), 0, src, dest)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if desc.Dir != dest || desc.Index != 0 || desc.Archive != src {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
	if desc.Files != 3 {
		t.Fatalf("expected 3 files, got %d", desc.Files)
	}
	for _, name := range []string{"1-alice.flac", "2-bob.flac", "info.txt"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Fatalf("expected %s extracted: %v", name, err)
		}
	}
}

func TestExpandTarGz(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "bob.tar.gz")
	testsupport.WriteTarGz(t, src, map[string]string{"track.flac": "x"})
	dest := filepath.Join(base, "raw", "demo", "1")

	desc, err := archive.NewExpander(nil).Expand(context.Background(), 1, src, dest)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if desc.Files != 1 {
		t.Fatalf("expected 1 file, got %d", desc.Files)
	}
}

func TestExpandDetectsMisnamedArchiveByHeader(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "download.bin")
	testsupport.WriteZip(t, src, map[string]string{"track.flac": "x"})
	dest := filepath.Join(base, "raw", "demo", "0")

	if _, err := archive.NewExpander(nil).Expand(context.Background(), 0, src, dest); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "track.flac")); err != nil {
		t.Fatalf("expected track extracted: %v", err)
	}
}

func TestExpandReplacesStaleDirectory(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "a.zip")
	testsupport.WriteZip(t, src, map[string]string{"new.flac": "x"})
	dest := filepath.Join(base, "raw", "demo", "0")
	testsupport.WriteTracks(t, dest, "old.flac", "mixed.flac")

	if _, err := archive.NewExpander(nil).Expand(context.Background(), 0, src, dest); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "old.flac")); !os.IsNotExist(err) {
		t.Fatalf("expected stale file removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "new.flac")); err != nil {
		t.Fatalf("expected new file: %v", err)
	}
}

func TestExpandFailures(t *testing.T) {
	base := t.TempDir()
	corrupt := filepath.Join(base, "corrupt.zip")
	if err := os.WriteFile(corrupt, []byte("definitely not a zip file"), 0o644); err != nil {
		t.Fatal(err)
	}
	unknown := filepath.Join(base, "notes.txt")
	if err := os.WriteFile(unknown, []byte("just some text that is not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(base, "missing.zip")},
		{"directory", base},
		{"corrupt", corrupt},
		{"unrecognized", unknown},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(base, "raw", tc.name)
			_, err := archive.NewExpander(nil).Expand(context.Background(), i, tc.path, dest)
			if !errors.Is(err, services.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
			idx, ok := services.FailureIndex(err)
			if !ok || idx != i {
				t.Fatalf("expected failure index %d, got %d %v", i, idx, ok)
			}
		})
	}
}

func TestExpandHonoursCancelledContext(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "a.zip")
	testsupport.WriteZip(t, src, map[string]string{"t.flac": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := archive.NewExpander(nil).Expand(ctx, 0, src, filepath.Join(base, "raw"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
