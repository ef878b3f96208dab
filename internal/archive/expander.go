package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mholt/archiver/v3"

	"sessionmix/internal/logging"
	"sessionmix/internal/services"
)

const stageName = "extract"

// Descriptor reports the outcome of a single archive expansion.
type Descriptor struct {
	Index   int
	Archive string
	Dir     string
	Files   int
	Elapsed time.Duration
}

// Expander unpacks archives into recording directories.
type Expander struct {
	logger *slog.Logger
	detect func(path string) (archiver.Unarchiver, error)
}

// NewExpander constructs an archive expander.
func NewExpander(logger *slog.Logger) *Expander {
	return &Expander{
		logger: logging.NewComponentLogger(logger, "archive"),
		detect: detectFormat,
	}
}

// DestinationDir returns the deterministic extraction directory for the
// archive at index within a session.
func DestinationDir(rawDir, session string, index int) string {
	return filepath.Join(rawDir, session, strconv.Itoa(index))
}

// Expand extracts archivePath into destinationDir, creating it and its
// parents. Any existing content at destinationDir is removed first. All
// failures are reported as services.ErrExtraction attributed to index.
func (e *Expander) Expand(ctx context.Context, index int, archivePath, destinationDir string) (Descriptor, error) {
	fail := func(err error) (Descriptor, error) {
		return Descriptor{}, services.Fail(services.ErrExtraction, stageName, index, archivePath, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fail(fmt.Errorf("archive not readable: %w", err))
	}
	if info.IsDir() {
		return fail(errors.New("archive path is a directory"))
	}

	unarchiver, err := e.detect(archivePath)
	if err != nil {
		return fail(err)
	}

	if _, err := os.Stat(destinationDir); err == nil {
		logging.WarnWithContext(e.logger, "removing stale recording directory", "stale_recording_dir",
			logging.Int(logging.FieldRecordingIndex, index),
			logging.String("dir", destinationDir),
			logging.String(logging.FieldErrorHint, "a previous run of this session left files behind"),
			logging.String(logging.FieldImpact, "previous extraction and mix for this index are discarded"),
		)
		if err := os.RemoveAll(destinationDir); err != nil {
			return fail(fmt.Errorf("clear destination %s: %w", destinationDir, err))
		}
	}
	if err := os.MkdirAll(destinationDir, 0o755); err != nil {
		return fail(fmt.Errorf("create destination %s: %w", destinationDir, err))
	}

	e.logger.Debug("extracting archive",
		logging.Int(logging.FieldRecordingIndex, index),
		logging.String("archive", archivePath),
		logging.String("dir", destinationDir),
		logging.String("format", fmt.Sprintf("%T", unarchiver)),
	)

	start := time.Now()
	if err := unarchiver.Unarchive(archivePath, destinationDir); err != nil {
		return fail(fmt.Errorf("unpack: %w", err))
	}

	files, err := countFiles(destinationDir)
	if err != nil {
		return fail(fmt.Errorf("scan extracted files: %w", err))
	}

	desc := Descriptor{
		Index:   index,
		Archive: archivePath,
		Dir:     destinationDir,
		Files:   files,
		Elapsed: time.Since(start),
	}
	e.logger.Info("archive extracted",
		logging.String(logging.FieldEventType, "archive_extracted"),
		logging.Int(logging.FieldRecordingIndex, index),
		logging.String("archive", filepath.Base(archivePath)),
		logging.Int("files", files),
		logging.Duration("elapsed", desc.Elapsed),
	)
	return desc, nil
}

// detectFormat picks an unarchiver by extension, falling back to header
// magic for misnamed files.
func detectFormat(path string) (archiver.Unarchiver, error) {
	if byExt, err := archiver.ByExtension(path); err == nil {
		if u, ok := byExt.(archiver.Unarchiver); ok {
			return u, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	u, err := archiver.ByHeader(file)
	if err != nil {
		return nil, fmt.Errorf("unrecognized archive format: %w", err)
	}
	return u, nil
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count, err
}
