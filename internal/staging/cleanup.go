package staging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"sessionmix/internal/logging"
)

// LockSuffix names the per-session lock file next to each session directory.
const LockSuffix = ".lock"

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes session directories under rawDir older than maxAge.
// Sessions whose lock is held by a running process are skipped. With dryRun
// nothing is deleted and Removed lists what would have been.
func CleanStale(ctx context.Context, rawDir string, maxAge time.Duration, dryRun bool, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	rawDir = strings.TrimSpace(rawDir)
	if rawDir == "" {
		return result
	}

	sessions, err := ListSessions(rawDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: rawDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, sess := range sessions {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: sess.Path, Error: ctx.Err()})
			return result
		}
		if !sess.ModTime.Before(cutoff) {
			continue
		}

		lock := flock.New(sess.Path + LockSuffix)
		locked, err := lock.TryLock()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: sess.Path, Error: err})
			continue
		}
		if !locked {
			result.Skipped = append(result.Skipped, sess.Path)
			logger.Info("skipping session in use",
				logging.String("path", sess.Path),
				logging.String(logging.FieldEventType, "raw_cleanup_skipped"),
			)
			continue
		}

		if dryRun {
			_ = lock.Unlock()
			result.Removed = append(result.Removed, sess.Path)
			continue
		}

		if err := removeSession(lock, sess.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: sess.Path, Error: err})
			logger.Warn("failed to remove stale session directory",
				logging.String("path", sess.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "raw_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check raw_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, sess.Path)
		logger.Info("removed stale session directory",
			logging.String("path", sess.Path),
			logging.Duration("age", time.Since(sess.ModTime)),
			logging.String(logging.FieldEventType, "raw_cleanup"),
		)
	}

	return result
}

// removeSession deletes a session directory and its lock file, then releases
// lock. The lock file is unlinked while still held so a new run cannot lock
// the old inode in between.
func removeSession(lock *flock.Flock, path string) error {
	defer func() { _ = lock.Unlock() }()
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	if err := os.Remove(path + LockSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ListSessions returns every session directory in rawDir with its metadata.
// A missing rawDir yields no sessions.
func ListSessions(rawDir string) ([]DirInfo, error) {
	rawDir = strings.TrimSpace(rawDir)
	if rawDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(rawDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(rawDir, entry.Name())
		size, files := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
			Files:   files,
		})
	}
	return dirs, nil
}

// DirInfo contains metadata about a session directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	Files   int
}

// dirSize totals regular file sizes below path, best effort.
func dirSize(path string) (int64, int) {
	var size int64
	var files int
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			size += info.Size()
			files++
		}
		return nil
	})
	return size, files
}
