package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs removes files in dir matching pattern that are older than
// retentionDays. A retentionDays value of 0 disables pruning. The file named by
// keep is never removed. Returns the number of files pruned.
func CleanupOldLogs(logger *slog.Logger, dir, pattern, keep string, retentionDays int) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	keepAbs, _ := filepath.Abs(keep)

	pruned := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && abs == keepAbs {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		pruned++
		if logger != nil {
			logger.Debug("log pruned",
				String("path", path),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	return pruned
}
