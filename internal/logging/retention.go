package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget is one directory of log files subject to pruning. Pattern
// is a filepath.Match glob over file names; Exclude names files to keep
// regardless of age, such as the log currently being written.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes log files last modified more than retentionDays ago
// and returns the number deleted. Zero or negative retention keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		removed += target.prune(logger, cutoff)
	}
	return removed
}

func (t RetentionTarget) prune(logger *slog.Logger, cutoff time.Time) int {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !t.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "could not prune old log", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of the logs directory"),
				String(FieldImpact, "old log stays on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("old log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

func (t RetentionTarget) matches(name string) bool {
	for _, keep := range t.Exclude {
		if filepath.Base(strings.TrimSpace(keep)) == name {
			return false
		}
	}
	if t.Pattern == "" {
		return true
	}
	ok, err := filepath.Match(t.Pattern, name)
	return err == nil && ok
}
