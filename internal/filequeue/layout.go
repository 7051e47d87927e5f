package filequeue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	pendingDirName = "pending"
	failedDirName  = "failed"
	logsDirName    = "logs"
	progressName   = "progress.json"
	lockName       = ".lock"
)

// Layout resolves the well-known paths under a pipeline root.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

func (l Layout) Pending() string      { return filepath.Join(l.Root, pendingDirName) }
func (l Layout) Failed() string       { return filepath.Join(l.Root, failedDirName) }
func (l Layout) Logs() string         { return filepath.Join(l.Root, logsDirName) }
func (l Layout) ProgressPath() string { return filepath.Join(l.Root, progressName) }
func (l Layout) LockPath() string     { return filepath.Join(l.Root, lockName) }

// EnsureDirs creates pending/, failed/ and logs/ under the root. Existing
// directories are left untouched.
func (l Layout) EnsureDirs() error {
	if strings.TrimSpace(l.Root) == "" || l.Root == "." {
		return errors.New("pipeline root is not configured")
	}
	for _, dir := range []string{l.Pending(), l.Failed(), l.Logs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// IsSpreadsheet reports whether name carries an .xls or .xlsx extension,
// ignoring case.
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xls", ".xlsx":
		return true
	default:
		return false
	}
}

// ListSpreadsheets returns the names of the regular spreadsheet files in dir,
// sorted lexicographically. A missing directory yields an empty list.
func ListSpreadsheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsSpreadsheet(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
