package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gemdesk/internal/filequeue"
	"gemdesk/internal/fileutil"
	"gemdesk/internal/logging"
	"gemdesk/internal/textutil"
)

var (
	// ErrNotSpreadsheet rejects files without an .xls or .xlsx extension.
	ErrNotSpreadsheet = errors.New("not a spreadsheet")
	// ErrAlreadyQueued rejects a file whose name is already pending.
	ErrAlreadyQueued = errors.New("file already queued")
)

// Enqueue copies src into pending/ and returns the queued name. The copy is
// written under a hidden temporary name and renamed into place once verified,
// so a concurrent run never sees a partial file.
func (p *Pipeline) Enqueue(src string) (string, error) {
	name := textutil.SanitizeFileName(filepath.Base(src))
	if !filequeue.IsSpreadsheet(name) {
		return "", fmt.Errorf("%s: %w", src, ErrNotSpreadsheet)
	}
	if err := p.layout.EnsureDirs(); err != nil {
		return "", err
	}

	target := filepath.Join(p.layout.Pending(), name)
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("%s: %w", name, ErrAlreadyQueued)
	}

	partial := filepath.Join(p.layout.Pending(), "."+name+".partial")
	if err := fileutil.CopyFileVerified(src, partial); err != nil {
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("queue %s: %w", name, err)
	}
	p.logger.Info("spreadsheet queued",
		logging.Pipeline(p.name),
		logging.File(name),
	)
	return name, nil
}
