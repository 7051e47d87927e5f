// Package progress maintains the per-pipeline progress document polled by
// administrators: a JSON object mapping spreadsheet file names to the outcome
// of their most recent processing attempt, plus a "_system" idle marker.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gemdesk/internal/logging"
)

// Status is the lifecycle state recorded for a file.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusIdle      Status = "idle"
)

// SystemKey holds the idle marker written when the pending queue is empty.
const SystemKey = "_system"

// TimestampLayout formats Record.Updated in UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one entry of the progress document.
type Record struct {
	Status   Status `json:"status"`
	Inserted int    `json:"inserted"`
	Failed   int    `json:"failed"`
	Updated  string `json:"updated"`
	Message  string `json:"message,omitempty"`
}

// Document is the whole progress file.
type Document map[string]Record

// Store reads and rewrites the progress file. Writes replace the whole
// document; the in-process mutex serializes load-modify-save cycles.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewStore returns a store for the document at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "progress"),
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Init creates an empty document if none exists yet.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.loadLocked()
	return err
}

// Load returns the current document. A missing file is initialized to {}.
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Raw returns the document bytes as stored on disk, or "{}" when absent.
func (s *Store) Raw() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("read progress: %w", err)
	}
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	return data, nil
}

// Save replaces the document.
func (s *Store) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

// UpdateFileStatus records the latest attempt for filename, stamping the
// current UTC time. Any message from a previous attempt is cleared.
func (s *Store) UpdateFileStatus(filename string, status Status, inserted, failed int) error {
	return s.update(filename, Record{Status: status, Inserted: inserted, Failed: failed})
}

// RecordFailure marks filename failed and keeps a short reason for pollers.
func (s *Store) RecordFailure(filename string, inserted, failed int, reason string) error {
	return s.update(filename, Record{Status: StatusFailed, Inserted: inserted, Failed: failed, Message: reason})
}

// MarkIdle writes the _system idle marker.
func (s *Store) MarkIdle(message string) error {
	if message == "" {
		message = "No pending files"
	}
	return s.update(SystemKey, Record{Status: StatusIdle, Message: message})
}

func (s *Store) update(key string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	record.Updated = s.now().UTC().Format(TimestampLayout)
	doc[key] = record
	if err := s.saveLocked(doc); err != nil {
		return err
	}
	s.logger.Debug("progress updated",
		logging.File(key),
		logging.String("status", string(record.Status)),
		logging.Int("inserted", record.Inserted),
		logging.Int("failed", record.Failed),
	)
	return nil
}

func (s *Store) loadLocked() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			doc := Document{}
			if err := s.saveLocked(doc); err != nil {
				return nil, err
			}
			return doc, nil
		}
		return nil, fmt.Errorf("read progress: %w", err)
	}
	doc := Document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse progress %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) saveLocked(doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
