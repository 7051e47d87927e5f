package filequeue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked reports that a processing run already holds the pipeline lock.
var ErrLocked = errors.New("pipeline is locked")

const (
	acquireWait  = 100 * time.Millisecond
	acquireRetry = 2 * time.Millisecond
)

// Lock is the per-pipeline run lock. Acquisition never waits on another
// holder; it only rides out a concurrent Inspect of the new marker.
type Lock struct {
	path string

	mu   sync.Mutex
	held *flock.Flock
}

// NewLock returns a lock backed by the marker file at path.
func NewLock(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the marker location.
func (l *Lock) Path() string {
	return l.path
}

// IsLocked reports whether the marker file exists.
func (l *Lock) IsLocked() bool {
	_, err := os.Lstat(l.path)
	return err == nil
}

// TryLock creates the marker and takes the advisory lock on it. It returns
// ErrLocked when the marker is already present or another holder owns the
// advisory lock.
func (l *Lock) TryLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held != nil {
		return ErrLocked
	}

	// Only the process that creates the marker may hold it.
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return ErrLocked
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", l.path, err)
	}
	_ = f.Close()

	// A concurrent Inspect may hold the advisory lock for a moment.
	ctx, cancel := context.WithTimeout(context.Background(), acquireWait)
	defer cancel()
	fl := flock.New(l.path, flock.SetFlag(os.O_RDONLY))
	ok, err := fl.TryLockContext(ctx, acquireRetry)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		_ = os.Remove(l.path)
		return fmt.Errorf("acquire %s: %w", l.path, err)
	}
	if !ok {
		_ = os.Remove(l.path)
		return ErrLocked
	}
	// ClearStale may have removed the new marker before the advisory lock
	// was taken.
	if !sameFile(fl, l.path) {
		_ = fl.Unlock()
		return ErrLocked
	}
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = os.Remove(l.path)
		_ = fl.Unlock()
		return fmt.Errorf("write lock marker: %w", err)
	}
	l.held = fl
	return nil
}

// Unlock removes the marker and releases the advisory lock. It is safe to call
// when the lock is not held.
func (l *Lock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held == nil {
		return nil
	}
	var errs []error
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove lock marker: %w", err))
	}
	if err := l.held.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release %s: %w", l.path, err))
	}
	l.held = nil
	return errors.Join(errs...)
}

// Held reports whether this Lock value currently owns the marker.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held != nil
}

// State describes the marker as seen on disk.
type State struct {
	Present bool `json:"present"`
	PID     int  `json:"pid,omitempty"`
	Stale   bool `json:"stale"`
}

// Inspect reads the marker and tests the advisory lock. A marker nobody holds
// the advisory lock on is reported as stale.
func (l *Lock) Inspect() (State, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read lock marker: %w", err)
	}
	state := State{Present: true}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
		state.PID = pid
	}
	if l.Held() {
		return state, nil
	}

	fl, err := l.lockOrphan()
	if err != nil {
		return state, err
	}
	if fl == nil {
		if !l.IsLocked() {
			return State{}, nil
		}
		return state, nil
	}
	_ = fl.Unlock()
	state.Stale = true
	return state, nil
}

// lockOrphan takes the advisory lock on the marker currently on disk. It opens
// the file without O_CREATE so a marker removed in the meantime is never
// recreated. A nil Flock means the marker vanished, a live holder owns it, or
// a holder is still writing its PID into it.
func (l *Lock) lockOrphan() (*flock.Flock, error) {
	if acquiring(l.path) {
		return nil, nil
	}
	fl := flock.New(l.path, flock.SetFlag(os.O_RDONLY))
	ok, err := fl.TryLock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("check %s: %w", l.path, err)
	}
	if !ok {
		return nil, nil
	}
	if !sameFile(fl, l.path) {
		_ = fl.Unlock()
		return nil, nil
	}
	return fl, nil
}

// acquiring reports a marker that has no PID yet and was created within the
// acquisition window.
func acquiring(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() > 0 {
		return false
	}
	return time.Since(info.ModTime()) < 2*acquireWait
}

func sameFile(fl *flock.Flock, path string) bool {
	locked, err := fl.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(locked, current)
}

// ClearStale removes a marker left behind by a holder that no longer exists.
// It returns false without touching the marker when a live holder owns it.
func (l *Lock) ClearStale() (bool, error) {
	if !l.IsLocked() || l.Held() {
		return false, nil
	}
	fl, err := l.lockOrphan()
	if err != nil {
		return false, err
	}
	if fl == nil {
		return false, nil
	}
	defer func() { _ = fl.Unlock() }()
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove stale lock marker: %w", err)
	}
	return true, nil
}
