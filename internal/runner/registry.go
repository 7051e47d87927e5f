// Package runner owns the background runs launched by the admin API.
//
// A Registry allows at most one live run per name. It sits above the
// filesystem lock of each pipeline: the lock keeps two processing bodies
// apart, the registry keeps redundant goroutines from being started.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gemdesk/internal/logging"
)

// Run describes an active background run.
type Run struct {
	Name    string
	Task    string
	Started time.Time
}

// Registry tracks active runs keyed by name.
type Registry struct {
	mu     sync.Mutex
	active map[string]Run
	wg     sync.WaitGroup
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		active: make(map[string]Run),
		logger: logger,
		now:    time.Now,
	}
}

// Launch starts fn on a new goroutine unless a run with the same name is
// active. The entry is cleared when fn returns or panics. Launch reports
// whether a run was started.
func (r *Registry) Launch(ctx context.Context, name, task string, fn func(context.Context)) bool {
	r.mu.Lock()
	if _, busy := r.active[name]; busy {
		r.mu.Unlock()
		return false
	}
	r.active[name] = Run{Name: name, Task: task, Started: r.now()}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.clear(name)
		defer func() {
			if rec := recover(); rec != nil {
				logging.ErrorWithContext(r.logger, "background run panicked", "run_panic",
					logging.String("run", name),
					logging.String("task", task),
					logging.String(logging.FieldErrorHint, "inspect the run log for the failing file"),
					logging.Error(fmt.Errorf("panic: %v", rec)),
				)
			}
		}()
		fn(context.WithoutCancel(ctx))
	}()
	return true
}

// Active returns the run registered under name.
func (r *Registry) Active(name string) (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.active[name]
	return run, ok
}

// Snapshot lists every active run.
func (r *Registry) Snapshot() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]Run, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, run)
	}
	return runs
}

// Wait blocks until every launched run has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) clear(name string) {
	r.mu.Lock()
	delete(r.active, name)
	r.mu.Unlock()
}
