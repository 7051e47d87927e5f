package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gemdesk/internal/access"
	"gemdesk/internal/analytics"
	"gemdesk/internal/config"
	"gemdesk/internal/filequeue"
	"gemdesk/internal/ingest"
	"gemdesk/internal/logging"
	"gemdesk/internal/runner"
	"gemdesk/internal/store"
)

// Task names a background run kind.
type Task string

const (
	TaskProcess Task = "process"
	TaskRetry   Task = "retry"
)

// ErrUnknownPipeline reports a pipeline name other than contracts or sellers.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// Daemon owns the repository, the pipelines and the API server.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      store.Repository
	pipelines map[string]*ingest.Pipeline
	runs      *runner.Registry
	catalog   *access.Catalog
	analytics *analytics.Service
	issuer    *access.Issuer
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	LockFilePath string           `json:"lock_file"`
	APIAddress   string           `json:"api_address,omitempty"`
	Database     string           `json:"database"`
	Pipelines    []PipelineStatus `json:"pipelines"`
}

// PipelineStatus summarizes one pipeline.
type PipelineStatus struct {
	Name       string     `json:"name"`
	Root       string     `json:"root"`
	Pending    int        `json:"pending"`
	Failed     int        `json:"failed"`
	Locked     bool       `json:"locked"`
	LockPID    int        `json:"lock_pid,omitempty"`
	StaleLock  bool       `json:"stale_lock,omitempty"`
	ActiveTask string     `json:"active_task,omitempty"`
	Started    *time.Time `json:"started,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, repo store.Repository, pipelines map[string]*ingest.Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || repo == nil || len(pipelines) == 0 {
		return nil, errors.New("daemon requires config, repository, and pipelines")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var issuer *access.Issuer
	if cfg.Auth.JWTSecret != "" {
		var err error
		issuer, err = access.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
		if err != nil {
			return nil, err
		}
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "gemdesk.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		repo:      repo,
		pipelines: pipelines,
		runs:      runner.NewRegistry(logger),
		catalog:   access.NewCatalog(repo, cfg.Catalog.PerPage),
		issuer:    issuer,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.analytics = analytics.New(d.catalog, repo)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, prunes old logs and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gemdesk daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.pruneLogs()
	d.running.Store(true)
	d.logger.Info("gemdesk daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop shuts down the API server, waits for active runs and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.runs.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
			logging.Error(err),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("gemdesk daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.repo != nil {
		return d.repo.Close()
	}
	return nil
}

// Pipeline returns the named pipeline.
func (d *Daemon) Pipeline(name string) (*ingest.Pipeline, error) {
	p, ok := d.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}
	return p, nil
}

// Trigger launches task on the named pipeline in the background. It reports
// false when a run for that pipeline is already active.
func (d *Daemon) Trigger(name string, task Task) (bool, error) {
	p, err := d.Pipeline(name)
	if err != nil {
		return false, err
	}
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	launched := d.runs.Launch(ctx, name, string(task), func(ctx context.Context) {
		var (
			outcome ingest.Outcome
			err     error
		)
		switch task {
		case TaskRetry:
			outcome, err = p.RetryAllFailed(ctx)
		default:
			outcome, err = p.ProcessNextPending(ctx)
		}
		if err != nil {
			logging.ErrorWithContext(d.logger, "pipeline run failed", "run_failed",
				logging.Pipeline(name),
				logging.String("task", string(task)),
				logging.String(logging.FieldErrorHint, "check permissions on "+p.Layout().Root),
				logging.Error(err),
			)
			return
		}
		d.logger.Info("pipeline run finished",
			logging.Pipeline(name),
			logging.String("task", string(task)),
			logging.String("outcome", string(outcome)),
		)
		if name == config.PipelineContracts && (outcome == ingest.OutcomeProcessed || outcome == ingest.OutcomeRetried) {
			d.syncBrands(ctx)
		}
	})
	if !launched {
		d.logger.Info("pipeline run already active",
			logging.Pipeline(name),
			logging.String("task", string(task)),
		)
	}
	return launched, nil
}

// SyncBrands refreshes the brand directory from the stored contracts.
func (d *Daemon) SyncBrands(ctx context.Context) (analytics.SyncResult, error) {
	return analytics.SyncBrands(ctx, d.repo)
}

func (d *Daemon) syncBrands(ctx context.Context) {
	result, err := d.SyncBrands(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "brand sync failed", "brand_sync_failed",
			logging.String(logging.FieldErrorHint, "run gemdesk brands sync once the database is reachable"),
			logging.Error(err),
		)
		return
	}
	d.logger.Info("brands synced",
		logging.Int("found", result.Found),
		logging.Int("inserted", result.Inserted),
	)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Database:     d.cfg.Database.Driver,
	}
	names := make([]string, 0, len(d.pipelines))
	for name := range d.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status.Pipelines = append(status.Pipelines, d.pipelineStatus(name, d.pipelines[name]))
	}
	return status
}

func (d *Daemon) pipelineStatus(name string, p *ingest.Pipeline) PipelineStatus {
	layout := p.Layout()
	ps := PipelineStatus{Name: name, Root: layout.Root}
	if pending, err := filequeue.ListSpreadsheets(layout.Pending()); err == nil {
		ps.Pending = len(pending)
	}
	if failed, err := filequeue.ListSpreadsheets(layout.Failed()); err == nil {
		ps.Failed = len(failed)
	}
	if state, err := p.Lock().Inspect(); err == nil {
		ps.Locked = state.Present
		ps.LockPID = state.PID
		ps.StaleLock = state.Stale
	}
	if run, ok := d.runs.Active(name); ok {
		ps.ActiveTask = run.Task
		started := run.Started
		ps.Started = &started
	}
	return ps
}

func (d *Daemon) pruneLogs() {
	targets := []logging.RetentionTarget{{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{logging.LogFileName},
	}}
	for _, p := range d.pipelines {
		targets = append(targets, logging.RetentionTarget{
			Dir:     p.Layout().Logs(),
			Pattern: ingest.RunLogPattern,
			Exclude: []string{ingest.RunLogName(time.Now())},
		})
	}
	if removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, targets...); removed > 0 {
		d.logger.Info("old logs pruned", logging.Int("removed", removed))
	}
}
