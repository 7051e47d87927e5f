package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gemdesk/internal/archive"
	"gemdesk/internal/config"
	"gemdesk/internal/filequeue"
	"gemdesk/internal/logging"
	"gemdesk/internal/progress"
	"gemdesk/internal/store"
)

// Outcome is the result of a trigger invocation.
type Outcome string

const (
	OutcomeLocked    Outcome = "locked"
	OutcomeNoPending Outcome = "no_pending"
	OutcomeProcessed Outcome = "processed"
	OutcomeNoFailed  Outcome = "no_failed"
	OutcomeRetried   Outcome = "retried"
)

// RunLogPattern matches the daily run logs under <root>/logs.
const RunLogPattern = "ingest-*.log"

// RunLogName returns the run log file name for the UTC day of t.
func RunLogName(t time.Time) string {
	return "ingest-" + t.UTC().Format("2006-01-02") + ".log"
}

// Options configures optional pipeline collaborators.
type Options struct {
	Logger *slog.Logger
	// Archiver, when set, receives every successfully imported file before
	// it is deleted from its queue directory.
	Archiver archive.Archiver
	// RunLogLevel is the level of the per-pipeline run log. Empty means info.
	RunLogLevel string
}

// Pipeline is one queue+worker instance.
type Pipeline struct {
	name        string
	layout      filequeue.Layout
	lock        *filequeue.Lock
	progress    *progress.Store
	importer    Importer
	archiver    archive.Archiver
	base        *slog.Logger
	logger      *slog.Logger
	runLogLevel string
}

// NewPipeline wires a pipeline rooted at root.
func NewPipeline(name, root string, importer Importer, opts Options) *Pipeline {
	base := opts.Logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.NewComponentLogger(base, "ingest")
	layout := filequeue.NewLayout(root)
	return &Pipeline{
		name:        name,
		layout:      layout,
		lock:        filequeue.NewLock(layout.LockPath()),
		progress:    progress.NewStore(layout.ProgressPath(), logger),
		importer:    importer,
		archiver:    opts.Archiver,
		base:        base,
		logger:      logger,
		runLogLevel: opts.RunLogLevel,
	}
}

// NewPipelines builds the contract and seller pipelines described by cfg,
// keyed by pipeline name.
func NewPipelines(cfg *config.Config, repo store.Writer, opts Options) (map[string]*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if opts.RunLogLevel == "" {
		opts.RunLogLevel = cfg.Logging.Level
	}
	importers := map[string]Importer{
		config.PipelineContracts: ContractImporter{Store: repo},
		config.PipelineSellers:   SellerImporter{Store: repo},
	}
	pipelines := make(map[string]*Pipeline, len(importers))
	for _, name := range config.Pipelines() {
		root, ok := cfg.PipelineRoot(name)
		if !ok || root == "" {
			return nil, fmt.Errorf("pipeline %s has no root directory", name)
		}
		pipelines[name] = NewPipeline(name, root, importers[name], opts)
	}
	return pipelines, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Layout returns the queue directory layout.
func (p *Pipeline) Layout() filequeue.Layout { return p.layout }

// Lock returns the pipeline's processing lock.
func (p *Pipeline) Lock() *filequeue.Lock { return p.lock }

// ProgressStore returns the pipeline's progress document.
func (p *Pipeline) ProgressStore() *progress.Store { return p.progress }

// Progress returns the progress document as stored on disk, initializing it
// to {} when absent.
func (p *Pipeline) Progress() ([]byte, error) {
	if err := p.progress.Init(); err != nil {
		return nil, err
	}
	return p.progress.Raw()
}

// ProcessNextPending imports the lexicographically first pending file.
func (p *Pipeline) ProcessNextPending(ctx context.Context) (Outcome, error) {
	if err := p.prepare(); err != nil {
		return "", err
	}
	if p.lock.IsLocked() {
		p.warnIfStale()
		return OutcomeLocked, nil
	}
	pending, err := filequeue.ListSpreadsheets(p.layout.Pending())
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return OutcomeNoPending, p.markIdle()
	}

	if err := p.lock.TryLock(); err != nil {
		if errors.Is(err, filequeue.ErrLocked) {
			return OutcomeLocked, nil
		}
		return "", err
	}
	defer p.unlock()

	// Another run may have drained the queue between listing and locking.
	pending, err = filequeue.ListSpreadsheets(p.layout.Pending())
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return OutcomeNoPending, p.markIdle()
	}

	ctx, logger, done := p.beginRun(ctx, "process")
	defer done()
	p.processFile(ctx, logger, filepath.Join(p.layout.Pending(), pending[0]))
	return OutcomeProcessed, nil
}

// RetryAllFailed re-imports every file in failed/ in lexicographic order
// under a single lock acquisition.
func (p *Pipeline) RetryAllFailed(ctx context.Context) (Outcome, error) {
	if err := p.prepare(); err != nil {
		return "", err
	}
	if p.lock.IsLocked() {
		p.warnIfStale()
		return OutcomeLocked, nil
	}
	failed, err := filequeue.ListSpreadsheets(p.layout.Failed())
	if err != nil {
		return "", err
	}
	if len(failed) == 0 {
		return OutcomeNoFailed, nil
	}

	if err := p.lock.TryLock(); err != nil {
		if errors.Is(err, filequeue.ErrLocked) {
			return OutcomeLocked, nil
		}
		return "", err
	}
	defer p.unlock()

	failed, err = filequeue.ListSpreadsheets(p.layout.Failed())
	if err != nil {
		return "", err
	}
	if len(failed) == 0 {
		return OutcomeNoFailed, nil
	}

	ctx, logger, done := p.beginRun(ctx, "retry")
	defer done()
	logger.Info("retrying failed files", logging.Int("count", len(failed)))
	for _, name := range failed {
		p.processFile(ctx, logger, filepath.Join(p.layout.Failed(), name))
	}
	return OutcomeRetried, nil
}

// ProcessFile imports one file and settles it. The caller must hold the
// pipeline lock.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) progress.Status {
	ctx, logger, done := p.beginRun(ctx, "file")
	defer done()
	return p.processFile(ctx, logger, path)
}

func (p *Pipeline) processFile(ctx context.Context, logger *slog.Logger, path string) progress.Status {
	name := filepath.Base(path)
	logger = logger.With(logging.File(name))
	p.writeProgress(logger, p.progress.UpdateFileStatus(name, progress.StatusRunning, 0, 0))
	logger.Info("processing spreadsheet")

	res, err := p.importFile(ctx, path, logger)
	if err != nil {
		p.fail(logger, path, res, err)
		return progress.StatusFailed
	}

	p.writeProgress(logger, p.progress.UpdateFileStatus(name, progress.StatusCompleted, res.Inserted, res.Failed))
	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, p.name, path); err != nil {
			logging.WarnWithContext(logger, "archive upload failed", "archive_failed",
				logging.String(logging.FieldErrorHint, "check archive endpoint and credentials"),
				logging.String(logging.FieldImpact, "spreadsheet is deleted without an archived copy"),
				logging.Error(err),
			)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "remove processed spreadsheet failed", "remove_failed",
			logging.String(logging.FieldErrorHint, "check permissions on the queue directory"),
			logging.String(logging.FieldImpact, "the file will be imported again on the next run"),
			logging.Error(err),
		)
	}
	logger.Info("spreadsheet completed",
		logging.Int("inserted", res.Inserted),
		logging.Int("failed", res.Failed),
	)
	return progress.StatusCompleted
}

// importFile runs the importer, converting a panic into an error.
func (p *Pipeline) importFile(ctx context.Context, path string, logger *slog.Logger) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("import panicked: %v", rec)
		}
	}()
	return p.importer.Import(ctx, path, logger)
}

func (p *Pipeline) fail(logger *slog.Logger, path string, res Result, cause error) {
	name := filepath.Base(path)
	p.writeProgress(logger, p.progress.RecordFailure(name, res.Inserted, res.Failed, cause.Error()))
	logging.ErrorWithContext(logger, "spreadsheet failed", "file_failed",
		logging.String(logging.FieldErrorHint, "fix the file and retry the failed queue"),
		logging.Int("inserted", res.Inserted),
		logging.Int("failed", res.Failed),
		logging.Error(cause),
	)

	target := filepath.Join(p.layout.Failed(), name)
	if filepath.Clean(path) == filepath.Clean(target) {
		return
	}
	if err := os.Rename(path, target); err != nil {
		logging.ErrorWithContext(logger, "move to failed directory failed", "move_failed",
			logging.String(logging.FieldErrorHint, "check permissions on the queue directory"),
			logging.Error(err),
		)
	}
}

func (p *Pipeline) prepare() error {
	if err := p.layout.EnsureDirs(); err != nil {
		return err
	}
	return p.progress.Init()
}

func (p *Pipeline) markIdle() error {
	if err := p.progress.MarkIdle(p.importer.IdleMessage()); err != nil {
		return fmt.Errorf("mark %s idle: %w", p.name, err)
	}
	return nil
}

// warnIfStale flags a marker whose holder is gone. The marker is left in place;
// clearing it is an operator decision.
func (p *Pipeline) warnIfStale() {
	state, err := p.lock.Inspect()
	if err != nil || !state.Stale {
		return
	}
	logging.WarnWithContext(p.logger, "pipeline lock marker is stale", "stale_lock",
		logging.Pipeline(p.name),
		logging.Int("pid", state.PID),
		logging.Alert("stale_lock"),
		logging.String(logging.FieldErrorHint, "run 'gemdesk lock "+p.name+" --clear-stale' once no run is active"),
		logging.String(logging.FieldImpact, "pipeline stays idle until the marker is cleared"),
	)
}

func (p *Pipeline) unlock() {
	if err := p.lock.Unlock(); err != nil {
		logging.ErrorWithContext(p.logger, "release pipeline lock failed", "unlock_failed",
			logging.Pipeline(p.name),
			logging.String(logging.FieldErrorHint, "remove the .lock marker with 'gemdesk lock --clear-stale'"),
			logging.Error(err),
		)
	}
}

// writeProgress logs a failed progress write. The run continues; pollers see
// the previous record until the next successful write.
func (p *Pipeline) writeProgress(logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "progress update failed", "progress_write_failed",
		logging.String(logging.FieldErrorHint, "check permissions on "+p.progress.Path()),
		logging.String(logging.FieldImpact, "pollers see a stale status"),
		logging.Error(err),
	)
}

// beginRun tags ctx with the pipeline and a fresh run id and returns a logger
// that also writes into the day's run log under <root>/logs. Runs nested in an existing
// run keep the outer run id.
func (p *Pipeline) beginRun(ctx context.Context, task string) (context.Context, *slog.Logger, func()) {
	ctx = logging.WithPipeline(ctx, p.name)
	if _, ok := logging.RunIDFromContext(ctx); !ok {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, p.logger).With(logging.String("task", task))

	var closer io.Closer
	handler, c, err := logging.NewFileHandler(filepath.Join(p.layout.Logs(), RunLogName(time.Now())), p.runLogLevel)
	if err != nil {
		logging.WarnWithContext(logger, "run log unavailable", "run_log_failed",
			logging.String(logging.FieldErrorHint, "check permissions on "+p.layout.Logs()),
			logging.String(logging.FieldImpact, "this run is only logged to the daemon log"),
			logging.Error(err),
		)
	} else {
		closer = c
		tee := logging.NewComponentLogger(logging.TeeLogger(p.base, handler), "ingest")
		logger = logging.WithContext(ctx, tee).With(logging.String("task", task))
	}
	return ctx, logger, func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
}
