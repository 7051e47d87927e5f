package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"gemdesk/internal/archive"
	"gemdesk/internal/config"
	"gemdesk/internal/filequeue"
	"gemdesk/internal/logging"
	"gemdesk/internal/store/sqlstore"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPipelines checks each pipeline's queue directories and lock marker.
// Missing pending/ and failed/ directories are reported, not created.
func CheckPipelines(cfg *config.Config) []Result {
	var results []Result
	for _, name := range config.Pipelines() {
		root, _ := cfg.PipelineRoot(name)
		layout := filequeue.NewLayout(root)
		results = append(results,
			CheckDirectoryAccess(name+" pending", layout.Pending()),
			CheckDirectoryAccess(name+" failed", layout.Failed()),
			checkLock(name+" lock", filequeue.NewLock(layout.LockPath())),
		)
	}
	return results
}

func checkLock(name string, lock *filequeue.Lock) Result {
	state, err := lock.Inspect()
	switch {
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("inspect failed: %v", err)}
	case !state.Present:
		return Result{Name: name, Passed: true, Detail: "free"}
	case state.Stale:
		return Result{Name: name, Detail: fmt.Sprintf("stale marker (pid %d), clear it with 'gemdesk lock --clear-stale'", state.PID)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("run in progress (pid %d)", state.PID)}
	}
}

// CheckDatabase opens the configured repository, which also verifies the
// schema version, and closes it again.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Database"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, err := sqlstore.Open(checkCtx, cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Database.Driver, err)}
	}
	_ = repo.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema ok)", cfg.Database.Driver)}
}

// CheckArchive verifies the archive bucket exists when archiving is enabled.
func CheckArchive(ctx context.Context, cfg *config.Config) Result {
	const name = "Archive"

	if !cfg.Archive.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	archiver, err := archive.New(cfg.Archive, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := archiver.BucketExists(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Archive.Endpoint, err)}
	}
	if !exists {
		return Result{Name: name, Detail: fmt.Sprintf("bucket %s does not exist", cfg.Archive.Bucket)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s/%s reachable", cfg.Archive.Endpoint, cfg.Archive.Bucket)}
}
