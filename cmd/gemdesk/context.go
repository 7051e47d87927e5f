package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gemdesk/internal/archive"
	"gemdesk/internal/config"
	"gemdesk/internal/ingest"
	"gemdesk/internal/logging"
	"gemdesk/internal/store/sqlstore"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles what pipeline commands need: a logger, an open repository
// and the pipelines wired to it.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      *sqlstore.Store
	pipelines map[string]*ingest.Pipeline
}

func (c *commandContext) openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	repo, err := sqlstore.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	archiver, err := newArchiver(ctx, cfg, logger)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	pipelines, err := ingest.NewPipelines(cfg, repo, ingest.Options{Logger: logger, Archiver: archiver})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, repo: repo, pipelines: pipelines}, nil
}

func (r *runtime) Close() error {
	if r == nil || r.repo == nil {
		return nil
	}
	return r.repo.Close()
}

func (r *runtime) pipeline(name string) (*ingest.Pipeline, error) {
	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q (expected one of %s)", name, strings.Join(config.Pipelines(), ", "))
	}
	return p, nil
}

// newArchiver returns nil when archiving is disabled so the pipelines never
// see a typed-nil interface.
func newArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (archive.Archiver, error) {
	a, err := archive.New(cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	if a == nil {
		return nil, nil
	}
	if err := a.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return a, nil
}

// layoutOnly resolves a pipeline without opening the repository, for commands
// that only inspect queue state.
func (c *commandContext) layoutOnly(name string) (*ingest.Pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	root, ok := cfg.PipelineRoot(name)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q (expected one of %s)", name, strings.Join(config.Pipelines(), ", "))
	}
	return ingest.NewPipeline(name, root, nil, ingest.Options{}), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
