package testsupport

import (
	"path/filepath"
	"testing"

	"gemdesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.ContractsDir = filepath.Join(base, "contracts_data")
	cfgVal.Paths.SellersDir = filepath.Join(base, "seller_data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Database.Driver = config.DriverSQLite
	cfgVal.Database.Path = filepath.Join(base, "gemdesk.db")
	cfgVal.Auth.APIToken = "test-token"
	cfgVal.Auth.JWTSecret = "test-secret"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPerPage overrides the catalog page size.
func WithPerPage(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.PerPage = n
	}
}

// WithoutAuth clears both credentials so the API rejects every protected call.
func WithoutAuth() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.APIToken = ""
		b.cfg.Auth.JWTSecret = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
