package testsupport

import (
	"context"
	"testing"

	"gemdesk/internal/config"
	"gemdesk/internal/logging"
	"gemdesk/internal/store/sqlstore"
)

// MustOpenStore opens the SQLite repository for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sqlstore.Store {
	t.Helper()

	store, err := sqlstore.OpenSQLite(context.Background(), cfg.Database.Path, logging.NewNop())
	if err != nil {
		t.Fatalf("sqlstore.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
