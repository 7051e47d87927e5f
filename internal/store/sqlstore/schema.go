package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gemdesk/internal/logging"
)

// schemaVersion is the current schema version. Bump it together with a new
// entry in each dialect's upgrades.
const schemaVersion = 2

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExists).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion || version < 1 {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	if version < schemaVersion {
		return s.upgradeSchema(ctx, version)
	}
	return nil
}

func (s *Store) upgradeSchema(ctx context.Context, from int) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for v := from; v < schemaVersion; v++ {
			if err := execStatements(ctx, tx, s.dialect.upgrades[v-1]); err != nil {
				return fmt.Errorf("upgrade schema to version %d: %w", v+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, s.dialect.rebind("UPDATE schema_version SET version = ?"), schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("database schema upgraded",
		logging.Int("from", from),
		logging.Int("to", schemaVersion),
	)
	return nil
}

func execStatements(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := execStatements(ctx, tx, s.dialect.schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
