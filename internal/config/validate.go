package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ContractsDir == "" || c.Paths.SellersDir == "" {
		return errors.New("paths.contracts_dir and paths.sellers_dir must be set")
	}
	if filepath.Clean(c.Paths.ContractsDir) == filepath.Clean(c.Paths.SellersDir) {
		return errors.New("paths.contracts_dir and paths.sellers_dir must differ; each pipeline needs its own lock and progress file")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path must be set when database.driver is sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("database.driver: unsupported value %q (use sqlite or postgres)", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint must be set when archive.enabled is true")
	}
	if c.Archive.Bucket == "" {
		return errors.New("archive.bucket must be set when archive.enabled is true")
	}
	return nil
}
