package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeAuth()
	c.normalizeArchive()
	c.normalizeLogging()
	if c.Catalog.PerPage <= 0 {
		c.Catalog.PerPage = defaultCatalogPerPage
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ContractsDir) == "" {
		c.Paths.ContractsDir = filepath.Join(c.Paths.DataDir, defaultContractsDirName)
	}
	if c.Paths.ContractsDir, err = expandPath(c.Paths.ContractsDir); err != nil {
		return fmt.Errorf("paths.contracts_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SellersDir) == "" {
		c.Paths.SellersDir = filepath.Join(c.Paths.DataDir, defaultSellersDirName)
	}
	if c.Paths.SellersDir, err = expandPath(c.Paths.SellersDir); err != nil {
		return fmt.Errorf("paths.sellers_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Database.DSN = strings.TrimSpace(value)
		}
	}
	if c.Database.Driver == DriverSQLite {
		if strings.TrimSpace(c.Database.Path) == "" {
			c.Database.Path = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
		}
		var err error
		if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeAuth() {
	c.Auth.APIToken = strings.TrimSpace(c.Auth.APIToken)
	if c.Auth.APIToken == "" {
		if value, ok := os.LookupEnv("GEMDESK_API_TOKEN"); ok {
			c.Auth.APIToken = strings.TrimSpace(value)
		}
	}
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	if c.Auth.JWTSecret == "" {
		if value, ok := os.LookupEnv("GEMDESK_JWT_SECRET"); ok {
			c.Auth.JWTSecret = strings.TrimSpace(value)
		}
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = defaultTokenTTLHours
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
	c.Archive.AccessKey = strings.TrimSpace(c.Archive.AccessKey)
	if c.Archive.AccessKey == "" {
		if value, ok := os.LookupEnv("GEMDESK_ARCHIVE_ACCESS_KEY"); ok {
			c.Archive.AccessKey = strings.TrimSpace(value)
		}
	}
	c.Archive.SecretKey = strings.TrimSpace(c.Archive.SecretKey)
	if c.Archive.SecretKey == "" {
		if value, ok := os.LookupEnv("GEMDESK_ARCHIVE_SECRET_KEY"); ok {
			c.Archive.SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
