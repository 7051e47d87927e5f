package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir" yaml:"data_dir"`
	ContractsDir string `toml:"contracts_dir" yaml:"contracts_dir"`
	SellersDir   string `toml:"sellers_dir" yaml:"sellers_dir"`
	LogDir       string `toml:"log_dir" yaml:"log_dir"`
	APIBind      string `toml:"api_bind" yaml:"api_bind"`
}

// Database selects and configures the repository backend.
type Database struct {
	Driver string `toml:"driver" yaml:"driver"`
	Path   string `toml:"path" yaml:"path"`
	DSN    string `toml:"dsn" yaml:"dsn"`
}

// Auth contains API credentials.
type Auth struct {
	APIToken      string `toml:"api_token" yaml:"api_token"`
	JWTSecret     string `toml:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours" yaml:"token_ttl_hours"`
}

// Archive configures the optional object-storage archive of processed spreadsheets.
type Archive struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	AccessKey string `toml:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key"`
	Bucket    string `toml:"bucket" yaml:"bucket"`
	UseSSL    bool   `toml:"use_ssl" yaml:"use_ssl"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" yaml:"format"`
	Level         string `toml:"level" yaml:"level"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// Catalog contains settings for the read-only contract and seller listings.
type Catalog struct {
	PerPage int `toml:"per_page" yaml:"per_page"`
}

// Config encapsulates all configuration values for gemdesk.
//
// Configuration sections by subsystem:
//   - Paths: data directory, pipeline roots, log dir, API bind address
//   - Database: repository backend (sqlite or postgres)
//   - Auth: static admin token and JWT signing secret
//   - Archive: optional MinIO/S3 archive of processed spreadsheets
//   - Logging: log format, level, and retention
//   - Catalog: listing page size
type Config struct {
	Paths    Paths    `toml:"paths" yaml:"paths"`
	Database Database `toml:"database" yaml:"database"`
	Auth     Auth     `toml:"auth" yaml:"auth"`
	Archive  Archive  `toml:"archive" yaml:"archive"`
	Logging  Logging  `toml:"logging" yaml:"logging"`
	Catalog  Catalog  `toml:"catalog" yaml:"catalog"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

// loadDotEnv reads ./.env without overriding variables already present in the
// environment.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gemdesk.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories plus both pipeline
// roots. The pending/failed/logs subdirectories are owned by the filequeue
// package and created lazily on each run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ContractsDir, c.Paths.SellersDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.Database.Path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	return nil
}

// PipelineRoot returns the root directory for the named pipeline.
func (c *Config) PipelineRoot(name string) (string, bool) {
	switch name {
	case PipelineContracts:
		return c.Paths.ContractsDir, true
	case PipelineSellers:
		return c.Paths.SellersDir, true
	default:
		return "", false
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
