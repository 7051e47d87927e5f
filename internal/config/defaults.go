package config

const (
	defaultConfigPath       = "~/.config/gemdesk/config.toml"
	defaultDataDir          = "~/.local/share/gemdesk"
	defaultContractsDirName = "contracts_data"
	defaultSellersDirName   = "seller_data"
	defaultLogDirName       = "logs"
	defaultDatabaseName     = "gemdesk.db"
	defaultAPIBind          = "127.0.0.1:7590"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultTokenTTLHours    = 24
	defaultCatalogPerPage   = 10
	defaultArchivePrefix    = "gemdesk"
)

// Repository drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Pipeline names. Each pipeline owns an independent root directory, lock, and
// progress document.
const (
	PipelineContracts = "contracts"
	PipelineSellers   = "sellers"
)

// Pipelines lists every ingestion pipeline in a stable order.
func Pipelines() []string {
	return []string{PipelineContracts, PipelineSellers}
}

// Default returns a Config populated with repository defaults. Paths derived
// from the data directory are left empty and filled during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Auth: Auth{
			TokenTTLHours: defaultTokenTTLHours,
		},
		Archive: Archive{
			Prefix: defaultArchivePrefix,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Catalog: Catalog{
			PerPage: defaultCatalogPerPage,
		},
	}
}
