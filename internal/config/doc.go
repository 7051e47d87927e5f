// Package config loads, normalizes, and validates gemdesk configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML (or YAML) files, loads an optional .env file, and
// honours environment fallbacks such as DATABASE_URL and GEMDESK_API_TOKEN.
// The Config type centralizes every knob the daemon and CLI need so the two
// ingestion pipeline roots, the repository backend, and API credentials are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
