// Package daemon coordinates the long-running gemdesk process.
//
// It wires configuration, the repository, both ingestion pipelines and the
// background run registry into a single lifecycle with flock-based locking
// to prevent multiple instances. The HTTP API exposes admin triggers and
// progress polling for each pipeline plus the entitlement-scoped catalog.
//
// Keep orchestration logic here: ingestion lives in the ingest package and
// entitlement rules in the access package.
package daemon
