// Package ingest runs the contract and seller spreadsheet pipelines.
//
// Each Pipeline owns a queue root with pending/ and failed/ directories, a
// progress document and a lock marker. A processing run takes the lock,
// imports one pending file (or every failed file on retry), records the
// outcome per file and releases the lock on every exit path. File-level
// failures never escape a run: they end up in the progress document, in the
// run log under logs/, and as a file moved into failed/.
package ingest
