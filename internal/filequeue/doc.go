// Package filequeue owns the on-disk layout of an ingestion pipeline and the
// lock that serializes processing runs within it.
//
// A pipeline root contains pending/ and failed/ spreadsheet directories, a
// logs/ directory for run logs, progress.json, and the .lock marker. The
// marker's presence means a run is in progress; its content is the owning
// process id. While a Lock holds the marker it also holds an OS advisory lock
// on it, which lets Inspect tell a live holder from a marker left behind by a
// crashed process.
package filequeue
