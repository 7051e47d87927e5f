// Package main hosts the gemdesk CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the ingestion daemon, triggers and
// inspects pipeline runs directly against the queue directories, mints
// access tokens, and scaffolds configuration. Pipeline commands share the
// same file locks as the daemon, so running them while the daemon is up is
// safe: whichever side takes a pipeline's lock first does the work.
package main
