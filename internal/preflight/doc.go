// Package preflight provides readiness checks for the filesystem paths and
// services gemdesk depends on.
//
// The CLI "gemdesk doctor" command runs RunAll and prints each Result. Checks
// for optional features (the archive) report "Disabled" and pass when the
// feature is off.
package preflight
