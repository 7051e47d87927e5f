// Package sqlstore implements store.Repository over database/sql. The same
// queries run on SQLite (modernc.org/sqlite) and PostgreSQL (pgx stdlib); a
// dialect value covers placeholder syntax and the few DDL differences.
//
// Dates are stored as UTC RFC 3339 text so range filters compare identically
// on both engines. Contract line items are stored as a JSON array.
package sqlstore
