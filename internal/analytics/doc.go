// Package analytics aggregates the contracts a user may see into the
// dashboard series (status counts, monthly value and volume, top ministries,
// average value per buying mode) and compares two brands over one month.
// It also keeps the brand directory in step with contract items.
package analytics
