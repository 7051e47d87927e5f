package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"gemdesk/internal/store"
)

// where accumulates AND-ed predicates written with ? placeholders.
type where struct {
	clauses []string
	args    []any
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (w *where) contains(column, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	w.clauses = append(w.clauses, "lower("+column+`) LIKE ? ESCAPE '\'`)
	w.args = append(w.args, "%"+likeEscaper.Replace(strings.ToLower(value))+"%")
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// onDay matches the calendar day of t.
func (w *where) onDay(column string, t time.Time) {
	start := dayStart(t)
	w.add(column+" >= ? AND "+column+" < ?", formatTime(start), formatTime(start.AddDate(0, 0, 1)))
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	w.add(column+" IN ("+placeholders(len(values))+")", stringArgs(values)...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limit renders the window as a LIMIT/OFFSET suffix.
func limit(w store.Window) (string, []any) {
	switch {
	case w.Limit > 0:
		return " LIMIT ? OFFSET ?", []any{w.Limit, max(w.Offset, 0)}
	case w.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		return " LIMIT ? OFFSET ?", []any{int64(math.MaxInt32), w.Offset}
	}
	return "", nil
}

func (s *Store) count(ctx context.Context, table string, w where) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT COUNT(*) FROM "+table+w.String()), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func nullFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored time %q: %w", value.String, err)
	}
	return &t, nil
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
