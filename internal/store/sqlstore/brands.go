package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"gemdesk/internal/logging"
	"gemdesk/internal/records"
)

// SyncBrands inserts the brands of counts that the directory lacks and
// refreshes the product count of those it has. Names are expected in
// records.NormalizeBrand form.
func (s *Store) SyncBrands(ctx context.Context, counts map[string]int) (int, error) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		now := s.timestamp()
		for _, name := range names {
			code := records.BrandCode(name)
			res, err := tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO brands (code, name, product_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?) ON CONFLICT (code) DO NOTHING`), code, name, counts[name], now, now)
			if err != nil {
				return fmt.Errorf("insert brand %s: %w", name, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
				continue
			}
			if _, err := tx.ExecContext(ctx,
				s.dialect.rebind("UPDATE brands SET product_count = ?, updated_at = ? WHERE code = ?"),
				counts[name], now, code); err != nil {
				return fmt.Errorf("update brand %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("brands synced", logging.Int("found", len(names)), logging.Int("inserted", inserted))
	return inserted, nil
}

// ListBrands returns the brands whose name contains term, ignoring case,
// ordered by name. An empty term lists every brand.
func (s *Store) ListBrands(ctx context.Context, term string) ([]records.Brand, error) {
	var w where
	w.contains("name", term)
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind("SELECT id, code, name, product_count FROM brands"+w.String()+" ORDER BY name"),
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("query brands: %w", err)
	}
	defer rows.Close()

	brands := []records.Brand{}
	for rows.Next() {
		var b records.Brand
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.ProductCount); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brands: %w", err)
	}
	return brands, nil
}
