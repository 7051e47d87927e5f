package analytics

import (
	"context"
	"slices"
	"strings"

	"gemdesk/internal/access"
	"gemdesk/internal/records"
	"gemdesk/internal/store"
)

// BrandOption is one brand in a type-ahead picker.
type BrandOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SyncResult reports a brand directory sync.
type SyncResult struct {
	Found    int `json:"found"`
	Inserted int `json:"inserted"`
}

// SearchBrands lists directory brands containing term for a subscribed user.
func (s *Service) SearchBrands(ctx context.Context, ent access.Entitlement, term string) ([]BrandOption, error) {
	if err := ent.Authorize(s.now()); err != nil {
		return nil, err
	}
	brands, err := s.repo.ListBrands(ctx, strings.TrimSpace(term))
	if err != nil {
		return nil, err
	}
	options := make([]BrandOption, 0, len(brands))
	for _, b := range brands {
		options = append(options, BrandOption{ID: b.Name, Text: b.Name})
	}
	return options, nil
}

// UserBrands returns the brand allow-list in directory spelling, sorted.
func UserBrands(ent access.Entitlement) []string {
	seen := make(map[string]struct{}, len(ent.Brands))
	out := []string{}
	for _, raw := range ent.Brands {
		for _, part := range strings.Split(raw, ",") {
			name := records.NormalizeBrand(part)
			if _, dup := seen[name]; name == "" || dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// SyncBrands rebuilds the brand directory from every stored contract item.
func SyncBrands(ctx context.Context, repo store.Repository) (SyncResult, error) {
	contracts, err := repo.FindContracts(ctx, store.ContractFilter{})
	if err != nil {
		return SyncResult{}, err
	}
	counts := records.CountBrands(contracts)
	inserted, err := repo.SyncBrands(ctx, counts)
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Found: len(counts), Inserted: inserted}, nil
}
