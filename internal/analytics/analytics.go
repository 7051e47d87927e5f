package analytics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gemdesk/internal/access"
	"gemdesk/internal/records"
	"gemdesk/internal/store"
	"gemdesk/internal/textutil"
)

var (
	// ErrInvalidMonth rejects a comparison month not in YYYY-MM form.
	ErrInvalidMonth = errors.New("month must be YYYY-MM")
	// ErrMissingBrand rejects a comparison without both brands.
	ErrMissingBrand = errors.New("both brands are required")
)

// Filter narrows the contracts behind every series. Brands keeps contracts
// with at least one item of a listed brand.
type Filter struct {
	store.ContractFilter
	Brands []string
}

// Service computes analytics over the contracts a user may see.
type Service struct {
	catalog *access.Catalog
	repo    store.Reader
	now     func() time.Time
}

// New returns a service reading through catalog for scoped series and
// through repo for brand lookups.
func New(catalog *access.Catalog, repo store.Reader) *Service {
	return &Service{catalog: catalog, repo: repo, now: time.Now}
}

func (s *Service) contracts(ctx context.Context, ent access.Entitlement, filter Filter) ([]records.Contract, error) {
	contracts, err := s.catalog.VisibleContracts(ctx, ent, filter.ContractFilter)
	if err != nil {
		return nil, err
	}
	brands := textutil.SplitList(strings.Join(filter.Brands, ","))
	if len(brands) == 0 {
		return contracts, nil
	}
	kept := contracts[:0]
	for _, c := range contracts {
		if c.HasBrand(brands) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// ContractsByStatus counts contracts per status, largest first.
func (s *Service) ContractsByStatus(ctx context.Context, ent access.Entitlement, filter Filter) ([]StatusCount, error) {
	contracts, err := s.contracts(ctx, ent, filter)
	if err != nil {
		return nil, err
	}
	return byStatus(contracts), nil
}

// ValueOverTime sums contract totals per month, oldest first.
func (s *Service) ValueOverTime(ctx context.Context, ent access.Entitlement, filter Filter) ([]MonthValue, error) {
	contracts, err := s.contracts(ctx, ent, filter)
	if err != nil {
		return nil, err
	}
	return valueOverTime(contracts), nil
}

// TopMinistries returns the limit ministries with the largest summed totals.
// A non-positive limit means DefaultTopMinistries.
func (s *Service) TopMinistries(ctx context.Context, ent access.Entitlement, filter Filter, limit int) ([]MinistryValue, error) {
	contracts, err := s.contracts(ctx, ent, filter)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopMinistries
	}
	return topMinistries(contracts, limit), nil
}

// AverageByBuyingMode returns the mean contract total per buying mode.
func (s *Service) AverageByBuyingMode(ctx context.Context, ent access.Entitlement, filter Filter) ([]ModeAverage, error) {
	contracts, err := s.contracts(ctx, ent, filter)
	if err != nil {
		return nil, err
	}
	return averageByBuyingMode(contracts), nil
}

// CountByMonth counts dated contracts per calendar month, oldest first.
func (s *Service) CountByMonth(ctx context.Context, ent access.Entitlement, filter Filter) ([]MonthCount, error) {
	contracts, err := s.contracts(ctx, ent, filter)
	if err != nil {
		return nil, err
	}
	return countByMonth(contracts), nil
}

// BrandMonth summarizes one brand's contracts in a month. A contract counts
// once toward Orders and Revenue however many of its items carry the brand.
type BrandMonth struct {
	Brand           string         `json:"brand"`
	Orders          int            `json:"orders"`
	Revenue         float64        `json:"revenue"`
	QuantitySold    float64        `json:"quantity_sold"`
	AvgOrderValue   float64        `json:"avg_order_value"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	BuyingModes     map[string]int `json:"buying_modes"`
	Categories      []string       `json:"categories"`
}

// Comparison is the side-by-side month summary of two brands.
type Comparison struct {
	Month  string     `json:"month"`
	Brand1 BrandMonth `json:"brand1"`
	Brand2 BrandMonth `json:"brand2"`
}

// CompareBrands summarizes brand1 and brand2 over month (YYYY-MM). brand1
// must be on a non-empty brand allow-list; brand2 is any brand seen in the
// directory or on a contract item, and store.ErrNotFound otherwise. The
// month is clipped to the assigned date range but not to the allow-list.
func (s *Service) CompareBrands(ctx context.Context, ent access.Entitlement, brand1, brand2, month string) (Comparison, error) {
	if err := ent.Authorize(s.now()); err != nil {
		return Comparison{}, err
	}
	brand1, brand2 = records.NormalizeBrand(brand1), records.NormalizeBrand(brand2)
	if brand1 == "" || brand2 == "" {
		return Comparison{}, ErrMissingBrand
	}
	start, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return Comparison{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	if allowed := ent.BrandSet(); len(allowed) > 0 {
		if _, ok := allowed[textutil.NormalizeKey(brand1)]; !ok {
			return Comparison{}, errors.Join(access.ErrForbidden, fmt.Errorf("brand %s not assigned", brand1))
		}
	}
	known, err := s.brandKnown(ctx, brand2)
	if err != nil {
		return Comparison{}, err
	}
	if !known {
		return Comparison{}, fmt.Errorf("brand %s: %w", brand2, store.ErrNotFound)
	}

	end := start.AddDate(0, 1, -1)
	scoped := access.ScopeContracts(ent, store.ContractFilter{DateFrom: &start, DateTo: &end})
	var contracts []records.Contract
	if !scoped.DateFrom.After(*scoped.DateTo) {
		contracts, err = s.repo.FindContracts(ctx, scoped)
		if err != nil {
			return Comparison{}, err
		}
	}
	return Comparison{
		Month:  start.Format("2006-01"),
		Brand1: summarize(contracts, brand1),
		Brand2: summarize(contracts, brand2),
	}, nil
}

func (s *Service) brandKnown(ctx context.Context, brand string) (bool, error) {
	listed, err := s.repo.ListBrands(ctx, brand)
	if err != nil {
		return false, err
	}
	for _, b := range listed {
		if b.Name == brand {
			return true, nil
		}
	}
	contracts, err := s.repo.FindContracts(ctx, store.ContractFilter{})
	if err != nil {
		return false, err
	}
	for _, c := range contracts {
		for _, item := range c.Items {
			if records.NormalizeBrand(item.Brand) == brand {
				return true, nil
			}
		}
	}
	return false, nil
}

func summarize(contracts []records.Contract, brand string) BrandMonth {
	out := BrandMonth{
		Brand:           brand,
		StatusBreakdown: map[string]int{},
		BuyingModes:     map[string]int{},
		Categories:      []string{},
	}
	categories := make(map[string]struct{})
	for _, c := range contracts {
		matched := false
		for _, item := range c.Items {
			if records.NormalizeBrand(item.Brand) != brand {
				continue
			}
			matched = true
			if item.OrderedQuantity != nil {
				out.QuantitySold += *item.OrderedQuantity
			}
			if name := strings.TrimSpace(item.CategoryName); name != "" {
				categories[name] = struct{}{}
			}
		}
		if !matched {
			continue
		}
		out.Orders++
		out.Revenue += total(c)
		out.StatusBreakdown[orUnknown(c.Status)]++
		out.BuyingModes[orUnknown(c.BuyingMode)]++
	}
	for name := range categories {
		out.Categories = append(out.Categories, name)
	}
	slices.Sort(out.Categories)
	out.Revenue = round2(out.Revenue)
	if out.Orders > 0 {
		out.AvgOrderValue = round2(out.Revenue / float64(out.Orders))
	}
	return out
}

func orUnknown(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "Unknown"
	}
	return value
}
