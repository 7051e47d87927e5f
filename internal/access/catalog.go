package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"gemdesk/internal/records"
	"gemdesk/internal/store"
)

// DefaultPerPage is the listing page size when none is configured.
const DefaultPerPage = 10

// ErrNoContractNumbers rejects a lookup by an empty list of contract numbers.
var ErrNoContractNumbers = errors.New("no contract numbers given")

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// offset returns the index of page's first item, or false when page starts
// past the last of total items. page must be at least 1.
func offset(page, perPage, total int) (int, bool) {
	if total == 0 || page-1 > (total-1)/perPage {
		return 0, false
	}
	return (page - 1) * perPage, true
}

func newPage[T any](items []T, page, perPage, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := (total + perPage - 1) / perPage
	return Page[T]{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasPrev: page > 1,
		HasNext: page < pages,
	}
}

func paginate[T any](all []T, page, perPage int) Page[T] {
	page = max(page, 1)
	var items []T
	if start, ok := offset(page, perPage, len(all)); ok {
		items = all[start:min(start+perPage, len(all))]
	}
	return newPage(items, page, perPage, len(all))
}

// ContractDetail is a contract with the seller recorded under the same
// contract number, if any.
type ContractDetail struct {
	Contract records.Contract `json:"contract"`
	Seller   *records.Seller  `json:"seller"`
}

// CompanyGroup collects the sellers of one company on a listing page.
type CompanyGroup struct {
	CompanyName string         `json:"company_name"`
	Count       int            `json:"count"`
	Seller      records.Seller `json:"seller"`
	ContractNos []string       `json:"contract_nos"`
}

// SellerPage is a seller listing page plus its per-company grouping.
type SellerPage struct {
	Page[records.Seller]
	Companies []CompanyGroup `json:"companies"`
}

// Catalog answers entitlement-scoped reads.
type Catalog struct {
	repo    store.Reader
	perPage int
	now     func() time.Time
}

// NewCatalog returns a catalog over repo.
func NewCatalog(repo store.Reader, perPage int) *Catalog {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Catalog{repo: repo, perPage: perPage, now: time.Now}
}

// ScopeContracts narrows filter to the entitlement's date range. An exact
// contract date inside the range replaces the range; otherwise both apply.
// A caller-supplied range is intersected with the assigned one.
func ScopeContracts(ent Entitlement, filter store.ContractFilter) store.ContractFilter {
	if !ent.HasDateRange() {
		return filter
	}
	if filter.ContractDate != nil && ent.InRange(*filter.ContractDate) {
		return filter
	}
	start, end := day(*ent.DateStart), day(*ent.DateEnd)
	if filter.DateFrom == nil || day(*filter.DateFrom).Before(start) {
		filter.DateFrom = &start
	}
	if filter.DateTo == nil || day(*filter.DateTo).After(end) {
		filter.DateTo = &end
	}
	return filter
}

// ListContracts returns one page of contracts visible to ent, newest first.
// Without a brand allow-list the page is cut in the query.
func (c *Catalog) ListContracts(ctx context.Context, ent Entitlement, filter store.ContractFilter, page int) (Page[records.Contract], error) {
	if len(ent.BrandSet()) > 0 {
		visible, err := c.VisibleContracts(ctx, ent, filter)
		if err != nil {
			return Page[records.Contract]{}, err
		}
		return paginate(visible, page, c.perPage), nil
	}
	if err := ent.Authorize(c.now()); err != nil {
		return Page[records.Contract]{}, err
	}
	filter = ScopeContracts(ent, filter)
	filter.Window = store.Window{}
	total, err := c.repo.CountContracts(ctx, filter)
	if err != nil {
		return Page[records.Contract]{}, err
	}
	page = max(page, 1)
	start, ok := offset(page, c.perPage, total)
	if !ok {
		return newPage[records.Contract](nil, page, c.perPage, total), nil
	}
	filter.Window = store.Window{Offset: start, Limit: c.perPage}
	items, err := c.repo.FindContracts(ctx, filter)
	if err != nil {
		return Page[records.Contract]{}, err
	}
	return newPage(items, page, c.perPage, total), nil
}

// ContractsByNumbers returns the visible contracts among ids, newest first.
func (c *Catalog) ContractsByNumbers(ctx context.Context, ent Entitlement, ids []string) ([]records.Contract, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoContractNumbers
	}
	return c.VisibleContracts(ctx, ent, store.ContractFilter{ContractIDs: cleaned})
}

// ContractDetail returns a visible contract and its seller. A contract
// outside the entitlement reads as store.ErrNotFound.
func (c *Catalog) ContractDetail(ctx context.Context, ent Entitlement, contractID string) (ContractDetail, error) {
	if err := ent.Authorize(c.now()); err != nil {
		return ContractDetail{}, err
	}
	contract, err := c.repo.GetContract(ctx, contractID)
	if err != nil {
		return ContractDetail{}, err
	}
	if !contractVisible(ent, contract) {
		return ContractDetail{}, store.ErrNotFound
	}
	detail := ContractDetail{Contract: contract}
	seller, err := c.repo.GetSeller(ctx, contract.ContractID)
	switch {
	case err == nil:
		detail.Seller = &seller
	case !errors.Is(err, store.ErrNotFound):
		return ContractDetail{}, err
	}
	return detail, nil
}

// ListSellers returns one page of sellers visible to ent, newest generated date
// first, with the page's sellers grouped by company.
func (c *Catalog) ListSellers(ctx context.Context, ent Entitlement, filter store.SellerFilter, page int) (SellerPage, error) {
	if err := ent.Authorize(c.now()); err != nil {
		return SellerPage{}, err
	}
	if categories := ent.CategoryList(); len(categories) > 0 {
		filter.Categories = categories
	}
	filter.Window = store.Window{}
	total, err := c.repo.CountSellers(ctx, filter)
	if err != nil {
		return SellerPage{}, err
	}
	page = max(page, 1)
	var sellers []records.Seller
	if start, ok := offset(page, c.perPage, total); ok {
		filter.Window = store.Window{Offset: start, Limit: c.perPage}
		if sellers, err = c.repo.FindSellers(ctx, filter); err != nil {
			return SellerPage{}, err
		}
	}
	p := newPage(sellers, page, c.perPage, total)
	return SellerPage{Page: p, Companies: GroupByCompany(p.Items)}, nil
}

// GroupByCompany groups sellers by trimmed company name in first-seen order.
func GroupByCompany(sellers []records.Seller) []CompanyGroup {
	var groups []CompanyGroup
	index := make(map[string]int)
	for _, seller := range sellers {
		name := strings.TrimSpace(seller.CompanyName)
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, CompanyGroup{CompanyName: name, Seller: seller, ContractNos: []string{}})
		}
		groups[pos].Count++
		if seller.ContractNo != "" {
			groups[pos].ContractNos = append(groups[pos].ContractNos, seller.ContractNo)
		}
	}
	return groups
}

// VisibleContracts returns every contract matching filter that ent may see,
// newest first. The filter window is ignored.
func (c *Catalog) VisibleContracts(ctx context.Context, ent Entitlement, filter store.ContractFilter) ([]records.Contract, error) {
	if err := ent.Authorize(c.now()); err != nil {
		return nil, err
	}
	filter.Window = store.Window{}
	contracts, err := c.repo.FindContracts(ctx, ScopeContracts(ent, filter))
	if err != nil {
		return nil, err
	}
	brands := ent.BrandSet()
	if len(brands) == 0 {
		return contracts, nil
	}
	visible := contracts[:0]
	for _, contract := range contracts {
		if contract.HasBrand(brands) {
			visible = append(visible, contract)
		}
	}
	return visible, nil
}

func contractVisible(ent Entitlement, contract records.Contract) bool {
	if ent.HasDateRange() {
		if contract.ContractDate == nil || !ent.InRange(*contract.ContractDate) {
			return false
		}
	}
	brands := ent.BrandSet()
	return len(brands) == 0 || contract.HasBrand(brands)
}
