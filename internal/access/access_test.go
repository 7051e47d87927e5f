package access

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemdesk/internal/records"
	"gemdesk/internal/store"
	"gemdesk/internal/testsupport"
)

var today = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func subscribed() Entitlement {
	return Entitlement{Verified: true, SubscriptionUntil: date("2024-12-31")}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		ent     Entitlement
		allowed bool
	}{
		{"subscribed", subscribed(), true},
		{"expires today", Entitlement{Verified: true, SubscriptionUntil: date("2024-06-15")}, true},
		{"expired yesterday", Entitlement{Verified: true, SubscriptionUntil: date("2024-06-14")}, false},
		{"no subscription", Entitlement{Verified: true}, false},
		{"unverified", Entitlement{SubscriptionUntil: date("2024-12-31")}, false},
		{"blocked", Entitlement{Verified: true, Blocked: true, SubscriptionUntil: date("2024-12-31")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ent.Authorize(today)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrForbidden), "got %v", err)
			}
		})
	}
}

func TestScopeContracts(t *testing.T) {
	ent := subscribed()
	ent.DateStart = date("2024-01-01")
	ent.DateEnd = date("2024-03-31")

	scoped := ScopeContracts(ent, store.ContractFilter{})
	assert.Equal(t, date("2024-01-01"), scoped.DateFrom)
	assert.Equal(t, date("2024-03-31"), scoped.DateTo)

	inside := ScopeContracts(ent, store.ContractFilter{ContractDate: date("2024-02-10")})
	assert.Nil(t, inside.DateFrom, "exact date inside the range replaces it")
	assert.Nil(t, inside.DateTo)

	outside := ScopeContracts(ent, store.ContractFilter{ContractDate: date("2024-05-01")})
	assert.NotNil(t, outside.DateFrom)
	assert.Equal(t, date("2024-05-01"), outside.ContractDate)

	narrowed := ScopeContracts(ent, store.ContractFilter{DateFrom: date("2024-02-01"), DateTo: date("2024-12-31")})
	assert.Equal(t, date("2024-02-01"), narrowed.DateFrom)
	assert.Equal(t, date("2024-03-31"), narrowed.DateTo)

	half := subscribed()
	half.DateStart = date("2024-01-01")
	assert.Equal(t, store.ContractFilter{}, ScopeContracts(half, store.ContractFilter{}), "range needs both ends")
}

func seedCatalog(t *testing.T, perPage int) *Catalog {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	repo := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	for _, c := range []records.Contract{
		{ContractID: "C1", ContractDate: date("2024-01-10"), Items: []records.Item{{Service: "Repair", Brand: "HP"}}},
		{ContractID: "C2", ContractDate: date("2024-02-10"), Items: []records.Item{{Product: "Desk", Brand: "Godrej"}}},
		{ContractID: "C3", ContractDate: date("2024-05-10"), Items: []records.Item{{Product: "Laptop", Brand: " hp "}}},
		{ContractID: "C4", Items: []records.Item{{Product: "Chair"}}},
	} {
		require.NoError(t, repo.AddContract(ctx, c))
	}
	for _, s := range []records.Seller{
		{ContractNo: "C1", CompanyName: "Acme ", CategoryName: "Laptops"},
		{ContractNo: "C2", CompanyName: "Bolt", CategoryName: "Furniture"},
		{ContractNo: "C3", CompanyName: "Acme", CategoryName: "LAPTOPS"},
	} {
		require.NoError(t, repo.UpsertSeller(ctx, s))
	}
	catalog := NewCatalog(repo, perPage)
	catalog.now = func() time.Time { return today }
	return catalog
}

func contractIDs(contracts []records.Contract) []string {
	out := make([]string, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, c.ContractID)
	}
	return out
}

func TestListContractsAppliesEntitlement(t *testing.T) {
	catalog := seedCatalog(t, 10)
	ctx := context.Background()

	all, err := catalog.ListContracts(ctx, subscribed(), store.ContractFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C3", "C2", "C1", "C4"}, contractIDs(all.Items))

	ent := subscribed()
	ent.Brands = []string{"HP"}
	hp, err := catalog.ListContracts(ctx, ent, store.ContractFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C3", "C1"}, contractIDs(hp.Items))

	ent.DateStart = date("2024-01-01")
	ent.DateEnd = date("2024-03-31")
	scoped, err := catalog.ListContracts(ctx, ent, store.ContractFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, contractIDs(scoped.Items))

	_, err = catalog.ListContracts(ctx, Entitlement{}, store.ContractFilter{}, 1)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListContractsPaginates(t *testing.T) {
	catalog := seedCatalog(t, 3)
	ctx := context.Background()

	first, err := catalog.ListContracts(ctx, subscribed(), store.ContractFilter{}, 1)
	require.NoError(t, err)
	assert.Len(t, first.Items, 3)
	assert.Equal(t, 4, first.Total)
	assert.Equal(t, 2, first.Pages)
	assert.True(t, first.HasNext)
	assert.False(t, first.HasPrev)

	second, err := catalog.ListContracts(ctx, subscribed(), store.ContractFilter{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C4"}, contractIDs(second.Items))
	assert.False(t, second.HasNext)

	beyond, err := catalog.ListContracts(ctx, subscribed(), store.ContractFilter{}, 9)
	require.NoError(t, err)
	assert.NotNil(t, beyond.Items)
	assert.Empty(t, beyond.Items)
}

func TestPagesPastTheEndAreEmpty(t *testing.T) {
	catalog := seedCatalog(t, 3)
	ctx := context.Background()
	huge := math.MaxInt64/3 + 2

	for _, page := range []int{3, huge, math.MaxInt} {
		contracts, err := catalog.ListContracts(ctx, subscribed(), store.ContractFilter{}, page)
		require.NoError(t, err, "page %d", page)
		assert.NotNil(t, contracts.Items)
		assert.Empty(t, contracts.Items)
		assert.Equal(t, 4, contracts.Total)
		assert.Equal(t, 2, contracts.Pages)
		assert.False(t, contracts.HasNext)
		assert.True(t, contracts.HasPrev)

		ent := subscribed()
		ent.Brands = []string{"hp"}
		branded, err := catalog.ListContracts(ctx, ent, store.ContractFilter{}, page)
		require.NoError(t, err, "page %d", page)
		assert.Empty(t, branded.Items)
		assert.Equal(t, 2, branded.Total)

		sellers, err := catalog.ListSellers(ctx, subscribed(), store.SellerFilter{}, page)
		require.NoError(t, err, "page %d", page)
		assert.Empty(t, sellers.Items)
		assert.Equal(t, 3, sellers.Total)
	}

	clamped, err := catalog.ListContracts(ctx, subscribed(), store.ContractFilter{}, math.MinInt)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Len(t, clamped.Items, 3)
}

func TestListSellersPagesInQuery(t *testing.T) {
	catalog := seedCatalog(t, 2)
	ctx := context.Background()

	first, err := catalog.ListSellers(ctx, subscribed(), store.SellerFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C3", "C2"}, sellerNos(first.Items))
	assert.True(t, first.HasNext)

	second, err := catalog.ListSellers(ctx, subscribed(), store.SellerFilter{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, sellerNos(second.Items))
	assert.Equal(t, 2, second.Pages)
	assert.False(t, second.HasNext)
	require.Len(t, second.Companies, 1)
	assert.Equal(t, "Acme", second.Companies[0].CompanyName)
}

func sellerNos(sellers []records.Seller) []string {
	out := make([]string, 0, len(sellers))
	for _, s := range sellers {
		out = append(out, s.ContractNo)
	}
	return out
}

func TestContractsByNumbersFiltersBrands(t *testing.T) {
	catalog := seedCatalog(t, 10)
	ent := subscribed()
	ent.Brands = []string{"godrej"}

	got, err := catalog.ContractsByNumbers(context.Background(), ent, []string{"C1", " C2 ", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, contractIDs(got))

	_, err = catalog.ContractsByNumbers(context.Background(), ent, []string{" "})
	assert.ErrorIs(t, err, ErrNoContractNumbers)
}

func TestContractDetailIncludesSeller(t *testing.T) {
	catalog := seedCatalog(t, 10)
	ctx := context.Background()

	detail, err := catalog.ContractDetail(ctx, subscribed(), "C2")
	require.NoError(t, err)
	require.NotNil(t, detail.Seller)
	assert.Equal(t, "Bolt", detail.Seller.CompanyName)

	lone, err := catalog.ContractDetail(ctx, subscribed(), "C4")
	require.NoError(t, err)
	assert.Nil(t, lone.Seller)

	ent := subscribed()
	ent.Brands = []string{"hp"}
	_, err = catalog.ContractDetail(ctx, ent, "C2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = catalog.ContractDetail(ctx, subscribed(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSellersCategoriesAndCompanies(t *testing.T) {
	catalog := seedCatalog(t, 10)
	ent := subscribed()
	ent.Categories = []string{"laptops"}

	page, err := catalog.ListSellers(context.Background(), ent, store.SellerFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Companies, 1)
	assert.Equal(t, "Acme", page.Companies[0].CompanyName)
	assert.Equal(t, 2, page.Companies[0].Count)
	assert.Equal(t, []string{"C3", "C1"}, page.Companies[0].ContractNos)

	all, err := catalog.ListSellers(context.Background(), subscribed(), store.SellerFilter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
}

func TestIssuerRoundTrip(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	ent := subscribed()
	ent.Brands = []string{"HP", "Dell"}
	raw, expires, err := issuer.Mint("alice", RoleUser, ent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.False(t, claims.IsAdmin())
	assert.Equal(t, []string{"HP", "Dell"}, claims.Entitlement.Brands)
	assert.True(t, claims.Entitlement.SubscriptionUntil.Equal(*ent.SubscriptionUntil))

	other, err := NewIssuer("different", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(raw)
	assert.Error(t, err)

	_, _, err = issuer.Mint("bob", "root", Entitlement{})
	assert.Error(t, err)
}

func TestIssuerRejectsExpiredToken(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return today }
	raw, _, err := issuer.Mint("admin", RoleAdmin, Entitlement{})
	require.NoError(t, err)

	issuer.now = func() time.Time { return today.Add(2 * time.Minute) }
	_, err = issuer.Parse(raw)
	assert.Error(t, err)

	_, err = NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}
