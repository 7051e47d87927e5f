package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemdesk/internal/logging"
	"gemdesk/internal/records"
	"gemdesk/internal/store"
	"gemdesk/internal/store/sqlstore"
	"gemdesk/internal/testsupport"
)

func ptrTime(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ptrFloat(v float64) *float64 { return &v }

func openStore(t *testing.T) store.Repository {
	t.Helper()
	if dsn := os.Getenv("GEMDESK_TEST_POSTGRES_DSN"); dsn != "" {
		s, err := sqlstore.OpenPostgres(context.Background(), dsn, logging.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = s.DeleteContracts(context.Background(), []string{"C1", "C2", "C3", "X"})
			_, _ = s.DeleteSellers(context.Background(), []string{"C1", "C2", "C3"})
			s.Close()
		})
		return s
	}
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func TestAddContractInsertsThenMergesItems(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := records.Contract{
		ContractID:   "X",
		Status:       "Open",
		ContractDate: ptrTime("2024-01-15"),
		Total:        ptrFloat(250),
		Items: []records.Item{
			{Service: "Cleaning", Brand: "HP"},
			{Service: "cleaning ", Brand: "dup"},
			{Product: "Laptop", Price: ptrFloat(99.5)},
		},
	}
	require.NoError(t, s.AddContract(ctx, first))

	got, err := s.GetContract(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "Open", got.Status)
	require.Len(t, got.Items, 2)
	require.NotNil(t, got.Items[1].Price)
	assert.Equal(t, 99.5, *got.Items[1].Price)
	require.NotNil(t, got.ContractDate)
	assert.Equal(t, "2024-01-15", got.ContractDate.Format("2006-01-02"))

	second := records.Contract{
		ContractID: "X",
		Status:     "Closed",
		Items: []records.Item{
			{Service: "CLEANING"},
			{Service: "Security"},
		},
	}
	require.NoError(t, s.AddContract(ctx, second))

	got, err = s.GetContract(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "Open", got.Status, "header fields are not updated on merge")
	require.Len(t, got.Items, 3)
	assert.Equal(t, "Security", got.Items[2].Service)

	require.NoError(t, s.AddContract(ctx, second))
	got, err = s.GetContract(ctx, "X")
	require.NoError(t, err)
	assert.Len(t, got.Items, 3, "re-import is idempotent")
}

func TestAddContractRejectsBlankKey(t *testing.T) {
	s := openStore(t)
	err := s.AddContract(context.Background(), records.Contract{ContractID: "  "})
	assert.True(t, errors.Is(err, store.ErrMissingKey))
}

func TestGetContractNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetContract(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestFindContractsFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, c := range []records.Contract{
		{ContractID: "C1", Ministry: "Ministry of Defence", ContractDate: ptrTime("2024-01-10"), Total: ptrFloat(100)},
		{ContractID: "C2", Ministry: "Ministry of Health", ContractDate: ptrTime("2024-02-10"), Total: ptrFloat(500)},
		{ContractID: "C3", Ministry: "Defence 50%_off", Total: ptrFloat(900)},
	} {
		require.NoError(t, s.AddContract(ctx, c))
	}

	all, err := s.FindContracts(ctx, store.ContractFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"C2", "C1", "C3"}, ids(all), "newest first, undated last")

	defence, err := s.FindContracts(ctx, store.ContractFilter{Ministry: "DEFENCE"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C1", "C3"}, ids(defence))

	literal, err := s.FindContracts(ctx, store.ContractFilter{Ministry: "50%_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C3"}, ids(literal), "LIKE wildcards in input are literal")

	ranged, err := s.FindContracts(ctx, store.ContractFilter{DateFrom: ptrTime("2024-01-01"), DateTo: ptrTime("2024-01-31")})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, ids(ranged))

	day, err := s.FindContracts(ctx, store.ContractFilter{ContractDate: ptrTime("2024-02-10")})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, ids(day))

	totals, err := s.FindContracts(ctx, store.ContractFilter{MinTotal: ptrFloat(200), MaxTotal: ptrFloat(600)})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, ids(totals))

	byIDs, err := s.FindContracts(ctx, store.ContractFilter{ContractIDs: []string{"C3", "C1", "nope"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C3"}, ids(byIDs))

	deleted, err := s.DeleteContracts(ctx, []string{"C1", "C2", "nope"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestUpsertSellerOverwritesFields(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSeller(ctx, records.Seller{ContractNo: "C1", CompanyName: "Acme", Email: "a@acme.test", CategoryName: "Laptops"}))
	require.NoError(t, s.UpsertSeller(ctx, records.Seller{ContractNo: "C1", CompanyName: "Acme Ltd"}))

	got, err := s.GetSeller(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", got.CompanyName)
	assert.Empty(t, got.Email, "every field is overwritten")

	all, err := s.FindSellers(ctx, store.SellerFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.True(t, errors.Is(s.UpsertSeller(ctx, records.Seller{}), store.ErrMissingKey))
}

func TestFindSellersCategoriesAndOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, seller := range []records.Seller{
		{ContractNo: "C1", CompanyName: "Acme", CategoryName: "Laptops"},
		{ContractNo: "C2", CompanyName: "Bolt", CategoryName: "Printers"},
		{ContractNo: "C3", CompanyName: "Acme", CategoryName: "LAPTOPS", GeneratedDate: ptrTime("2024-03-01")},
	} {
		require.NoError(t, s.UpsertSeller(ctx, seller))
	}

	laptops, err := s.FindSellers(ctx, store.SellerFilter{Categories: []string{" laptops "}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C3", "C1"}, sellerNos(laptops))

	acme, err := s.FindSellers(ctx, store.SellerFilter{CompanyName: "acm"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	dated, err := s.FindSellers(ctx, store.SellerFilter{GeneratedDate: ptrTime("2024-03-01")})
	require.NoError(t, err)
	assert.Equal(t, []string{"C3"}, sellerNos(dated))

	deleted, err := s.DeleteSellers(ctx, []string{"C2"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	_, err = s.GetSeller(ctx, "C2")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestFindSellersOrdersByGeneratedDate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, seller := range []records.Seller{
		{ContractNo: "C1", CompanyName: "Acme", GeneratedDate: ptrTime("2024-05-01")},
		{ContractNo: "C2", CompanyName: "Bolt", GeneratedDate: ptrTime("2024-01-01")},
		{ContractNo: "C3", CompanyName: "Cord"},
	} {
		require.NoError(t, s.UpsertSeller(ctx, seller))
	}

	all, err := s.FindSellers(ctx, store.SellerFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "C3"}, sellerNos(all), "undated sellers sort last")

	// A re-import moves the seller by its new date, not its row id.
	require.NoError(t, s.UpsertSeller(ctx, records.Seller{ContractNo: "C2", CompanyName: "Bolt", GeneratedDate: ptrTime("2024-09-01")}))
	all, err = s.FindSellers(ctx, store.SellerFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2", "C1", "C3"}, sellerNos(all))

	window, err := s.FindSellers(ctx, store.SellerFilter{Window: store.Window{Offset: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, sellerNos(window))

	n, err := s.CountSellers(ctx, store.SellerFilter{CompanyName: "o", Window: store.Window{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "count ignores the window")
}

func TestFindContractsWindowAndCount(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, c := range []records.Contract{
		{ContractID: "C1", ContractDate: ptrTime("2024-01-10")},
		{ContractID: "C2", ContractDate: ptrTime("2024-02-10")},
		{ContractID: "C3"},
	} {
		require.NoError(t, s.AddContract(ctx, c))
	}

	first, err := s.FindContracts(ctx, store.ContractFilter{Window: store.Window{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C2", "C1"}, ids(first))

	rest, err := s.FindContracts(ctx, store.ContractFilter{Window: store.Window{Offset: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C3"}, ids(rest))

	past, err := s.FindContracts(ctx, store.ContractFilter{Window: store.Window{Offset: 10, Limit: 2}})
	require.NoError(t, err)
	assert.Empty(t, past)

	n, err := s.CountContracts(ctx, store.ContractFilter{DateFrom: ptrTime("2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSyncBrandsAddsOnceAndRefreshesCounts(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	added, err := s.SyncBrands(ctx, map[string]int{"HP": 2, "DELL": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = s.SyncBrands(ctx, map[string]int{"HP": 5, "LENOVO": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	all, err := s.ListBrands(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "DELL", all[0].Name)
	assert.Equal(t, "HP", all[1].Code)
	assert.Equal(t, 5, all[1].ProductCount)

	matched, err := s.ListBrands(ctx, "len")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "LENOVO", matched[0].Name)
}

func TestOpenUpgradesVersionOneDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", cfg.Database.Path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TABLE schema_version (version INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := sqlstore.OpenSQLite(ctx, cfg.Database.Path, logging.NewNop())
	require.NoError(t, err)
	defer s.Close()
	added, err := s.SyncBrands(ctx, map[string]int{"HP": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", cfg.Database.Path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TABLE schema_version (version INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (99)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = sqlstore.OpenSQLite(ctx, cfg.Database.Path, logging.NewNop())
	assert.ErrorIs(t, err, sqlstore.ErrSchemaMismatch)
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := sqlstore.OpenSQLite(ctx, cfg.Database.Path, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.AddContract(ctx, records.Contract{ContractID: "C1"}))
	require.NoError(t, first.Close())

	second, err := sqlstore.OpenSQLite(ctx, cfg.Database.Path, logging.NewNop())
	require.NoError(t, err)
	defer second.Close()
	_, err = second.GetContract(ctx, "C1")
	assert.NoError(t, err)
}

func ids(contracts []records.Contract) []string {
	out := make([]string, len(contracts))
	for i, c := range contracts {
		out[i] = c.ContractID
	}
	return out
}

func sellerNos(sellers []records.Seller) []string {
	out := make([]string, len(sellers))
	for i, s := range sellers {
		out[i] = s.ContractNo
	}
	return out
}
