package records_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemdesk/internal/records"
	"gemdesk/internal/sheet"
	"gemdesk/internal/textutil"
)

func TestUniqueItems(t *testing.T) {
	items := []records.Item{
		{Service: "Cleaning ", Brand: "A"},
		{Service: "cleaning", Brand: "B"},
		{Product: "Laptop"},
		{Product: " LAPTOP"},
		{Service: "Laptop", Brand: "C"},
		{Brand: "orphan"},
		{Service: "Security"},
	}

	got := records.UniqueItems(items)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Brand, "first occurrence wins")
	assert.Equal(t, "Laptop", got[1].Product)
	assert.Equal(t, "Security", got[2].Service)
}

func TestUniqueItemsIsIdempotent(t *testing.T) {
	items := []records.Item{{Service: "x"}, {Service: "y"}, {Product: "x"}}
	once := records.UniqueItems(items)
	twice := records.UniqueItems(append(once, once...))
	assert.Equal(t, once, twice)
}

func TestBuildContractsGroupsByExactContractID(t *testing.T) {
	table := sheet.NewTable([][]string{
		{"Contract ID", "Status", "Service", "Brand", "Total", "Price"},
		{"GEMC-1", "Open", "Cleaning", "HP", "100", "10"},
		{" GEMC-1 ", "Closed", "Security", "Dell", "999", ""},
		{"gemc-1", "Open", "Catering", "", "", ""},
		{"", "Open", "Orphan", "", "", ""},
	}, textutil.NormalizeHeader)

	contracts, err := records.BuildContracts(table)
	require.NoError(t, err)
	require.Len(t, contracts, 3)

	first := contracts[0]
	assert.Equal(t, "GEMC-1", first.ContractID)
	assert.Equal(t, "Open", first.Status, "header fields come from the first row")
	require.NotNil(t, first.Total)
	assert.Equal(t, 100.0, *first.Total)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Security", first.Items[1].Service)
	assert.Nil(t, first.Items[1].Price)

	assert.Equal(t, "gemc-1", contracts[1].ContractID, "ids differing in case are distinct contracts")
	assert.Equal(t, "", contracts[2].ContractID)
}

func TestBuildContractsRequiresContractID(t *testing.T) {
	table := sheet.NewTable([][]string{{"Status"}, {"Open"}}, textutil.NormalizeHeader)
	_, err := records.BuildContracts(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sheet.ErrMissingColumn))
}

func TestBuildSellersOneRecordPerRow(t *testing.T) {
	table := sheet.NewTable([][]string{
		{"Contract No.", "Company Name", "MSME Reg. No", "Generated Date"},
		{"C1", "Acme", "UDYAM-1", "2024-02-01"},
		{"C1", "Acme Ltd", "", ""},
	}, textutil.CleanHeader)

	sellers := records.BuildSellers(table)
	require.Len(t, sellers, 2)
	assert.Equal(t, "C1", sellers[0].ContractNo)
	assert.Equal(t, "UDYAM-1", sellers[0].MSMERegNo)
	require.NotNil(t, sellers[0].GeneratedDate)
	assert.Equal(t, "2024-02-01", sellers[0].GeneratedDate.Format("2006-01-02"))
	assert.Equal(t, "Acme Ltd", sellers[1].CompanyName)
	assert.Nil(t, sellers[1].GeneratedDate)
}

func TestContractHasBrand(t *testing.T) {
	contract := records.Contract{Items: []records.Item{{Brand: " HP "}, {Brand: ""}}}
	assert.True(t, contract.HasBrand(textutil.SplitList("hp,dell")))
	assert.False(t, contract.HasBrand(textutil.SplitList("lenovo")))
	assert.False(t, contract.HasBrand(nil))
}

func TestNormalizeBrandAndCount(t *testing.T) {
	assert.Equal(t, "HP", records.NormalizeBrand(" hp™ "))
	assert.Equal(t, "GODREJ", records.NormalizeBrand("Godrej®"))
	assert.Empty(t, records.NormalizeBrand("  "))

	long := strings.Repeat("é", 150)
	code := records.BrandCode(records.NormalizeBrand(long))
	assert.LessOrEqual(t, len(code), 200)
	assert.True(t, utf8.ValidString(code), "code must not split a rune")

	counts := records.CountBrands([]records.Contract{
		{Items: []records.Item{{Brand: "HP"}, {Brand: "hp®"}, {Brand: ""}}},
		{Items: []records.Item{{Brand: "Dell"}}},
	})
	assert.Equal(t, map[string]int{"HP": 2, "DELL": 1}, counts)
}
