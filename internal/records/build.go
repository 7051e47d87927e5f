package records

import (
	"time"

	"gemdesk/internal/sheet"
)

// Contract spreadsheet columns.
const ColumnContractID = "contract_id"

// Seller spreadsheet columns.
const ColumnContractNo = "contract_no"

// BuildContracts groups worksheet rows by contract id. The key is the trimmed
// cell text, compared exactly, which is also the key the repository stores
// and merges on. Header fields come from the first row of each group and
// groups keep first-seen order. Items are collected as-is; callers deduplicate with UniqueItems.
// Rows whose contract id is blank form a single group with an empty id.
func BuildContracts(table *sheet.Table) ([]Contract, error) {
	if err := table.Require(ColumnContractID); err != nil {
		return nil, err
	}

	var contracts []Contract
	positions := make(map[string]int)
	for _, row := range table.Rows {
		key := row.Get(ColumnContractID).Text()
		pos, ok := positions[key]
		if !ok {
			pos = len(contracts)
			positions[key] = pos
			contracts = append(contracts, contractHeader(row))
		}
		contracts[pos].Items = append(contracts[pos].Items, contractItem(row))
	}
	return contracts, nil
}

// BuildSellers maps each worksheet row to one seller record.
func BuildSellers(table *sheet.Table) []Seller {
	sellers := make([]Seller, 0, len(table.Rows))
	for _, row := range table.Rows {
		sellers = append(sellers, Seller{
			ContractNo:    row.Get(ColumnContractNo).Text(),
			GeneratedDate: timeCell(row.Get("generated_date")),
			CategoryName:  row.Get("category_name").Text(),
			SellerID:      row.Get("seller_id").Text(),
			CompanyName:   row.Get("company_name").Text(),
			ContactNo:     row.Get("contact_no").Text(),
			Email:         row.Get("email").Text(),
			Address:       row.Get("address").Text(),
			MSMERegNo:     row.Get("msme_reg_no").Text(),
			GSTIN:         row.Get("gstin").Text(),
		})
	}
	return sellers
}

func contractHeader(row sheet.Row) Contract {
	return Contract{
		ContractID:       row.Get(ColumnContractID).Text(),
		Status:           row.Get("status").Text(),
		OrganizationType: row.Get("organization_type").Text(),
		Ministry:         row.Get("ministry").Text(),
		Department:       row.Get("department").Text(),
		OrganizationName: row.Get("organization_name").Text(),
		OfficeZone:       row.Get("office_zone").Text(),
		Location:         row.Get("location").Text(),
		BuyerDesignation: row.Get("buyer_designation").Text(),
		BuyingMode:       row.Get("buying_mode").Text(),
		BidNumber:        row.Get("bid_number").Text(),
		ContractDate:     timeCell(row.Get("contract_date")),
		Total:            floatCell(row.Get("total")),
	}
}

func contractItem(row sheet.Row) Item {
	return Item{
		Service:         row.Get("service").Text(),
		CategoryName:    row.Get("category_name").Text(),
		Product:         row.Get("product").Text(),
		Brand:           row.Get("brand").Text(),
		Model:           row.Get("model").Text(),
		HSNCode:         row.Get("hsn_code").Text(),
		OrderedQuantity: floatCell(row.Get("ordered_quantity")),
		Price:           floatCell(row.Get("price")),
	}
}

func floatCell(cell sheet.Cell) *float64 {
	if v, ok := cell.Float(); ok {
		return &v
	}
	return nil
}

func timeCell(cell sheet.Cell) *time.Time {
	if v, ok := cell.Time(); ok {
		return &v
	}
	return nil
}
