// Package records defines the contract and seller records materialized from
// spreadsheets and the grouping rules applied before they are persisted.
package records

import (
	"time"

	"gemdesk/internal/textutil"
)

// Item is one contract line item.
type Item struct {
	Service         string   `json:"service"`
	CategoryName    string   `json:"category_name"`
	Product         string   `json:"product"`
	Brand           string   `json:"brand"`
	Model           string   `json:"model"`
	HSNCode         string   `json:"hsn_code"`
	OrderedQuantity *float64 `json:"ordered_quantity"`
	Price           *float64 `json:"price"`
}

// Key returns the deduplication key: the normalized service name, falling back
// to the normalized product name. Items with neither yield "".
func (i Item) Key() string {
	if key := textutil.NormalizeKey(i.Service); key != "" {
		return key
	}
	return textutil.NormalizeKey(i.Product)
}

// Contract is a contract header plus its line items. ContractID is the
// business key.
type Contract struct {
	ID               int64      `json:"id,omitempty"`
	ContractID       string     `json:"contract_id"`
	Status           string     `json:"status"`
	OrganizationType string     `json:"organization_type"`
	Ministry         string     `json:"ministry"`
	Department       string     `json:"department"`
	OrganizationName string     `json:"organization_name"`
	OfficeZone       string     `json:"office_zone"`
	Location         string     `json:"location"`
	BuyerDesignation string     `json:"buyer_designation"`
	BuyingMode       string     `json:"buying_mode"`
	BidNumber        string     `json:"bid_number"`
	ContractDate     *time.Time `json:"contract_date"`
	Total            *float64   `json:"total"`
	Items            []Item     `json:"items"`
}

// HasBrand reports whether any item's normalized brand is in allowed.
func (c Contract) HasBrand(allowed map[string]struct{}) bool {
	for _, item := range c.Items {
		if key := textutil.NormalizeKey(item.Brand); key != "" {
			if _, ok := allowed[key]; ok {
				return true
			}
		}
	}
	return false
}

// Seller is a seller record keyed by ContractNo.
type Seller struct {
	ID            int64      `json:"id,omitempty"`
	ContractNo    string     `json:"contract_no"`
	GeneratedDate *time.Time `json:"generated_date"`
	CategoryName  string     `json:"category_name"`
	SellerID      string     `json:"seller_id"`
	CompanyName   string     `json:"company_name"`
	ContactNo     string     `json:"contact_no"`
	Email         string     `json:"email"`
	Address       string     `json:"address"`
	MSMERegNo     string     `json:"msme_reg_no"`
	GSTIN         string     `json:"gstin"`
}

// UniqueItems drops items without a key and every repeat of an earlier key,
// preserving the order of first occurrences.
func UniqueItems(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	unique := make([]Item, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}
