// Package store defines the repository that ingestion writes into and the
// catalog API reads from. The sqlstore subpackage implements it on SQLite
// (default) and PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"

	"gemdesk/internal/records"
)

var (
	// ErrNotFound reports a lookup by business key that matched nothing.
	ErrNotFound = errors.New("record not found")
	// ErrMissingKey reports a write whose business key is blank.
	ErrMissingKey = errors.New("business key is empty")
)

// Writer is the persistence surface used by the ingestion workers.
type Writer interface {
	// AddContract inserts a new contract, or merges the record's unique items
	// into an existing contract with the same id without touching its header
	// fields.
	AddContract(ctx context.Context, contract records.Contract) error
	// UpsertSeller inserts a seller or overwrites every field of the existing
	// seller with the same contract number.
	UpsertSeller(ctx context.Context, seller records.Seller) error
}

// Reader is the query surface used by the catalog endpoints.
type Reader interface {
	GetContract(ctx context.Context, contractID string) (records.Contract, error)
	// FindContracts returns the matches inside the filter's window, newest
	// contract date first.
	FindContracts(ctx context.Context, filter ContractFilter) ([]records.Contract, error)
	// CountContracts counts every match, ignoring the window.
	CountContracts(ctx context.Context, filter ContractFilter) (int, error)
	GetSeller(ctx context.Context, contractNo string) (records.Seller, error)
	// FindSellers returns the matches inside the filter's window, newest
	// generated date first with undated sellers last.
	FindSellers(ctx context.Context, filter SellerFilter) ([]records.Seller, error)
	// CountSellers counts every match, ignoring the window.
	CountSellers(ctx context.Context, filter SellerFilter) (int, error)
	// ListBrands returns directory brands whose name contains term, by name.
	ListBrands(ctx context.Context, term string) ([]records.Brand, error)
}

// Repository combines the read and write surfaces with administration.
type Repository interface {
	Writer
	Reader
	DeleteContracts(ctx context.Context, contractIDs []string) (int64, error)
	DeleteSellers(ctx context.Context, contractNos []string) (int64, error)
	// SyncBrands adds the brands of counts missing from the directory and
	// refreshes the product count of the rest. It returns how many were added.
	SyncBrands(ctx context.Context, counts map[string]int) (int, error)
	Close() error
}

// ContractFilter narrows FindContracts. Text fields match case-insensitive
// substrings; zero values are ignored.
type ContractFilter struct {
	ContractID       string
	Status           string
	OrganizationType string
	Ministry         string
	Department       string
	OrganizationName string
	OfficeZone       string
	Location         string
	BuyerDesignation string
	BuyingMode       string
	BidNumber        string

	// ContractDate matches contracts dated on that calendar day (UTC).
	ContractDate *time.Time
	// DateFrom and DateTo bound the contract date inclusively by day.
	DateFrom *time.Time
	DateTo   *time.Time

	MinTotal *float64
	MaxTotal *float64

	// ContractIDs restricts results to exact contract ids.
	ContractIDs []string

	Window
}

// Window selects a slice of an ordered result. A zero Limit returns every
// row from Offset on.
type Window struct {
	Offset int
	Limit  int
}

// SellerFilter narrows FindSellers. Text fields match case-insensitive
// substrings; zero values are ignored.
type SellerFilter struct {
	ContractNo   string
	CategoryName string
	SellerID     string
	CompanyName  string
	ContactNo    string
	Email        string
	MSMERegNo    string
	GSTIN        string

	GeneratedDate *time.Time
	// Categories restricts results to sellers whose category equals one of
	// the entries, ignoring case.
	Categories []string

	Window
}
