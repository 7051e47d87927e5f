package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gemdesk/internal/records"
	"gemdesk/internal/store"
	"gemdesk/internal/textutil"
)

const sellerColumns = `id, contract_no, generated_date, category_name, seller_id, company_name,
    contact_no, email, address, msme_reg_no, gstin`

// UpsertSeller inserts seller or overwrites every field of the seller with the
// same contract number.
func (s *Store) UpsertSeller(ctx context.Context, seller records.Seller) error {
	contractNo := strings.TrimSpace(seller.ContractNo)
	if contractNo == "" {
		return store.ErrMissingKey
	}
	now := s.timestamp()
	_, err := s.exec(ctx, `INSERT INTO sellers (
    contract_no, generated_date, category_name, seller_id, company_name,
    contact_no, email, address, msme_reg_no, gstin, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (contract_no) DO UPDATE SET
    generated_date = excluded.generated_date,
    category_name = excluded.category_name,
    seller_id = excluded.seller_id,
    company_name = excluded.company_name,
    contact_no = excluded.contact_no,
    email = excluded.email,
    address = excluded.address,
    msme_reg_no = excluded.msme_reg_no,
    gstin = excluded.gstin,
    updated_at = excluded.updated_at`,
		contractNo,
		nullTime(seller.GeneratedDate),
		nullString(seller.CategoryName),
		nullString(seller.SellerID),
		nullString(seller.CompanyName),
		nullString(seller.ContactNo),
		nullString(seller.Email),
		nullString(seller.Address),
		nullString(seller.MSMERegNo),
		nullString(seller.GSTIN),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert seller %s: %w", contractNo, err)
	}
	return nil
}

// GetSeller returns the seller with the exact contract number.
func (s *Store) GetSeller(ctx context.Context, contractNo string) (records.Seller, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind("SELECT "+sellerColumns+" FROM sellers WHERE contract_no = ?"),
		strings.TrimSpace(contractNo))
	seller, err := scanSeller(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Seller{}, store.ErrNotFound
	}
	return seller, err
}

// FindSellers returns sellers matching filter, newest generated date first.
// Undated sellers come last and ties go to the most recently inserted.
func (s *Store) FindSellers(ctx context.Context, filter store.SellerFilter) ([]records.Seller, error) {
	w := sellerWhere(filter)
	suffix, args := limit(filter.Window)
	query := "SELECT " + sellerColumns + " FROM sellers" + w.String() +
		" ORDER BY generated_date IS NULL, generated_date DESC, id DESC" + suffix
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), append(w.args, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query sellers: %w", err)
	}
	defer rows.Close()

	var sellers []records.Seller
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		sellers = append(sellers, seller)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sellers: %w", err)
	}
	return sellers, nil
}

// CountSellers counts sellers matching filter.
func (s *Store) CountSellers(ctx context.Context, filter store.SellerFilter) (int, error) {
	return s.count(ctx, "sellers", sellerWhere(filter))
}

func sellerWhere(filter store.SellerFilter) where {
	var w where
	w.contains("contract_no", filter.ContractNo)
	w.contains("category_name", filter.CategoryName)
	w.contains("seller_id", filter.SellerID)
	w.contains("company_name", filter.CompanyName)
	w.contains("contact_no", filter.ContactNo)
	w.contains("email", filter.Email)
	w.contains("msme_reg_no", filter.MSMERegNo)
	w.contains("gstin", filter.GSTIN)
	if filter.GeneratedDate != nil {
		w.onDay("generated_date", *filter.GeneratedDate)
	}
	if len(filter.Categories) > 0 {
		categories := make([]string, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			if key := textutil.NormalizeKey(c); key != "" {
				categories = append(categories, key)
			}
		}
		if len(categories) > 0 {
			w.in("lower(category_name)", categories)
		}
	}
	return w
}

// DeleteSellers removes sellers by contract number and reports how many were
// deleted.
func (s *Store) DeleteSellers(ctx context.Context, contractNos []string) (int64, error) {
	if len(contractNos) == 0 {
		return 0, nil
	}
	res, err := s.exec(ctx, "DELETE FROM sellers WHERE contract_no IN ("+placeholders(len(contractNos))+")", stringArgs(contractNos)...)
	if err != nil {
		return 0, fmt.Errorf("delete sellers: %w", err)
	}
	return res.RowsAffected()
}

func scanSeller(row rowScanner) (records.Seller, error) {
	var (
		seller    records.Seller
		generated sql.NullString
		category  sql.NullString
		sellerID  sql.NullString
		company   sql.NullString
		contact   sql.NullString
		email     sql.NullString
		address   sql.NullString
		msme      sql.NullString
		gstin     sql.NullString
	)
	if err := row.Scan(&seller.ID, &seller.ContractNo, &generated, &category, &sellerID,
		&company, &contact, &email, &address, &msme, &gstin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return seller, err
		}
		return seller, fmt.Errorf("scan seller: %w", err)
	}
	seller.CategoryName = category.String
	seller.SellerID = sellerID.String
	seller.CompanyName = company.String
	seller.ContactNo = contact.String
	seller.Email = email.String
	seller.Address = address.String
	seller.MSMERegNo = msme.String
	seller.GSTIN = gstin.String

	var err error
	if seller.GeneratedDate, err = parseTime(generated); err != nil {
		return seller, err
	}
	return seller, nil
}
