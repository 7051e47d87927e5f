package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gemdesk/internal/logging"
	"gemdesk/internal/records"
	"gemdesk/internal/store"
)

const contractColumns = `id, contract_id, status, organization_type, ministry, department,
    organization_name, office_zone, location, buyer_designation, buying_mode,
    bid_number, contract_date, total, items`

// AddContract inserts contract, or merges its unique items into the stored
// contract with the same id. Header fields of an existing contract are kept.
func (s *Store) AddContract(ctx context.Context, contract records.Contract) error {
	contractID := strings.TrimSpace(contract.ContractID)
	if contractID == "" {
		return store.ErrMissingKey
	}
	incoming := records.UniqueItems(contract.Items)

	merged := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx, s.dialect.rebind("SELECT items FROM contracts WHERE contract_id = ?"), contractID).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return s.insertContract(ctx, tx, contractID, contract, incoming)
		case err != nil:
			return fmt.Errorf("load contract %s: %w", contractID, err)
		}

		existing, err := decodeItems(raw)
		if err != nil {
			return fmt.Errorf("decode items of %s: %w", contractID, err)
		}
		items, err := encodeItems(records.UniqueItems(append(existing, incoming...)))
		if err != nil {
			return err
		}
		merged = true
		_, err = tx.ExecContext(ctx,
			s.dialect.rebind("UPDATE contracts SET items = ?, updated_at = ? WHERE contract_id = ?"),
			items, s.timestamp(), contractID)
		if err != nil {
			return fmt.Errorf("update contract %s: %w", contractID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("contract stored",
		logging.String("contract_id", contractID),
		logging.Bool("merged", merged),
		logging.Int("items", len(incoming)),
	)
	return nil
}

func (s *Store) insertContract(ctx context.Context, tx *sql.Tx, contractID string, c records.Contract, items []records.Item) error {
	encoded, err := encodeItems(items)
	if err != nil {
		return err
	}
	now := s.timestamp()
	_, err = tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO contracts (
    contract_id, status, organization_type, ministry, department,
    organization_name, office_zone, location, buyer_designation, buying_mode,
    bid_number, contract_date, total, items, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		contractID,
		nullString(c.Status),
		nullString(c.OrganizationType),
		nullString(c.Ministry),
		nullString(c.Department),
		nullString(c.OrganizationName),
		nullString(c.OfficeZone),
		nullString(c.Location),
		nullString(c.BuyerDesignation),
		nullString(c.BuyingMode),
		nullString(c.BidNumber),
		nullTime(c.ContractDate),
		nullFloat(c.Total),
		encoded,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert contract %s: %w", contractID, err)
	}
	return nil
}

// GetContract returns the contract with the exact id.
func (s *Store) GetContract(ctx context.Context, contractID string) (records.Contract, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind("SELECT "+contractColumns+" FROM contracts WHERE contract_id = ?"),
		strings.TrimSpace(contractID))
	contract, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Contract{}, store.ErrNotFound
	}
	return contract, err
}

// FindContracts returns contracts matching filter, newest contract date first.
func (s *Store) FindContracts(ctx context.Context, filter store.ContractFilter) ([]records.Contract, error) {
	w := contractWhere(filter)
	suffix, args := limit(filter.Window)
	query := "SELECT " + contractColumns + " FROM contracts" + w.String() +
		" ORDER BY contract_date IS NULL, contract_date DESC, id DESC" + suffix
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), append(w.args, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []records.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}

// CountContracts counts contracts matching filter.
func (s *Store) CountContracts(ctx context.Context, filter store.ContractFilter) (int, error) {
	return s.count(ctx, "contracts", contractWhere(filter))
}

func contractWhere(filter store.ContractFilter) where {
	var w where
	w.contains("contract_id", filter.ContractID)
	w.contains("status", filter.Status)
	w.contains("organization_type", filter.OrganizationType)
	w.contains("ministry", filter.Ministry)
	w.contains("department", filter.Department)
	w.contains("organization_name", filter.OrganizationName)
	w.contains("office_zone", filter.OfficeZone)
	w.contains("location", filter.Location)
	w.contains("buyer_designation", filter.BuyerDesignation)
	w.contains("buying_mode", filter.BuyingMode)
	w.contains("bid_number", filter.BidNumber)
	if filter.ContractDate != nil {
		w.onDay("contract_date", *filter.ContractDate)
	}
	if filter.DateFrom != nil {
		w.add("contract_date >= ?", formatTime(dayStart(*filter.DateFrom)))
	}
	if filter.DateTo != nil {
		w.add("contract_date < ?", formatTime(dayStart(*filter.DateTo).AddDate(0, 0, 1)))
	}
	if filter.MinTotal != nil {
		w.add("total >= ?", *filter.MinTotal)
	}
	if filter.MaxTotal != nil {
		w.add("total <= ?", *filter.MaxTotal)
	}
	w.in("contract_id", filter.ContractIDs)
	return w
}

// DeleteContracts removes contracts by id and reports how many were deleted.
func (s *Store) DeleteContracts(ctx context.Context, contractIDs []string) (int64, error) {
	if len(contractIDs) == 0 {
		return 0, nil
	}
	res, err := s.exec(ctx, "DELETE FROM contracts WHERE contract_id IN ("+placeholders(len(contractIDs))+")", stringArgs(contractIDs)...)
	if err != nil {
		return 0, fmt.Errorf("delete contracts: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (records.Contract, error) {
	var (
		c            records.Contract
		status       sql.NullString
		orgType      sql.NullString
		ministry     sql.NullString
		department   sql.NullString
		orgName      sql.NullString
		officeZone   sql.NullString
		location     sql.NullString
		designation  sql.NullString
		buyingMode   sql.NullString
		bidNumber    sql.NullString
		contractDate sql.NullString
		total        sql.NullFloat64
		items        []byte
	)
	if err := row.Scan(&c.ID, &c.ContractID, &status, &orgType, &ministry, &department,
		&orgName, &officeZone, &location, &designation, &buyingMode,
		&bidNumber, &contractDate, &total, &items); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan contract: %w", err)
	}
	c.Status = status.String
	c.OrganizationType = orgType.String
	c.Ministry = ministry.String
	c.Department = department.String
	c.OrganizationName = orgName.String
	c.OfficeZone = officeZone.String
	c.Location = location.String
	c.BuyerDesignation = designation.String
	c.BuyingMode = buyingMode.String
	c.BidNumber = bidNumber.String
	c.Total = floatPtr(total)

	var err error
	if c.ContractDate, err = parseTime(contractDate); err != nil {
		return c, err
	}
	if c.Items, err = decodeItems(items); err != nil {
		return c, fmt.Errorf("decode items of %s: %w", c.ContractID, err)
	}
	return c, nil
}

func encodeItems(items []records.Item) (string, error) {
	if items == nil {
		items = []records.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(data), nil
}

func decodeItems(raw []byte) ([]records.Item, error) {
	items := []records.Item{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
