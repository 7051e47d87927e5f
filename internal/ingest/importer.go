package ingest

import (
	"context"
	"errors"
	"log/slog"

	"gemdesk/internal/logging"
	"gemdesk/internal/records"
	"gemdesk/internal/sheet"
	"gemdesk/internal/store"
	"gemdesk/internal/textutil"
)

// Result tallies one imported file. Inserted counts persisted records and
// Failed counts records the repository rejected.
type Result struct {
	Inserted int
	Failed   int
}

// Importer turns one spreadsheet into repository writes. Record-level
// failures are tallied in the Result; a returned error fails the whole file.
type Importer interface {
	Import(ctx context.Context, path string, logger *slog.Logger) (Result, error)
	// IdleMessage is recorded under the _system key when nothing is pending.
	IdleMessage() string
}

// ContractImporter groups rows by contract id and adds each contract with its
// deduplicated items.
type ContractImporter struct {
	Store store.Writer
}

// IdleMessage implements Importer.
func (ContractImporter) IdleMessage() string { return "No pending contract files" }

// Import implements Importer.
func (c ContractImporter) Import(ctx context.Context, path string, logger *slog.Logger) (Result, error) {
	var res Result
	table, err := sheet.Read(path, textutil.NormalizeHeader)
	if err != nil {
		return res, err
	}
	contracts, err := records.BuildContracts(table)
	if err != nil {
		return res, err
	}
	for _, contract := range contracts {
		contract.Items = records.UniqueItems(contract.Items)
		if err := c.Store.AddContract(ctx, contract); err != nil {
			res.Failed++
			logRecordFailure(logger, "contract_id", contract.ContractID, err)
			continue
		}
		res.Inserted++
	}
	return res, nil
}

// SellerImporter upserts one seller per row.
type SellerImporter struct {
	Store store.Writer
}

// IdleMessage implements Importer.
func (SellerImporter) IdleMessage() string { return "No pending seller files" }

// Import implements Importer.
func (s SellerImporter) Import(ctx context.Context, path string, logger *slog.Logger) (Result, error) {
	var res Result
	table, err := sheet.Read(path, textutil.CleanHeader)
	if err != nil {
		return res, err
	}
	for _, seller := range records.BuildSellers(table) {
		if err := s.Store.UpsertSeller(ctx, seller); err != nil {
			res.Failed++
			logRecordFailure(logger, "contract_no", seller.ContractNo, err)
			continue
		}
		res.Inserted++
	}
	return res, nil
}

func logRecordFailure(logger *slog.Logger, keyName, key string, err error) {
	hint := "check the repository connection and constraints"
	if errors.Is(err, store.ErrMissingKey) {
		hint = "fill in the " + keyName + " column for every row"
	}
	logging.WarnWithContext(logger, "record not persisted", "record_failed",
		logging.String(keyName, key),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "record counted as failed, the rest of the file continues"),
		logging.Error(err),
	)
}
