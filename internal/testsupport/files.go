package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook saves rows as the first worksheet of an .xlsx file at path.
// The first row is the header.
func WriteWorkbook(t testing.TB, path string, rows [][]any) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			t.Fatalf("write row %d: %v", i+1, err)
		}
	}
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

// WriteCorrupt writes bytes that no spreadsheet reader accepts.
func WriteCorrupt(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("not a workbook\x00\x01"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
