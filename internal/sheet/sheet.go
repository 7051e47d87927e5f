// Package sheet reads the first worksheet of an .xlsx workbook into a table of
// loosely typed cells keyed by normalized column headers.
package sheet

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn reports that a required column is absent from the header row.
var ErrMissingColumn = errors.New("missing required column")

// ErrUnreadable wraps failures to open or decode a workbook.
var ErrUnreadable = errors.New("unreadable spreadsheet")

// Kind classifies a raw cell value.
type Kind int

const (
	Blank Kind = iota
	Number
	Text
)

// Cell is one raw cell value.
type Cell struct {
	raw  string
	kind Kind
	num  float64
}

// NewCell returns a text cell. The value keeps its exact characters, so
// leading zeros and long digit strings survive.
func NewCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cell{}
	}
	return Cell{raw: trimmed, kind: Text}
}

// NewNumberCell returns a cell for a value the workbook stores as a number.
// A raw value that does not parse falls back to text.
func NewNumberCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cell{}
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return Cell{raw: trimmed, kind: Number, num: n}
	}
	return Cell{raw: trimmed, kind: Text}
}

func (c Cell) Kind() Kind     { return c.kind }
func (c Cell) IsBlank() bool  { return c.kind == Blank }
func (c Cell) String() string { return c.Text() }

// Text returns the trimmed value. Integral numbers drop their fractional part,
// so 12345.0 reads as "12345".
func (c Cell) Text() string {
	switch c.kind {
	case Blank:
		return ""
	case Number:
		if c.num == math.Trunc(c.num) && math.Abs(c.num) < 1e15 {
			return strconv.FormatInt(int64(c.num), 10)
		}
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return c.raw
	}
}

// Float returns the numeric value when the cell holds one.
func (c Cell) Float() (float64, bool) {
	if c.kind == Number {
		return c.num, true
	}
	if c.kind == Text {
		cleaned := strings.ReplaceAll(c.raw, ",", "")
		if n, err := strconv.ParseFloat(cleaned, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n, true
		}
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02/01/2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// Time interprets the cell as a date. Numbers are Excel serial dates; text is
// tried against common layouts, day-first where ambiguous.
func (c Cell) Time() (time.Time, bool) {
	switch c.kind {
	case Number:
		t, err := excelize.ExcelDateToTime(c.num, false)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case Text:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, c.raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Table is a parsed worksheet. Header holds the normalized column names.
type Table struct {
	Header []string
	Rows   []Row

	index map[string]int
}

// Row is one data row of a Table.
type Row struct {
	// Line is the 1-based worksheet row number.
	Line  int
	cells []Cell
	index map[string]int
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Require returns ErrMissingColumn naming the first absent column.
func (t *Table) Require(names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}

// Get returns the cell under column name, or a blank cell when the column or
// value is absent.
func (r Row) Get(name string) Cell {
	idx, ok := r.index[name]
	if !ok || idx >= len(r.cells) {
		return Cell{}
	}
	return r.cells[idx]
}

// NewTable builds a table from raw rows, the first of which is the header.
// Data values become text cells. Headers pass through normalize; a repeated
// header keeps its first column. Rows with no non-blank cell are skipped.
func NewTable(raw [][]string, normalize func(string) string) *Table {
	if len(raw) == 0 {
		return newTable(nil, nil, normalize)
	}
	body := make([][]Cell, len(raw)-1)
	for i, values := range raw[1:] {
		body[i] = make([]Cell, len(values))
		for j, value := range values {
			body[i][j] = NewCell(value)
		}
	}
	return newTable(raw[0], body, normalize)
}

func newTable(header []string, body [][]Cell, normalize func(string) string) *Table {
	table := &Table{index: make(map[string]int)}
	for i, h := range header {
		name := h
		if normalize != nil {
			name = normalize(h)
		}
		table.Header = append(table.Header, name)
		if name == "" {
			continue
		}
		if _, dup := table.index[name]; !dup {
			table.index[name] = i
		}
	}
	for i, cells := range body {
		empty := true
		for _, cell := range cells {
			if !cell.IsBlank() {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, Row{Line: i + 2, cells: cells, index: table.index})
	}
	return table
}

// Read opens the workbook at path and returns its first worksheet. Any failure
// to decode the file, including a panic inside the decoder, is reported as
// ErrUnreadable.
func Read(path string, normalize func(string) string) (table *Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			table = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	opts := excelize.Options{RawCellValue: true}
	book, err := excelize.OpenFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no worksheets", ErrUnreadable)
	}
	rows, err := book.GetRows(sheets[0], opts)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnreadable, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: worksheet %s is empty", ErrUnreadable, sheets[0])
	}
	body := make([][]Cell, len(rows)-1)
	for i, values := range rows[1:] {
		body[i] = make([]Cell, len(values))
		for j, value := range values {
			if strings.TrimSpace(value) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
			}
			kind, err := book.GetCellType(sheets[0], axis)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %s: %v", ErrUnreadable, axis, err)
			}
			body[i][j] = typedCell(kind, value)
		}
	}
	return newTable(rows[0], body, normalize), nil
}

// typedCell classifies value by the type the workbook stored it with. Cells
// without an explicit type are numeric in the xlsx format.
func typedCell(kind excelize.CellType, value string) Cell {
	switch kind {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return NewNumberCell(value)
	default:
		return NewCell(value)
	}
}
