/*
Package importer ingests schedule grids from CSV or XLSX files.

PURPOSE:
  Field schedules arrive as spreadsheets: a label column followed by
  repeating "Day N" / "Time (hours)" / labor-code column triplets, with
  section headings sitting on otherwise empty rows between the subsection
  rows. This package detects that shape, normalizes it into rows and
  sparse day cells, and replaces a sheet's contents in the store
  atomically.

GRID SHAPE:
  - A column headed "Day N" starts a triplet; the two columns after it
    hold the time value and the labor code for that day.
  - A data row with no content in any day column is a section heading if
    its label matches a known section (with light normalization, e.g.
    "first floor" -> "1st Floor"); anything else before the first section
    heading is skipped.
  - Every other row under a section is one subsection row; its label is
    the subsection, possibly blank.

SEE ALSO:
  - cmd/importer: the command-line wrapper
  - store/sqlite: ReplaceSheet, the atomic ingest operation
*/
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

// Options controls grid interpretation.
type Options struct {
	// Sections are the recognized section headings. Empty means every
	// non-data label row starts a new section.
	Sections []string
}

// Stats summarizes one import.
type Stats struct {
	SheetID int64
	Rows    int
	Cells   int
}

// dayTriplet locates the three columns of one day.
type dayTriplet struct {
	Day      int
	TaskCol  int
	TimeCol  int // -1 when the grid ends early
	LaborCol int // -1 when the grid ends early
}

// =============================================================================
// GRID PARSING
// =============================================================================

// ParseGrid interprets a raw cell grid into importable rows.
func ParseGrid(grid [][]string, opts Options) ([]sqlite.ImportRow, error) {
	if len(grid) < 2 {
		return nil, fmt.Errorf("grid has no data rows")
	}

	triplets := findTriplets(grid[0])
	if len(triplets) == 0 {
		return nil, fmt.Errorf("no 'Day N' columns found in header row")
	}

	var (
		out            []sqlite.ImportRow
		currentSection string
	)
	for _, row := range grid[1:] {
		label := cellAt(row, 0)

		if !rowHasDayContent(row, triplets) {
			if canon, ok := normalizeSection(label, opts.Sections); ok {
				currentSection = canon
			}
			continue
		}
		if currentSection == "" {
			continue
		}

		imp := sqlite.ImportRow{
			Section:    currentSection,
			Subsection: label,
			Cells:      make(map[int]schedule.Cell),
		}
		for _, t := range triplets {
			cell := readCell(row, t)
			if !cell.Empty() {
				imp.Cells[t.Day] = cell
			}
		}
		out = append(out, imp)
	}
	return out, nil
}

func findTriplets(header []string) []dayTriplet {
	var triplets []dayTriplet
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if !strings.HasPrefix(name, "day ") {
			continue
		}
		fields := strings.Fields(name)
		day, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || day < 1 {
			continue
		}
		t := dayTriplet{Day: day, TaskCol: i, TimeCol: -1, LaborCol: -1}
		if i+1 < len(header) {
			t.TimeCol = i + 1
		}
		if i+2 < len(header) {
			t.LaborCol = i + 2
		}
		triplets = append(triplets, t)
	}
	return triplets
}

func rowHasDayContent(row []string, triplets []dayTriplet) bool {
	for _, t := range triplets {
		if cellAt(row, t.TaskCol) != "" || cellAt(row, t.TimeCol) != "" || cellAt(row, t.LaborCol) != "" {
			return true
		}
	}
	return false
}

func readCell(row []string, t dayTriplet) schedule.Cell {
	cell := schedule.Cell{
		Task:      optText(cellAt(row, t.TaskCol)),
		Hours:     parseImportHours(cellAt(row, t.TimeCol)),
		LaborCode: optText(cellAt(row, t.LaborCol)),
	}

	// Task text sometimes leaks into the time column; reclaim it when the
	// day has neither a task nor a parseable time value.
	if cell.Task == nil && cell.Hours == nil {
		if leaked := optText(cellAt(row, t.TimeCol)); leaked != nil && hasLetter(*leaked) {
			cell.Task = leaked
		}
	}
	return cell
}

// normalizeSection matches a label against the known sections,
// case-insensitively, mapping the common "first floor" spelling onto
// "1st Floor".
func normalizeSection(label string, sections []string) (string, bool) {
	lab := strings.TrimSpace(label)
	if lab == "" {
		return "", false
	}
	if strings.EqualFold(lab, "first floor") {
		lab = "1st Floor"
	}
	if len(sections) == 0 {
		return lab, true
	}
	for _, s := range sections {
		if strings.EqualFold(strings.TrimSpace(s), lab) {
			return s, true
		}
	}
	return "", false
}

// parseImportHours is schedule.ParseHours plus thousands-separator
// stripping, which spreadsheets add to larger staffing-expense values.
func parseImportHours(raw string) *decimal.Decimal {
	return schedule.ParseHours(strings.ReplaceAll(raw, ",", ""))
}

// =============================================================================
// FILE READERS
// =============================================================================

// ReadGridFile loads a CSV or XLSX file into a raw cell grid, dispatching
// on the file extension.
func ReadGridFile(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	default:
		return ReadCSV(path)
	}
}

// ReadCSV loads a CSV file; rows may have ragged lengths.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// ReadXLSX loads the first worksheet of an XLSX file.
func ReadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// =============================================================================
// IMPORT
// =============================================================================

// Import parses a grid file and atomically replaces the named sheet's
// contents in the store.
func Import(ctx context.Context, store *sqlite.Store, path, sheetName string, opts Options) (Stats, error) {
	grid, err := ReadGridFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read %s: %w", path, err)
	}

	rows, err := ParseGrid(grid, opts)
	if err != nil {
		return Stats{}, fmt.Errorf("parse %s: %w", path, err)
	}

	sheetID, err := store.ReplaceSheet(ctx, sheetName, rows)
	if err != nil {
		return Stats{}, fmt.Errorf("replace sheet %q: %w", sheetName, err)
	}

	stats := Stats{SheetID: sheetID, Rows: len(rows)}
	for _, r := range rows {
		stats.Cells += len(r.Cells)
	}
	return stats, nil
}

// =============================================================================
// CELL HELPERS
// =============================================================================

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func optText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
