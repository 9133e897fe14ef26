// Package store provides schedule.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/schedule-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps sheets, rows, and cells in maps. It mirrors the sqlite
// store's observable behavior, including atomic bulk upserts and the
// blank-subsection placeholder, so engine tests run without a database.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	sheets []schedule.SheetRef
	rows   map[int64]memoryRow              // row id -> row
	cells  map[schedule.CellKey]schedule.Cell
}

type memoryRow struct {
	ID         int64
	SheetID    int64
	Section    string
	Subsection string
	Order      int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rows:  make(map[int64]memoryRow),
		cells: make(map[schedule.CellKey]schedule.Cell),
	}
}

// AddSheet registers a sheet and returns its id.
func (m *Memory) AddSheet(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sheets = append(m.sheets, schedule.SheetRef{ID: m.nextID, Name: name})
	return m.nextID
}

// AddRow registers a row under a sheet and returns its id.
func (m *Memory) AddRow(sheetID int64, section, subsection string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[m.nextID] = memoryRow{
		ID:         m.nextID,
		SheetID:    sheetID,
		Section:    section,
		Subsection: subsection,
		Order:      len(m.rows),
	}
	return m.nextID
}

// SetCell stores a cell directly, bypassing the bulk-upsert path.
func (m *Memory) SetCell(rowID int64, day int, cell schedule.Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[schedule.CellKey{RowID: rowID, Day: day}] = cell
}

// ListSheets returns the registered sheets.
func (m *Memory) ListSheets(_ context.Context) ([]schedule.SheetRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.SheetRef, len(m.sheets))
	copy(out, m.sheets)
	return out, nil
}

// ListSections returns the distinct sections of a sheet, sorted.
func (m *Memory) ListSections(_ context.Context, sheetID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.rows {
		if r.SheetID == sheetID && !seen[r.Section] {
			seen[r.Section] = true
			out = append(out, r.Section)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListSubsections returns the distinct subsections of a sheet+section,
// with blank subsections folded into the "(none)" placeholder.
func (m *Memory) ListSubsections(_ context.Context, sheetID int64, section string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.rows {
		if r.SheetID != sheetID || !sectionEqual(r.Section, section) {
			continue
		}
		ss := subsectionLabel(r.Subsection)
		if !seen[ss] {
			seen[ss] = true
			out = append(out, ss)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FetchBlock returns the rows of one subsection over the query window,
// with their stored cells. An unknown selection yields an empty slice.
func (m *Memory) FetchBlock(_ context.Context, q schedule.BlockQuery) ([]schedule.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var selected []memoryRow
	for _, r := range m.rows {
		if r.SheetID != q.SheetID || !sectionEqual(r.Section, q.Section) {
			continue
		}
		if q.Subsection != "" && q.Subsection != schedule.SubsectionNone &&
			subsectionLabel(r.Subsection) != q.Subsection {
			continue
		}
		selected = append(selected, r)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Order < selected[j].Order })

	out := make([]schedule.Row, 0, len(selected))
	for _, r := range selected {
		row := schedule.Row{
			ID:         r.ID,
			Section:    r.Section,
			Subsection: subsectionLabel(r.Subsection),
			Cells:      make(map[int]schedule.Cell),
		}
		for d := q.Window.Start; d <= q.Window.End; d++ {
			if cell, ok := m.cells[schedule.CellKey{RowID: r.ID, Day: d}]; ok {
				row.Cells[d] = cell
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// BulkUpsert applies all records or none: every row id is checked before
// the first cell is written.
func (m *Memory) BulkUpsert(_ context.Context, records []schedule.PendingChange) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if _, ok := m.rows[rec.RowID]; !ok {
			return 0, fmt.Errorf("bulk upsert: unknown row %d", rec.RowID)
		}
	}
	for _, rec := range records {
		m.cells[rec.Key()] = schedule.Cell{
			Task:      rec.Task,
			Hours:     rec.Hours,
			LaborCode: rec.LaborCode,
		}
	}
	return len(records), nil
}

func sectionEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func subsectionLabel(s string) string {
	if strings.TrimSpace(s) == "" {
		return schedule.SubsectionNone
	}
	return strings.TrimSpace(s)
}
