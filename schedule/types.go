/*
Package schedule provides the core edit-tracking and reconciliation engine.

PURPOSE:
  This package contains the domain types and algorithms for browsing a
  hierarchical schedule (sheet -> section -> subsection -> day cells) and
  editing sparse per-cell values before persisting them in bulk. The grid
  widget, the HTTP transport, and the backing store are collaborators
  behind small interfaces; everything with real invariants lives here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Row/Cell: one addressable schedule row with per-day editable fields
  - FieldKind: which of the three cell fields an edit targets
  - CellKey: structured (row, day) address - no string key parsing
  - PendingChange: one buffered edit, partially fillable across kinds
  - Catalog/BlockSource/CellWriter: the store contract this engine consumes

DESIGN PRINCIPLES:
  1. Precision: hours use decimal.Decimal, never float arithmetic
  2. Null over zero: an empty hours entry is an explicit null
  3. Type safety: cell addresses are structured keys, not "day_3_task" strings
  4. Single writer: all engine state mutates on one goroutine (see session.go)

SEE ALSO:
  - window.go: day window validation and clamping
  - changes.go: the pending-change buffer
  - merge.go: per-subsection fetch and row-set folding
  - reconcile.go: bulk save and resynchronization
  - session.go: the event-driven state struct tying it together
*/
package schedule

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD KINDS
// =============================================================================

// FieldKind identifies one of a cell's independently editable fields,
// plus the two fixed identity columns of the grid.
type FieldKind string

const (
	FieldTask  FieldKind = "task"
	FieldTime  FieldKind = "time"
	FieldLabor FieldKind = "labor"

	// Identity columns. Present in the column schema, never editable.
	FieldRowID      FieldKind = "row_id"
	FieldSubsection FieldKind = "subsection"
)

// Editable reports whether edits of this kind may enter the change buffer.
func (k FieldKind) Editable() bool {
	return k == FieldTask || k == FieldTime || k == FieldLabor
}

// SubsectionNone is the placeholder label for rows whose subsection is blank
// and for sections that carry no subsections at all.
const SubsectionNone = "(none)"

// =============================================================================
// ROWS AND CELLS
// =============================================================================

// Cell holds the three per-day fields of one row. Nil means the field is
// unset in the store; hours are decimal to avoid floating-point drift.
type Cell struct {
	Task      *string
	Hours     *decimal.Decimal
	LaborCode *string
}

// Empty reports whether all three fields are unset.
func (c Cell) Empty() bool {
	return c.Task == nil && c.Hours == nil && c.LaborCode == nil
}

// Row is one addressable unit of the schedule. ID is unique within a merged
// row collection; Cells is sparse, keyed by day number.
type Row struct {
	ID         int64
	Section    string
	Subsection string
	Cells      map[int]Cell
}

// Cell returns the cell for a day, or a zero Cell if none is stored.
func (r Row) Cell(day int) Cell {
	return r.Cells[day]
}

// CellKey addresses one editable cell: a row identity plus a day number.
type CellKey struct {
	RowID int64
	Day   int
}

// =============================================================================
// PENDING CHANGES
// =============================================================================

// PendingChange is one buffered edit for a (row, day) cell. Fields left nil
// are transmitted as null; the store replaces the whole cell on upsert, so
// a pending change is the full intended state of that cell.
type PendingChange struct {
	RowID     int64            `json:"row_id"`
	Day       int              `json:"day"`
	Task      *string          `json:"task"`
	Hours     *decimal.Decimal `json:"hours"`
	LaborCode *string          `json:"labor_code"`
}

// Key returns the buffer key for this change.
func (p PendingChange) Key() CellKey {
	return CellKey{RowID: p.RowID, Day: p.Day}
}

// ParseHours coerces raw grid input into an hours value. Empty or
// unparseable input maps to nil, never to zero: an operator clearing a
// time cell means "no hours recorded", not "zero hours worked".
func ParseHours(value string) *decimal.Decimal {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func textValue(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := value
	return &v
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// SheetRef identifies one sheet in the selector hierarchy.
type SheetRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BlockQuery selects the rows of one subsection over a day window.
type BlockQuery struct {
	SheetID    int64
	Section    string
	Subsection string
	Window     DayWindow
}

// Catalog lists the selector hierarchy. Each level's values depend on the
// level above.
type Catalog interface {
	ListSheets(ctx context.Context) ([]SheetRef, error)
	ListSections(ctx context.Context, sheetID int64) ([]string, error)
	ListSubsections(ctx context.Context, sheetID int64, section string) ([]string, error)
}

// BlockSource retrieves the row list for one subsection. An unknown
// selection yields an empty slice, not an error.
type BlockSource interface {
	FetchBlock(ctx context.Context, q BlockQuery) ([]Row, error)
}

// CellWriter applies pending changes as one atomic bulk upsert: the store
// either applies every record or none. Returns the number applied.
type CellWriter interface {
	BulkUpsert(ctx context.Context, records []PendingChange) (int, error)
}

// Store is the full surface the engine and its tooling consume.
type Store interface {
	Catalog
	BlockSource
	CellWriter
}
