/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract. Cells travel as
  structured per-day objects keyed by day number; the wire format has no
  "day_3_task" style flat keys to parse.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request / *Response: Request bodies and complex response wrappers

NULLS:
  Unset cell fields are transmitted as JSON null, never omitted and never
  zero. Hours cross the wire as JSON numbers and are held as decimals
  internally.

SEE ALSO:
  - handlers.go: Uses these types
  - schedule/types.go: The domain model behind them
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/schedule-engine/schedule"
)

// SheetDTO identifies one sheet in the selector hierarchy.
type SheetDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CellDTO carries one day cell. Nil fields serialize as null.
type CellDTO struct {
	Task      *string  `json:"task"`
	Hours     *float64 `json:"hours"`
	LaborCode *string  `json:"labor_code"`
}

// RowDTO is one schedule row with its sparse day cells.
type RowDTO struct {
	RowID      int64           `json:"row_id"`
	Section    string          `json:"section"`
	Subsection string          `json:"subsection"`
	Cells      map[int]CellDTO `json:"cells"`
}

// BlockResponse is the payload of GET /block.
type BlockResponse struct {
	Rows     []RowDTO `json:"rows"`
	StartDay int      `json:"start_day"`
	EndDay   int      `json:"end_day"`
}

// CellRecordDTO is one pending change in a bulk upsert request.
type CellRecordDTO struct {
	RowID     int64    `json:"row_id"`
	Day       int      `json:"day"`
	Task      *string  `json:"task"`
	Hours     *float64 `json:"hours"`
	LaborCode *string  `json:"labor_code"`
}

// BulkUpsertRequest is the body of POST /cells/bulk_upsert.
type BulkUpsertRequest struct {
	Records []CellRecordDTO `json:"records"`
}

// BulkUpsertResponse acknowledges an applied bulk upsert.
type BulkUpsertResponse struct {
	Updated int `json:"updated"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCellDTO(c schedule.Cell) CellDTO {
	dto := CellDTO{Task: c.Task, LaborCode: c.LaborCode}
	if c.Hours != nil {
		h, _ := c.Hours.Float64()
		dto.Hours = &h
	}
	return dto
}

func toRowDTO(r schedule.Row) RowDTO {
	dto := RowDTO{
		RowID:      r.ID,
		Section:    r.Section,
		Subsection: r.Subsection,
		Cells:      make(map[int]CellDTO, len(r.Cells)),
	}
	for day, cell := range r.Cells {
		dto.Cells[day] = toCellDTO(cell)
	}
	return dto
}

func toPendingChange(rec CellRecordDTO) schedule.PendingChange {
	change := schedule.PendingChange{
		RowID:     rec.RowID,
		Day:       rec.Day,
		Task:      rec.Task,
		LaborCode: rec.LaborCode,
	}
	if rec.Hours != nil {
		d := decimal.NewFromFloat(*rec.Hours)
		change.Hours = &d
	}
	return change
}
