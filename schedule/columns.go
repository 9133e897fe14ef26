package schedule

import "fmt"

// ColumnKey addresses one grid column with a structured key: identity
// columns use Day 0, day columns carry the day number plus the field kind.
type ColumnKey struct {
	Day  int
	Kind FieldKind
}

// Column describes one grid column for the presentation layer.
type Column struct {
	Key      ColumnKey
	Title    string
	Editable bool
	Numeric  bool
}

// Columns derives the ordered column schema for a day window: the two fixed
// identity columns, then task/time/labor for each day in ascending order.
// Purely derived from the window; recompute whenever it changes. An invalid
// window yields the identity columns only.
func Columns(w DayWindow) []Column {
	cols := make([]Column, 0, 2+3*w.Len())
	cols = append(cols,
		Column{Key: ColumnKey{Kind: FieldRowID}, Title: "Row"},
		Column{Key: ColumnKey{Kind: FieldSubsection}, Title: "Subsection"},
	)
	for _, d := range w.Days() {
		cols = append(cols,
			Column{Key: ColumnKey{Day: d, Kind: FieldTask}, Title: fmt.Sprintf("Day %d", d), Editable: true},
			Column{Key: ColumnKey{Day: d, Kind: FieldTime}, Title: "Time (hours)", Editable: true, Numeric: true},
			Column{Key: ColumnKey{Day: d, Kind: FieldLabor}, Title: "Labor Code", Editable: true},
		)
	}
	return cols
}
