/*
changes.go - The pending-change buffer

PURPOSE:
  Accumulates individual cell edits into canonical per-(row, day) change
  records. This is a pure accumulation step with no network effect: the
  grid reports every keystroke-level edit, the buffer keeps at most one
  record per cell with only the edited fields touched.

INVARIANTS:
  - At most one PendingChange per (row, day) key
  - A record exists only after at least one edit targeted its cell
  - Re-recording an identical edit leaves the buffer unchanged
  - Editing one field never erases a previously captured field on the
    same record

SEE ALSO:
  - reconcile.go: drains the buffer into one bulk upsert
  - session.go: clears the buffer on navigation and successful loads
*/
package schedule

import "sort"

// ChangeSet is the pending-change buffer, keyed by (row, day). Not safe
// for concurrent use; the session confines it to one goroutine.
type ChangeSet struct {
	pending map[CellKey]*PendingChange
}

// NewChangeSet returns an empty buffer.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{pending: make(map[CellKey]*PendingChange)}
}

// Record captures one cell edit. Only the field matching kind is set;
// the other two keep their previously recorded value, or stay unset.
// Time values are coerced through ParseHours (empty -> explicit null);
// task and labor are free text with empty mapping to null. Recording the
// same edit twice is a no-op.
func (c *ChangeSet) Record(rowID int64, day int, kind FieldKind, value string) error {
	if !kind.Editable() {
		return &EditError{Key: CellKey{RowID: rowID, Day: day}, Kind: kind, Err: ErrFieldNotEditable}
	}

	key := CellKey{RowID: rowID, Day: day}
	rec, ok := c.pending[key]
	if !ok {
		rec = &PendingChange{RowID: rowID, Day: day}
		c.pending[key] = rec
	}

	switch kind {
	case FieldTask:
		rec.Task = textValue(value)
	case FieldTime:
		rec.Hours = ParseHours(value)
	case FieldLabor:
		rec.LaborCode = textValue(value)
	}
	return nil
}

// Len returns the number of buffered change records.
func (c *ChangeSet) Len() int {
	return len(c.pending)
}

// Empty reports whether nothing is buffered.
func (c *ChangeSet) Empty() bool {
	return len(c.pending) == 0
}

// Get returns the buffered record for a cell, if any. The presentation
// layer uses this to mark dirty cells.
func (c *ChangeSet) Get(key CellKey) (PendingChange, bool) {
	rec, ok := c.pending[key]
	if !ok {
		return PendingChange{}, false
	}
	return *rec, true
}

// Records serializes the buffer into a flat list ordered by (row, day).
// Insertion order is irrelevant to the store; sorting keeps the payload
// deterministic for audit and tests.
func (c *ChangeSet) Records() []PendingChange {
	records := make([]PendingChange, 0, len(c.pending))
	for _, rec := range c.pending {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].RowID != records[j].RowID {
			return records[i].RowID < records[j].RowID
		}
		return records[i].Day < records[j].Day
	})
	return records
}

// Clear discards every buffered record.
func (c *ChangeSet) Clear() {
	c.pending = make(map[CellKey]*PendingChange)
}
