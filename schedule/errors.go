/*
errors.go - Centralized error types for the schedule engine

ERROR CATEGORIES:
  1. Fetch failures - a block request failed; the prior row set is kept
  2. Save failures - the bulk upsert failed; the buffer is kept for retry
  3. Edit rejections - an edit targeted a cell the grid cannot address

An invalid day window is NOT an error anywhere in this package: validity
is a derived gate and the fetch is simply withheld. ErrWindowNotReady
exists only to reject direct Loader calls that bypass the gate.
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoPendingChanges is returned by a save over an empty buffer.
	// No network call was made; there was nothing to save.
	ErrNoPendingChanges = errors.New("no pending changes to save")

	// ErrWindowNotReady is returned when a load is attempted with a day
	// window that never passed validation.
	ErrWindowNotReady = errors.New("day window is not ready")

	// ErrFieldNotEditable is returned for edits targeting identity columns
	// or an unknown field kind.
	ErrFieldNotEditable = errors.New("field is not editable")

	// ErrRowNotLoaded is returned for edits addressing a row that is not
	// part of the current row collection.
	ErrRowNotLoaded = errors.New("row is not in the loaded block")

	// ErrDayOutOfWindow is returned for edits addressing a day outside
	// the active window.
	ErrDayOutOfWindow = errors.New("day is outside the active window")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FetchError reports a failed block fetch with the selection context that
// produced it. The underlying store or transport error is kept verbatim.
type FetchError struct {
	Section    string
	Subsection string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch block failed for section %q subsection %q: %v",
		e.Section, e.Subsection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SaveError reports a failed bulk upsert. Records is the size of the
// rejected batch; the buffer still holds every one of them.
type SaveError struct {
	Records int
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("bulk save of %d change(s) failed: %v", e.Records, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// EditError reports a rejected cell edit.
type EditError struct {
	Key  CellKey
	Kind FieldKind
	Err  error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit rejected for row %d day %d kind %q: %v",
		e.Key.RowID, e.Key.Day, e.Kind, e.Err)
}

func (e *EditError) Unwrap() error { return e.Err }
