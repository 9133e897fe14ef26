/*
session.go - Explicit interface state with per-event transitions

PURPOSE:
  One state struct holds everything the grid interface mutates: the
  selection (sheet, section, subsections), the raw day-window inputs, the
  merged row collection, and the pending-change buffer. Every interface
  event is a method; there are no ambient globals.

CONCURRENCY MODEL:
  Single-threaded, cooperative. All mutation happens on the one goroutine
  driving the interface; the only genuine parallelism is the per-subsection
  fetch fan-out inside Loader.LoadBlock, which never touches session state.
  No locks are needed because mutation is confined to that goroutine.

LATEST SELECTION WINS:
  Every load is tagged with a monotonic generation number. Navigation and
  window changes bump the generation, and a load whose generation is stale
  by the time its rows arrive is discarded. A response from an abandoned
  selection can therefore never overwrite a newer selection's rows.

EVENT MAP:
  SheetChanged / SectionChanged / SubsectionsChanged  selection navigation
  StartDayChanged / EndDayChanged                     window entry
  LoadBlock / ReloadRequested                         fetch + merge
  CellEdited                                          buffer accumulation
  SaveRequested                                       reconcile + resync
*/
package schedule

import "context"

// Session drives the edit-tracking engine for one grid interface.
// Not safe for concurrent use.
type Session struct {
	catalog Catalog
	loader  Loader
	rec     Reconciler

	sheetID     int64
	section     string
	subsections []string

	// Raw window entry; validity is derived, re-evaluated on every change.
	startInput float64
	endInput   float64

	rows    *RowSet
	changes *ChangeSet
	gen     uint64
}

// NewSession creates a session over the given store surface.
func NewSession(store Store) *Session {
	return NewSessionParts(store, store, store)
}

// NewSessionParts creates a session with independently supplied
// collaborators, e.g. a remote block source with a buffered writer.
func NewSessionParts(catalog Catalog, source BlockSource, writer CellWriter) *Session {
	return &Session{
		catalog: catalog,
		loader:  Loader{Source: source},
		rec:     Reconciler{Writer: writer},
		changes: NewChangeSet(),
	}
}

// SetCommitEditor installs the presentation layer's "stop editing" hook,
// guaranteed to run before a save reads the buffer.
func (s *Session) SetCommitEditor(fn func()) { s.rec.CommitEditor = fn }

// =============================================================================
// ACCESSORS
// =============================================================================

// Rows returns the current merged row collection, or nil before the first
// successful load of the active selection.
func (s *Session) Rows() *RowSet { return s.rows }

// Changes returns the pending-change buffer.
func (s *Session) Changes() *ChangeSet { return s.changes }

// Window returns the validated day window derived from the raw inputs,
// and whether it is ready. Fetches are withheld while not ready.
func (s *Session) Window() (DayWindow, bool) {
	return Normalize(s.startInput, s.endInput)
}

// Columns returns the column schema for the current window, identity
// columns only while the window is not ready.
func (s *Session) Columns() []Column {
	w, ok := s.Window()
	if !ok {
		return Columns(DayWindow{})
	}
	return Columns(w)
}

// Selection returns the active sheet, section, and subsections.
func (s *Session) Selection() (int64, string, []string) {
	subs := make([]string, len(s.subsections))
	copy(subs, s.subsections)
	return s.sheetID, s.section, subs
}

// Sheets lists the available sheets.
func (s *Session) Sheets(ctx context.Context) ([]SheetRef, error) {
	return s.catalog.ListSheets(ctx)
}

// Sections lists the sections of the active sheet.
func (s *Session) Sections(ctx context.Context) ([]string, error) {
	return s.catalog.ListSections(ctx, s.sheetID)
}

// Subsections lists the subsections of the active sheet and section.
func (s *Session) Subsections(ctx context.Context) ([]string, error) {
	return s.catalog.ListSubsections(ctx, s.sheetID, s.section)
}

// =============================================================================
// NAVIGATION EVENTS
// =============================================================================
// Changing any selector invalidates the row collection and the buffer:
// pending edits refer to rows of the previous selection and must not leak
// into the next one.

// SheetChanged selects a sheet and resets the levels below it.
func (s *Session) SheetChanged(sheetID int64) {
	s.sheetID = sheetID
	s.section = ""
	s.subsections = nil
	s.invalidate()
}

// SectionChanged selects a section and resets the subsection selection.
func (s *Session) SectionChanged(section string) {
	s.section = section
	s.subsections = nil
	s.invalidate()
}

// SubsectionsChanged selects one or more subsections.
func (s *Session) SubsectionsChanged(subsections []string) {
	s.subsections = make([]string, len(subsections))
	copy(s.subsections, subsections)
	s.invalidate()
}

// StartDayChanged records raw start-day entry. If the new start exceeds
// the current end, the end is raised to match at the next load; transient
// invalid keystrokes never raise an error.
func (s *Session) StartDayChanged(v float64) {
	s.startInput = v
	s.invalidate()
}

// EndDayChanged records raw end-day entry. An end below the current start
// is clamped up to it immediately.
func (s *Session) EndDayChanged(v float64) {
	if start, ok := toDay(s.startInput); ok && start >= 1 {
		if end, okEnd := toDay(v); okEnd && end < start {
			v = float64(start)
		}
	}
	s.endInput = v
	s.invalidate()
}

func (s *Session) invalidate() {
	s.gen++
	s.rows = nil
	s.changes.Clear()
}

// =============================================================================
// LOAD / EDIT / SAVE
// =============================================================================

// LoadBlock fetches and merges the rows for the active selection. While
// the window is not ready the fetch is withheld and LoadBlock returns
// (false, nil). A fetch failure leaves the prior row collection and the
// buffer untouched. Rows arriving for a stale generation are discarded.
func (s *Session) LoadBlock(ctx context.Context) (bool, error) {
	w, ok := s.Window()
	if !ok {
		return false, nil
	}

	gen := s.gen
	rs, err := s.loader.LoadBlock(ctx, s.sheetID, s.section, s.subsections, w)
	if err != nil {
		return false, err
	}
	if gen != s.gen {
		// Selection moved on while this load was in flight.
		return false, nil
	}

	s.rows = rs
	s.changes.Clear()
	return true, nil
}

// ReloadRequested re-fetches the active selection from the store.
func (s *Session) ReloadRequested(ctx context.Context) (bool, error) {
	return s.LoadBlock(ctx)
}

// CellEdited captures one grid edit into the buffer. The row must belong
// to the loaded collection and the day to the active window.
func (s *Session) CellEdited(rowID int64, day int, kind FieldKind, value string) error {
	key := CellKey{RowID: rowID, Day: day}
	if s.rows == nil {
		return &EditError{Key: key, Kind: kind, Err: ErrRowNotLoaded}
	}
	if _, ok := s.rows.Get(rowID); !ok {
		return &EditError{Key: key, Kind: kind, Err: ErrRowNotLoaded}
	}
	if w, ok := s.Window(); !ok || !w.Contains(day) {
		return &EditError{Key: key, Kind: kind, Err: ErrDayOutOfWindow}
	}
	return s.changes.Record(rowID, day, kind, value)
}

// SaveRequested flushes the buffer as one bulk upsert and, on success,
// reloads the block so local rows reflect the authoritative store. Returns
// the number of records saved. ErrNoPendingChanges reports an empty buffer;
// no network call was made. A failed save leaves the buffer intact.
func (s *Session) SaveRequested(ctx context.Context) (int, error) {
	saved, err := s.rec.Save(ctx, s.changes)
	if err != nil {
		return 0, err
	}
	if _, err := s.LoadBlock(ctx); err != nil {
		// The write is already committed; report the count alongside the
		// resync failure so the interface can prompt a manual reload.
		return saved, err
	}
	return saved, nil
}
