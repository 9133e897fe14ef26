/*
merge.go - Per-subsection block fetch and row-set folding

PURPOSE:
  Fetches one row list per requested subsection and folds the results into
  a single addressable row collection keyed by row identity. Multi-
  subsection loads fan out concurrently; results fold in arrival order,
  and a later arrival overwrites an earlier one on a row-id collision.

COLLISION POLICY:
  Row identities should be unique across subsections, but the store does
  not enforce that from this side. A collision is therefore folded
  last-arrival-wins AND surfaced on the RowSet as a diagnosable record
  retaining both subsection tags, instead of dropping data silently.

FAILURE:
  Any fetch failure aborts the whole merge. No partial row set is ever
  returned; the caller keeps whatever collection it had before.
*/
package schedule

import "context"

// Collision records a row-id collision observed while folding blocks.
type Collision struct {
	RowID  int64
	Kept   string // subsection whose row won (later arrival)
	Dropped string // subsection whose row was overwritten
}

// RowSet is one merged row collection. Row order follows arrival: block
// order first, store order within a block. A colliding row keeps its
// original position with the later arrival's data.
type RowSet struct {
	order      []int64
	rows       map[int64]Row
	Collisions []Collision
}

// NewRowSet returns an empty collection.
func NewRowSet() *RowSet {
	return &RowSet{rows: make(map[int64]Row)}
}

// Len returns the number of rows.
func (rs *RowSet) Len() int { return len(rs.order) }

// Get returns the row with the given identity.
func (rs *RowSet) Get(id int64) (Row, bool) {
	r, ok := rs.rows[id]
	return r, ok
}

// Rows returns the rows in collection order.
func (rs *RowSet) Rows() []Row {
	out := make([]Row, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.rows[id])
	}
	return out
}

// RowIDs returns the row identities in collection order.
func (rs *RowSet) RowIDs() []int64 {
	out := make([]int64, len(rs.order))
	copy(out, rs.order)
	return out
}

func (rs *RowSet) add(row Row) {
	if prev, ok := rs.rows[row.ID]; ok {
		rs.Collisions = append(rs.Collisions, Collision{
			RowID:   row.ID,
			Kept:    row.Subsection,
			Dropped: prev.Subsection,
		})
		rs.rows[row.ID] = row
		return
	}
	rs.order = append(rs.order, row.ID)
	rs.rows[row.ID] = row
}

// MergeBlocks folds row lists into one collection in the given order.
func MergeBlocks(blocks ...[]Row) *RowSet {
	rs := NewRowSet()
	for _, block := range blocks {
		for _, row := range block {
			rs.add(row)
		}
	}
	return rs
}

// =============================================================================
// LOADER
// =============================================================================

// Loader fetches and merges blocks from a BlockSource.
type Loader struct {
	Source BlockSource
}

// LoadBlock retrieves the rows for the selected subsections over a
// validated window and folds them into one RowSet.
//
// A single subsection is fetched directly on the calling goroutine. Several
// subsections fan out concurrently; the fetches are independent and
// order-insensitive except for the documented overwrite-on-collision
// policy, which follows arrival order. On any failure the merge aborts
// with a FetchError and no row set is returned.
func (l *Loader) LoadBlock(ctx context.Context, sheetID int64, section string, subsections []string, w DayWindow) (*RowSet, error) {
	if !w.Valid() {
		return nil, ErrWindowNotReady
	}
	if len(subsections) == 0 {
		// No explicit subsection selects the whole section.
		subsections = []string{""}
	}

	if len(subsections) == 1 {
		rows, err := l.fetch(ctx, sheetID, section, subsections[0], w)
		if err != nil {
			return nil, err
		}
		return MergeBlocks(rows), nil
	}

	type result struct {
		rows []Row
		err  error
	}
	results := make(chan result, len(subsections))
	for _, ss := range subsections {
		go func(ss string) {
			rows, err := l.fetch(ctx, sheetID, section, ss, w)
			results <- result{rows: rows, err: err}
		}(ss)
	}

	rs := NewRowSet()
	var firstErr error
	for range subsections {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		for _, row := range res.rows {
			rs.add(row)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return rs, nil
}

func (l *Loader) fetch(ctx context.Context, sheetID int64, section, subsection string, w DayWindow) ([]Row, error) {
	rows, err := l.Source.FetchBlock(ctx, BlockQuery{
		SheetID:    sheetID,
		Section:    section,
		Subsection: subsection,
		Window:     w,
	})
	if err != nil {
		return nil, &FetchError{Section: section, Subsection: subsection, Err: err}
	}
	return rows, nil
}
