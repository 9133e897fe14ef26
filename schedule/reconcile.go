/*
reconcile.go - Flushing the change buffer to the store

PURPOSE:
  Drains the pending-change buffer into one bulk upsert. The write is
  all-or-nothing: the store applies every record or none, so the buffer
  is cleared only after a confirmed success. A failed save leaves every
  record in place for retry and surfaces the raw store payload verbatim.

SEE ALSO:
  - changes.go: the buffer being drained
  - session.go: triggers the post-save reload from the authoritative store
*/
package schedule

import "context"

// Reconciler flushes a ChangeSet through a CellWriter.
type Reconciler struct {
	Writer CellWriter

	// CommitEditor, when set, is invoked before the buffer is read. The
	// presentation layer uses it to force-commit an in-progress cell edit
	// so no in-flight keystroke is lost.
	CommitEditor func()
}

// Save serializes the buffer into a flat record list and submits it as one
// bulk upsert. An empty buffer performs no network call and returns
// ErrNoPendingChanges. On success the buffer is cleared and the count of
// saved records returned; on failure the buffer is untouched and the
// store's error is wrapped in a SaveError.
func (r *Reconciler) Save(ctx context.Context, changes *ChangeSet) (int, error) {
	if r.CommitEditor != nil {
		r.CommitEditor()
	}
	if changes.Empty() {
		return 0, ErrNoPendingChanges
	}

	records := changes.Records()
	saved, err := r.Writer.BulkUpsert(ctx, records)
	if err != nil {
		return 0, &SaveError{Records: len(records), Err: err}
	}

	changes.Clear()
	return saved, nil
}
