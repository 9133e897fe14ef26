package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/schedule-engine/api"
	"github.com/warp/schedule-engine/config"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

// newTestClient runs the real router over an in-memory store, so these
// tests exercise the full wire contract end to end.
func newTestClient(t *testing.T) (*Client, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store, config.Default())))
	t.Cleanup(srv.Close)
	return New(srv.URL), store
}

func str(s string) *string { return &s }

func seedSheet(t *testing.T, store *sqlite.Store) int64 {
	t.Helper()
	sheetID, err := store.ReplaceSheet(context.Background(), "Week 32", []sqlite.ImportRow{
		{Section: "Ground Floor", Subsection: "Slab", Cells: map[int]schedule.Cell{
			2: {Task: str("rebar"), Hours: schedule.ParseHours("6.5")},
		}},
		{Section: "Ground Floor", Subsection: ""},
	})
	require.NoError(t, err)
	return sheetID
}

func TestClient_Catalog(t *testing.T) {
	c, store := newTestClient(t)
	sheetID := seedSheet(t, store)
	ctx := context.Background()

	sheets, err := c.ListSheets(ctx)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, sheetID, sheets[0].ID)
	assert.Equal(t, "Week 32", sheets[0].Name)

	sections, err := c.ListSections(ctx, sheetID)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Sections.Order, sections)

	subs, err := c.ListSubsections(ctx, sheetID, "Ground Floor")
	require.NoError(t, err)
	assert.Equal(t, []string{schedule.SubsectionNone, "Slab"}, subs)
}

func TestClient_FetchBlockRoundTrip(t *testing.T) {
	c, store := newTestClient(t)
	sheetID := seedSheet(t, store)

	rows, err := c.FetchBlock(context.Background(), schedule.BlockQuery{
		SheetID:    sheetID,
		Section:    "Ground Floor",
		Subsection: "Slab",
		Window:     schedule.DayWindow{Start: 1, End: 5},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	cell := rows[0].Cell(2)
	require.NotNil(t, cell.Task)
	assert.Equal(t, "rebar", *cell.Task)
	require.NotNil(t, cell.Hours)
	assert.True(t, cell.Hours.Equal(*schedule.ParseHours("6.5")))
	assert.Nil(t, cell.LaborCode)
}

func TestClient_BulkUpsertWritesThrough(t *testing.T) {
	c, store := newTestClient(t)
	sheetID := seedSheet(t, store)
	c.User = "alice"
	ctx := context.Background()

	rows, err := store.FetchBlock(ctx, schedule.BlockQuery{
		SheetID: sheetID, Section: "Ground Floor", Subsection: "Slab",
		Window: schedule.DayWindow{Start: 1, End: 5},
	})
	require.NoError(t, err)
	rowID := rows[0].ID

	n, err := c.BulkUpsert(ctx, []schedule.PendingChange{
		{RowID: rowID, Day: 4, Task: str("cure"), Hours: schedule.ParseHours("2")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err = store.FetchBlock(ctx, schedule.BlockQuery{
		SheetID: sheetID, Section: "Ground Floor", Subsection: "Slab",
		Window: schedule.DayWindow{Start: 1, End: 5},
	})
	require.NoError(t, err)
	cell := rows[0].Cell(4)
	require.NotNil(t, cell.Task)
	assert.Equal(t, "cure", *cell.Task)

	entries, err := store.RecentAudit(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Who)
}

func TestClient_NonOKSurfacesRawBody(t *testing.T) {
	c, _ := newTestClient(t)

	// Missing section parameter is a 400 with a JSON error payload.
	_, err := c.ListSubsections(context.Background(), 1, "")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 400, se.StatusCode)
	assert.Contains(t, se.Body, "Missing section parameter")
}

func TestClient_SessionOverHTTP(t *testing.T) {
	// The full engine driving the real service: load, edit, save, resync.
	c, store := newTestClient(t)
	sheetID := seedSheet(t, store)

	s := schedule.NewSessionParts(c, c, c)
	s.SheetChanged(sheetID)
	s.SectionChanged("Ground Floor")
	s.SubsectionsChanged([]string{"Slab"})
	s.StartDayChanged(1)
	s.EndDayChanged(5)

	ctx := context.Background()
	ok, err := s.LoadBlock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, s.Rows().Len())

	rowID := s.Rows().RowIDs()[0]
	require.NoError(t, s.CellEdited(rowID, 3, schedule.FieldTask, "strip forms"))
	require.NoError(t, s.CellEdited(rowID, 3, schedule.FieldTime, "1.5"))

	saved, err := s.SaveRequested(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	row, _ := s.Rows().Get(rowID)
	cell := row.Cell(3)
	require.NotNil(t, cell.Task)
	assert.Equal(t, "strip forms", *cell.Task)
	require.NotNil(t, cell.Hours)
	assert.True(t, cell.Hours.Equal(*schedule.ParseHours("1.5")))
}
