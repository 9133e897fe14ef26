package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/schedule-engine/config"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(NewRouter(NewHandler(store, config.Default())))
	t.Cleanup(srv.Close)
	return srv, store
}

func str(s string) *string { return &s }

func seedSheet(t *testing.T, store *sqlite.Store) int64 {
	t.Helper()
	hours := schedule.ParseHours("6.5")
	sheetID, err := store.ReplaceSheet(context.Background(), "Week 32", []sqlite.ImportRow{
		{Section: "Ground Floor", Subsection: "Slab", Cells: map[int]schedule.Cell{
			1: {Task: str("formwork"), Hours: hours, LaborCode: str("L-01")},
		}},
		{Section: "Roof", Subsection: ""},
	})
	require.NoError(t, err)
	return sheetID
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]bool
	status := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body["ok"])
}

func TestListSheets(t *testing.T) {
	srv, store := newTestServer(t)
	seedSheet(t, store)

	var sheets []SheetDTO
	status := getJSON(t, srv.URL+"/sheets", &sheets)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Week 32", sheets[0].Name)
}

func TestListSections_ServesCanonicalOrder(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	var sections []string
	status := getJSON(t, fmt.Sprintf("%s/sections?sheet_id=%d", srv.URL, sheetID), &sections)
	assert.Equal(t, http.StatusOK, status)
	// The configured canonical order wins over store row order.
	assert.Equal(t, config.Default().Sections.Order, sections)
}

func TestListSections_MissingSheetIDIs400(t *testing.T) {
	srv, _ := newTestServer(t)
	status := getJSON(t, srv.URL+"/sections", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListSubsections_FlatSectionAnswersNoneOnly(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	var subs []string
	status := getJSON(t, fmt.Sprintf("%s/subsections?sheet_id=%d&section=Roof", srv.URL, sheetID), &subs)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{schedule.SubsectionNone}, subs)
}

func TestListSubsections_MissingSectionIs400(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	status := getJSON(t, fmt.Sprintf("%s/subsections?sheet_id=%d", srv.URL, sheetID), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetBlock_ReturnsRowsWithCells(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	var block BlockResponse
	url := fmt.Sprintf("%s/block?sheet_id=%d&section=Ground+Floor&subsection=Slab&start_day=1&end_day=5", srv.URL, sheetID)
	status := getJSON(t, url, &block)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, block.StartDay)
	assert.Equal(t, 5, block.EndDay)
	require.Len(t, block.Rows, 1)

	row := block.Rows[0]
	assert.Equal(t, "Slab", row.Subsection)
	cell, ok := row.Cells[1]
	require.True(t, ok)
	require.NotNil(t, cell.Task)
	assert.Equal(t, "formwork", *cell.Task)
	require.NotNil(t, cell.Hours)
	assert.InDelta(t, 6.5, *cell.Hours, 1e-9)
}

func TestGetBlock_InvertedRangeIsEmptyNotError(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	var block BlockResponse
	url := fmt.Sprintf("%s/block?sheet_id=%d&section=Ground+Floor&start_day=9&end_day=2", srv.URL, sheetID)
	status := getJSON(t, url, &block)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, block.Rows)
}

func TestGetBlock_DayBelowOneIs400(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	url := fmt.Sprintf("%s/block?sheet_id=%d&section=Roof&start_day=0&end_day=5", srv.URL, sheetID)
	status := getJSON(t, url, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetBlock_FlatSectionForcesNoneLabel(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	var block BlockResponse
	// Subsection filter is ignored for flat sections.
	url := fmt.Sprintf("%s/block?sheet_id=%d&section=Roof&subsection=Whatever&start_day=1&end_day=5", srv.URL, sheetID)
	status := getJSON(t, url, &block)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, block.Rows, 1)
	assert.Equal(t, schedule.SubsectionNone, block.Rows[0].Subsection)
}

func TestBulkUpsert_AppliesRecordsAndAudits(t *testing.T) {
	srv, store := newTestServer(t)
	sheetID := seedSheet(t, store)

	rows, err := store.FetchBlock(context.Background(), schedule.BlockQuery{
		SheetID: sheetID, Section: "Ground Floor", Subsection: "Slab",
		Window: schedule.DayWindow{Start: 1, End: 5},
	})
	require.NoError(t, err)
	rowID := rows[0].ID

	hours := 7.5
	body, err := json.Marshal(BulkUpsertRequest{Records: []CellRecordDTO{
		{RowID: rowID, Day: 2, Task: str("pour slab"), Hours: &hours},
	}})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/cells/bulk_upsert", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", "alice")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out BulkUpsertResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Updated)

	rows, err = store.FetchBlock(context.Background(), schedule.BlockQuery{
		SheetID: sheetID, Section: "Ground Floor", Subsection: "Slab",
		Window: schedule.DayWindow{Start: 1, End: 5},
	})
	require.NoError(t, err)
	cell := rows[0].Cell(2)
	require.NotNil(t, cell.Task)
	assert.Equal(t, "pour slab", *cell.Task)

	entries, err := store.RecentAudit(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Who)
	assert.Equal(t, "bulk_upsert", entries[0].Action)
}

func TestBulkUpsert_EmptyRecordsIsNoOp(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/cells/bulk_upsert", "application/json",
		bytes.NewReader([]byte(`{"records":[]}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out BulkUpsertResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Updated)
}

func TestBulkUpsert_MalformedBodyIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/cells/bulk_upsert", "application/json",
		bytes.NewReader([]byte(`{not json`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkUpsert_UnknownRowSurfacesStoreError(t *testing.T) {
	srv, store := newTestServer(t)
	seedSheet(t, store)

	body := []byte(`{"records":[{"row_id":9999,"day":1,"task":"x","hours":null,"labor_code":null}]}`)
	resp, err := http.Post(srv.URL+"/cells/bulk_upsert", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Bulk upsert failed", out.Error)
	assert.NotEmpty(t, out.Details, "the store's error is passed through verbatim")
}
