/*
handlers.go - HTTP handlers for the schedule store API

PURPOSE:
  Exposes the authoritative schedule store over REST. Handles HTTP
  request/response and JSON serialization; all data semantics live in the
  store and the schedule package.

ENDPOINTS:
  GET  /health                 Liveness probe
  GET  /sheets                 List sheets
  GET  /sections               List sections of a sheet
  GET  /subsections            List subsections of a sheet+section
  GET  /block                  Rows + cells for one selection and window
  POST /cells/bulk_upsert      Apply pending changes atomically

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Missing or malformed query parameters / body
  - 500: Store failures (the underlying error is included verbatim so the
         editing client can surface it unchanged)

  An inverted day range is NOT an error: /block answers an empty row set,
  mirroring the editor's own validation gate.

AUDIT:
  Bulk upserts record the X-User header in the audit log. No
  authentication beyond that; the header is trusted as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/warp/schedule-engine/config"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Cfg   *config.Config
}

// NewHandler creates a handler over the given store and configuration.
func NewHandler(store *sqlite.Store, cfg *config.Config) *Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{Store: store, Cfg: cfg}
}

// Health answers the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// =============================================================================
// SELECTOR HANDLERS
// =============================================================================

// ListSheets returns all sheets.
func (h *Handler) ListSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := h.Store.ListSheets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sheets", err)
		return
	}

	dtos := make([]SheetDTO, len(sheets))
	for i, s := range sheets {
		dtos[i] = SheetDTO{ID: s.ID, Name: s.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListSections returns the section list for a sheet. When a canonical
// order is configured it is served as-is; otherwise sections come from
// the store in row order.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	sheetID, ok := queryInt64(w, r, "sheet_id")
	if !ok {
		return
	}

	if len(h.Cfg.Sections.Order) > 0 {
		writeJSON(w, http.StatusOK, h.Cfg.Sections.Order)
		return
	}

	sections, err := h.Store.ListSections(r.Context(), sheetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sections", err)
		return
	}
	if sections == nil {
		sections = []string{}
	}
	writeJSON(w, http.StatusOK, sections)
}

// ListSubsections returns the subsection list for a sheet+section. Flat
// sections carry no subsections and answer the "(none)" placeholder only.
func (h *Handler) ListSubsections(w http.ResponseWriter, r *http.Request) {
	sheetID, ok := queryInt64(w, r, "sheet_id")
	if !ok {
		return
	}
	section := r.URL.Query().Get("section")
	if section == "" {
		writeError(w, http.StatusBadRequest, "Missing section parameter", nil)
		return
	}

	if h.Cfg.IsFlat(section) {
		writeJSON(w, http.StatusOK, []string{schedule.SubsectionNone})
		return
	}

	subsections, err := h.Store.ListSubsections(r.Context(), sheetID, section)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subsections", err)
		return
	}
	if subsections == nil {
		subsections = []string{}
	}
	writeJSON(w, http.StatusOK, subsections)
}

// =============================================================================
// BLOCK HANDLER
// =============================================================================

// GetBlock returns the rows of one selection over a day window.
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	sheetID, ok := queryInt64(w, r, "sheet_id")
	if !ok {
		return
	}
	section := r.URL.Query().Get("section")
	if section == "" {
		writeError(w, http.StatusBadRequest, "Missing section parameter", nil)
		return
	}
	subsection := r.URL.Query().Get("subsection")

	startDay, ok := queryIntDefault(w, r, "start_day", h.Cfg.Window.StartDay)
	if !ok {
		return
	}
	endDay, ok := queryIntDefault(w, r, "end_day", h.Cfg.Window.EndDay)
	if !ok {
		return
	}
	if startDay < 1 || endDay < 1 {
		writeError(w, http.StatusBadRequest, "Day numbers start at 1", nil)
		return
	}

	// An inverted range means the client's gate was bypassed; answer the
	// empty set rather than failing.
	if startDay > endDay {
		writeJSON(w, http.StatusOK, BlockResponse{Rows: []RowDTO{}, StartDay: startDay, EndDay: endDay})
		return
	}

	flat := h.Cfg.IsFlat(section)
	if flat {
		// Flat sections ignore subsection filtering entirely.
		subsection = ""
	}

	rows, err := h.Store.FetchBlock(r.Context(), schedule.BlockQuery{
		SheetID:    sheetID,
		Section:    section,
		Subsection: subsection,
		Window:     schedule.DayWindow{Start: startDay, End: endDay},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch block", err)
		return
	}

	dtos := make([]RowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toRowDTO(row)
		if flat {
			dtos[i].Subsection = schedule.SubsectionNone
		}
	}
	writeJSON(w, http.StatusOK, BlockResponse{Rows: dtos, StartDay: startDay, EndDay: endDay})
}

// =============================================================================
// BULK UPSERT HANDLER
// =============================================================================

// BulkUpsert applies a batch of pending changes in one transaction.
func (h *Handler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	var req BulkUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if len(req.Records) == 0 {
		writeJSON(w, http.StatusOK, BulkUpsertResponse{Updated: 0})
		return
	}

	records := make([]schedule.PendingChange, len(req.Records))
	for i, rec := range req.Records {
		if rec.Day < 1 {
			writeError(w, http.StatusBadRequest, "Day numbers start at 1", nil)
			return
		}
		records[i] = toPendingChange(rec)
	}

	updated, err := h.Store.BulkUpsert(r.Context(), records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Bulk upsert failed", err)
		return
	}

	who := r.Header.Get("X-User")
	if err := h.Store.AppendAudit(r.Context(), who, "bulk_upsert", map[string]any{
		"updated": updated,
		"records": req.Records,
	}); err != nil {
		log.Printf("audit write failed: %v", err)
	}

	writeJSON(w, http.StatusOK, BulkUpsertResponse{Updated: updated})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing "+name+" parameter", nil)
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" parameter", err)
		return 0, false
	}
	return v, true
}

func queryIntDefault(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" parameter", err)
		return 0, false
	}
	return v, true
}
