/*
Package client is the HTTP transport between the editing engine and the
schedule store service.

PURPOSE:
  Implements schedule.Catalog, schedule.BlockSource, and schedule.CellWriter
  against the REST API, so a schedule.Session can run over the network
  exactly as it runs over an in-process store.

ERROR SURFACE:
  A non-2xx response becomes a StatusError carrying the status code and
  the raw response body verbatim: the editing interface shows the server
  payload unchanged. The client adds no retries and no timeout policy of
  its own; inject an http.Client if you need deadlines.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/schedule-engine/schedule"
)

// Client talks to one schedule store service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// User is sent as the X-User header on writes and feeds the audit log.
	User string
}

// New creates a client for the service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// StatusError is a non-2xx response with its raw body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// =============================================================================
// CATALOG
// =============================================================================

// ListSheets fetches the sheet list.
func (c *Client) ListSheets(ctx context.Context) ([]schedule.SheetRef, error) {
	var sheets []schedule.SheetRef
	if err := c.getJSON(ctx, "/sheets", nil, &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// ListSections fetches the section list for a sheet.
func (c *Client) ListSections(ctx context.Context, sheetID int64) ([]string, error) {
	params := url.Values{"sheet_id": {strconv.FormatInt(sheetID, 10)}}
	var sections []string
	if err := c.getJSON(ctx, "/sections", params, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListSubsections fetches the subsection list for a sheet+section.
func (c *Client) ListSubsections(ctx context.Context, sheetID int64, section string) ([]string, error) {
	params := url.Values{
		"sheet_id": {strconv.FormatInt(sheetID, 10)},
		"section":  {section},
	}
	var subsections []string
	if err := c.getJSON(ctx, "/subsections", params, &subsections); err != nil {
		return nil, err
	}
	return subsections, nil
}

// =============================================================================
// BLOCK SOURCE
// =============================================================================

type blockResponse struct {
	Rows []struct {
		RowID      int64  `json:"row_id"`
		Section    string `json:"section"`
		Subsection string `json:"subsection"`
		Cells      map[int]struct {
			Task      *string  `json:"task"`
			Hours     *float64 `json:"hours"`
			LaborCode *string  `json:"labor_code"`
		} `json:"cells"`
	} `json:"rows"`
}

// FetchBlock fetches the rows of one subsection over a day window.
func (c *Client) FetchBlock(ctx context.Context, q schedule.BlockQuery) ([]schedule.Row, error) {
	params := url.Values{
		"sheet_id":  {strconv.FormatInt(q.SheetID, 10)},
		"section":   {q.Section},
		"start_day": {strconv.Itoa(q.Window.Start)},
		"end_day":   {strconv.Itoa(q.Window.End)},
	}
	if q.Subsection != "" {
		params.Set("subsection", q.Subsection)
	}

	var resp blockResponse
	if err := c.getJSON(ctx, "/block", params, &resp); err != nil {
		return nil, err
	}

	rows := make([]schedule.Row, len(resp.Rows))
	for i, r := range resp.Rows {
		row := schedule.Row{
			ID:         r.RowID,
			Section:    r.Section,
			Subsection: r.Subsection,
			Cells:      make(map[int]schedule.Cell, len(r.Cells)),
		}
		for day, cell := range r.Cells {
			sc := schedule.Cell{Task: cell.Task, LaborCode: cell.LaborCode}
			if cell.Hours != nil {
				d := decimal.NewFromFloat(*cell.Hours)
				sc.Hours = &d
			}
			row.Cells[day] = sc
		}
		rows[i] = row
	}
	return rows, nil
}

// =============================================================================
// CELL WRITER
// =============================================================================

type bulkUpsertResponse struct {
	Updated int `json:"updated"`
}

// wireRecord is the bulk upsert wire shape: hours as a JSON number, unset
// fields as explicit nulls.
type wireRecord struct {
	RowID     int64    `json:"row_id"`
	Day       int      `json:"day"`
	Task      *string  `json:"task"`
	Hours     *float64 `json:"hours"`
	LaborCode *string  `json:"labor_code"`
}

// BulkUpsert submits pending changes as one bulk write.
func (c *Client) BulkUpsert(ctx context.Context, records []schedule.PendingChange) (int, error) {
	wire := make([]wireRecord, len(records))
	for i, rec := range records {
		wire[i] = wireRecord{
			RowID:     rec.RowID,
			Day:       rec.Day,
			Task:      rec.Task,
			LaborCode: rec.LaborCode,
		}
		if rec.Hours != nil {
			h, _ := rec.Hours.Float64()
			wire[i].Hours = &h
		}
	}

	body, err := json.Marshal(map[string]any{"records": wire})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/cells/bulk_upsert", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.User != "" {
		req.Header.Set("X-User", c.User)
	}

	var resp bulkUpsertResponse
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
