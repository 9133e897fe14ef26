/*
Package sqlite provides the SQLite-backed authoritative schedule store.

PURPOSE:
  Implements the full schedule.Store surface (catalog listing, block
  fetch, bulk cell upsert) plus the server-side extras: sheet ingest for
  the importer and an append-only audit log. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  sheets:     the top of the selector hierarchy
  rows:       addressable schedule rows (section, subsection, order)
  day_cells:  sparse per-(row, day) values; UNIQUE(row_id, day)
  audit_log:  who did what when, append-only

BULK UPSERT ATOMICITY:
  BulkUpsert runs inside ONE transaction. A record referencing a missing
  row violates the foreign key and rolls back the whole batch: the store
  applies every record or none, which is exactly what the reconciler's
  buffer-clearing logic assumes.

PRECISION:
  Hours are stored as decimal text, never as REAL, so float drift cannot
  creep into saved timesheets.

WAL MODE:
  The database is opened with WAL and foreign keys enforced.

SEE ALSO:
  - schedule/types.go: the interfaces implemented here
  - schedule/store/memory.go: in-memory implementation for engine tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/schedule-engine/schedule"
)

// Store implements schedule.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS sheets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sheet_id INTEGER NOT NULL REFERENCES sheets(id) ON DELETE CASCADE,
		section TEXT NOT NULL,
		subsection TEXT NOT NULL DEFAULT '',
		row_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_rows_sheet
		ON rows(sheet_id);
	CREATE INDEX IF NOT EXISTS idx_rows_sheet_section_subsection
		ON rows(sheet_id, section, subsection);

	CREATE TABLE IF NOT EXISTS day_cells (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		row_id INTEGER NOT NULL REFERENCES rows(id) ON DELETE CASCADE,
		day INTEGER NOT NULL,
		task TEXT,
		hours TEXT,
		labor_code TEXT,
		UNIQUE(row_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_day_cells_row_day
		ON day_cells(row_id, day);

	-- Append-only: bulk writes are recorded, never rewritten
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		who TEXT NOT NULL,
		action TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_created
		ON audit_log(created_at);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// =============================================================================
// CATALOG (schedule.Catalog interface)
// =============================================================================

// ListSheets returns all sheets ordered by id.
func (s *Store) ListSheets(ctx context.Context) ([]schedule.SheetRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM sheets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.SheetRef
	for rows.Next() {
		var ref schedule.SheetRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// GetOrCreateSheet returns the id of the named sheet, creating it if needed.
func (s *Store) GetOrCreateSheet(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM sheets WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sheets (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSections returns the distinct sections of a sheet in first-seen row
// order, so imported grids keep their original section ordering.
func (s *Store) ListSections(ctx context.Context, sheetID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT section FROM rows
		WHERE sheet_id = ?
		GROUP BY section
		ORDER BY MIN(row_order)`, sheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var section string
		if err := rows.Scan(&section); err != nil {
			return nil, err
		}
		out = append(out, section)
	}
	return out, rows.Err()
}

// ListSubsections returns the distinct subsections of a sheet+section,
// folding blank subsections into the "(none)" placeholder.
func (s *Store) ListSubsections(ctx context.Context, sheetID int64, section string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT
			CASE WHEN TRIM(subsection) = '' THEN ? ELSE TRIM(subsection) END AS ss
		FROM rows
		WHERE sheet_id = ? AND LOWER(TRIM(section)) = LOWER(TRIM(?))
		ORDER BY 1`, schedule.SubsectionNone, sheetID, section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ss string
		if err := rows.Scan(&ss); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// =============================================================================
// BLOCK FETCH (schedule.BlockSource interface)
// =============================================================================

// FetchBlock returns the rows of one subsection over the query window.
// An empty or "(none)" subsection selects the whole section. Unknown
// selections yield an empty slice, never an error.
func (s *Store) FetchBlock(ctx context.Context, q schedule.BlockQuery) ([]schedule.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, section, subsection FROM rows
		WHERE sheet_id = ? AND LOWER(TRIM(section)) = LOWER(TRIM(?))`
	args := []any{q.SheetID, q.Section}
	if q.Subsection != "" && q.Subsection != schedule.SubsectionNone {
		query += ` AND CASE WHEN TRIM(subsection) = '' THEN ? ELSE TRIM(subsection) END = ?`
		args = append(args, schedule.SubsectionNone, q.Subsection)
	}
	query += ` ORDER BY row_order, id`

	rowRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rowRows.Close()

	var (
		out    []schedule.Row
		rowIDs []int64
		byID   = make(map[int64]int) // row id -> index in out
	)
	for rowRows.Next() {
		var (
			row        schedule.Row
			subsection string
		)
		if err := rowRows.Scan(&row.ID, &row.Section, &subsection); err != nil {
			return nil, err
		}
		if strings.TrimSpace(subsection) == "" {
			row.Subsection = schedule.SubsectionNone
		} else {
			row.Subsection = strings.TrimSpace(subsection)
		}
		row.Cells = make(map[int]schedule.Cell)
		byID[row.ID] = len(out)
		rowIDs = append(rowIDs, row.ID)
		out = append(out, row)
	}
	if err := rowRows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []schedule.Row{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rowIDs)), ",")
	cellArgs := make([]any, 0, len(rowIDs)+2)
	for _, id := range rowIDs {
		cellArgs = append(cellArgs, id)
	}
	cellArgs = append(cellArgs, q.Window.Start, q.Window.End)

	cellRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT row_id, day, task, hours, labor_code
		FROM day_cells
		WHERE row_id IN (%s) AND day BETWEEN ? AND ?`, placeholders), cellArgs...)
	if err != nil {
		return nil, err
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var (
			rowID           int64
			day             int
			task, hrs, code sql.NullString
		)
		if err := cellRows.Scan(&rowID, &day, &task, &hrs, &code); err != nil {
			return nil, err
		}
		idx, ok := byID[rowID]
		if !ok {
			continue
		}
		cell := schedule.Cell{}
		if task.Valid {
			t := task.String
			cell.Task = &t
		}
		if hrs.Valid {
			d, err := decimal.NewFromString(hrs.String)
			if err != nil {
				return nil, fmt.Errorf("row %d day %d: bad hours value %q", rowID, day, hrs.String)
			}
			cell.Hours = &d
		}
		if code.Valid {
			c := code.String
			cell.LaborCode = &c
		}
		out[idx].Cells[day] = cell
	}
	return out, cellRows.Err()
}

// =============================================================================
// BULK UPSERT (schedule.CellWriter interface)
// =============================================================================

// BulkUpsert applies pending changes in one transaction. Either every
// record is applied or none: any failure, including a record referencing
// a missing row, rolls the whole batch back.
func (s *Store) BulkUpsert(ctx context.Context, records []schedule.PendingChange) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO day_cells (row_id, day, task, hours, labor_code)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (row_id, day)
		DO UPDATE SET task = excluded.task,
		              hours = excluded.hours,
		              labor_code = excluded.labor_code`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, rec := range records {
		var hours any
		if rec.Hours != nil {
			hours = rec.Hours.String()
		}
		if _, err := stmt.ExecContext(ctx, rec.RowID, rec.Day,
			nullable(rec.Task), hours, nullable(rec.LaborCode)); err != nil {
			return 0, fmt.Errorf("upsert row %d day %d: %w", rec.RowID, rec.Day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// =============================================================================
// SHEET INGEST (importer)
// =============================================================================

// ImportRow is one row of imported sheet content with its sparse cells.
type ImportRow struct {
	Section    string
	Subsection string
	Cells      map[int]schedule.Cell
}

// ReplaceSheet atomically replaces a sheet's rows and cells with imported
// content, creating the sheet if it does not exist.
func (s *Store) ReplaceSheet(ctx context.Context, sheetName string, imported []ImportRow) (int64, error) {
	sheetID, err := s.GetOrCreateSheet(ctx, sheetName)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Cells go with their rows via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE sheet_id = ?`, sheetID); err != nil {
		return 0, err
	}

	for order, row := range imported {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO rows (sheet_id, section, subsection, row_order) VALUES (?, ?, ?, ?)`,
			sheetID, row.Section, row.Subsection, order+1)
		if err != nil {
			return 0, err
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		for day, cell := range row.Cells {
			var hours any
			if cell.Hours != nil {
				hours = cell.Hours.String()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO day_cells (row_id, day, task, hours, labor_code) VALUES (?, ?, ?, ?, ?)`,
				rowID, day, nullable(cell.Task), hours, nullable(cell.LaborCode)); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return sheetID, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit records who performed an action. Failures here must not
// fail the action itself; callers log and continue.
func (s *Store) AppendAudit(ctx context.Context, who, action string, payload any) error {
	if who == "" {
		who = "anonymous"
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, who, action, payload_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), who, action, string(payloadJSON),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// AuditEntry is one recorded action.
type AuditEntry struct {
	ID        string
	Who       string
	Action    string
	Payload   string
	CreatedAt time.Time
}

// RecentAudit returns the most recent audit entries, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, who, action, payload_json, created_at
		FROM audit_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e  AuditEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.Who, &e.Action, &e.Payload, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reset clears all data. Dev only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"day_cells", "rows", "sheets", "audit_log"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
