/*
Package sqlite provides a SQLite-backed implementation of absence.TxStore.

PURPOSE:
  Persists employees, regions, holidays, requests and ledger entries.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  employees:    Requesters, managers and administrators
  regions:      Team scope and holiday calendar owner (unique name)
  holidays:     Region-specific or global (region_id = '') days off
  requests:     Absence requests with their per-year allocation as JSON
  entitlements: Ledger entries keyed by (employee_id, year)

LEDGER GUARD:
  entitlements carries CHECK (0 <= used_days <= total_days). The engine
  never attempts to violate it; the constraint turns a bug into an error
  instead of a corrupt balance.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which an
  in-memory database needs anyway. WithTx holds the write lock for the
  whole transaction; the transactional view reads through the sql.Tx, never
  through the locked parent.

USAGE:
  store, err := sqlite.New("./data/absence.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := absence.New(store, absence.Config{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - absence/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// Store implements absence.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ absence.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS regions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		region_id TEXT NOT NULL DEFAULT '',
		total_days INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_region
		ON employees(region_id, active);

	-- region_id = '' marks a global holiday
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_region
		ON holidays(region_id, date);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		absence_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		representative_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		days_requested INTEGER NOT NULL,
		allocation_json TEXT NOT NULL DEFAULT '{}',
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		decision_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	-- Overlap lookups: start_date <= ? AND end_date >= ?
	CREATE INDEX IF NOT EXISTS idx_requests_employee_dates
		ON requests(employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	CREATE TABLE IF NOT EXISTS entitlements (
		employee_id TEXT NOT NULL REFERENCES employees(id),
		year INTEGER NOT NULL,
		total_days INTEGER NOT NULL,
		used_days INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, year),
		CHECK (used_days >= 0 AND used_days <= total_days)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes every row. Used when loading a demo scenario.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"entitlements", "requests", "holidays", "employees", "regions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (absence.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store absence.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every statement on the open transaction. No locking: the
// parent's write lock is held by WithTx.
type txStore struct {
	queries
}

// =============================================================================
// LOCKED ACCESS - Store methods take the mutex and delegate to queries
// =============================================================================

func (s *Store) q() queries { return queries{s.db} }

func (s *Store) SaveEmployee(ctx context.Context, e absence.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SaveEmployee(ctx, e)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context, f absence.EmployeeFilter) ([]absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListEmployees(ctx, f)
}

func (s *Store) SaveRegion(ctx context.Context, r absence.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SaveRegion(ctx, r)
}

func (s *Store) GetRegion(ctx context.Context, id string) (absence.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetRegion(ctx, id)
}

func (s *Store) ListRegions(ctx context.Context) ([]absence.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListRegions(ctx)
}

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SaveHoliday(ctx, h)
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteHoliday(ctx, id)
}

func (s *Store) ListHolidays(ctx context.Context, regionID string) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListHolidays(ctx, regionID)
}

func (s *Store) HolidaysFor(ctx context.Context, regionID string, year int) (generic.HolidaySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().HolidaysFor(ctx, regionID, year)
}

func (s *Store) SaveRequest(ctx context.Context, r absence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SaveRequest(ctx, r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, f absence.RequestFilter) ([]absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListRequests(ctx, f)
}

func (s *Store) GetEntitlement(ctx context.Context, employeeID string, year int) (absence.Entitlement, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetEntitlement(ctx, employeeID, year)
}

func (s *Store) SaveEntitlement(ctx context.Context, e absence.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SaveEntitlement(ctx, e)
}

// =============================================================================
// QUERIES - Shared by Store and txStore
// =============================================================================

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// Employees

func (q queries) SaveEmployee(ctx context.Context, e absence.Employee) error {
	query := `
		INSERT INTO employees (id, name, role, region_id, total_days, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			region_id = excluded.region_id,
			total_days = excluded.total_days,
			active = excluded.active
	`
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := q.db.ExecContext(ctx, query,
		e.ID, e.Name, string(e.Role), e.RegionID, e.TotalDays, e.Active,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save employee %s: %w", e.ID, err)
	}
	return nil
}

const employeeColumns = `id, name, role, region_id, total_days, active, created_at`

func (q queries) GetEmployee(ctx context.Context, id string) (absence.Employee, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return absence.Employee{}, &generic.NotFoundError{Kind: "employee", ID: id}
	}
	return e, err
}

func (q queries) ListEmployees(ctx context.Context, f absence.EmployeeFilter) ([]absence.Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE 1=1"
	var args []any
	if f.RegionID != nil {
		query += " AND region_id = ?"
		args = append(args, *f.RegionID)
	}
	if f.ActiveOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []absence.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(sc scanner) (absence.Employee, error) {
	var e absence.Employee
	var role, createdAt string
	if err := sc.Scan(&e.ID, &e.Name, &role, &e.RegionID, &e.TotalDays, &e.Active, &createdAt); err != nil {
		return absence.Employee{}, err
	}
	e.Role = absence.Role(role)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

// Regions

func (q queries) SaveRegion(ctx context.Context, r absence.Region) error {
	query := `
		INSERT INTO regions (id, name, city, country, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			city = excluded.city,
			country = excluded.country,
			active = excluded.active
	`
	_, err := q.db.ExecContext(ctx, query, r.ID, r.Name, r.City, r.Country, r.Active)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("region name %q is taken: %w", r.Name, generic.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save region %s: %w", r.ID, err)
	}
	return nil
}

func (q queries) GetRegion(ctx context.Context, id string) (absence.Region, error) {
	var r absence.Region
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, city, country, active FROM regions WHERE id = ?", id,
	).Scan(&r.ID, &r.Name, &r.City, &r.Country, &r.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return absence.Region{}, &generic.NotFoundError{Kind: "region", ID: id}
	}
	return r, err
}

func (q queries) ListRegions(ctx context.Context) ([]absence.Region, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name, city, country, active FROM regions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var out []absence.Region
	for rows.Next() {
		var r absence.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.City, &r.Country, &r.Active); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Holidays

func (q queries) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	query := `
		INSERT INTO holidays (id, region_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			region_id = excluded.region_id,
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`
	_, err := q.db.ExecContext(ctx, query,
		h.ID, h.RegionID, h.Date.String(), h.Name, h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save holiday %s: %w", h.ID, err)
	}
	return nil
}

func (q queries) DeleteHoliday(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete holiday %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	return nil
}

// ListHolidays returns region-specific and global holidays.
func (q queries) ListHolidays(ctx context.Context, regionID string) ([]generic.Holiday, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, region_id, date, name, recurring
		FROM holidays
		WHERE region_id = '' OR region_id = ?
		ORDER BY date, id
	`, regionID)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&h.ID, &h.RegionID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		d, err := generic.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		h.Date = d
		out = append(out, h)
	}
	return out, rows.Err()
}

// HolidaysFor implements generic.HolidayCalendar.
func (q queries) HolidaysFor(ctx context.Context, regionID string, year int) (generic.HolidaySet, error) {
	holidays, err := q.ListHolidays(ctx, regionID)
	if err != nil {
		return nil, err
	}
	return generic.HolidaysForYear(holidays, regionID, year), nil
}

// Requests

func (q queries) SaveRequest(ctx context.Context, r absence.Request) error {
	query := `
		INSERT INTO requests (id, employee_id, absence_type, start_date, end_date, status,
			representative_id, notes, days_requested, allocation_json,
			decided_by, decided_at, decision_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			days_requested = excluded.days_requested,
			allocation_json = excluded.allocation_json,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at,
			decision_reason = excluded.decision_reason,
			updated_at = excluded.updated_at
	`
	alloc := r.Allocation
	if alloc == nil {
		alloc = generic.Allocation{}
	}
	allocJSON, err := json.Marshal(alloc)
	if err != nil {
		return fmt.Errorf("encode allocation: %w", err)
	}

	var decidedAt *string
	if r.DecidedAt != nil {
		s := r.DecidedAt.UTC().Format(time.RFC3339Nano)
		decidedAt = &s
	}

	_, err = q.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, string(r.Type), r.Period.Start.String(), r.Period.End.String(),
		string(r.Status), r.RepresentativeID, r.Notes, r.DaysRequested, string(allocJSON),
		r.DecidedBy, decidedAt, r.DecisionReason,
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save request %s: %w", r.ID, err)
	}
	return nil
}

const requestColumns = `id, employee_id, absence_type, start_date, end_date, status,
	representative_id, notes, days_requested, allocation_json,
	decided_by, decided_at, decision_reason, created_at, updated_at`

func (q queries) GetRequest(ctx context.Context, id string) (absence.Request, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return absence.Request{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return r, err
}

func (q queries) ListRequests(ctx context.Context, f absence.RequestFilter) ([]absence.Request, error) {
	if f.EmployeeIDs != nil && len(f.EmployeeIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + requestColumns + " FROM requests WHERE 1=1"
	var args []any
	if len(f.EmployeeIDs) > 0 {
		query += " AND employee_id IN (" + placeholders(len(f.EmployeeIDs)) + ")"
		for _, id := range f.EmployeeIDs {
			args = append(args, id)
		}
	}
	if len(f.Statuses) > 0 {
		query += " AND status IN (" + placeholders(len(f.Statuses)) + ")"
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.Overlapping != nil {
		// ISO dates compare correctly as strings
		query += " AND start_date <= ? AND end_date >= ?"
		args = append(args, f.Overlapping.End.String(), f.Overlapping.Start.String())
	}
	query += " ORDER BY start_date, created_at, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []absence.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(sc scanner) (absence.Request, error) {
	var r absence.Request
	var typ, start, end, status, allocJSON, createdAt, updatedAt string
	var decidedAt sql.NullString
	err := sc.Scan(
		&r.ID, &r.EmployeeID, &typ, &start, &end, &status,
		&r.RepresentativeID, &r.Notes, &r.DaysRequested, &allocJSON,
		&r.DecidedBy, &decidedAt, &r.DecisionReason, &createdAt, &updatedAt,
	)
	if err != nil {
		return absence.Request{}, err
	}
	r.Type = absence.Type(typ)
	r.Status = absence.Status(status)
	if r.Period, err = generic.ParsePeriod(start, end); err != nil {
		return absence.Request{}, fmt.Errorf("request %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(allocJSON), &r.Allocation); err != nil {
		return absence.Request{}, fmt.Errorf("request %s: decode allocation: %w", r.ID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, decidedAt.String)
		r.DecidedAt = &t
	}
	return r, nil
}

// Entitlements

func (q queries) GetEntitlement(ctx context.Context, employeeID string, year int) (absence.Entitlement, bool, error) {
	e := absence.Entitlement{EmployeeID: employeeID, Year: year}
	err := q.db.QueryRowContext(ctx,
		"SELECT total_days, used_days FROM entitlements WHERE employee_id = ? AND year = ?",
		employeeID, year,
	).Scan(&e.Total, &e.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return absence.Entitlement{}, false, nil
	}
	if err != nil {
		return absence.Entitlement{}, false, fmt.Errorf("get entitlement %s/%d: %w", employeeID, year, err)
	}
	return e, true, nil
}

func (q queries) SaveEntitlement(ctx context.Context, e absence.Entitlement) error {
	query := `
		INSERT INTO entitlements (employee_id, year, total_days, used_days)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			total_days = excluded.total_days,
			used_days = excluded.used_days
	`
	if _, err := q.db.ExecContext(ctx, query, e.EmployeeID, e.Year, e.Total, e.Used); err != nil {
		return fmt.Errorf("save entitlement %s/%d: %w", e.EmployeeID, e.Year, err)
	}
	return nil
}

// Helper functions

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
