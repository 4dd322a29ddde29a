/*
Package sqlite provides a SQLite-backed implementation of the ledger
store interfaces.

PURPOSE:
  Persists the three collections (work records, payment records,
  employees) as document tables: the canonical JSON document in a doc
  column, plus a few extracted key columns for indexed lookups. The
  JSON field names (id, employeeId, workDayIds, amount, paid, worked,
  customAmount, wageChangeDate, previousWage) are the externally-visible
  schema and are preserved for compatibility with existing data.

PER-DOCUMENT WRITES ONLY:
  Every Put and Delete is a single statement on a single row. The store
  deliberately exposes no multi-document transaction and no locking -
  the ledger engine is written for exactly that storage model, and an
  implementation that quietly offered more would mask the engine's
  compensation logic instead of exercising it.

ENFORCED AT THIS LAYER:
  One work record per employee per calendar day, via a unique index.
  Violations map to ledger.ErrDuplicateDay.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block
  and crash recovery is cheap. Use ":memory:" for tests.

SEE ALSO:
  - ledger/store.go: the interface contracts
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/workday-ledger/ledger"
)

// Store implements ledger.WorkRecordStore, ledger.PaymentRecordStore
// and ledger.EmployeeStore over one SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		doc TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One record per employee per calendar day.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_work_records_employee_day
		ON work_records(employee_id, date);

	CREATE TABLE IF NOT EXISTS payment_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_records_employee
		ON payment_records(employee_id);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORK RECORDS (ledger.WorkRecordStore)
// =============================================================================

// WorkRecords returns the work record collection view.
func (s *Store) WorkRecords() *WorkRecords { return &WorkRecords{s: s} }

type WorkRecords struct {
	s *Store
}

func (w *WorkRecords) Get(ctx context.Context, id string) (*ledger.WorkRecord, error) {
	var doc string
	err := w.s.db.QueryRowContext(ctx,
		"SELECT doc FROM work_records WHERE id = ?", id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Collection: "work_records", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read work record: %w", err)
	}

	var rec ledger.WorkRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode work record %s: %w", id, err)
	}
	return &rec, nil
}

func (w *WorkRecords) Put(ctx context.Context, rec ledger.WorkRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode work record: %w", err)
	}

	query := `
		INSERT INTO work_records (id, employee_id, date, doc, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			date = excluded.date,
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`
	_, err = w.s.db.ExecContext(ctx, query,
		rec.ID, rec.EmployeeID, rec.Date.String(), string(doc),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("employee %s, day %s: %w", rec.EmployeeID, rec.Date, ledger.ErrDuplicateDay)
		}
		return fmt.Errorf("failed to write work record: %w", err)
	}
	return nil
}

func (w *WorkRecords) ListAll(ctx context.Context) ([]ledger.WorkRecord, error) {
	return w.s.queryWorkRecords(ctx,
		"SELECT doc FROM work_records ORDER BY date ASC, id ASC")
}

// ListByEmployee returns an employee's records in [from, to], the
// indexed query the calendar UI pages on.
func (w *WorkRecords) ListByEmployee(ctx context.Context, employeeID string, from, to ledger.Date) ([]ledger.WorkRecord, error) {
	return w.s.queryWorkRecords(ctx, `
		SELECT doc FROM work_records
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		employeeID, from.String(), to.String())
}

func (s *Store) queryWorkRecords(ctx context.Context, query string, args ...any) ([]ledger.WorkRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work records: %w", err)
	}
	defer rows.Close()

	var records []ledger.WorkRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec ledger.WorkRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode work record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// PAYMENT RECORDS (ledger.PaymentRecordStore)
// =============================================================================

// Payments returns the payment record collection view.
func (s *Store) Payments() *Payments { return &Payments{s: s} }

type Payments struct {
	s *Store
}

func (p *Payments) Get(ctx context.Context, id string) (*ledger.PaymentRecord, error) {
	var doc string
	err := p.s.db.QueryRowContext(ctx,
		"SELECT doc FROM payment_records WHERE id = ?", id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Collection: "payment_records", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payment record: %w", err)
	}

	var rec ledger.PaymentRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode payment record %s: %w", id, err)
	}
	return &rec, nil
}

func (p *Payments) Put(ctx context.Context, rec ledger.PaymentRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode payment record: %w", err)
	}

	query := `
		INSERT INTO payment_records (id, employee_id, date, doc, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			date = excluded.date,
			doc = excluded.doc
	`
	_, err = p.s.db.ExecContext(ctx, query,
		rec.ID, rec.EmployeeID, rec.Date.String(), string(doc),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write payment record: %w", err)
	}
	return nil
}

func (p *Payments) Delete(ctx context.Context, id string) error {
	res, err := p.s.db.ExecContext(ctx,
		"DELETE FROM payment_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Collection: "payment_records", ID: id}
	}
	return nil
}

func (p *Payments) ListAll(ctx context.Context) ([]ledger.PaymentRecord, error) {
	rows, err := p.s.db.QueryContext(ctx,
		"SELECT doc FROM payment_records ORDER BY date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query payment records: %w", err)
	}
	defer rows.Close()

	var records []ledger.PaymentRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec ledger.PaymentRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode payment record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// EMPLOYEES (ledger.EmployeeStore)
// =============================================================================

// Employees returns the employee collection view.
func (s *Store) Employees() *Employees { return &Employees{s: s} }

type Employees struct {
	s *Store
}

func (e *Employees) Get(ctx context.Context, id string) (*ledger.Employee, error) {
	var doc string
	err := e.s.db.QueryRowContext(ctx,
		"SELECT doc FROM employees WHERE id = ?", id,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Collection: "employees", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read employee: %w", err)
	}

	var emp ledger.Employee
	if err := json.Unmarshal([]byte(doc), &emp); err != nil {
		return nil, fmt.Errorf("failed to decode employee %s: %w", id, err)
	}
	return &emp, nil
}

func (e *Employees) Put(ctx context.Context, emp ledger.Employee) error {
	doc, err := json.Marshal(emp)
	if err != nil {
		return fmt.Errorf("failed to encode employee: %w", err)
	}

	query := `
		INSERT INTO employees (id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`
	_, err = e.s.db.ExecContext(ctx, query,
		emp.ID, string(doc), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write employee: %w", err)
	}
	return nil
}

func (e *Employees) ListAll(ctx context.Context) ([]ledger.Employee, error) {
	rows, err := e.s.db.QueryContext(ctx,
		"SELECT doc FROM employees ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []ledger.Employee
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var emp ledger.Employee
		if err := json.Unmarshal([]byte(doc), &emp); err != nil {
			return nil, fmt.Errorf("failed to decode employee: %w", err)
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (tests/dev only).
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"work_records", "payment_records", "employees"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
