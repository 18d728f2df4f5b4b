/*
Package sqlite provides a SQLite-backed implementation of the leave storage
interfaces.

PURPOSE:
  Implements PersonnelStore, AbsenceStore, and EntryStore on database/sql
  with the mattn/go-sqlite3 driver. The same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  personnel:      Canonical records; leave_balance guarded by a CHECK
  absences:       Absence records; ids from AUTOINCREMENT (monotonic,
                  never reused - SQLite's sqlite_sequence guarantees this)
  ledger_entries: Append-only realized-delta ledger

LAST LINE OF DEFENSE:
  The negative-balance invariant is enforced three times: by the Ledger's
  arithmetic, by Upsert's application-level check, and by the CHECK
  constraint on the personnel table. A bug would have to get past all three.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/leave.db")   // ":memory:" for tests
  if err != nil { ... }
  defer st.Close()

  ledger  := leave.NewLedger(st.Personnel(), st.Entries())
  service := leave.NewService(st.Personnel(), st.Absences(), ledger, logger)

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-engine/leave"
)

// Store owns the database connection. The typed views returned by
// Personnel(), Absences(), and Entries() implement the leave interfaces;
// they all share the connection.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite3 driver serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent service calls.
	db.SetMaxOpenConns(1)

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

// Personnel returns the PersonnelStore view.
func (s *Store) Personnel() leave.PersonnelStore { return &personnelStore{db: s.db} }

// Absences returns the AbsenceStore view.
func (s *Store) Absences() leave.AbsenceStore { return &absenceStore{db: s.db} }

// Entries returns the EntryStore view.
func (s *Store) Entries() leave.EntryStore { return &entryStore{db: s.db} }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personnel (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		employment_type TEXT NOT NULL DEFAULT '',
		leave_balance TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		CHECK (CAST(leave_balance AS NUMERIC) >= 0)
	);

	CREATE TABLE IF NOT EXISTS absences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		personnel_id INTEGER NOT NULL REFERENCES personnel(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		proof_reference TEXT NOT NULL DEFAULT '',
		admin_validated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_personnel
		ON absences(personnel_id);

	-- Append-only: no UPDATE or DELETE is ever issued against this table.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		absence_id INTEGER NOT NULL,
		personnel_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		requested TEXT NOT NULL,
		applied TEXT NOT NULL,
		reverses TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_absence
		ON ledger_entries(absence_id);
	CREATE INDEX IF NOT EXISTS idx_entries_personnel
		ON ledger_entries(personnel_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERSONNEL STORE
// =============================================================================

type personnelStore struct {
	db *sql.DB
}

var _ leave.PersonnelStore = (*personnelStore)(nil)

func (s *personnelStore) Get(ctx context.Context, id leave.PersonnelID) (leave.Personnel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, employment_type, leave_balance, active, created_at
		FROM personnel WHERE id = ?`, int64(id))
	return scanPersonnel(row)
}

func (s *personnelStore) Upsert(ctx context.Context, p leave.Personnel) (leave.Personnel, error) {
	if p.LeaveBalance.IsNegative() {
		return leave.Personnel{}, &leave.InvalidStateError{
			Op:      "personnel upsert",
			Message: "leave balance must not be negative",
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE personnel
		SET first_name = ?, last_name = ?, employment_type = ?, leave_balance = ?, active = ?
		WHERE id = ?`,
		p.FirstName, p.LastName, p.EmploymentType, p.LeaveBalance.String(), p.Active, int64(p.ID))
	if err != nil {
		return leave.Personnel{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return leave.Personnel{}, err
	}
	if n == 0 {
		return leave.Personnel{}, leave.ErrPersonnelNotFound
	}
	return p, nil
}

func (s *personnelStore) Create(ctx context.Context, p leave.Personnel) (leave.Personnel, error) {
	if p.LeaveBalance.IsNegative() {
		return leave.Personnel{}, &leave.InvalidStateError{
			Op:      "personnel create",
			Message: "leave balance must not be negative",
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO personnel (first_name, last_name, employment_type, leave_balance, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.EmploymentType, p.LeaveBalance.String(), p.Active,
		p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return leave.Personnel{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return leave.Personnel{}, err
	}
	p.ID = leave.PersonnelID(id)
	return p, nil
}

func (s *personnelStore) List(ctx context.Context) ([]leave.Personnel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, employment_type, leave_balance, active, created_at
		FROM personnel ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Personnel
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// ABSENCE STORE
// =============================================================================

type absenceStore struct {
	db *sql.DB
}

var _ leave.AbsenceStore = (*absenceStore)(nil)

func (s *absenceStore) Create(ctx context.Context, a leave.Absence) (leave.Absence, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO absences (personnel_id, start_date, end_date, type, reason, proof_reference, admin_validated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(a.PersonnelID), a.Start.String(), a.End.String(), string(a.Type),
		a.Reason, a.ProofReference, a.AdminValidated,
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return leave.Absence{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return leave.Absence{}, err
	}
	a.ID = leave.AbsenceID(id)
	return a, nil
}

func (s *absenceStore) Update(ctx context.Context, a leave.Absence) (leave.Absence, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE absences
		SET personnel_id = ?, start_date = ?, end_date = ?, type = ?, reason = ?,
		    proof_reference = ?, admin_validated = ?, updated_at = ?
		WHERE id = ?`,
		int64(a.PersonnelID), a.Start.String(), a.End.String(), string(a.Type),
		a.Reason, a.ProofReference, a.AdminValidated,
		a.UpdatedAt.Format(time.RFC3339), int64(a.ID))
	if err != nil {
		return leave.Absence{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return leave.Absence{}, err
	}
	if n == 0 {
		return leave.Absence{}, leave.ErrAbsenceNotFound
	}
	return a, nil
}

func (s *absenceStore) Delete(ctx context.Context, id leave.AbsenceID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM absences WHERE id = ?`, int64(id))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *absenceStore) Get(ctx context.Context, id leave.AbsenceID) (leave.Absence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, personnel_id, start_date, end_date, type, reason, proof_reference, admin_validated, created_at, updated_at
		FROM absences WHERE id = ?`, int64(id))
	return scanAbsence(row)
}

func (s *absenceStore) ListByPersonnel(ctx context.Context, id leave.PersonnelID) ([]leave.Absence, error) {
	return s.query(ctx, `
		SELECT id, personnel_id, start_date, end_date, type, reason, proof_reference, admin_validated, created_at, updated_at
		FROM absences WHERE personnel_id = ? ORDER BY id`, int64(id))
}

func (s *absenceStore) ListAll(ctx context.Context) ([]leave.Absence, error) {
	return s.query(ctx, `
		SELECT id, personnel_id, start_date, end_date, type, reason, proof_reference, admin_validated, created_at, updated_at
		FROM absences ORDER BY id`)
}

func (s *absenceStore) query(ctx context.Context, query string, args ...any) ([]leave.Absence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ENTRY STORE
// =============================================================================

type entryStore struct {
	db *sql.DB
}

var _ leave.EntryStore = (*entryStore)(nil)

func (s *entryStore) Append(ctx context.Context, e leave.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, absence_id, personnel_id, kind, requested, applied, reverses, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(e.AbsenceID), int64(e.PersonnelID), string(e.Kind),
		e.Requested.String(), e.Applied.String(), e.Reverses,
		e.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *entryStore) ByAbsence(ctx context.Context, id leave.AbsenceID) ([]leave.Entry, error) {
	return s.query(ctx, `
		SELECT id, absence_id, personnel_id, kind, requested, applied, reverses, created_at
		FROM ledger_entries WHERE absence_id = ? ORDER BY created_at, rowid`, int64(id))
}

func (s *entryStore) ByPersonnel(ctx context.Context, id leave.PersonnelID) ([]leave.Entry, error) {
	return s.query(ctx, `
		SELECT id, absence_id, personnel_id, kind, requested, applied, reverses, created_at
		FROM ledger_entries WHERE personnel_id = ? ORDER BY created_at, rowid`, int64(id))
}

func (s *entryStore) query(ctx context.Context, query string, args ...any) ([]leave.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Entry
	for rows.Next() {
		var (
			e           leave.Entry
			absenceID   int64
			personnelID int64
			kind        string
			requested   string
			applied     string
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &absenceID, &personnelID, &kind, &requested, &applied, &e.Reverses, &createdAt); err != nil {
			return nil, err
		}
		e.AbsenceID = leave.AbsenceID(absenceID)
		e.PersonnelID = leave.PersonnelID(personnelID)
		e.Kind = leave.EntryKind(kind)
		if e.Requested, err = decimal.NewFromString(requested); err != nil {
			return nil, err
		}
		if e.Applied, err = decimal.NewFromString(applied); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanPersonnel(row scanner) (leave.Personnel, error) {
	var (
		p         leave.Personnel
		id        int64
		balance   string
		createdAt string
	)
	err := row.Scan(&id, &p.FirstName, &p.LastName, &p.EmploymentType, &balance, &p.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Personnel{}, leave.ErrPersonnelNotFound
	}
	if err != nil {
		return leave.Personnel{}, err
	}
	p.ID = leave.PersonnelID(id)
	if p.LeaveBalance, err = decimal.NewFromString(balance); err != nil {
		return leave.Personnel{}, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return leave.Personnel{}, err
	}
	return p, nil
}

func scanAbsence(row scanner) (leave.Absence, error) {
	var (
		a           leave.Absence
		id          int64
		personnelID int64
		start       string
		end         string
		typ         string
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&id, &personnelID, &start, &end, &typ, &a.Reason, &a.ProofReference, &a.AdminValidated, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Absence{}, leave.ErrAbsenceNotFound
	}
	if err != nil {
		return leave.Absence{}, err
	}
	a.ID = leave.AbsenceID(id)
	a.PersonnelID = leave.PersonnelID(personnelID)
	a.Type = leave.AbsenceType(typ)
	if a.Start, err = leave.ParseDate(start); err != nil {
		return leave.Absence{}, err
	}
	if a.End, err = leave.ParseDate(end); err != nil {
		return leave.Absence{}, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return leave.Absence{}, err
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return leave.Absence{}, err
	}
	return a, nil
}
