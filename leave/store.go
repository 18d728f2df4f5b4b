/*
store.go - Persistence interfaces for personnel, absences, and ledger entries

PURPOSE:
  Defines the boundary between the domain logic and storage. The engine is
  single-process; implementations may be in-memory (store/memory.go) or
  SQLite-backed (store/sqlite). The ledger and service depend only on these
  interfaces.

CONTRACTS:
  PersonnelStore: Upsert is the ONLY balance-committing write, used by the
    Ledger. It must reject a record whose balance is negative - this protects
    against programmer error in the ledger itself.

  AbsenceStore: Create assigns a fresh identifier from a process-wide
    monotonic counter. Identifiers are never reused after deletion.

  EntryStore: Append-only. No Update, no Delete. Corrections are recorded
    as reversal entries.

SEE ALSO:
  - store/memory.go: In-memory implementations
  - ../store/sqlite/sqlite.go: SQLite implementations
*/
package leave

import "context"

// =============================================================================
// PERSONNEL STORE
// =============================================================================

// PersonnelStore owns the canonical personnel records.
type PersonnelStore interface {
	// Get returns the personnel record, or ErrPersonnelNotFound.
	Get(ctx context.Context, id PersonnelID) (Personnel, error)

	// Upsert replaces the full record for its id. Fails with ErrInvalidState
	// if the record's leave balance is negative, and ErrPersonnelNotFound if
	// the id does not exist. Used exclusively by the Ledger to commit balance
	// changes (and by out-of-scope administration for non-balance fields).
	Upsert(ctx context.Context, p Personnel) (Personnel, error)

	// Create inserts a new personnel record and assigns its id.
	Create(ctx context.Context, p Personnel) (Personnel, error)

	// List returns all personnel records.
	List(ctx context.Context) ([]Personnel, error)
}

// =============================================================================
// ABSENCE STORE
// =============================================================================

// AbsenceStore owns absence records indexed by personnel.
type AbsenceStore interface {
	// Create assigns a fresh unique identifier (monotonically increasing,
	// process-wide), stores the absence, and returns the stored copy.
	Create(ctx context.Context, a Absence) (Absence, error)

	// Update replaces the absence with matching identifier.
	// Fails with ErrAbsenceNotFound if absent.
	Update(ctx context.Context, a Absence) (Absence, error)

	// Delete removes the absence and reports whether it existed.
	// The identifier is never reassigned.
	Delete(ctx context.Context, id AbsenceID) (bool, error)

	// Get returns the absence, or ErrAbsenceNotFound.
	Get(ctx context.Context, id AbsenceID) (Absence, error)

	// ListByPersonnel returns all absences for a personnel, in insertion order.
	ListByPersonnel(ctx context.Context, id PersonnelID) ([]Absence, error)

	// ListAll returns every absence, in insertion order.
	ListAll(ctx context.Context) ([]Absence, error)
}

// =============================================================================
// ENTRY STORE - Append-only ledger persistence
// =============================================================================

// EntryStore persists realized ledger entries. Append-only: reversals are
// recorded as new entries, existing entries are never modified or removed.
// Entries for a deleted absence are kept; they are the audit trail proving
// the balance returned to its prior value.
type EntryStore interface {
	// Append persists an entry.
	Append(ctx context.Context, e Entry) error

	// ByAbsence returns all entries recorded for an absence, oldest first.
	ByAbsence(ctx context.Context, id AbsenceID) ([]Entry, error)

	// ByPersonnel returns all entries recorded for a personnel, oldest first.
	ByPersonnel(ctx context.Context, id PersonnelID) ([]Entry, error)
}
