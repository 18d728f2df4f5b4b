/*
Package leave implements the leave-balance accounting engine.

PURPOSE:
  This package contains the domain types and the policy/ledger/service
  logic that keeps a personnel record's leave balance consistent as
  absence records are created, validated, edited, restored, or deleted.

KEY CONCEPTS IN THIS FILE (types.go):
  - Personnel: An employee record carrying the mutable leave balance
  - Absence: A record of a personnel member being away (type, dates, state)
  - Date: A date-only point in time (absences are day-granular)
  - Entry: An immutable ledger record of a realized balance change

DESIGN PRINCIPLES:
  1. Immutability: Entities are value types; mutation is compute-new-and-replace
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Reversibility: Every applied balance effect is recorded with its
     realized amount, so reversal is always exact (even after a clamp)
  4. Single writer: Only the Ledger ever changes a leave balance

SEE ALSO:
  - policy.go: The absence-type policy table
  - ledger.go: Balance mutation and reversal
  - service.go: The orchestration facade exposed to callers
*/
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// PersonnelID identifies a personnel record. Assigned on creation, opaque.
type PersonnelID int64

// AbsenceID identifies an absence record. Assigned on creation, monotonically
// increasing, never reused after deletion.
type AbsenceID int64

// =============================================================================
// ABSENCE TYPE
// =============================================================================

// AbsenceType classifies an absence and determines its balance effect.
type AbsenceType string

const (
	// TypeAnnualLeave is paid vacation, charged against the balance at creation.
	TypeAnnualLeave AbsenceType = "ANNUAL_LEAVE"
	// TypeSick is a sick absence, never charged.
	TypeSick AbsenceType = "SICK"
	// TypeExceptional is an exceptional absence (family event etc.), never charged.
	TypeExceptional AbsenceType = "EXCEPTIONAL"
	// TypeUnjustified is an unvouched absence, penalized once an administrator
	// validates it.
	TypeUnjustified AbsenceType = "UNJUSTIFIED"
)

// ParseAbsenceType converts a string to an AbsenceType.
func ParseAbsenceType(s string) (AbsenceType, error) {
	switch AbsenceType(s) {
	case TypeAnnualLeave, TypeSick, TypeExceptional, TypeUnjustified:
		return AbsenceType(s), nil
	}
	return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown absence type %q", s)}
}

// =============================================================================
// DATE - Day-granular point in time
// =============================================================================

// Date is a date-only value. Absence boundaries are day-granular; all dates
// are normalized to midnight UTC.
type Date struct {
	Time time.Time
}

// NewDate constructs a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysInclusive returns the day count of [from, to], inclusive of both ends.
// DaysInclusive(Jan 1, Jan 5) == 5.
func DaysInclusive(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours()/24) + 1
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// Days returns a decimal day count. All balances and deltas are day amounts.
func Days(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// ParseBalance parses a decimal day amount, rejecting negative values.
func ParseBalance(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "leave_balance", Message: "not a decimal number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "leave_balance", Message: "must not be negative"}
	}
	return d, nil
}

// =============================================================================
// PERSONNEL
// =============================================================================

// Personnel is a canonical personnel record. LeaveBalance is the number of
// paid-leave days currently available; it is never negative at rest and is
// only ever changed by the Ledger.
type Personnel struct {
	ID             PersonnelID
	FirstName      string
	LastName       string
	EmploymentType string
	LeaveBalance   decimal.Decimal
	Active         bool
	CreatedAt      time.Time
}

// =============================================================================
// ABSENCE
// =============================================================================

// Absence records a personnel member being away. The identifier is assigned
// on creation and immutable thereafter.
type Absence struct {
	ID             AbsenceID
	PersonnelID    PersonnelID
	Start          Date
	End            Date
	Type           AbsenceType
	Reason         string
	ProofReference string
	AdminValidated bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Duration returns the inclusive day count of the absence.
func (a Absence) Duration() int {
	return DaysInclusive(a.Start, a.End)
}

// Justified reports whether the absence carries a proof document and is not
// of the unjustified type.
func (a Absence) Justified() bool {
	return a.Type != TypeUnjustified && a.ProofReference != ""
}

// =============================================================================
// LEDGER ENTRY - Realized balance change, keyed by absence
// =============================================================================

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	// EntryCharge is the creation-time deduction (annual leave).
	EntryCharge EntryKind = "charge"
	// EntryPenalty is the validation-time penalty (unjustified absence).
	EntryPenalty EntryKind = "penalty"
	// EntryReversal undoes a previous entry. Reversals reference the entry
	// they undo; the ledger never deletes entries.
	EntryReversal EntryKind = "reversal"
)

// Entry is an immutable record of one applied balance effect.
//
// Requested is the nominal delta the policy called for; Applied is the delta
// that actually reached the balance. The two differ when the zero-clamp caps
// a penalty. Restore always reverses Applied, which is what makes clamped
// penalties exactly reversible.
type Entry struct {
	ID          string
	AbsenceID   AbsenceID
	PersonnelID PersonnelID
	Kind        EntryKind
	Requested   decimal.Decimal
	Applied     decimal.Decimal
	Reverses    string // ID of the entry this one undoes (reversals only)
	CreatedAt   time.Time
}
