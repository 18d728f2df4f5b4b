/*
service.go - Orchestration facade for absence operations

PURPOSE:
  The Service is the boundary callers use: create, update, validate, and
  delete absences, plus read-only queries. It composes AbsenceStore and
  Ledger so that every compound operation is all-or-nothing.

STATE MACHINE (per absence; only AdminValidated is stored):
  Created     -> charges the ledger per the policy table
  Validated   -> applies the penalty if UNJUSTIFIED
  Invalidated -> reverses the penalty if it had been applied
  Deleted     -> reverses whatever net effect is in force, then removes
                 the record (delete is blocked if reversal fails)

CONCURRENCY:
  Every operation that touches both the absence store and the balance runs
  inside a per-personnel critical section (striped locks). Operations on
  different personnel do not serialize against each other. Critical sections
  are pure in-memory arithmetic; no I/O is added inside them beyond the
  store calls themselves.

ERROR CONTRACT:
  Failures are explicit result values, never swallowed. A ledger failure
  mid-operation rolls back the absence-store mutation already performed.
  Messages propagate unchanged; degradation to "something went wrong" is
  the UI's business, not ours.

SEE ALSO:
  - ledger.go: The balance effects this service triggers
  - store.go: The store contracts it composes
*/
package leave

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// lockStripes is the size of the per-personnel lock table. Collisions between
// distinct personnel are harmless; they only cost unnecessary serialization.
const lockStripes = 64

// =============================================================================
// SERVICE
// =============================================================================

// Service is the facade exposed to callers.
type Service struct {
	personnel PersonnelStore
	absences  AbsenceStore
	ledger    *Ledger
	log       *logrus.Logger

	locks [lockStripes]sync.Mutex
}

// NewService wires the facade. The ledger must be built over the same
// personnel store.
func NewService(personnel PersonnelStore, absences AbsenceStore, ledger *Ledger, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		personnel: personnel,
		absences:  absences,
		ledger:    ledger,
		log:       log,
	}
}

// lockFor returns the critical-section lock for a personnel id.
func (s *Service) lockFor(id PersonnelID) *sync.Mutex {
	return &s.locks[uint64(id)%lockStripes]
}

// =============================================================================
// CREATE
// =============================================================================

// CreateAbsence validates the draft, persists it, and applies the
// creation-time balance effect. All-or-nothing: if the charge fails, the
// freshly created record is rolled back.
func (s *Service) CreateAbsence(ctx context.Context, draft Absence) (Absence, error) {
	if err := validateDraft(draft); err != nil {
		return Absence{}, err
	}
	if _, err := s.personnel.Get(ctx, draft.PersonnelID); err != nil {
		return Absence{}, err
	}

	mu := s.lockFor(draft.PersonnelID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	draft.AdminValidated = false // always starts unvalidated
	draft.CreatedAt = now
	draft.UpdatedAt = now

	created, err := s.absences.Create(ctx, draft)
	if err != nil {
		return Absence{}, err
	}

	balance, err := s.ledger.Charge(ctx, created.PersonnelID, created.ID, created.Type, created.Duration())
	if err != nil {
		// Creation is all-or-nothing: remove the record we just stored.
		if _, delErr := s.absences.Delete(ctx, created.ID); delErr != nil {
			s.log.WithError(delErr).WithField("absence_id", created.ID).
				Error("rollback of absence record failed after charge failure")
		}
		return Absence{}, err
	}

	s.log.WithFields(logrus.Fields{
		"absence_id":   created.ID,
		"personnel_id": created.PersonnelID,
		"type":         created.Type,
		"duration":     created.Duration(),
		"balance":      balance.String(),
	}).Info("absence created")

	return created, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateAbsence replaces the descriptive fields of an absence. Fields that
// carry ledger effects are constrained:
//
//   - PersonnelID and Type never change; reclassification is delete+recreate.
//   - AdminValidated is ignored here; use SetValidation.
//   - Date edits that change the duration of a charged ANNUAL_LEAVE adjust
//     the charge by the difference (failing InsufficientBalance leaves
//     everything untouched).
//   - Date edits on a validated UNJUSTIFIED absence are rejected: the
//     realized penalty would no longer match any duration. Invalidate first.
func (s *Service) UpdateAbsence(ctx context.Context, updated Absence) (Absence, error) {
	current, err := s.absences.Get(ctx, updated.ID)
	if err != nil {
		return Absence{}, err
	}
	if updated.PersonnelID != 0 && updated.PersonnelID != current.PersonnelID {
		return Absence{}, &InvalidStateError{Op: "update", Message: "an absence cannot move between personnel"}
	}
	if updated.Type != "" && updated.Type != current.Type {
		return Absence{}, &InvalidStateError{Op: "update", Message: "absence type is immutable; delete and recreate"}
	}

	next := current
	next.Start = updated.Start
	next.End = updated.End
	next.Reason = updated.Reason
	next.ProofReference = updated.ProofReference
	if err := validateDraft(next); err != nil {
		return Absence{}, err
	}

	mu := s.lockFor(current.PersonnelID)
	mu.Lock()
	defer mu.Unlock()

	if next.Duration() != current.Duration() {
		if current.Type == TypeUnjustified && current.AdminValidated {
			return Absence{}, &InvalidStateError{
				Op:      "update",
				Message: "cannot change the dates of a validated unjustified absence",
			}
		}
		if ChargedAtCreation(current.Type) {
			if _, err := s.ledger.Recharge(ctx, current.PersonnelID, current.ID, current.Type, next.Duration()); err != nil {
				return Absence{}, err
			}
		}
	}

	next.UpdatedAt = time.Now().UTC()
	return s.absences.Update(ctx, next)
}

// =============================================================================
// VALIDATE / INVALIDATE
// =============================================================================

// SetValidation toggles the administrator validation flag. On a false->true
// transition of an UNJUSTIFIED absence the penalty is applied; on true->false
// the penalty portion (and only that) is reversed. Setting the flag to its
// current value is a no-op.
func (s *Service) SetValidation(ctx context.Context, id AbsenceID, validate bool) (Absence, error) {
	a, err := s.absences.Get(ctx, id)
	if err != nil {
		return Absence{}, err
	}

	mu := s.lockFor(a.PersonnelID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock; a concurrent toggle may have won.
	if a, err = s.absences.Get(ctx, id); err != nil {
		return Absence{}, err
	}
	if a.AdminValidated == validate {
		return a, nil
	}

	if PenalizedAtValidation(a.Type) {
		if validate {
			balance, err := s.ledger.ApplyValidationPenalty(ctx, a.PersonnelID, a.ID, a.Duration())
			if err != nil {
				return Absence{}, err
			}
			s.log.WithFields(logrus.Fields{
				"absence_id":   a.ID,
				"personnel_id": a.PersonnelID,
				"balance":      balance.String(),
			}).Info("unjustified absence validated, penalty applied")
		} else {
			balance, err := s.ledger.RestorePenalty(ctx, a.PersonnelID, a.ID)
			if err != nil {
				return Absence{}, err
			}
			s.log.WithFields(logrus.Fields{
				"absence_id":   a.ID,
				"personnel_id": a.PersonnelID,
				"balance":      balance.String(),
			}).Info("unjustified absence invalidated, penalty reversed")
		}
	}

	a.AdminValidated = validate
	a.UpdatedAt = time.Now().UTC()
	stored, err := s.absences.Update(ctx, a)
	if err != nil {
		// The record write failed after the ledger moved; put the ledger back.
		if PenalizedAtValidation(a.Type) {
			if validate {
				_, _ = s.ledger.RestorePenalty(ctx, a.PersonnelID, a.ID)
			} else {
				_, _ = s.ledger.ApplyValidationPenalty(ctx, a.PersonnelID, a.ID, a.Duration())
			}
		}
		return Absence{}, err
	}
	return stored, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteAbsence reverses every balance effect currently in force for the
// absence, then removes the record. Reports whether the absence existed.
// If the reversal fails the record is NOT deleted.
func (s *Service) DeleteAbsence(ctx context.Context, id AbsenceID) (bool, error) {
	a, err := s.absences.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	mu := s.lockFor(a.PersonnelID)
	mu.Lock()
	defer mu.Unlock()

	balance, err := s.ledger.Restore(ctx, a.PersonnelID, id)
	if err != nil {
		return false, err
	}

	existed, err := s.absences.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	s.log.WithFields(logrus.Fields{
		"absence_id":   id,
		"personnel_id": a.PersonnelID,
		"balance":      balance.String(),
	}).Info("absence deleted, balance restored")

	return existed, nil
}

// =============================================================================
// READS
// =============================================================================

// GetAbsence returns a single absence.
func (s *Service) GetAbsence(ctx context.Context, id AbsenceID) (Absence, error) {
	return s.absences.Get(ctx, id)
}

// ListByPersonnel returns all absences for a personnel, insertion-ordered.
func (s *Service) ListByPersonnel(ctx context.Context, id PersonnelID) ([]Absence, error) {
	if _, err := s.personnel.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.absences.ListByPersonnel(ctx, id)
}

// Filter narrows ListAbsences results. Zero-valued fields do not filter.
type Filter struct {
	Type      *AbsenceType
	Validated *bool
	Query     string // case-insensitive substring match on the reason
}

// ListAbsences returns all absences matching the filter.
func (s *Service) ListAbsences(ctx context.Context, f Filter) ([]Absence, error) {
	all, err := s.absences.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []Absence
	for _, a := range all {
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Validated != nil && a.AdminValidated != *f.Validated {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(a.Reason), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// GetPersonnel returns a personnel record.
func (s *Service) GetPersonnel(ctx context.Context, id PersonnelID) (Personnel, error) {
	return s.personnel.Get(ctx, id)
}

// CreatePersonnel creates a personnel record with an opening balance.
func (s *Service) CreatePersonnel(ctx context.Context, p Personnel) (Personnel, error) {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return Personnel{}, &ValidationError{Field: "name", Message: "first and last name are required"}
	}
	created, err := s.personnel.Create(ctx, p)
	if err != nil {
		return Personnel{}, err
	}
	s.log.WithFields(logrus.Fields{
		"personnel_id": created.ID,
		"balance":      created.LeaveBalance.String(),
	}).Info("personnel created")
	return created, nil
}

// ListPersonnel returns all personnel records.
func (s *Service) ListPersonnel(ctx context.Context) ([]Personnel, error) {
	return s.personnel.List(ctx)
}

// Balance returns the current leave balance for a personnel.
func (s *Service) Balance(ctx context.Context, id PersonnelID) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, id)
}

// LedgerEntries returns the realized-delta history for an absence.
func (s *Service) LedgerEntries(ctx context.Context, id AbsenceID) ([]Entry, error) {
	return s.ledger.Entries(ctx, id)
}

// LedgerEntriesByPersonnel returns the realized-delta history for a personnel.
func (s *Service) LedgerEntriesByPersonnel(ctx context.Context, id PersonnelID) ([]Entry, error) {
	if _, err := s.personnel.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.EntriesByPersonnel(ctx, id)
}

// =============================================================================
// DRAFT VALIDATION
// =============================================================================

func validateDraft(a Absence) error {
	if _, err := ParseAbsenceType(string(a.Type)); err != nil {
		return err
	}
	if a.Start.IsZero() || a.End.IsZero() {
		return &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if a.End.Before(a.Start) {
		return &ValidationError{Field: "end_date", Message: "end date must not precede start date"}
	}
	if RequiresReason(a.Type) && strings.TrimSpace(a.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "a reason is required for " + string(a.Type) + " absences"}
	}
	return nil
}
