/*
ledger.go - Balance mutation and exact reversal

PURPOSE:
  The Ledger is the only component allowed to change a Personnel's leave
  balance. It applies the policy table's effects and records every realized
  delta as an immutable Entry, keyed by the absence that caused it.

CRITICAL INVARIANTS:
  1. SINGLE WRITER: Balance changes go through Charge, ApplyValidationPenalty,
     Recharge, and Restore. Nothing else calls PersonnelStore.Upsert with a
     changed balance.
  2. NEVER NEGATIVE: Annual-leave charges fail rather than overdraw; the
     unjustified penalty clamps at zero.
  3. EXACT REVERSAL: Restore reverses the recorded realized deltas, not the
     nominal policy amounts. A penalty clamped from 6 to 4 restores 4.
  4. APPEND-ONLY ENTRIES: Reversals are new entries referencing what they
     undo; history is never rewritten.

WHY REALIZED DELTAS?
  The clamp loses information: from (type=UNJUSTIFIED, validated=true) alone
  you cannot tell whether 2*duration was actually deducted or less. Restoring
  the nominal amount after a clamp would mint leave days out of thin air.
  Recording the applied amount per absence makes restore exact in every
  ordering of create / validate / invalidate / delete.

IDEMPOTENCE:
  Effects are applied relative to the absence's RECORDED state. A second
  charge or a second penalty for the same absence fails with ErrInvalidState
  instead of double-deducting.

SEE ALSO:
  - policy.go: The per-type deltas
  - store.go: EntryStore contract
  - service.go: Serializes ledger calls per personnel
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger orchestrates balance mutations against the PersonnelStore, recording
// realized deltas in the EntryStore.
//
// The Ledger itself is not goroutine-safe for a given personnel: callers must
// serialize balance-mutating operations per personnel id (the Service does).
type Ledger struct {
	personnel PersonnelStore
	entries   EntryStore
}

// NewLedger creates a ledger over the given stores.
func NewLedger(personnel PersonnelStore, entries EntryStore) *Ledger {
	return &Ledger{personnel: personnel, entries: entries}
}

// Balance returns the current leave balance for a personnel.
func (l *Ledger) Balance(ctx context.Context, id PersonnelID) (decimal.Decimal, error) {
	p, err := l.personnel.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.LeaveBalance, nil
}

// Entries returns the realized-delta history for an absence, oldest first.
func (l *Ledger) Entries(ctx context.Context, id AbsenceID) ([]Entry, error) {
	return l.entries.ByAbsence(ctx, id)
}

// EntriesByPersonnel returns the realized-delta history for a personnel.
func (l *Ledger) EntriesByPersonnel(ctx context.Context, id PersonnelID) ([]Entry, error) {
	return l.entries.ByPersonnel(ctx, id)
}

// =============================================================================
// CHARGE - Creation-time effect
// =============================================================================

// Charge applies the creation-time effect of an absence and returns the new
// balance. For types that are never charged at creation this is a no-op that
// returns the current balance unchanged.
//
// Fails with InsufficientBalanceError if an annual-leave charge would drive
// the balance negative, and ErrInvalidState if a live charge is already
// recorded for this absence.
func (l *Ledger) Charge(ctx context.Context, personnelID PersonnelID, absenceID AbsenceID, t AbsenceType, duration int) (decimal.Decimal, error) {
	p, err := l.personnel.Get(ctx, personnelID)
	if err != nil {
		return decimal.Zero, err
	}

	delta := creationCharge(t, duration)
	if delta.IsZero() {
		return p.LeaveBalance, nil
	}

	live, err := l.liveEntries(ctx, absenceID)
	if err != nil {
		return decimal.Zero, err
	}
	if hasKind(live, EntryCharge) {
		return decimal.Zero, &InvalidStateError{Op: "charge", Message: "absence already charged"}
	}

	newBalance := p.LeaveBalance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, &InsufficientBalanceError{
			PersonnelID: personnelID,
			Available:   p.LeaveBalance,
			Requested:   delta.Neg(),
		}
	}

	return l.commit(ctx, p, newBalance, Entry{
		AbsenceID:   absenceID,
		PersonnelID: personnelID,
		Kind:        EntryCharge,
		Requested:   delta,
		Applied:     delta,
	})
}

// =============================================================================
// PENALTY - Validation-time effect
// =============================================================================

// ApplyValidationPenalty deducts the unjustified-absence penalty, clamped so
// the balance never goes below zero. Returns the new balance.
//
// Must be called exactly once per false->true validation transition; a second
// call with the penalty still in force fails with ErrInvalidState.
func (l *Ledger) ApplyValidationPenalty(ctx context.Context, personnelID PersonnelID, absenceID AbsenceID, duration int) (decimal.Decimal, error) {
	p, err := l.personnel.Get(ctx, personnelID)
	if err != nil {
		return decimal.Zero, err
	}

	live, err := l.liveEntries(ctx, absenceID)
	if err != nil {
		return decimal.Zero, err
	}
	if hasKind(live, EntryPenalty) {
		return decimal.Zero, &InvalidStateError{Op: "penalty", Message: "penalty already applied"}
	}

	nominal := validationPenalty(duration)
	applied := nominal
	if p.LeaveBalance.Add(nominal).IsNegative() {
		// Clamp: cap the deduction at the remaining balance.
		applied = p.LeaveBalance.Neg()
	}

	return l.commit(ctx, p, p.LeaveBalance.Add(applied), Entry{
		AbsenceID:   absenceID,
		PersonnelID: personnelID,
		Kind:        EntryPenalty,
		Requested:   nominal,
		Applied:     applied,
	})
}

// =============================================================================
// RESTORE - Exact reversal
// =============================================================================

// Restore reverses every effect currently in force for the absence (creation
// charge and/or validation penalty) and returns the new balance. Used on
// deletion. A no-op returning the current balance when nothing is in force.
func (l *Ledger) Restore(ctx context.Context, personnelID PersonnelID, absenceID AbsenceID) (decimal.Decimal, error) {
	return l.reverse(ctx, personnelID, absenceID, func(Entry) bool { return true })
}

// RestorePenalty reverses only the validation penalty, leaving any creation
// charge in force. Used when an unjustified absence is un-validated.
func (l *Ledger) RestorePenalty(ctx context.Context, personnelID PersonnelID, absenceID AbsenceID) (decimal.Decimal, error) {
	return l.reverse(ctx, personnelID, absenceID, func(e Entry) bool { return e.Kind == EntryPenalty })
}

func (l *Ledger) reverse(ctx context.Context, personnelID PersonnelID, absenceID AbsenceID, match func(Entry) bool) (decimal.Decimal, error) {
	p, err := l.personnel.Get(ctx, personnelID)
	if err != nil {
		return decimal.Zero, err
	}

	live, err := l.liveEntries(ctx, absenceID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := p.LeaveBalance
	for _, e := range live {
		if !match(e) {
			continue
		}
		balance = balance.Sub(e.Applied)
		balance, err = l.commit(ctx, p, balance, Entry{
			AbsenceID:   absenceID,
			PersonnelID: personnelID,
			Kind:        EntryReversal,
			Requested:   e.Applied.Neg(),
			Applied:     e.Applied.Neg(),
			Reverses:    e.ID,
		})
		if err != nil {
			return decimal.Zero, err
		}
		p.LeaveBalance = balance
	}
	return p.LeaveBalance, nil
}

// =============================================================================
// RECHARGE - Duration edits on a charged absence
// =============================================================================

// Recharge replaces the creation charge of an absence with the charge for a
// new duration, as one arithmetic step: the old realized charge is credited
// back and the new one deducted. Fails with InsufficientBalanceError, without
// mutating anything, if the swap would overdraw the balance.
func (l *Ledger) Recharge(ctx context.Context, personnelID PersonnelID, absenceID AbsenceID, t AbsenceType, newDuration int) (decimal.Decimal, error) {
	p, err := l.personnel.Get(ctx, personnelID)
	if err != nil {
		return decimal.Zero, err
	}

	live, err := l.liveEntries(ctx, absenceID)
	if err != nil {
		return decimal.Zero, err
	}

	var restored decimal.Decimal
	var charges []Entry
	for _, e := range live {
		if e.Kind == EntryCharge {
			restored = restored.Sub(e.Applied)
			charges = append(charges, e)
		}
	}

	delta := creationCharge(t, newDuration)
	newBalance := p.LeaveBalance.Add(restored).Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, &InsufficientBalanceError{
			PersonnelID: personnelID,
			Available:   p.LeaveBalance.Add(restored),
			Requested:   delta.Neg(),
		}
	}

	// Reverse the old charges, then record the new one.
	for _, e := range charges {
		p.LeaveBalance = p.LeaveBalance.Sub(e.Applied)
		if p.LeaveBalance, err = l.commit(ctx, p, p.LeaveBalance, Entry{
			AbsenceID:   absenceID,
			PersonnelID: personnelID,
			Kind:        EntryReversal,
			Requested:   e.Applied.Neg(),
			Applied:     e.Applied.Neg(),
			Reverses:    e.ID,
		}); err != nil {
			return decimal.Zero, err
		}
	}
	if delta.IsZero() {
		return p.LeaveBalance, nil
	}
	return l.commit(ctx, p, p.LeaveBalance.Add(delta), Entry{
		AbsenceID:   absenceID,
		PersonnelID: personnelID,
		Kind:        EntryCharge,
		Requested:   delta,
		Applied:     delta,
	})
}

// =============================================================================
// INTERNALS
// =============================================================================

// commit writes the new balance through PersonnelStore.Upsert and appends the
// entry that explains it. The Upsert's negative-balance rejection is the last
// line of defense against arithmetic mistakes above.
func (l *Ledger) commit(ctx context.Context, p Personnel, newBalance decimal.Decimal, e Entry) (decimal.Decimal, error) {
	p.LeaveBalance = newBalance
	if _, err := l.personnel.Upsert(ctx, p); err != nil {
		return decimal.Zero, err
	}

	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	if err := l.entries.Append(ctx, e); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// liveEntries returns the entries for an absence that are still in force,
// i.e. charges and penalties not referenced by any reversal.
func (l *Ledger) liveEntries(ctx context.Context, absenceID AbsenceID) ([]Entry, error) {
	all, err := l.entries.ByAbsence(ctx, absenceID)
	if err != nil {
		return nil, err
	}

	reversed := make(map[string]bool)
	for _, e := range all {
		if e.Kind == EntryReversal && e.Reverses != "" {
			reversed[e.Reverses] = true
		}
	}

	var live []Entry
	for _, e := range all {
		if e.Kind != EntryReversal && !reversed[e.ID] {
			live = append(live, e)
		}
	}
	return live, nil
}

func hasKind(entries []Entry, kind EntryKind) bool {
	for _, e := range entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
