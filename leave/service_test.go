package leave_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-engine/leave"
	memstore "github.com/hrcore/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*leave.Service, *memstore.MemoryPersonnel) {
	t.Helper()
	personnel := memstore.NewMemoryPersonnel()
	absences := memstore.NewMemoryAbsence()
	entries := memstore.NewMemoryEntries()
	ledger := leave.NewLedger(personnel, entries)
	return leave.NewService(personnel, absences, ledger, nil), personnel
}

func seedPersonnel(t *testing.T, svc *leave.Service, balance int) leave.Personnel {
	t.Helper()
	p, err := svc.CreatePersonnel(context.Background(), leave.Personnel{
		FirstName:    "Karim",
		LastName:     "Haddad",
		LeaveBalance: leave.Days(balance),
		Active:       true,
	})
	require.NoError(t, err)
	return p
}

func draft(personnelID leave.PersonnelID, typ leave.AbsenceType, startDay, endDay int) leave.Absence {
	return leave.Absence{
		PersonnelID: personnelID,
		Start:       leave.NewDate(2026, 3, startDay),
		End:         leave.NewDate(2026, 3, endDay),
		Type:        typ,
		Reason:      "family event",
	}
}

func balanceOf(t *testing.T, svc *leave.Service, id leave.PersonnelID) int64 {
	t.Helper()
	b, err := svc.Balance(context.Background(), id)
	require.NoError(t, err)
	require.True(t, b.IsInteger(), "balance %s should be a whole day count", b)
	return b.IntPart()
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestService_CreateAbsence_AnnualLeave_ChargesBalance(t *testing.T) {
	// GIVEN: A personnel with 30 days
	// WHEN: A 5-day annual leave (March 2-6) is created
	// THEN: The record exists unvalidated and the balance is 25

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	created, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	assert.Equal(t, 5, created.Duration())
	assert.False(t, created.AdminValidated, "absences always start unvalidated")
	assert.EqualValues(t, 25, balanceOf(t, svc, p.ID))
}

func TestService_CreateAbsence_SingleDay_ChargesOne(t *testing.T) {
	// GIVEN: A personnel with 30 days
	// WHEN: An annual leave with start == end is created
	// THEN: Exactly one day is charged (duration is inclusive)

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	created, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 10, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, created.Duration())
	assert.EqualValues(t, 29, balanceOf(t, svc, p.ID))
}

func TestService_CreateAbsence_InsufficientBalance_NothingPersisted(t *testing.T) {
	// GIVEN: A personnel with 3 days
	// WHEN: A 5-day annual leave is created
	// THEN: The operation fails and neither record nor charge survives

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 3)

	_, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	absences, err := svc.ListByPersonnel(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, absences, "a failed creation must not leave a record behind")
	assert.EqualValues(t, 3, balanceOf(t, svc, p.ID))
}

func TestService_CreateAbsence_SickAndExceptional_NeverCharged(t *testing.T) {
	// GIVEN: A personnel with 30 days
	// WHEN: Long SICK and EXCEPTIONAL absences are created
	// THEN: The balance never moves

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	_, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeSick, 1, 20))
	require.NoError(t, err)
	_, err = svc.CreateAbsence(ctx, draft(p.ID, leave.TypeExceptional, 21, 25))
	require.NoError(t, err)

	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID))
}

func TestService_CreateAbsence_Validation(t *testing.T) {
	// GIVEN: A personnel with 30 days
	// WHEN: Drafts with a bad type, reversed dates, or a missing mandatory
	//       reason are submitted
	// THEN: Each is rejected with a validation error

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	bad := draft(p.ID, "HOLIDAY", 2, 6)
	_, err := svc.CreateAbsence(ctx, bad)
	assert.ErrorIs(t, err, leave.ErrValidation, "unknown type")

	bad = draft(p.ID, leave.TypeAnnualLeave, 6, 2)
	_, err = svc.CreateAbsence(ctx, bad)
	assert.ErrorIs(t, err, leave.ErrValidation, "end before start")

	bad = draft(p.ID, leave.TypeUnjustified, 2, 6)
	bad.Reason = "   "
	_, err = svc.CreateAbsence(ctx, bad)
	assert.ErrorIs(t, err, leave.ErrValidation, "unjustified needs a reason")

	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID))
}

func TestService_CreateAbsence_UnknownPersonnel_NotFound(t *testing.T) {
	// GIVEN: No personnel records
	// WHEN: An absence references personnel 42
	// THEN: The creation fails with a not-found error

	svc, _ := newTestService(t)

	_, err := svc.CreateAbsence(context.Background(), draft(42, leave.TypeSick, 2, 6))
	assert.True(t, leave.IsNotFound(err))
}

// =============================================================================
// VALIDATION TOGGLE TESTS
// =============================================================================

func TestService_SetValidation_Unjustified_PenaltyLifecycle(t *testing.T) {
	// GIVEN: A 3-day unjustified absence against a 30-day balance
	// WHEN: The absence is validated, then invalidated
	// THEN: Validation deducts 6 (2x duration); invalidation restores it

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 2, 4))
	require.NoError(t, err)
	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID), "no charge at creation")

	validated, err := svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)
	assert.True(t, validated.AdminValidated)
	assert.EqualValues(t, 24, balanceOf(t, svc, p.ID))

	invalidated, err := svc.SetValidation(ctx, a.ID, false)
	require.NoError(t, err)
	assert.False(t, invalidated.AdminValidated)
	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID))
}

func TestService_SetValidation_SameValue_NoOp(t *testing.T) {
	// GIVEN: A validated unjustified absence
	// WHEN: It is validated again
	// THEN: No second penalty is applied

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 2, 4))
	require.NoError(t, err)

	_, err = svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)
	_, err = svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)

	assert.EqualValues(t, 24, balanceOf(t, svc, p.ID))
}

func TestService_SetValidation_OtherTypes_NoBalanceEffect(t *testing.T) {
	// GIVEN: An annual leave already charged at creation
	// WHEN: An administrator validates it
	// THEN: The flag flips but the balance stays where the charge left it

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	validated, err := svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)
	assert.True(t, validated.AdminValidated)
	assert.EqualValues(t, 25, balanceOf(t, svc, p.ID))
}

func TestService_SetValidation_ClampThenRestore_Exact(t *testing.T) {
	// GIVEN: A 3-day unjustified absence against a 4-day balance
	// WHEN: Validation clamps the penalty at 4, then the flag is cleared
	// THEN: Exactly 4 days return, landing back on the original balance

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 4)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 2, 4))
	require.NoError(t, err)

	_, err = svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balanceOf(t, svc, p.ID))

	_, err = svc.SetValidation(ctx, a.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 4, balanceOf(t, svc, p.ID))
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestService_UpdateAbsence_DurationChange_AdjustsCharge(t *testing.T) {
	// GIVEN: A 5-day annual leave charged against 30 (25 left)
	// WHEN: The dates are extended to 7 days
	// THEN: The balance lands on 23

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	edit := a
	edit.End = leave.NewDate(2026, 3, 8)
	updated, err := svc.UpdateAbsence(ctx, edit)
	require.NoError(t, err)

	assert.Equal(t, 7, updated.Duration())
	assert.EqualValues(t, 23, balanceOf(t, svc, p.ID))
}

func TestService_UpdateAbsence_DurationChange_InsufficientBalance_Untouched(t *testing.T) {
	// GIVEN: A 5-day annual leave against a 6-day balance (1 left)
	// WHEN: An extension to 10 days is attempted
	// THEN: The update fails; dates and balance are unchanged

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 6)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	edit := a
	edit.End = leave.NewDate(2026, 3, 11)
	_, err = svc.UpdateAbsence(ctx, edit)
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	stored, err := svc.GetAbsence(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Duration())
	assert.EqualValues(t, 1, balanceOf(t, svc, p.ID))
}

func TestService_UpdateAbsence_TypeChange_Rejected(t *testing.T) {
	// GIVEN: An existing annual leave
	// WHEN: An update tries to reclassify it as SICK
	// THEN: The update fails with ErrInvalidState

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	edit := a
	edit.Type = leave.TypeSick
	_, err = svc.UpdateAbsence(ctx, edit)
	assert.ErrorIs(t, err, leave.ErrInvalidState)
}

func TestService_UpdateAbsence_ValidatedUnjustified_DatesFrozen(t *testing.T) {
	// GIVEN: A validated unjustified absence with its penalty in force
	// WHEN: An update tries to change its dates
	// THEN: The update fails; the caller must invalidate first

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 2, 4))
	require.NoError(t, err)
	_, err = svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)

	edit := a
	edit.End = leave.NewDate(2026, 3, 6)
	_, err = svc.UpdateAbsence(ctx, edit)
	assert.ErrorIs(t, err, leave.ErrInvalidState)
}

func TestService_UpdateAbsence_DescriptiveFields_NoLedgerEffect(t *testing.T) {
	// GIVEN: A charged annual leave
	// WHEN: Only the reason and proof reference change
	// THEN: The update succeeds with no balance movement

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	edit := a
	edit.Reason = "summer trip"
	edit.ProofReference = "doc-17"
	updated, err := svc.UpdateAbsence(ctx, edit)
	require.NoError(t, err)

	assert.Equal(t, "summer trip", updated.Reason)
	assert.True(t, updated.Justified())
	assert.EqualValues(t, 25, balanceOf(t, svc, p.ID))
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestService_DeleteAbsence_RestoresCharge(t *testing.T) {
	// GIVEN: A 5-day annual leave charged against 30
	// WHEN: The absence is deleted
	// THEN: The balance returns to 30 and the record is gone

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)

	existed, err := svc.DeleteAbsence(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID))

	_, err = svc.GetAbsence(ctx, a.ID)
	assert.True(t, leave.IsNotFound(err))
}

func TestService_DeleteAbsence_ValidatedUnjustified_RestoresPenalty(t *testing.T) {
	// GIVEN: A validated 3-day unjustified absence (penalty 6 in force)
	// WHEN: The absence is deleted without invalidating first
	// THEN: The penalty is restored along with the record

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	a, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 2, 4))
	require.NoError(t, err)
	_, err = svc.SetValidation(ctx, a.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 24, balanceOf(t, svc, p.ID))

	existed, err := svc.DeleteAbsence(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID))
}

func TestService_DeleteAbsence_Missing_ReportsFalse(t *testing.T) {
	// GIVEN: No absence with id 99
	// WHEN: Deletion is requested
	// THEN: The service reports (false, nil) rather than an error

	svc, _ := newTestService(t)

	existed, err := svc.DeleteAbsence(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, existed)
}

// =============================================================================
// COMPOSABILITY AND SCENARIO TESTS
// =============================================================================

func TestService_FullLifecycle_BalanceRoundTrip(t *testing.T) {
	// GIVEN: A personnel with 30 days
	// WHEN: annual(5) -> 25; unjustified(3) validated -> 19;
	//       invalidated -> 25; annual deleted -> 30
	// THEN: Every intermediate balance matches and the trip is exact

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	annual, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)
	assert.EqualValues(t, 25, balanceOf(t, svc, p.ID))

	unjustified, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 9, 11))
	require.NoError(t, err)
	assert.EqualValues(t, 25, balanceOf(t, svc, p.ID))

	_, err = svc.SetValidation(ctx, unjustified.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 19, balanceOf(t, svc, p.ID))

	_, err = svc.SetValidation(ctx, unjustified.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 25, balanceOf(t, svc, p.ID))

	existed, err := svc.DeleteAbsence(ctx, annual.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.EqualValues(t, 30, balanceOf(t, svc, p.ID))
}

func TestService_ConcurrentCreates_ExactlyOneWins(t *testing.T) {
	// GIVEN: A personnel with 5 days
	// WHEN: Two 5-day annual leaves are created concurrently
	// THEN: Exactly one succeeds; the balance ends at zero, never negative

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, leave.ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok, "exactly one create should win")
	assert.Equal(t, 1, insufficient)
	assert.EqualValues(t, 0, balanceOf(t, svc, p.ID))
}

func TestService_AbsenceIDs_MonotonicAcrossDeletion(t *testing.T) {
	// GIVEN: An absence created and deleted
	// WHEN: A new absence is created afterwards
	// THEN: The new id is strictly greater; deleted ids are never reused

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	first, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeSick, 2, 4))
	require.NoError(t, err)
	_, err = svc.DeleteAbsence(ctx, first.ID)
	require.NoError(t, err)

	second, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeSick, 9, 10))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestService_ListAbsences_Filters(t *testing.T) {
	// GIVEN: A mix of absence types and validation states
	// WHEN: Listing with type, validated, and reason-substring filters
	// THEN: Each filter narrows the result set as expected

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	_, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 3))
	require.NoError(t, err)
	sick := draft(p.ID, leave.TypeSick, 5, 6)
	sick.Reason = "flu recovery"
	_, err = svc.CreateAbsence(ctx, sick)
	require.NoError(t, err)
	unjust, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 9, 9))
	require.NoError(t, err)
	_, err = svc.SetValidation(ctx, unjust.ID, true)
	require.NoError(t, err)

	all, err := svc.ListAbsences(ctx, leave.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	typ := leave.TypeSick
	byType, err := svc.ListAbsences(ctx, leave.Filter{Type: &typ})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, leave.TypeSick, byType[0].Type)

	validated := true
	byFlag, err := svc.ListAbsences(ctx, leave.Filter{Validated: &validated})
	require.NoError(t, err)
	require.Len(t, byFlag, 1)
	assert.Equal(t, unjust.ID, byFlag[0].ID)

	byQuery, err := svc.ListAbsences(ctx, leave.Filter{Query: "FLU"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "flu recovery", byQuery[0].Reason)
}

func TestService_LedgerEntriesByPersonnel_TellsTheWholeStory(t *testing.T) {
	// GIVEN: A charge, a penalty, and a penalty reversal for one personnel
	// WHEN: The per-personnel ledger history is read
	// THEN: All realized deltas are present in order

	svc, _ := newTestService(t)
	ctx := context.Background()
	p := seedPersonnel(t, svc, 30)

	_, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeAnnualLeave, 2, 6))
	require.NoError(t, err)
	unjust, err := svc.CreateAbsence(ctx, draft(p.ID, leave.TypeUnjustified, 9, 9))
	require.NoError(t, err)
	_, err = svc.SetValidation(ctx, unjust.ID, true)
	require.NoError(t, err)
	_, err = svc.SetValidation(ctx, unjust.ID, false)
	require.NoError(t, err)

	entries, err := svc.LedgerEntriesByPersonnel(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, leave.EntryCharge, entries[0].Kind)
	assert.Equal(t, leave.EntryPenalty, entries[1].Kind)
	assert.Equal(t, leave.EntryReversal, entries[2].Kind)
}
