package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrcore/leave-engine/leave"
	"github.com/hrcore/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestService(t *testing.T) (*leave.Service, *sqlite.Store) {
	t.Helper()
	st := newTestStore(t)
	ledger := leave.NewLedger(st.Personnel(), st.Entries())
	return leave.NewService(st.Personnel(), st.Absences(), ledger, nil), st
}

func createPersonnel(t *testing.T, st *sqlite.Store, balance int) leave.Personnel {
	t.Helper()
	p, err := st.Personnel().Create(context.Background(), leave.Personnel{
		FirstName:    "Lina",
		LastName:     "Mansouri",
		LeaveBalance: leave.Days(balance),
		Active:       true,
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// PERSONNEL STORE TESTS
// =============================================================================

func TestSQLite_Personnel_CreateAndGet(t *testing.T) {
	// GIVEN: An empty database
	// WHEN: A personnel record is created and read back
	// THEN: All fields survive the round trip, balance included

	st := newTestStore(t)
	ctx := context.Background()

	created := createPersonnel(t, st, 30)
	assert.NotZero(t, created.ID)

	got, err := st.Personnel().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lina", got.FirstName)
	assert.Equal(t, "Mansouri", got.LastName)
	assert.True(t, got.LeaveBalance.Equal(leave.Days(30)))
	assert.True(t, got.Active)
}

func TestSQLite_Personnel_GetMissing_NotFound(t *testing.T) {
	// GIVEN: An empty database
	// WHEN: Personnel 42 is requested
	// THEN: ErrPersonnelNotFound comes back

	st := newTestStore(t)

	_, err := st.Personnel().Get(context.Background(), 42)
	assert.ErrorIs(t, err, leave.ErrPersonnelNotFound)
}

func TestSQLite_Personnel_Upsert_RejectsNegativeBalance(t *testing.T) {
	// GIVEN: A stored personnel record
	// WHEN: An upsert tries to write a negative balance
	// THEN: The write is rejected before it reaches the database

	st := newTestStore(t)
	ctx := context.Background()
	p := createPersonnel(t, st, 30)

	p.LeaveBalance = leave.Days(1).Neg()
	_, err := st.Personnel().Upsert(ctx, p)
	assert.ErrorIs(t, err, leave.ErrInvalidState)

	got, err := st.Personnel().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.LeaveBalance.Equal(leave.Days(30)))
}

// =============================================================================
// ABSENCE STORE TESTS
// =============================================================================

func TestSQLite_Absence_CRUD(t *testing.T) {
	// GIVEN: A stored personnel record
	// WHEN: An absence is created, read, updated, and deleted
	// THEN: Every step round-trips; deletion reports existence

	st := newTestStore(t)
	ctx := context.Background()
	p := createPersonnel(t, st, 30)

	a, err := st.Absences().Create(ctx, leave.Absence{
		PersonnelID: p.ID,
		Start:       leave.NewDate(2026, 3, 2),
		End:         leave.NewDate(2026, 3, 6),
		Type:        leave.TypeAnnualLeave,
	})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)

	got, err := st.Absences().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Duration())
	assert.Equal(t, leave.TypeAnnualLeave, got.Type)

	got.Reason = "spring break"
	got.AdminValidated = true
	updated, err := st.Absences().Update(ctx, got)
	require.NoError(t, err)
	assert.True(t, updated.AdminValidated)

	existed, err := st.Absences().Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = st.Absences().Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestSQLite_Absence_IDsMonotonicAcrossDeletion(t *testing.T) {
	// GIVEN: An absence created and deleted
	// WHEN: A second absence is created
	// THEN: AUTOINCREMENT keeps the new id strictly greater

	st := newTestStore(t)
	ctx := context.Background()
	p := createPersonnel(t, st, 30)

	mk := func() leave.Absence {
		a, err := st.Absences().Create(ctx, leave.Absence{
			PersonnelID: p.ID,
			Start:       leave.NewDate(2026, 3, 2),
			End:         leave.NewDate(2026, 3, 3),
			Type:        leave.TypeSick,
		})
		require.NoError(t, err)
		return a
	}

	first := mk()
	_, err := st.Absences().Delete(ctx, first.ID)
	require.NoError(t, err)

	second := mk()
	assert.Greater(t, second.ID, first.ID)
}

func TestSQLite_Absence_ListByPersonnel(t *testing.T) {
	// GIVEN: Absences belonging to two different personnel
	// WHEN: Listing by one personnel id
	// THEN: Only that personnel's absences come back, insertion-ordered

	st := newTestStore(t)
	ctx := context.Background()
	p1 := createPersonnel(t, st, 30)
	p2 := createPersonnel(t, st, 30)

	for _, pid := range []leave.PersonnelID{p1.ID, p2.ID, p1.ID} {
		_, err := st.Absences().Create(ctx, leave.Absence{
			PersonnelID: pid,
			Start:       leave.NewDate(2026, 3, 2),
			End:         leave.NewDate(2026, 3, 3),
			Type:        leave.TypeSick,
		})
		require.NoError(t, err)
	}

	mine, err := st.Absences().ListByPersonnel(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Less(t, mine[0].ID, mine[1].ID)

	all, err := st.Absences().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// ENTRY STORE TESTS
// =============================================================================

func TestSQLite_Entries_AppendAndQuery(t *testing.T) {
	// GIVEN: Ledger entries for two absences of one personnel
	// WHEN: Querying by absence and by personnel
	// THEN: Decimal amounts and kinds survive the round trip

	st := newTestStore(t)
	ctx := context.Background()
	p := createPersonnel(t, st, 30)

	e1 := leave.Entry{
		ID:          "entry-1",
		AbsenceID:   1,
		PersonnelID: p.ID,
		Kind:        leave.EntryCharge,
		Requested:   leave.Days(5).Neg(),
		Applied:     leave.Days(5).Neg(),
	}
	e2 := leave.Entry{
		ID:          "entry-2",
		AbsenceID:   2,
		PersonnelID: p.ID,
		Kind:        leave.EntryPenalty,
		Requested:   leave.Days(6).Neg(),
		Applied:     leave.Days(4).Neg(),
	}
	require.NoError(t, st.Entries().Append(ctx, e1))
	require.NoError(t, st.Entries().Append(ctx, e2))

	byAbsence, err := st.Entries().ByAbsence(ctx, 2)
	require.NoError(t, err)
	require.Len(t, byAbsence, 1)
	assert.Equal(t, leave.EntryPenalty, byAbsence[0].Kind)
	assert.True(t, byAbsence[0].Requested.Equal(leave.Days(6).Neg()))
	assert.True(t, byAbsence[0].Applied.Equal(leave.Days(4).Neg()))

	byPersonnel, err := st.Entries().ByPersonnel(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, byPersonnel, 2)
}

// =============================================================================
// FULL STACK TESTS - Service over SQLite
// =============================================================================

func TestSQLite_Service_FullLifecycle(t *testing.T) {
	// GIVEN: The full service wired over a SQLite store
	// WHEN: annual(5) -> validate unjustified(3) -> invalidate -> delete annual
	// THEN: The balance walks 30 -> 25 -> 19 -> 25 -> 30

	svc, st := newTestService(t)
	ctx := context.Background()
	p := createPersonnel(t, st, 30)

	check := func(want int) {
		t.Helper()
		b, err := svc.Balance(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, b.Equal(leave.Days(want)), "want %d, got %s", want, b)
	}

	annual, err := svc.CreateAbsence(ctx, leave.Absence{
		PersonnelID: p.ID,
		Start:       leave.NewDate(2026, 3, 2),
		End:         leave.NewDate(2026, 3, 6),
		Type:        leave.TypeAnnualLeave,
	})
	require.NoError(t, err)
	check(25)

	unjust, err := svc.CreateAbsence(ctx, leave.Absence{
		PersonnelID: p.ID,
		Start:       leave.NewDate(2026, 3, 9),
		End:         leave.NewDate(2026, 3, 11),
		Type:        leave.TypeUnjustified,
		Reason:      "no call no show",
	})
	require.NoError(t, err)
	check(25)

	_, err = svc.SetValidation(ctx, unjust.ID, true)
	require.NoError(t, err)
	check(19)

	_, err = svc.SetValidation(ctx, unjust.ID, false)
	require.NoError(t, err)
	check(25)

	existed, err := svc.DeleteAbsence(ctx, annual.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	check(30)
}

func TestSQLite_Service_InsufficientBalance_NothingPersisted(t *testing.T) {
	// GIVEN: A personnel with 3 days in SQLite
	// WHEN: A 5-day annual leave is attempted
	// THEN: No absence row and no ledger row survive

	svc, st := newTestService(t)
	ctx := context.Background()
	p := createPersonnel(t, st, 3)

	_, err := svc.CreateAbsence(ctx, leave.Absence{
		PersonnelID: p.ID,
		Start:       leave.NewDate(2026, 3, 2),
		End:         leave.NewDate(2026, 3, 6),
		Type:        leave.TypeAnnualLeave,
	})
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	absences, err := st.Absences().ListByPersonnel(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, absences)

	entries, err := st.Entries().ByPersonnel(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
