/*
Package store provides in-memory implementations of the leave storage
interfaces, used for tests and single-process deployments without a
database file.

STRUCTURE:
  Absences are held in a primary map (id -> Absence) plus an explicit index
  (personnel id -> ordered absence ids), maintained consistently on every
  mutation. Identifiers come from an atomic monotonic counter and are never
  reused after deletion.

CONCURRENCY:
  Each store guards its maps with a sync.RWMutex. Reads return copies;
  callers never see shared mutable state.

SEE ALSO:
  - ../store.go: The interface contracts
  - ../../store/sqlite/sqlite.go: The SQLite-backed equivalents
*/
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrcore/leave-engine/leave"
)

// =============================================================================
// PERSONNEL STORE
// =============================================================================

// MemoryPersonnel is an in-memory leave.PersonnelStore.
type MemoryPersonnel struct {
	mu     sync.RWMutex
	byID   map[leave.PersonnelID]leave.Personnel
	nextID int64
}

var _ leave.PersonnelStore = (*MemoryPersonnel)(nil)

// NewMemoryPersonnel creates an empty personnel store.
func NewMemoryPersonnel() *MemoryPersonnel {
	return &MemoryPersonnel{byID: make(map[leave.PersonnelID]leave.Personnel)}
}

func (m *MemoryPersonnel) Get(_ context.Context, id leave.PersonnelID) (leave.Personnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return leave.Personnel{}, leave.ErrPersonnelNotFound
	}
	return p, nil
}

func (m *MemoryPersonnel) Upsert(_ context.Context, p leave.Personnel) (leave.Personnel, error) {
	if p.LeaveBalance.IsNegative() {
		return leave.Personnel{}, &leave.InvalidStateError{
			Op:      "personnel upsert",
			Message: "leave balance must not be negative",
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[p.ID]; !ok {
		return leave.Personnel{}, leave.ErrPersonnelNotFound
	}
	m.byID[p.ID] = p
	return p, nil
}

func (m *MemoryPersonnel) Create(_ context.Context, p leave.Personnel) (leave.Personnel, error) {
	if p.LeaveBalance.IsNegative() {
		return leave.Personnel{}, &leave.InvalidStateError{
			Op:      "personnel create",
			Message: "leave balance must not be negative",
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p.ID = leave.PersonnelID(m.nextID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.byID[p.ID] = p
	return p, nil
}

func (m *MemoryPersonnel) List(_ context.Context) ([]leave.Personnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]leave.Personnel, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ABSENCE STORE
// =============================================================================

// MemoryAbsence is an in-memory leave.AbsenceStore with a primary map plus a
// per-personnel id index.
type MemoryAbsence struct {
	mu          sync.RWMutex
	byID        map[leave.AbsenceID]leave.Absence
	byPersonnel map[leave.PersonnelID][]leave.AbsenceID
	nextID      atomic.Int64
}

var _ leave.AbsenceStore = (*MemoryAbsence)(nil)

// NewMemoryAbsence creates an empty absence store.
func NewMemoryAbsence() *MemoryAbsence {
	return &MemoryAbsence{
		byID:        make(map[leave.AbsenceID]leave.Absence),
		byPersonnel: make(map[leave.PersonnelID][]leave.AbsenceID),
	}
}

func (m *MemoryAbsence) Create(_ context.Context, a leave.Absence) (leave.Absence, error) {
	// Atomic monotonic counter: ids stay unique and ordered even under
	// concurrent creates, and deletion never frees one for reuse.
	a.ID = leave.AbsenceID(m.nextID.Add(1))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[a.ID] = a
	m.byPersonnel[a.PersonnelID] = append(m.byPersonnel[a.PersonnelID], a.ID)
	return a, nil
}

func (m *MemoryAbsence) Update(_ context.Context, a leave.Absence) (leave.Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[a.ID]
	if !ok {
		return leave.Absence{}, leave.ErrAbsenceNotFound
	}
	if current.PersonnelID != a.PersonnelID {
		m.unindexLocked(current)
		m.byPersonnel[a.PersonnelID] = append(m.byPersonnel[a.PersonnelID], a.ID)
	}
	m.byID[a.ID] = a
	return a, nil
}

func (m *MemoryAbsence) Delete(_ context.Context, id leave.AbsenceID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	delete(m.byID, id)
	m.unindexLocked(a)
	return true, nil
}

func (m *MemoryAbsence) unindexLocked(a leave.Absence) {
	ids := m.byPersonnel[a.PersonnelID]
	for i, id := range ids {
		if id == a.ID {
			m.byPersonnel[a.PersonnelID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func (m *MemoryAbsence) Get(_ context.Context, id leave.AbsenceID) (leave.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return leave.Absence{}, leave.ErrAbsenceNotFound
	}
	return a, nil
}

func (m *MemoryAbsence) ListByPersonnel(_ context.Context, id leave.PersonnelID) ([]leave.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byPersonnel[id]
	out := make([]leave.Absence, 0, len(ids))
	for _, aid := range ids {
		out = append(out, m.byID[aid])
	}
	return out, nil
}

func (m *MemoryAbsence) ListAll(_ context.Context) ([]leave.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]leave.Absence, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	// Insertion order == id order with a monotonic counter.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ENTRY STORE
// =============================================================================

// MemoryEntries is an in-memory, append-only leave.EntryStore.
type MemoryEntries struct {
	mu          sync.RWMutex
	byAbsence   map[leave.AbsenceID][]leave.Entry
	byPersonnel map[leave.PersonnelID][]leave.Entry
}

var _ leave.EntryStore = (*MemoryEntries)(nil)

// NewMemoryEntries creates an empty entry store.
func NewMemoryEntries() *MemoryEntries {
	return &MemoryEntries{
		byAbsence:   make(map[leave.AbsenceID][]leave.Entry),
		byPersonnel: make(map[leave.PersonnelID][]leave.Entry),
	}
}

func (m *MemoryEntries) Append(_ context.Context, e leave.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byAbsence[e.AbsenceID] = append(m.byAbsence[e.AbsenceID], e)
	m.byPersonnel[e.PersonnelID] = append(m.byPersonnel[e.PersonnelID], e)
	return nil
}

func (m *MemoryEntries) ByAbsence(_ context.Context, id leave.AbsenceID) ([]leave.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]leave.Entry, len(m.byAbsence[id]))
	copy(out, m.byAbsence[id])
	return out, nil
}

func (m *MemoryEntries) ByPersonnel(_ context.Context, id leave.PersonnelID) ([]leave.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]leave.Entry, len(m.byPersonnel[id]))
	copy(out, m.byPersonnel[id])
	return out, nil
}
