// Package memory provides an in-memory absence.TxStore for tests and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	s  *state
}

func New() *Memory {
	return &Memory{s: newState()}
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = newState()
	return nil
}

type entKey struct {
	EmployeeID string
	Year       int
}

// state holds the tables. Its methods do no locking.
type state struct {
	employees    map[string]absence.Employee
	regions      map[string]absence.Region
	holidays     map[string]generic.Holiday
	requests     map[string]absence.Request
	entitlements map[entKey]absence.Entitlement
}

func newState() *state {
	return &state{
		employees:    make(map[string]absence.Employee),
		regions:      make(map[string]absence.Region),
		holidays:     make(map[string]generic.Holiday),
		requests:     make(map[string]absence.Request),
		entitlements: make(map[entKey]absence.Entitlement),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.regions {
		c.regions[k] = v
	}
	for k, v := range s.holidays {
		c.holidays[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.entitlements {
		c.entitlements[k] = v
	}
	return c
}

// =============================================================================
// TABLE OPERATIONS
// =============================================================================

func (s *state) getEmployee(id string) (absence.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return absence.Employee{}, &generic.NotFoundError{Kind: "employee", ID: id}
	}
	return e, nil
}

func (s *state) listEmployees(f absence.EmployeeFilter) []absence.Employee {
	var out []absence.Employee
	for _, e := range s.employees {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) checkRegionName(r absence.Region) error {
	for _, other := range s.regions {
		if other.ID != r.ID && other.Name == r.Name {
			return fmt.Errorf("region name %q is taken by %s: %w", r.Name, other.ID, generic.ErrConflict)
		}
	}
	return nil
}

func (s *state) getRegion(id string) (absence.Region, error) {
	r, ok := s.regions[id]
	if !ok {
		return absence.Region{}, &generic.NotFoundError{Kind: "region", ID: id}
	}
	return r, nil
}

func (s *state) listRegions() []absence.Region {
	out := make([]absence.Region, 0, len(s.regions))
	for _, r := range s.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *state) listHolidays(regionID string) []generic.Holiday {
	var out []generic.Holiday
	for _, h := range s.holidays {
		if h.RegionID == "" || h.RegionID == regionID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *state) getRequest(id string) (absence.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return absence.Request{}, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return r.Clone(), nil
}

func (s *state) listRequests(f absence.RequestFilter) []absence.Request {
	var out []absence.Request
	for _, r := range s.requests {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sortRequests(out)
	return out
}

func sortRequests(reqs []absence.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if !a.Period.Start.Equal(b.Period.Start) {
			return a.Period.Start.Before(b.Period.Start)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e absence.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.employees[e.ID] = e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getEmployee(id)
}

func (m *Memory) ListEmployees(_ context.Context, f absence.EmployeeFilter) ([]absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listEmployees(f), nil
}

func (m *Memory) SaveRegion(_ context.Context, r absence.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.s.checkRegionName(r); err != nil {
		return err
	}
	m.s.regions[r.ID] = r
	return nil
}

func (m *Memory) GetRegion(_ context.Context, id string) (absence.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getRegion(id)
}

func (m *Memory) ListRegions(_ context.Context) ([]absence.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listRegions(), nil
}

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.s.holidays[id]; !ok {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	delete(m.s.holidays, id)
	return nil
}

func (m *Memory) ListHolidays(_ context.Context, regionID string) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listHolidays(regionID), nil
}

// HolidaysFor implements generic.HolidayCalendar.
func (m *Memory) HolidaysFor(_ context.Context, regionID string, year int) (generic.HolidaySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return generic.HolidaysForYear(m.s.listHolidays(regionID), regionID, year), nil
}

func (m *Memory) SaveRequest(_ context.Context, r absence.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.requests[r.ID] = r.Clone()
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.getRequest(id)
}

func (m *Memory) ListRequests(_ context.Context, f absence.RequestFilter) ([]absence.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.listRequests(f), nil
}

func (m *Memory) GetEntitlement(_ context.Context, employeeID string, year int) (absence.Entitlement, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.s.entitlements[entKey{employeeID, year}]
	return e, ok, nil
}

func (m *Memory) SaveEntitlement(_ context.Context, e absence.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.entitlements[entKey{e.EmployeeID, e.Year}] = e
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a view that buffers writes and applies them on
// success. The store lock is only taken for reads and for the final apply,
// so transactions on unrelated rows run in parallel.
func (m *Memory) WithTx(ctx context.Context, fn func(absence.Store) error) error {
	tx := &txView{parent: m, writes: newState(), deleted: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	return m.apply(tx)
}

func (m *Memory) apply(tx *txView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range tx.writes.regions {
		if err := m.s.checkRegionName(r); err != nil {
			return err
		}
	}
	for k, v := range tx.writes.employees {
		m.s.employees[k] = v
	}
	for k, v := range tx.writes.regions {
		m.s.regions[k] = v
	}
	for k := range tx.deleted {
		delete(m.s.holidays, k)
	}
	for k, v := range tx.writes.holidays {
		m.s.holidays[k] = v
	}
	for k, v := range tx.writes.requests {
		m.s.requests[k] = v
	}
	for k, v := range tx.writes.entitlements {
		m.s.entitlements[k] = v
	}
	return nil
}

var _ absence.TxStore = (*Memory)(nil)

// txView reads its own writes first, then the parent.
type txView struct {
	parent  *Memory
	writes  *state
	deleted map[string]bool // holiday IDs
}

var _ absence.Store = (*txView)(nil)

// merged is the parent state with the buffered writes applied.
func (t *txView) merged() *state {
	t.parent.mu.RLock()
	s := t.parent.s.clone()
	t.parent.mu.RUnlock()
	for k := range t.deleted {
		delete(s.holidays, k)
	}
	for k, v := range t.writes.employees {
		s.employees[k] = v
	}
	for k, v := range t.writes.regions {
		s.regions[k] = v
	}
	for k, v := range t.writes.holidays {
		s.holidays[k] = v
	}
	for k, v := range t.writes.requests {
		s.requests[k] = v
	}
	for k, v := range t.writes.entitlements {
		s.entitlements[k] = v
	}
	return s
}

func (t *txView) SaveEmployee(_ context.Context, e absence.Employee) error {
	t.writes.employees[e.ID] = e
	return nil
}

func (t *txView) GetEmployee(ctx context.Context, id string) (absence.Employee, error) {
	if e, ok := t.writes.employees[id]; ok {
		return e, nil
	}
	return t.parent.GetEmployee(ctx, id)
}

func (t *txView) ListEmployees(_ context.Context, f absence.EmployeeFilter) ([]absence.Employee, error) {
	return t.merged().listEmployees(f), nil
}

func (t *txView) SaveRegion(_ context.Context, r absence.Region) error {
	if err := t.merged().checkRegionName(r); err != nil {
		return err
	}
	t.writes.regions[r.ID] = r
	return nil
}

func (t *txView) GetRegion(ctx context.Context, id string) (absence.Region, error) {
	if r, ok := t.writes.regions[id]; ok {
		return r, nil
	}
	return t.parent.GetRegion(ctx, id)
}

func (t *txView) ListRegions(_ context.Context) ([]absence.Region, error) {
	return t.merged().listRegions(), nil
}

func (t *txView) SaveHoliday(_ context.Context, h generic.Holiday) error {
	delete(t.deleted, h.ID)
	t.writes.holidays[h.ID] = h
	return nil
}

func (t *txView) DeleteHoliday(_ context.Context, id string) error {
	if _, ok := t.merged().holidays[id]; !ok {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	delete(t.writes.holidays, id)
	t.deleted[id] = true
	return nil
}

func (t *txView) ListHolidays(_ context.Context, regionID string) ([]generic.Holiday, error) {
	return t.merged().listHolidays(regionID), nil
}

func (t *txView) HolidaysFor(_ context.Context, regionID string, year int) (generic.HolidaySet, error) {
	return generic.HolidaysForYear(t.merged().listHolidays(regionID), regionID, year), nil
}

func (t *txView) SaveRequest(_ context.Context, r absence.Request) error {
	t.writes.requests[r.ID] = r.Clone()
	return nil
}

func (t *txView) GetRequest(ctx context.Context, id string) (absence.Request, error) {
	if r, ok := t.writes.requests[id]; ok {
		return r.Clone(), nil
	}
	return t.parent.GetRequest(ctx, id)
}

func (t *txView) ListRequests(_ context.Context, f absence.RequestFilter) ([]absence.Request, error) {
	return t.merged().listRequests(f), nil
}

func (t *txView) GetEntitlement(ctx context.Context, employeeID string, year int) (absence.Entitlement, bool, error) {
	if e, ok := t.writes.entitlements[entKey{employeeID, year}]; ok {
		return e, true, nil
	}
	return t.parent.GetEntitlement(ctx, employeeID, year)
}

func (t *txView) SaveEntitlement(_ context.Context, e absence.Entitlement) error {
	t.writes.entitlements[entKey{e.EmployeeID, e.Year}] = e
	return nil
}
