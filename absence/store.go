/*
store.go - Persistence contract for the absence engine

PURPOSE:
  Defines the interface between the domain logic and the database.
  The engine never talks SQL; it talks to a Store. Two implementations
  ship with the repository.

KEY INTERFACES:
  Store:   Employees, regions, holidays, requests and ledger entries
  TxStore: Store plus WithTx for atomic multi-row writes

NOT-FOUND CONTRACT:
  Get* methods return a *generic.NotFoundError (errors.Is(err,
  generic.ErrNotFound)) when the row doesn't exist. GetEntitlement is the
  exception: a missing ledger row is normal (it is created lazily) and is
  reported through the boolean.

ATOMICITY:
  WithTx runs fn against a transactional view. If fn returns an error, none
  of its writes are visible afterwards. Approving a request commits the
  ledger debit and the status change in one WithTx call, so a failed
  approval never leaves a partial debit behind.

  WithTx gives atomicity, not isolation between unrelated callers: the
  ledger's per-(employee, year) locks provide the isolation the balance
  check needs.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests and demos

SEE ALSO:
  - ledger.go: Uses GetEntitlement/SaveEntitlement inside the critical section
  - request.go: Uses WithTx for approve and cancel
*/
package absence

import (
	"context"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// FILTERS
// =============================================================================

// EmployeeFilter narrows ListEmployees. Zero value = every employee.
type EmployeeFilter struct {
	RegionID   *string // nil = any region; pointer to "" = employees without region
	ActiveOnly bool
}

// RequestFilter narrows ListRequests. Zero value = every request.
type RequestFilter struct {
	EmployeeIDs []string        // nil = any employee; empty non-nil = none
	Statuses    []Status        // empty = any status
	Overlapping *generic.Period // only requests intersecting this period
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	generic.HolidayCalendar

	// Employees
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)

	// Regions. SaveRegion returns generic.ErrConflict when another region has the same name.
	SaveRegion(ctx context.Context, r Region) error
	GetRegion(ctx context.Context, id string) (Region, error)
	ListRegions(ctx context.Context) ([]Region, error)

	// Holidays. ListHolidays includes global holidays.
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context, regionID string) ([]generic.Holiday, error)

	// Requests, ordered by start date then creation time.
	SaveRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)

	// Ledger entries
	GetEntitlement(ctx context.Context, employeeID string, year int) (Entitlement, bool, error)
	SaveEntitlement(ctx context.Context, e Entitlement) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Matches reports whether r passes the filter. Used by stores that filter in Go.
func (f RequestFilter) Matches(r Request) bool {
	if f.EmployeeIDs != nil {
		found := false
		for _, id := range f.EmployeeIDs {
			if id == r.EmployeeID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == r.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Overlapping != nil && !r.Period.Overlaps(*f.Overlapping) {
		return false
	}
	return true
}

// Matches reports whether e passes the filter.
func (f EmployeeFilter) Matches(e Employee) bool {
	if f.ActiveOnly && !e.Active {
		return false
	}
	if f.RegionID != nil && e.RegionID != *f.RegionID {
		return false
	}
	return true
}
