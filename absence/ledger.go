/*
ledger.go - Entitlement ledger keyed by (employee, year)

PURPOSE:
  Owns the "used" counter of every employee's yearly entitlement. This is
  the only component allowed to change Entitlement.Used.

INVARIANT:
  0 <= Used <= Total for every (employee, year), at every observable moment.

  The balance check and the increment happen inside one critical section
  per (employee, year). Two approvals racing for the last days of a year
  are serialized: the second one re-reads Used after the first committed,
  fails with InsufficientBalanceError (phase "commit") and changes nothing.

RESERVE vs COMMIT:
  Reserve is advisory. It is evaluated when a request is submitted and does
  not change Used, so several PENDING requests may together exceed the
  remaining days. Commit is authoritative and runs at approval.

  ┌──────────┐  Reserve (read)  ┌──────────┐  Commit (lock, re-read, write)
  │  Submit  │ ───────────────▶ │ PENDING  │ ─────────────────────────────▶ APPROVED
  └──────────┘                  └──────────┘

LAZY ENTRIES:
  An entry that was never written is derived from Employee.TotalDays with
  Used = 0. It is persisted on the first write. Changing Employee.TotalDays
  goes through setTotal for the current year, so the employee record and
  that year's entry never disagree.

LOCKING:
  Lock returns the critical section for a set of years. RequestService
  holds it across Store.WithTx so the debit and the status change are
  committed together. Keys are always taken in sorted order.

SEE ALSO:
  - request.go: Approve and Cancel drive Commit and Release
  - generic/locks.go: KeyedMutex
*/
package absence

import (
	"context"
	"fmt"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store Store
	locks generic.KeyedMutex
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func ledgerKey(employeeID string, year int) string {
	return fmt.Sprintf("%s/%d", employeeID, year)
}

// Lock enters the critical section of every (employeeID, year) pair.
// Callers must not call Commit, Release or SetTotal for those pairs while
// holding it; use the unexported variants instead.
func (l *Ledger) Lock(employeeID string, years ...int) (unlock func()) {
	keys := make([]string, len(years))
	for i, y := range years {
		keys[i] = ledgerKey(employeeID, y)
	}
	return l.locks.LockAll(keys...)
}

// GetBalance returns total, used and remaining days for the year.
func (l *Ledger) GetBalance(ctx context.Context, employeeID string, year int) (Balance, error) {
	e, err := l.load(ctx, l.store, employeeID, year)
	if err != nil {
		return Balance{}, err
	}
	return e.Balance(), nil
}

// Reserve checks that days would fit into the remaining entitlement without
// changing anything.
func (l *Ledger) Reserve(ctx context.Context, employeeID string, year, days int) error {
	if err := validateDays(days); err != nil {
		return err
	}
	e, err := l.load(ctx, l.store, employeeID, year)
	if err != nil {
		return err
	}
	return checkFits(e, days, generic.PhaseReserve)
}

// Commit atomically adds days to Used, failing with
// InsufficientBalanceError when Used + days would exceed Total.
func (l *Ledger) Commit(ctx context.Context, employeeID string, year, days int) error {
	unlock := l.Lock(employeeID, year)
	defer unlock()
	return l.commit(ctx, l.store, employeeID, year, days)
}

// Release gives days back. Used never drops below zero.
func (l *Ledger) Release(ctx context.Context, employeeID string, year, days int) error {
	unlock := l.Lock(employeeID, year)
	defer unlock()
	return l.release(ctx, l.store, employeeID, year, days)
}

// SetTotal changes the entitlement of one year. It fails with a
// ValidationError when total is below the days already used.
func (l *Ledger) SetTotal(ctx context.Context, employeeID string, year, total int) (Balance, error) {
	unlock := l.Lock(employeeID, year)
	defer unlock()

	e, err := l.setTotal(ctx, l.store, employeeID, year, total)
	if err != nil {
		return Balance{}, err
	}
	return e.Balance(), nil
}

// =============================================================================
// CRITICAL SECTION BODIES - caller holds Lock(employeeID, year)
// =============================================================================

func (l *Ledger) commit(ctx context.Context, s Store, employeeID string, year, days int) error {
	if err := validateDays(days); err != nil {
		return err
	}
	e, err := l.load(ctx, s, employeeID, year)
	if err != nil {
		return err
	}
	if err := checkFits(e, days, generic.PhaseCommit); err != nil {
		return err
	}
	e.Used += days
	if err := s.SaveEntitlement(ctx, e); err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	return nil
}

func (l *Ledger) setTotal(ctx context.Context, s Store, employeeID string, year, total int) (Entitlement, error) {
	if total < 0 {
		return Entitlement{}, &generic.ValidationError{Field: "total_days", Reason: "must not be negative"}
	}
	e, err := l.load(ctx, s, employeeID, year)
	if err != nil {
		return Entitlement{}, err
	}
	if total < e.Used {
		return Entitlement{}, &generic.ValidationError{
			Field:  "total_days",
			Reason: fmt.Sprintf("%d is below the %d days already used in %d", total, e.Used, year),
		}
	}
	e.Total = total
	if err := s.SaveEntitlement(ctx, e); err != nil {
		return Entitlement{}, fmt.Errorf("save entitlement: %w", err)
	}
	return e, nil
}

func (l *Ledger) release(ctx context.Context, s Store, employeeID string, year, days int) error {
	if err := validateDays(days); err != nil {
		return err
	}
	e, err := l.load(ctx, s, employeeID, year)
	if err != nil {
		return err
	}
	e.Used -= days
	if e.Used < 0 {
		e.Used = 0
	}
	if err := s.SaveEntitlement(ctx, e); err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	return nil
}

// load returns the stored entry or derives a fresh one from the employee.
func (l *Ledger) load(ctx context.Context, s Store, employeeID string, year int) (Entitlement, error) {
	emp, err := s.GetEmployee(ctx, employeeID)
	if err != nil {
		return Entitlement{}, err
	}
	e, ok, err := s.GetEntitlement(ctx, employeeID, year)
	if err != nil {
		return Entitlement{}, fmt.Errorf("load entitlement: %w", err)
	}
	if !ok {
		e = Entitlement{EmployeeID: emp.ID, Year: year, Total: emp.TotalDays}
	}
	return e, nil
}

func validateDays(days int) error {
	if days <= 0 {
		return &generic.ValidationError{Field: "days", Reason: fmt.Sprintf("must be positive, got %d", days)}
	}
	return nil
}

func checkFits(e Entitlement, days int, phase generic.BalancePhase) error {
	if e.Used+days > e.Total {
		return &generic.InsufficientBalanceError{
			EmployeeID: e.EmployeeID,
			Year:       e.Year,
			Total:      e.Total,
			Used:       e.Used,
			Requested:  days,
			Phase:      phase,
		}
	}
	return nil
}
