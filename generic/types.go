/*
Package generic provides the domain-agnostic building blocks of the absence engine.

PURPOSE:
  This package contains the calendar arithmetic, error taxonomy and
  coordination primitives the absence domain is built on. Nothing here
  knows about employees, regions or request statuses.

KEY CONCEPTS:
  - TimePoint: A calendar day (time.go)
  - Period: An inclusive day range with overlap/intersection (period.go)
  - HolidaySet / HolidayCalendar: Days that never count as business days (time.go)
  - BusinessDays: Weekday-and-holiday aware day counting (workdays.go)
  - Allocation: Business days split per calendar year (this file)
  - KeyedMutex: Per-key critical sections (locks.go)
  - AuditEvent / AuditSink: Outbound audit contract (audit.go)

DESIGN PRINCIPLES:
  1. Determinism: Day counting is a pure function of its inputs
  2. Explicit failures: Bad ranges fail with ValidationError, never coerced
  3. Value types: TimePoint and Period are compared by day, never by clock

SEE ALSO:
  - errors.go: Error taxonomy shared by every package
  - absence/: The domain built on top of these primitives
*/
package generic

import "sort"

// =============================================================================
// ALLOCATION - Business days per calendar year
// =============================================================================

// Allocation maps a calendar year to the number of business days a request
// consumes in that year. Entitlements are yearly, so a request spanning
// New Year debits two ledger entries.
type Allocation map[int]int

// Total is the sum over all years.
func (a Allocation) Total() int {
	n := 0
	for _, d := range a {
		n += d
	}
	return n
}

// Years returns the allocated years in ascending order.
func (a Allocation) Years() []int {
	years := make([]int, 0, len(a))
	for y := range a {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Equal reports whether both allocations debit the same days in the same years.
func (a Allocation) Equal(b Allocation) bool {
	if len(a) != len(b) {
		return false
	}
	for y, d := range a {
		if b[y] != d {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (a Allocation) Clone() Allocation {
	c := make(Allocation, len(a))
	for y, d := range a {
		c[y] = d
	}
	return c
}
