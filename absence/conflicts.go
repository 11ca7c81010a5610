package absence

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// CONFLICT DETECTOR - Overlaps and team concurrency
// =============================================================================

// ConflictDetector answers "who is away when" questions. It only reads.
type ConflictDetector struct {
	store Store
}

func NewConflictDetector(store Store) *ConflictDetector {
	return &ConflictDetector{store: store}
}

var activeStatuses = []Status{StatusPending, StatusApproved}

// MaxConcurrencyDays bounds the range of a per-day concurrency or overload
// query. One leap year fits.
const MaxConcurrencyDays = 366

// FindOverlaps returns the employee's PENDING or APPROVED requests that share
// at least one day with p. excludingID, when set, is left out of the result
// (a request never conflicts with itself).
func (d *ConflictDetector) FindOverlaps(ctx context.Context, employeeID string, p generic.Period, excludingID string) ([]Request, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	reqs, err := d.store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: []string{employeeID},
		Statuses:    activeStatuses,
		Overlapping: &p,
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := reqs[:0]
	for _, r := range reqs {
		if r.ID != excludingID {
			out = append(out, r)
		}
	}
	return out, nil
}

// DayCounts maps each day of a range to a number of employees. Keys are
// normalized with generic.FromTime. Serialized as {"2024-08-12": 3, ...}.
type DayCounts map[generic.TimePoint]int

// On returns the count for day d.
func (c DayCounts) On(d generic.TimePoint) int { return c[generic.FromTime(d.Time)] }

// Days returns the keys in ascending order.
func (c DayCounts) Days() []generic.TimePoint {
	days := make([]generic.TimePoint, 0, len(c))
	for d := range c {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// TeamConcurrency counts, for every day of p, how many distinct active
// employees of the region have a PENDING or APPROVED request covering it.
// Every day of p is present in the result, zero included. regionID "" is
// the team of employees without a region.
func (d *ConflictDetector) TeamConcurrency(ctx context.Context, regionID string, p generic.Period) (DayCounts, error) {
	_, counts, err := d.teamConcurrency(ctx, regionID, p)
	return counts, err
}

// teamConcurrency also returns the team size, which the overload analyzer needs.
func (d *ConflictDetector) teamConcurrency(ctx context.Context, regionID string, p generic.Period) (int, DayCounts, error) {
	if err := p.Validate(); err != nil {
		return 0, nil, err
	}
	if n := p.Len(); n > MaxConcurrencyDays {
		return 0, nil, &generic.ValidationError{
			Field:  "period",
			Reason: fmt.Sprintf("%s spans %d days, at most %d allowed", p, n, MaxConcurrencyDays),
		}
	}
	if regionID != "" {
		if _, err := d.store.GetRegion(ctx, regionID); err != nil {
			return 0, nil, err
		}
	}
	team, err := d.store.ListEmployees(ctx, EmployeeFilter{RegionID: &regionID, ActiveOnly: true})
	if err != nil {
		return 0, nil, fmt.Errorf("list employees: %w", err)
	}

	counts := make(DayCounts, p.Len())
	for _, day := range p.Days() {
		counts[generic.FromTime(day.Time)] = 0
	}
	if len(team) == 0 {
		return 0, counts, nil
	}

	ids := make([]string, len(team))
	for i, e := range team {
		ids[i] = e.ID
	}
	reqs, err := d.store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: ids,
		Statuses:    activeStatuses,
		Overlapping: &p,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("list requests: %w", err)
	}

	// An employee with two overlapping requests (cross-type) counts once per day.
	seen := make(map[string]map[string]struct{})
	for _, r := range reqs {
		shared, ok := r.Period.Intersect(p)
		if !ok {
			continue
		}
		for _, day := range shared.Days() {
			key := day.String()
			if seen[key] == nil {
				seen[key] = make(map[string]struct{})
			}
			if _, dup := seen[key][r.EmployeeID]; dup {
				continue
			}
			seen[key][r.EmployeeID] = struct{}{}
			counts[generic.FromTime(day.Time)]++
		}
	}
	return len(team), counts, nil
}
