package absence

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// TEAM VIEWS - What a manager sees of their team
// =============================================================================

// GlobalRegionName labels employees without a region.
const GlobalRegionName = "Global"

// TeamService builds read models scoped by the actor's visibility:
// SUPER_MANAGER sees everyone, MANAGER their region, EMPLOYEE nothing.
type TeamService struct {
	store  Store
	ledger *Ledger
}

func NewTeamService(store Store, ledger *Ledger) *TeamService {
	return &TeamService{store: store, ledger: ledger}
}

// MemberStatistics summarizes one employee's year.
type MemberStatistics struct {
	Employee    Employee
	RegionName  string
	Balance     Balance
	DaysByType  map[Type]int    // approved business days in the year
	Utilization decimal.Decimal // used/total in percent, one decimal place
}

// Statistics returns one entry per visible employee or manager, ordered by name.
// Super managers are not part of any team and are left out.
func (t *TeamService) Statistics(ctx context.Context, actorID string, year int) ([]MemberStatistics, error) {
	team, err := visibleEmployees(ctx, t.store, actorID)
	if err != nil {
		return nil, err
	}
	regionNames, err := t.regionNames(ctx)
	if err != nil {
		return nil, err
	}

	var members []Employee
	ids := make([]string, 0, len(team))
	for _, e := range team {
		if e.Role == RoleSuperManager {
			continue
		}
		members = append(members, e)
		ids = append(ids, e.ID)
	}

	yearPeriod := generic.Period{Start: generic.StartOfYear(year), End: generic.EndOfYear(year)}
	approved, err := t.store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: ids,
		Statuses:    []Status{StatusApproved},
		Overlapping: &yearPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	byEmployee := make(map[string]map[Type]int)
	for _, r := range approved {
		if byEmployee[r.EmployeeID] == nil {
			byEmployee[r.EmployeeID] = make(map[Type]int)
		}
		byEmployee[r.EmployeeID][r.Type] += r.Allocation[year]
	}

	stats := make([]MemberStatistics, 0, len(members))
	for _, e := range members {
		bal, err := t.ledger.GetBalance(ctx, e.ID, year)
		if err != nil {
			return nil, err
		}
		days := byEmployee[e.ID]
		if days == nil {
			days = make(map[Type]int)
		}
		stats = append(stats, MemberStatistics{
			Employee:    e,
			RegionName:  regionName(regionNames, e.RegionID),
			Balance:     bal,
			DaysByType:  days,
			Utilization: utilization(bal),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Employee.Name < stats[j].Employee.Name })
	return stats, nil
}

func utilization(b Balance) decimal.Decimal {
	if b.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(b.Used)).Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(int64(b.Total)), 1)
}

// CalendarEntry is one request on the team calendar.
type CalendarEntry struct {
	Request      Request
	EmployeeName string
	RegionName   string
}

// Calendar returns the PENDING and APPROVED requests of visible employees
// that intersect p, ordered by start date.
func (t *TeamService) Calendar(ctx context.Context, actorID string, p generic.Period) ([]CalendarEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	team, err := visibleEmployees(ctx, t.store, actorID)
	if err != nil {
		return nil, err
	}
	regionNames, err := t.regionNames(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Employee, len(team))
	ids := make([]string, 0, len(team))
	for _, e := range team {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	reqs, err := t.store.ListRequests(ctx, RequestFilter{
		EmployeeIDs: ids,
		Statuses:    activeStatuses,
		Overlapping: &p,
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	entries := make([]CalendarEntry, 0, len(reqs))
	for _, r := range reqs {
		e := byID[r.EmployeeID]
		entries = append(entries, CalendarEntry{
			Request:      r,
			EmployeeName: e.Name,
			RegionName:   regionName(regionNames, e.RegionID),
		})
	}
	return entries, nil
}

func (t *TeamService) regionNames(ctx context.Context) (map[string]string, error) {
	regions, err := t.store.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	names := make(map[string]string, len(regions))
	for _, r := range regions {
		names[r.ID] = r.Name
	}
	return names, nil
}

func regionName(names map[string]string, regionID string) string {
	if regionID == "" {
		return GlobalRegionName
	}
	if n, ok := names[regionID]; ok {
		return n
	}
	return regionID
}
