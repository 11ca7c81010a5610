/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Every scenario starts from the same demo team (three
	regions, employees, managers and a super manager) and then adds
	requests that show a specific feature.

AVAILABLE SCENARIOS:

	demo-team:     Regions, employees, German public holidays, seeded balances
	overload-week: Two thirds of the Dortmund team away in the same week
	year-end:      Nearly exhausted balance and a request spanning New Year

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create regions and employees through the admin service
 3. Import holidays for the current year
 4. Seed used days through the ledger
 5. Submit and decide requests through the request service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overload-week"}

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarios' with ID, name, description and loader

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - factory/holidays.go: German public holidays
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioActor is recorded as the actor of every write a scenario makes.
const ScenarioActor = "scenario-loader"

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler, now time.Time) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "demo-team",
			Name:        "Demo Team",
			Description: "Three regions with employees, managers, a super manager and German public holidays",
		},
		load: loadDemoTeamScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "overload-week",
			Name:        "Overload Week",
			Description: "Two of three Dortmund team members are on approved vacation in the same week",
		},
		load: loadOverloadWeekScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "year-end",
			Name:        "Year End",
			Description: "Employee with 28 of 30 days used and a pending request across New Year",
		},
		load: loadYearEndScenario,
	},
}

// Scenarios lists the available scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	return out
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "loaded",
		"scenario_id": req.ScenarioID,
	})
}

// resetter is implemented by stores that can drop all data.
type resetter interface {
	Reset(ctx context.Context) error
}

// LoadScenarioByID resets the store and loads the scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
			break
		}
	}
	if sc == nil {
		return &generic.NotFoundError{Kind: "scenario", ID: id}
	}

	store, ok := h.Engine.Store.(resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Engine.Store)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := sc.load(ctx, h, time.Now()); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.Logger.Info("scenario loaded", zap.String("scenario_id", id))
	return nil
}

// =============================================================================
// DEMO TEAM
// =============================================================================

type demoEmployee struct {
	id       string
	name     string
	role     absence.Role
	total    int
	used     int
	regionID string
}

var demoRegions = []struct{ id, name string }{
	{"dortmund", "Dortmund"},
	{"muenchen", "München"},
	{"hamburg", "Hamburg"},
}

var demoEmployees = []demoEmployee{
	{"max.mustermann", "Max Mustermann", absence.RoleEmployee, 30, 0, "dortmund"},
	{"sarah.mueller", "Sarah Müller", absence.RoleEmployee, 30, 5, "dortmund"},
	{"thomas.schmidt", "Thomas Schmidt", absence.RoleEmployee, 30, 10, "muenchen"},
	{"lisa.weber", "Lisa Weber", absence.RoleEmployee, 30, 8, "muenchen"},
	{"peter.schneider", "Peter Schneider", absence.RoleEmployee, 30, 12, "hamburg"},
	{"anna.wagner", "Anna Wagner", absence.RoleManager, 30, 3, "dortmund"},
	{"michael.klein", "Michael Klein", absence.RoleManager, 30, 7, "muenchen"},
	{"admin", "System Administrator", absence.RoleSuperManager, 30, 0, ""},
}

func loadDemoTeamScenario(ctx context.Context, h *Handler, now time.Time) error {
	admin := h.Engine.Admin
	year := now.Year()

	for _, r := range demoRegions {
		if _, err := admin.CreateRegion(ctx, ScenarioActor, r.id, absence.RegionInput{Name: r.name, City: r.name}); err != nil {
			return err
		}
	}

	for _, e := range demoEmployees {
		regionID, total := e.regionID, e.total
		_, err := admin.CreateEmployee(ctx, ScenarioActor, e.id, absence.EmployeeInput{
			Name:      e.name,
			Role:      e.role,
			RegionID:  &regionID,
			TotalDays: &total,
		})
		if err != nil {
			return err
		}
		if e.used > 0 {
			if err := h.Engine.Ledger.Commit(ctx, e.id, year, e.used); err != nil {
				return err
			}
		}
	}

	// Fixed-date holidays recur; Easter-based ones need next year's dates too.
	holidays := factory.GermanPublicHolidays(year)
	for _, hol := range factory.GermanPublicHolidays(year + 1) {
		if !hol.Recurring {
			holidays = append(holidays, hol)
		}
	}
	_, err := admin.ImportHolidays(ctx, ScenarioActor, "", holidays)
	return err
}

// =============================================================================
// FEATURE SCENARIOS
// =============================================================================

func loadOverloadWeekScenario(ctx context.Context, h *Handler, now time.Time) error {
	if err := loadDemoTeamScenario(ctx, h, now); err != nil {
		return err
	}
	monday := mondayAfter(generic.FromTime(now), 14)
	friday := monday.AddDays(4)

	if err := submitAndDecide(ctx, h, "max.mustermann", absence.TypeVacation, monday, friday, "anna.wagner", absence.StatusApproved); err != nil {
		return err
	}
	if err := submitAndDecide(ctx, h, "sarah.mueller", absence.TypeVacation, monday.AddDays(2), friday, "anna.wagner", absence.StatusApproved); err != nil {
		return err
	}
	// München stays below the threshold: one of three away.
	return submitAndDecide(ctx, h, "lisa.weber", absence.TypeTraining, monday, monday.AddDays(1), "", absence.StatusPending)
}

func loadYearEndScenario(ctx context.Context, h *Handler, now time.Time) error {
	if err := loadDemoTeamScenario(ctx, h, now); err != nil {
		return err
	}
	year := now.Year()

	// thomas.schmidt starts at 10 used; bring him to 28 of 30.
	if err := h.Engine.Ledger.Commit(ctx, "thomas.schmidt", year, 18); err != nil {
		return err
	}
	start := generic.NewTimePoint(year, time.December, 30)
	end := generic.NewTimePoint(year+1, time.January, 8)
	if err := submitAndDecide(ctx, h, "thomas.schmidt", absence.TypeVacation, start, end, "", absence.StatusPending); err != nil {
		return err
	}

	monday := mondayAfter(generic.FromTime(now), 7)
	return submitAndDecide(ctx, h, "lisa.weber", absence.TypeHomeOffice, monday, monday.AddDays(2), "", absence.StatusPending)
}

// submitAndDecide submits a request and, unless the target is PENDING,
// decides it as approverID.
func submitAndDecide(ctx context.Context, h *Handler, employeeID string, t absence.Type, start, end generic.TimePoint, approverID string, target absence.Status) error {
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return err
	}
	req, err := h.Engine.Requests.Submit(ctx, absence.SubmitInput{EmployeeID: employeeID, Type: t, Period: p})
	if err != nil {
		return err
	}
	switch target {
	case absence.StatusApproved:
		_, err = h.Engine.Requests.Approve(ctx, req.ID, approverID, "")
	case absence.StatusRejected:
		_, err = h.Engine.Requests.Reject(ctx, req.ID, approverID, "")
	}
	return err
}

// mondayAfter returns the first Monday at least minDays after d.
func mondayAfter(d generic.TimePoint, minDays int) generic.TimePoint {
	d = d.AddDays(minDays)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}
