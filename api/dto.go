/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DATES:
  Every date is a YYYY-MM-DD string. Timestamps are RFC 3339.

ACTORS:
  Write requests name the acting user in "actor_id". There is no token
  transport; the value is trusted and recorded in the audit trail.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// EMPLOYEES / REGIONS / HOLIDAYS
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	RegionID  string `json:"region_id,omitempty"`
	TotalDays int    `json:"total_days"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EmployeeRequest creates or updates an employee. Omitted fields keep
// their current value (or the default on create).
type EmployeeRequest struct {
	ActorID   string  `json:"actor_id"`
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name"`
	Role      string  `json:"role,omitempty"`
	RegionID  *string `json:"region_id,omitempty"`
	TotalDays *int    `json:"total_days,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

// QuotaRequest sets the entitlement of one year.
type QuotaRequest struct {
	ActorID   string `json:"actor_id"`
	Year      int    `json:"year"`
	TotalDays int    `json:"total_days"`
}

type RegionDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Country string `json:"country"`
	Active  bool   `json:"active"`
}

type RegionRequest struct {
	ActorID string `json:"actor_id"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Active  *bool  `json:"active,omitempty"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	RegionID  string `json:"region_id,omitempty"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type HolidayRequest struct {
	ActorID   string `json:"actor_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// HolidayImportResponse lists what an import added.
type HolidayImportResponse struct {
	Added []HolidayDTO `json:"added"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequestDTO is the body of POST /api/employees/{id}/requests.
type SubmitRequestDTO struct {
	Type             string `json:"type"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	RepresentativeID string `json:"representative_id,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// DecisionRequest is the body of approve, reject and cancel.
type DecisionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// RequestDTO represents an absence request in API responses.
type RequestDTO struct {
	ID               string      `json:"id"`
	EmployeeID       string      `json:"employee_id"`
	Type             string      `json:"type"`
	TypeDisplayName  string      `json:"type_display_name"`
	Color            string      `json:"color"`
	StartDate        string      `json:"start_date"`
	EndDate          string      `json:"end_date"`
	Status           string      `json:"status"`
	RepresentativeID string      `json:"representative_id,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	DaysRequested    int         `json:"days_requested"`
	Allocation       map[int]int `json:"allocation"`
	DecidedBy        string      `json:"decided_by,omitempty"`
	DecidedAt        *string     `json:"decided_at,omitempty"`
	DecisionReason   string      `json:"decision_reason,omitempty"`
	CreatedAt        string      `json:"created_at"`
	UpdatedAt        string      `json:"updated_at"`
}

// WorkdaysDTO is the business-day quote for a range.
type WorkdaysDTO struct {
	EmployeeID string      `json:"employee_id"`
	StartDate  string      `json:"start_date"`
	EndDate    string      `json:"end_date"`
	Days       int         `json:"days"`
	ByYear     map[int]int `json:"by_year"`
}

// =============================================================================
// LEDGER / TEAM
// =============================================================================

type BalanceDTO struct {
	EmployeeID    string `json:"employee_id"`
	Year          int    `json:"year"`
	TotalDays     int    `json:"total_days"`
	UsedDays      int    `json:"used_days"`
	RemainingDays int    `json:"remaining_days"`
}

// ConcurrencyDTO maps each day of the range to the number of absent employees.
type ConcurrencyDTO struct {
	RegionID  string            `json:"region_id"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Days      absence.DayCounts `json:"days"`
}

type OverloadDayDTO struct {
	Date     string          `json:"date"`
	Absent   int             `json:"absent"`
	TeamSize int             `json:"team_size"`
	Ratio    decimal.Decimal `json:"ratio"`
}

type OverloadDTO struct {
	RegionID  string           `json:"region_id"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Threshold decimal.Decimal  `json:"threshold"`
	TeamSize  int              `json:"team_size"`
	Days      []OverloadDayDTO `json:"days"`
	ScannedAt string           `json:"scanned_at,omitempty"`
}

type TeamStatisticsDTO struct {
	Employee      EmployeeDTO     `json:"employee"`
	RegionName    string          `json:"region_name"`
	Year          int             `json:"year"`
	TotalDays     int             `json:"total_days"`
	UsedDays      int             `json:"used_days"`
	RemainingDays int             `json:"remaining_days"`
	DaysByType    map[string]int  `json:"days_by_type"`
	Utilization   decimal.Decimal `json:"utilization_percent"`
}

type CalendarEntryDTO struct {
	RequestDTO
	EmployeeName string `json:"employee_name"`
	RegionName   string `json:"region_name"`
}

type AbsenceTypeDTO struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
	Debits      bool   `json:"debits_entitlement"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

func toEmployeeDTO(e absence.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:        e.ID,
		Name:      e.Name,
		Role:      string(e.Role),
		RegionID:  e.RegionID,
		TotalDays: e.TotalDays,
		Active:    e.Active,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRegionDTO(r absence.Region) RegionDTO {
	return RegionDTO{ID: r.ID, Name: r.Name, City: r.City, Country: r.Country, Active: r.Active}
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, RegionID: h.RegionID, Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring}
}

func toRequestDTO(r absence.Request) RequestDTO {
	info := r.Type.Info()
	alloc := map[int]int(r.Allocation.Clone())
	dto := RequestDTO{
		ID:               r.ID,
		EmployeeID:       r.EmployeeID,
		Type:             string(r.Type),
		TypeDisplayName:  info.DisplayName,
		Color:            info.Color,
		StartDate:        r.Period.Start.String(),
		EndDate:          r.Period.End.String(),
		Status:           string(r.Status),
		RepresentativeID: r.RepresentativeID,
		Notes:            r.Notes,
		DaysRequested:    r.DaysRequested,
		Allocation:       alloc,
		DecidedBy:        r.DecidedBy,
		DecisionReason:   r.DecisionReason,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.Format(time.RFC3339),
	}
	if r.DecidedAt != nil {
		s := r.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

func toRequestDTOs(reqs []absence.Request) []RequestDTO {
	out := make([]RequestDTO, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRequestDTO(r))
	}
	return out
}

func toBalanceDTO(b absence.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:    b.EmployeeID,
		Year:          b.Year,
		TotalDays:     b.Total,
		UsedDays:      b.Used,
		RemainingDays: b.Remaining,
	}
}

func toOverloadDTO(rep absence.OverloadReport) OverloadDTO {
	dto := OverloadDTO{
		RegionID:  rep.RegionID,
		StartDate: rep.Period.Start.String(),
		EndDate:   rep.Period.End.String(),
		Threshold: rep.Threshold,
		TeamSize:  rep.TeamSize,
		Days:      make([]OverloadDayDTO, 0, len(rep.Days)),
	}
	for _, d := range rep.Days {
		dto.Days = append(dto.Days, OverloadDayDTO{Date: d.Date.String(), Absent: d.Absent, TeamSize: d.TeamSize, Ratio: d.Ratio})
	}
	return dto
}
