// Package absence implements the absence-request lifecycle and entitlement engine.
// It builds on the generic package's calendar arithmetic and error taxonomy.
package absence

import (
	"fmt"
	"time"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleEmployee     Role = "EMPLOYEE"
	RoleManager      Role = "MANAGER"
	RoleSuperManager Role = "SUPER_MANAGER"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleEmployee, RoleManager, RoleSuperManager:
		return r, nil
	}
	return "", &generic.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
}

// IsManager is true for roles allowed to decide on requests.
func (r Role) IsManager() bool { return r == RoleManager || r == RoleSuperManager }

// =============================================================================
// ABSENCE TYPES
// =============================================================================

type Type string

const (
	TypeVacation     Type = "VACATION"
	TypeSickLeave    Type = "SICK_LEAVE"
	TypeHomeOffice   Type = "HOME_OFFICE"
	TypeBusinessTrip Type = "BUSINESS_TRIP"
	TypeTraining     Type = "TRAINING"
)

// TypeInfo is the display metadata clients use for legends and badges.
type TypeInfo struct {
	Type        Type
	DisplayName string
	Color       string
}

var typeInfos = []TypeInfo{
	{Type: TypeVacation, DisplayName: "Urlaub", Color: "#3B82F6"},
	{Type: TypeSickLeave, DisplayName: "Krankmeldung", Color: "#EF4444"},
	{Type: TypeHomeOffice, DisplayName: "Home Office", Color: "#10B981"},
	{Type: TypeBusinessTrip, DisplayName: "Dienstreise", Color: "#F59E0B"},
	{Type: TypeTraining, DisplayName: "Schulung", Color: "#8B5CF6"},
}

// Types lists every absence type in declaration order.
func Types() []TypeInfo {
	return append([]TypeInfo(nil), typeInfos...)
}

func ParseType(s string) (Type, error) {
	for _, ti := range typeInfos {
		if string(ti.Type) == s {
			return ti.Type, nil
		}
	}
	return "", &generic.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown absence type %q", s)}
}

func (t Type) Info() TypeInfo {
	for _, ti := range typeInfos {
		if ti.Type == t {
			return ti
		}
	}
	return TypeInfo{Type: t, DisplayName: string(t)}
}

// =============================================================================
// REQUEST STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusCanceled Status = "CANCELED" // only reachable when reversal is enabled
)

// transitions lists every allowed (from -> to) pair. REJECTED and CANCELED
// have no outgoing edges; APPROVED -> CANCELED is further gated by Policy.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCanceled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active statuses block the calendar and count towards team concurrency.
func (s Status) Active() bool { return s == StatusPending || s == StatusApproved }

// =============================================================================
// EMPLOYEE / REGION
// =============================================================================

// Employee is an absence requester. UsedDays is not stored here: it is a
// projection of the ledger entry for a year (see Ledger.GetBalance).
type Employee struct {
	ID        string
	Name      string
	Role      Role
	RegionID  string // empty = global scope
	TotalDays int    // yearly entitlement used when a ledger entry is first created
	Active    bool
	CreatedAt time.Time
}

func (e Employee) Validate() error {
	if e.ID == "" {
		return &generic.ValidationError{Field: "id", Reason: "is required"}
	}
	if e.Name == "" {
		return &generic.ValidationError{Field: "name", Reason: "is required"}
	}
	if _, err := ParseRole(string(e.Role)); err != nil {
		return err
	}
	if e.TotalDays < 0 {
		return &generic.ValidationError{Field: "total_days", Reason: "must not be negative"}
	}
	return nil
}

// Region is an administrative grouping: holiday calendar and team scope.
type Region struct {
	ID      string
	Name    string
	City    string
	Country string
	Active  bool
}

// DefaultCountry is applied to regions created without one.
const DefaultCountry = "Deutschland"

func (r Region) Validate() error {
	if r.ID == "" {
		return &generic.ValidationError{Field: "id", Reason: "is required"}
	}
	if r.Name == "" {
		return &generic.ValidationError{Field: "name", Reason: "is required"}
	}
	return nil
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is a single absence request and its decision.
type Request struct {
	ID               string
	EmployeeID       string
	Type             Type
	Period           generic.Period
	Status           Status
	RepresentativeID string
	Notes            string
	DaysRequested    int                // business days, always recomputed
	Allocation       generic.Allocation // DaysRequested split per year
	DecidedBy        string
	DecidedAt        *time.Time
	DecisionReason   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a copy that shares no mutable state with r.
func (r Request) Clone() Request {
	c := r
	c.Allocation = r.Allocation.Clone()
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return c
}

// =============================================================================
// ENTITLEMENT - Ledger entry keyed by (employee, year)
// =============================================================================

type Entitlement struct {
	EmployeeID string
	Year       int
	Total      int
	Used       int
}

// Balance is the read model of an entitlement. Remaining is always derived.
type Balance struct {
	EmployeeID string
	Year       int
	Total      int
	Used       int
	Remaining  int
}

func (e Entitlement) Balance() Balance {
	return Balance{
		EmployeeID: e.EmployeeID,
		Year:       e.Year,
		Total:      e.Total,
		Used:       e.Used,
		Remaining:  e.Total - e.Used,
	}
}
