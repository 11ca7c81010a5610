package absence

import (
	"context"
	"fmt"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// ACCESS RULES - Who may decide and who may look
// =============================================================================

// authorizeDecision checks that approver may approve/reject/cancel a request
// owned by owner.
//
//   SUPER_MANAGER: any employee but themselves
//   MANAGER:       employees of their own region, never themselves
//   EMPLOYEE:      nobody
func authorizeDecision(approver, owner Employee, action string) error {
	deny := func(reason string) error {
		return &generic.ForbiddenError{ActorID: approver.ID, Action: action, Reason: reason}
	}
	switch {
	case !approver.Active:
		return deny("actor is inactive")
	case !approver.Role.IsManager():
		return deny("only managers can decide requests")
	case approver.ID == owner.ID:
		return deny("managers cannot decide their own requests")
	case approver.Role == RoleManager && approver.RegionID == "":
		return deny("manager has no region assigned")
	case approver.Role == RoleManager && approver.RegionID != owner.RegionID:
		return deny(fmt.Sprintf("employee %s is outside region %s", owner.ID, approver.RegionID))
	}
	return nil
}

// visibleEmployees returns the employees actorID may see in team views.
func visibleEmployees(ctx context.Context, s Store, actorID string) ([]Employee, error) {
	actor, err := s.GetEmployee(ctx, actorID)
	if err != nil {
		return nil, err
	}
	deny := func(reason string) error {
		return &generic.ForbiddenError{ActorID: actorID, Action: "view team", Reason: reason}
	}
	switch actor.Role {
	case RoleSuperManager:
		return s.ListEmployees(ctx, EmployeeFilter{})
	case RoleManager:
		if actor.RegionID == "" {
			return nil, deny("manager has no region assigned")
		}
		return s.ListEmployees(ctx, EmployeeFilter{RegionID: &actor.RegionID})
	default:
		return nil, deny("only managers can view team data")
	}
}
