package absence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// ADMINISTRATION - Employees, regions, holidays, quotas
// =============================================================================

// AdminService maintains master data. Every write emits an audit event with
// the acting user; authorization of administrators happens at the edge.
type AdminService struct {
	store  TxStore
	ledger *Ledger
	policy Policy
	audit  generic.AuditSink
	logger *zap.Logger
	now    func() time.Time
}

// EmployeeInput carries the fields of a create or update. nil pointers and
// empty strings leave the current value (or the default on create).
type EmployeeInput struct {
	Name      string
	Role      Role
	RegionID  *string
	TotalDays *int
	Active    *bool
}

// RegionInput works like EmployeeInput.
type RegionInput struct {
	Name    string
	City    string
	Country string
	Active  *bool
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployee adds an employee. An empty id gets a generated one.
func (a *AdminService) CreateEmployee(ctx context.Context, actorID, id string, in EmployeeInput) (Employee, error) {
	if id == "" {
		id = uuid.NewString()
	}
	e := Employee{
		ID:        id,
		Role:      RoleEmployee,
		TotalDays: a.policy.DefaultEntitlementDays,
		Active:    true,
		CreatedAt: a.now().UTC(),
	}
	e, err := a.saveEmployee(ctx, e, in, true)
	a.record(ctx, actorID, generic.AuditEmployeeSaved, id, "created", err)
	return e, err
}

func (a *AdminService) UpdateEmployee(ctx context.Context, actorID, id string, in EmployeeInput) (Employee, error) {
	e, err := a.store.GetEmployee(ctx, id)
	if err == nil {
		e, err = a.saveEmployee(ctx, e, in, false)
	}
	a.record(ctx, actorID, generic.AuditEmployeeSaved, id, "updated", err)
	return e, err
}

// DeactivateEmployee keeps the employee and their history but blocks new requests.
func (a *AdminService) DeactivateEmployee(ctx context.Context, actorID, id string) (Employee, error) {
	inactive := false
	return a.UpdateEmployee(ctx, actorID, id, EmployeeInput{Active: &inactive})
}

func (a *AdminService) saveEmployee(ctx context.Context, e Employee, in EmployeeInput, create bool) (Employee, error) {
	if create {
		if _, err := a.store.GetEmployee(ctx, e.ID); err == nil {
			return Employee{}, fmt.Errorf("employee %q already exists: %w", e.ID, generic.ErrConflict)
		} else if !generic.IsNotFound(err) {
			return Employee{}, err
		}
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		e.Name = name
	}
	if in.Role != "" {
		role, err := ParseRole(string(in.Role))
		if err != nil {
			return Employee{}, err
		}
		e.Role = role
	}
	if in.RegionID != nil {
		if *in.RegionID != "" {
			if _, err := a.store.GetRegion(ctx, *in.RegionID); err != nil {
				return Employee{}, err
			}
		}
		e.RegionID = *in.RegionID
	}
	quotaChanged := !create && in.TotalDays != nil && *in.TotalDays != e.TotalDays
	if in.TotalDays != nil {
		e.TotalDays = *in.TotalDays
	}
	if in.Active != nil {
		e.Active = *in.Active
	}
	if err := e.Validate(); err != nil {
		return Employee{}, err
	}
	if quotaChanged {
		if err := a.saveEmployeeQuota(ctx, e); err != nil {
			return Employee{}, err
		}
	} else if err := a.store.SaveEmployee(ctx, e); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}
	a.logger.Info("employee saved", zap.String("employee_id", e.ID), zap.String("role", string(e.Role)), zap.Bool("active", e.Active))
	return e, nil
}

// saveEmployeeQuota saves e and moves the current year's ledger entry to
// e.TotalDays in one transaction. A total below the days already used this
// year is refused. Other years are changed with SetQuota.
func (a *AdminService) saveEmployeeQuota(ctx context.Context, e Employee) error {
	year := a.now().UTC().Year()
	unlock := a.ledger.Lock(e.ID, year)
	defer unlock()

	return a.store.WithTx(ctx, func(tx Store) error {
		if _, err := a.ledger.setTotal(ctx, tx, e.ID, year, e.TotalDays); err != nil {
			return err
		}
		if err := tx.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee: %w", err)
		}
		return nil
	})
}

func (a *AdminService) GetEmployee(ctx context.Context, id string) (Employee, error) {
	return a.store.GetEmployee(ctx, id)
}

func (a *AdminService) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	return a.store.ListEmployees(ctx, filter)
}

// SetQuota changes the entitlement of one year through the ledger.
func (a *AdminService) SetQuota(ctx context.Context, actorID, employeeID string, year, total int) (Balance, error) {
	bal, err := a.ledger.SetTotal(ctx, employeeID, year, total)
	event := generic.NewAuditEvent(actorID, generic.AuditQuotaChanged)
	event.TargetID = employeeID
	event.Payload = map[string]any{"year": year, "total": total}
	recordAudit(ctx, a.audit, a.logger, event, err)
	return bal, err
}

// =============================================================================
// REGIONS
// =============================================================================

// CreateRegion adds a region. Names are unique; an empty id gets a generated one.
func (a *AdminService) CreateRegion(ctx context.Context, actorID, id string, in RegionInput) (Region, error) {
	if id == "" {
		id = uuid.NewString()
	}
	r, err := a.createRegion(ctx, id, in)
	a.record(ctx, actorID, generic.AuditRegionSaved, id, "created", err)
	return r, err
}

func (a *AdminService) createRegion(ctx context.Context, id string, in RegionInput) (Region, error) {
	if _, err := a.store.GetRegion(ctx, id); err == nil {
		return Region{}, fmt.Errorf("region %q already exists: %w", id, generic.ErrConflict)
	} else if !generic.IsNotFound(err) {
		return Region{}, err
	}
	r := Region{ID: id, Country: DefaultCountry, Active: true}
	return a.saveRegion(ctx, r, in)
}

func (a *AdminService) UpdateRegion(ctx context.Context, actorID, id string, in RegionInput) (Region, error) {
	r, err := a.store.GetRegion(ctx, id)
	if err == nil {
		r, err = a.saveRegion(ctx, r, in)
	}
	a.record(ctx, actorID, generic.AuditRegionSaved, id, "updated", err)
	return r, err
}

func (a *AdminService) saveRegion(ctx context.Context, r Region, in RegionInput) (Region, error) {
	if name := strings.TrimSpace(in.Name); name != "" {
		r.Name = name
	}
	if in.City != "" {
		r.City = strings.TrimSpace(in.City)
	}
	if in.Country != "" {
		r.Country = strings.TrimSpace(in.Country)
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	if err := a.store.SaveRegion(ctx, r); err != nil {
		return Region{}, fmt.Errorf("save region: %w", err)
	}
	return r, nil
}

func (a *AdminService) GetRegion(ctx context.Context, id string) (Region, error) {
	return a.store.GetRegion(ctx, id)
}

func (a *AdminService) ListRegions(ctx context.Context) ([]Region, error) {
	return a.store.ListRegions(ctx)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// AddHoliday stores a holiday. RegionID "" makes it global.
func (a *AdminService) AddHoliday(ctx context.Context, actorID string, h generic.Holiday) (generic.Holiday, error) {
	h, err := a.addHoliday(ctx, a.store, h)
	a.record(ctx, actorID, generic.AuditHolidayChanged, h.ID, "added "+h.Date.String(), err)
	return h, err
}

func (a *AdminService) addHoliday(ctx context.Context, s Store, h generic.Holiday) (generic.Holiday, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return generic.Holiday{}, &generic.ValidationError{Field: "name", Reason: "is required"}
	}
	if h.Date.IsZero() {
		return generic.Holiday{}, &generic.ValidationError{Field: "date", Reason: "is required"}
	}
	if h.RegionID != "" {
		if _, err := s.GetRegion(ctx, h.RegionID); err != nil {
			return generic.Holiday{}, err
		}
	}
	if err := s.SaveHoliday(ctx, h); err != nil {
		return generic.Holiday{}, fmt.Errorf("save holiday: %w", err)
	}
	return h, nil
}

func (a *AdminService) DeleteHoliday(ctx context.Context, actorID, id string) error {
	err := a.store.DeleteHoliday(ctx, id)
	a.record(ctx, actorID, generic.AuditHolidayChanged, id, "deleted", err)
	return err
}

// ListHolidays returns the region's holidays and the global ones.
func (a *AdminService) ListHolidays(ctx context.Context, regionID string) ([]generic.Holiday, error) {
	if regionID != "" {
		if _, err := a.store.GetRegion(ctx, regionID); err != nil {
			return nil, err
		}
	}
	return a.store.ListHolidays(ctx, regionID)
}

// ImportHolidays adds holidays to a region in one transaction. Entries whose
// date and name already exist in the region are skipped. Returns the added ones.
func (a *AdminService) ImportHolidays(ctx context.Context, actorID, regionID string, holidays []generic.Holiday) ([]generic.Holiday, error) {
	var added []generic.Holiday
	err := a.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.ListHolidays(ctx, regionID)
		if err != nil {
			return fmt.Errorf("list holidays: %w", err)
		}
		seen := make(map[string]bool, len(existing))
		for _, h := range existing {
			if h.RegionID == regionID {
				seen[h.Date.String()+"|"+h.Name] = true
			}
		}
		for _, h := range holidays {
			h.ID = ""
			h.RegionID = regionID
			key := h.Date.String() + "|" + strings.TrimSpace(h.Name)
			if seen[key] {
				continue
			}
			saved, err := a.addHoliday(ctx, tx, h)
			if err != nil {
				return err
			}
			seen[key] = true
			added = append(added, saved)
		}
		return nil
	})
	if err != nil {
		added = nil
	}
	a.record(ctx, actorID, generic.AuditHolidayChanged, regionID, fmt.Sprintf("imported %d holidays", len(added)), err)
	return added, err
}

func (a *AdminService) record(ctx context.Context, actorID string, action generic.AuditAction, targetID, details string, err error) {
	event := generic.NewAuditEvent(actorID, action)
	event.TargetID = targetID
	event.Details = details
	recordAudit(ctx, a.audit, a.logger, event, err)
}
