/*
request.go - Absence request lifecycle

PURPOSE:
  Drives a request from submission to its decision and keeps the ledger in
  step with the decision.

STATE MACHINE:
  ┌─────────┐  Approve (Commit)  ┌──────────┐  Cancel (Release)  ┌──────────┐
  │ PENDING │ ─────────────────▶ │ APPROVED │ ─────────────────▶ │ CANCELED │
  └─────────┘                    └──────────┘  reversal only     └──────────┘
       │
       │ Reject (no ledger effect)
       ▼
  ┌──────────┐
  │ REJECTED │
  └──────────┘

  Every other (status, action) pair fails with InvalidStateError.

SUBMIT:
  1. Validate type, period, employee, representative
  2. Count business days with the employee's regional calendar
  3. Reject overlapping PENDING/APPROVED requests
  4. Reserve (advisory) for every year of the allocation
  5. Persist PENDING

APPROVE:
  The allocation is recomputed (the calendar may have changed since
  submission). Then, holding the ledger locks of every year involved, one
  store transaction commits each year and persists APPROVED. A failure in
  any year aborts the whole transaction.

SERIALIZATION:
  Transitions on one request are serialized by a per-request lock. The
  loser of a race re-reads the status and gets InvalidStateError.
  Submissions are serialized per employee so two overlapping requests
  can't both pass the overlap check.

AUDIT:
  Every attempt emits an AuditEvent. Failed attempts carry outcome
  "rejected" and the error text.

SEE ALSO:
  - ledger.go: Reserve, Commit, Release
  - conflicts.go: FindOverlaps
  - access.go: Who may decide
*/
package absence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/absence-engine/generic"
)

// SubmitInput is a new request as entered by the employee.
type SubmitInput struct {
	EmployeeID       string
	Type             Type
	Period           generic.Period
	RepresentativeID string
	Notes            string
}

// RequestService orchestrates the request lifecycle.
type RequestService struct {
	store     TxStore
	ledger    *Ledger
	conflicts *ConflictDetector
	policy    Policy
	audit     generic.AuditSink
	logger    *zap.Logger
	now       func() time.Time

	requestLocks generic.KeyedMutex
	submitLocks  generic.KeyedMutex
}

// =============================================================================
// SUBMIT
// =============================================================================

func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (Request, error) {
	req, err := s.submit(ctx, in)
	event := generic.NewAuditEvent(in.EmployeeID, generic.AuditRequestCreated)
	event.TargetID = in.EmployeeID
	event.RequestID = req.ID
	if err == nil {
		event.Payload = map[string]any{
			"type":  string(req.Type),
			"start": req.Period.Start.String(),
			"end":   req.Period.End.String(),
			"days":  req.DaysRequested,
		}
	}
	s.record(ctx, event, err)
	return req, err
}

func (s *RequestService) submit(ctx context.Context, in SubmitInput) (Request, error) {
	if in.EmployeeID == "" {
		return Request{}, &generic.ValidationError{Field: "employee_id", Reason: "is required"}
	}
	if _, err := ParseType(string(in.Type)); err != nil {
		return Request{}, err
	}
	if err := in.Period.Validate(); err != nil {
		return Request{}, err
	}

	emp, err := s.store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return Request{}, err
	}
	if !emp.Active {
		return Request{}, &generic.ValidationError{Field: "employee_id", Reason: "employee " + emp.ID + " is inactive"}
	}
	if err := s.checkRepresentative(ctx, emp, in.RepresentativeID); err != nil {
		return Request{}, err
	}

	alloc, err := s.allocation(ctx, emp, in.Period)
	if err != nil {
		return Request{}, err
	}
	if alloc.Total() == 0 {
		return Request{}, &generic.ValidationError{Field: "period", Reason: in.Period.String() + " contains no business days"}
	}

	unlock := s.submitLocks.Lock(emp.ID)
	defer unlock()

	if err := s.checkOverlaps(ctx, emp.ID, in.Type, in.Period, ""); err != nil {
		return Request{}, err
	}
	if s.policy.Debits(in.Type) {
		for _, year := range alloc.Years() {
			if err := s.ledger.Reserve(ctx, emp.ID, year, alloc[year]); err != nil {
				return Request{}, err
			}
		}
	}

	now := s.now().UTC()
	req := Request{
		ID:               uuid.NewString(),
		EmployeeID:       emp.ID,
		Type:             in.Type,
		Period:           in.Period,
		Status:           StatusPending,
		RepresentativeID: in.RepresentativeID,
		Notes:            strings.TrimSpace(in.Notes),
		DaysRequested:    alloc.Total(),
		Allocation:       alloc,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveRequest(ctx, req); err != nil {
		return Request{}, fmt.Errorf("save request: %w", err)
	}
	s.logger.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("employee_id", emp.ID),
		zap.String("type", string(req.Type)),
		zap.Stringer("period", req.Period),
		zap.Int("days", req.DaysRequested))
	return req, nil
}

func (s *RequestService) checkRepresentative(ctx context.Context, emp Employee, repID string) error {
	if repID == "" {
		return nil
	}
	if repID == emp.ID {
		return &generic.ValidationError{Field: "representative_id", Reason: "an employee cannot represent themselves"}
	}
	rep, err := s.store.GetEmployee(ctx, repID)
	if err != nil {
		return err
	}
	if !rep.Active {
		return &generic.ValidationError{Field: "representative_id", Reason: "representative " + rep.ID + " is inactive"}
	}
	return nil
}

// checkOverlaps rejects same-type overlaps always and cross-type overlaps
// unless the policy allows them.
func (s *RequestService) checkOverlaps(ctx context.Context, employeeID string, t Type, p generic.Period, excludingID string) error {
	existing, err := s.conflicts.FindOverlaps(ctx, employeeID, p, excludingID)
	if err != nil {
		return err
	}
	var ids []string
	for _, r := range existing {
		if r.Type == t || !s.policy.AllowCrossTypeOverlap {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) > 0 {
		return &generic.OverlapError{EmployeeID: employeeID, Period: p, Conflicts: ids}
	}
	return nil
}

// allocation counts business days per year with the employee's regional calendar.
func (s *RequestService) allocation(ctx context.Context, emp Employee, p generic.Period) (generic.Allocation, error) {
	holidays, err := generic.HolidaysInPeriod(ctx, s.store, emp.RegionID, p)
	if err != nil {
		return nil, err
	}
	byYear, err := generic.BusinessDaysByYear(p.Start, p.End, holidays)
	if err != nil {
		return nil, err
	}
	return generic.Allocation(byYear), nil
}

// =============================================================================
// DECISIONS
// =============================================================================

// Approve moves a PENDING request to APPROVED and debits the ledger.
func (s *RequestService) Approve(ctx context.Context, requestID, approverID, reason string) (Request, error) {
	return s.decide(ctx, requestID, approverID, reason, StatusApproved)
}

// Reject moves a PENDING request to REJECTED. The ledger is not touched.
func (s *RequestService) Reject(ctx context.Context, requestID, approverID, reason string) (Request, error) {
	return s.decide(ctx, requestID, approverID, reason, StatusRejected)
}

// Cancel reverses an APPROVED request and gives its days back. Only
// available when the policy allows reversal. The owner or a manager who
// could have approved it may cancel.
func (s *RequestService) Cancel(ctx context.Context, requestID, actorID, reason string) (Request, error) {
	return s.decide(ctx, requestID, actorID, reason, StatusCanceled)
}

var decisionActions = map[Status]struct {
	verb  string
	audit generic.AuditAction
}{
	StatusApproved: {"approve", generic.AuditRequestApproved},
	StatusRejected: {"reject", generic.AuditRequestRejected},
	StatusCanceled: {"cancel", generic.AuditRequestCanceled},
}

func (s *RequestService) decide(ctx context.Context, requestID, actorID, reason string, to Status) (Request, error) {
	action := decisionActions[to]

	unlock := s.requestLocks.Lock(requestID)
	defer unlock()

	req, err := s.transition(ctx, requestID, actorID, reason, to, action.verb)

	event := generic.NewAuditEvent(actorID, action.audit)
	event.RequestID = requestID
	event.TargetID = req.EmployeeID
	event.Details = reason
	if err == nil {
		event.Payload = map[string]any{"days": req.DaysRequested, "status": string(req.Status)}
	}
	s.record(ctx, event, err)
	return req, err
}

// transition runs with the request lock held. On failure it still returns
// the request as loaded (if it was found) so the audit event names the owner.
func (s *RequestService) transition(ctx context.Context, requestID, actorID, reason string, to Status, verb string) (Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	owner, err := s.store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return req, fmt.Errorf("load request owner: %w", err)
	}
	actor, err := s.store.GetEmployee(ctx, actorID)
	if err != nil {
		return req, err
	}
	// Owners may withdraw their own approved absence.
	ownerCancel := to == StatusCanceled && actor.ID == owner.ID
	if !ownerCancel {
		if err := authorizeDecision(actor, owner, verb); err != nil {
			return req, err
		}
	}
	if !CanTransition(req.Status, to) || (to == StatusCanceled && !s.policy.AllowReversal) {
		return req, &generic.InvalidStateError{RequestID: req.ID, From: string(req.Status), Action: verb}
	}

	now := s.now().UTC()
	updated := req.Clone()
	updated.Status = to
	updated.DecidedBy = actor.ID
	updated.DecidedAt = &now
	updated.DecisionReason = strings.TrimSpace(reason)
	updated.UpdatedAt = now

	switch to {
	case StatusApproved:
		alloc, err := s.allocation(ctx, owner, req.Period)
		if err != nil {
			return req, err
		}
		// Holidays added after submission may have emptied the range.
		if alloc.Total() == 0 {
			return req, &generic.ValidationError{Field: "period", Reason: req.Period.String() + " no longer contains business days"}
		}
		updated.Allocation = alloc
		updated.DaysRequested = alloc.Total()
		if err := s.applyLedger(ctx, updated, s.ledger.commit); err != nil {
			return req, err
		}
	case StatusCanceled:
		if err := s.applyLedger(ctx, updated, s.ledger.release); err != nil {
			return req, err
		}
	default:
		if err := s.store.SaveRequest(ctx, updated); err != nil {
			return req, fmt.Errorf("save request: %w", err)
		}
	}

	s.logger.Info("request decided",
		zap.String("request_id", updated.ID),
		zap.String("employee_id", updated.EmployeeID),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(updated.Status)),
		zap.Int("days", updated.DaysRequested))
	return updated, nil
}

type ledgerOp func(ctx context.Context, s Store, employeeID string, year, days int) error

// applyLedger applies op to every year of r's allocation and saves r, all in
// one transaction under the ledger locks of those years.
func (s *RequestService) applyLedger(ctx context.Context, r Request, op ledgerOp) error {
	debit := s.policy.Debits(r.Type) && r.Allocation.Total() > 0
	if debit {
		unlock := s.ledger.Lock(r.EmployeeID, r.Allocation.Years()...)
		defer unlock()
	}
	return s.store.WithTx(ctx, func(tx Store) error {
		if debit {
			for _, year := range r.Allocation.Years() {
				if days := r.Allocation[year]; days > 0 {
					if err := op(ctx, tx, r.EmployeeID, year, days); err != nil {
						return err
					}
				}
			}
		}
		if err := tx.SaveRequest(ctx, r); err != nil {
			return fmt.Errorf("save request: %w", err)
		}
		return nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *RequestService) Get(ctx context.Context, requestID string) (Request, error) {
	return s.store.GetRequest(ctx, requestID)
}

// ListByEmployee returns every request of the employee, any status.
func (s *RequestService) ListByEmployee(ctx context.Context, employeeID string) ([]Request, error) {
	if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.store.ListRequests(ctx, RequestFilter{EmployeeIDs: []string{employeeID}})
}

// ListPending returns the PENDING requests actorID is allowed to decide on.
func (s *RequestService) ListPending(ctx context.Context, actorID string) ([]Request, error) {
	team, err := visibleEmployees(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(team))
	for _, e := range team {
		if e.ID != actorID {
			ids = append(ids, e.ID)
		}
	}
	return s.store.ListRequests(ctx, RequestFilter{EmployeeIDs: ids, Statuses: []Status{StatusPending}})
}

// Quote returns the business days p would cost the employee, per year,
// without submitting anything.
func (s *RequestService) Quote(ctx context.Context, employeeID string, p generic.Period) (generic.Allocation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return s.allocation(ctx, emp, p)
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *RequestService) record(ctx context.Context, event generic.AuditEvent, err error) {
	recordAudit(ctx, s.audit, s.logger, event, err)
}

func recordAudit(ctx context.Context, sink generic.AuditSink, logger *zap.Logger, event generic.AuditEvent, err error) {
	if err != nil {
		event.Outcome = generic.OutcomeRejected
		event.Details = err.Error()
		if !generic.IsClientError(err) && !errors.Is(err, generic.ErrNotFound) {
			logger.Error("operation failed", zap.String("action", string(event.Action)), zap.Error(err))
		}
	}
	if aerr := sink.Record(ctx, event); aerr != nil {
		logger.Warn("audit sink failed", zap.String("event_id", event.ID), zap.Error(aerr))
	}
}
