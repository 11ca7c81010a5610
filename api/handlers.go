/*
handlers.go - HTTP API handlers for the absence engine

PURPOSE:
  Exposes the absence engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the absence services.

ENDPOINTS:
  Requests:
    POST   /api/employees/{id}/requests    Submit an absence request
    GET    /api/employees/{id}/requests    Requests of one employee
    GET    /api/employees/{id}/overlaps    Active requests sharing a day with a range
    GET    /api/employees/{id}/workdays    Business-day quote for a range
    GET    /api/requests/{id}              One request
    GET    /api/requests/pending           Pending requests the actor may decide
    POST   /api/requests/{id}/approve      Approve (commits entitlement)
    POST   /api/requests/{id}/reject       Reject
    POST   /api/requests/{id}/cancel       Cancel an approved request

  Ledger and team:
    GET    /api/employees/{id}/balance     Balance for ?year=
    GET    /api/regions/{id}/concurrency   Absent employees per day
    GET    /api/regions/{id}/overload      Days above the overload threshold
    GET    /api/regions/{id}/overload/latest  Last background scan
    GET    /api/team/statistics            Per-member statistics
    GET    /api/team/calendar              Team absences in a range

  Administration: see admin.go. Scenarios: see scenarios.go.

ERROR HANDLING:
  Engine errors are mapped by kind (see writeDomainError):
  - 400: validation
  - 403: forbidden
  - 404: not found
  - 409: overlap, invalid state, conflict
  - 422: insufficient balance
  - 500: everything else (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - admin.go: Master data endpoints
  - monitor.go: Background overload scan
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine      *absence.Engine
	Logger      *zap.Logger
	Monitor     *OverloadMonitor // nil disables /overload/latest
	CORSOrigins []string

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the engine.
func NewHandler(engine *absence.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Engine: engine, Logger: logger}
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// SubmitRequest creates a PENDING request for the employee in the path.
// POST /api/employees/{id}/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	t, err := absence.ParseType(req.Type)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	p, err := generic.ParsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	created, err := h.Engine.Requests.Submit(r.Context(), absence.SubmitInput{
		EmployeeID:       chi.URLParam(r, "id"),
		Type:             t,
		Period:           p,
		RepresentativeID: req.RepresentativeID,
		Notes:            req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListEmployeeRequests returns every request of one employee.
// GET /api/employees/{id}/requests
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Engine.Requests.ListByEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// FindOverlaps lists the employee's active requests intersecting a range.
// GET /api/employees/{id}/overlaps?start=&end=&exclude=
func (h *Handler) FindOverlaps(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Engine.Admin.GetEmployee(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	reqs, err := h.Engine.Conflicts.FindOverlaps(r.Context(), id, p, r.URL.Query().Get("exclude"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// QuoteWorkdays returns the business days a range would cost.
// GET /api/employees/{id}/workdays?start=&end=
func (h *Handler) QuoteWorkdays(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	alloc, err := h.Engine.Requests.Quote(r.Context(), id, p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WorkdaysDTO{
		EmployeeID: id,
		StartDate:  p.Start.String(),
		EndDate:    p.End.String(),
		Days:       alloc.Total(),
		ByYear:     map[int]int(alloc),
	})
}

// GetRequest returns a single request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Engine.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListPendingRequests returns what the actor may approve or reject.
// GET /api/requests/pending?actor_id=
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Engine.Requests.ListPending(r.Context(), r.URL.Query().Get("actor_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// ApproveRequest approves a pending request.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, h.Engine.Requests.Approve)
}

// RejectRequest rejects a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, h.Engine.Requests.Reject)
}

// CancelRequest reverses an approved request.
// POST /api/requests/{id}/cancel
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, h.Engine.Requests.Cancel)
}

type decision func(ctx context.Context, requestID, actorID, reason string) (absence.Request, error)

func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request, decide decision) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ActorID == "" {
		h.writeDomainError(w, &generic.ValidationError{Field: "actor_id", Reason: "is required"})
		return
	}
	updated, err := decide(r.Context(), chi.URLParam(r, "id"), req.ActorID, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// =============================================================================
// LEDGER / TEAM
// =============================================================================

// GetBalance returns total, used and remaining days for one year.
// GET /api/employees/{id}/balance?year=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	bal, err := h.Engine.Ledger.GetBalance(r.Context(), chi.URLParam(r, "id"), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// GetConcurrency counts absent employees of a region per day.
// GET /api/regions/{id}/concurrency?start=&end=
func (h *Handler) GetConcurrency(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	regionID := chi.URLParam(r, "id")
	counts, err := h.Engine.Conflicts.TeamConcurrency(r.Context(), regionID, p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConcurrencyDTO{
		RegionID:  regionID,
		StartDate: p.Start.String(),
		EndDate:   p.End.String(),
		Days:      counts,
	})
}

// GetOverload runs an overload scan for the range.
// GET /api/regions/{id}/overload?start=&end=&threshold=
func (h *Handler) GetOverload(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	var threshold decimal.Decimal
	if s := r.URL.Query().Get("threshold"); s != "" {
		threshold, err = decimal.NewFromString(s)
		if err != nil {
			h.writeDomainError(w, &generic.ValidationError{Field: "threshold", Reason: "must be a decimal number"})
			return
		}
		if err := absence.ValidateThreshold(threshold); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}
	report, err := h.Engine.Overload.Report(r.Context(), chi.URLParam(r, "id"), p, threshold)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverloadDTO(report))
}

// GetLatestOverload returns the monitor's last report for the region.
// GET /api/regions/{id}/overload/latest
func (h *Handler) GetLatestOverload(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "id")
	if _, err := h.Engine.Admin.GetRegion(r.Context(), regionID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if h.Monitor == nil {
		writeError(w, http.StatusNotFound, "Overload monitor is disabled", "not_found", nil)
		return
	}
	scan, ok := h.Monitor.Latest(regionID)
	if !ok {
		writeError(w, http.StatusNotFound, "No overload scan has run for this region yet", "not_found", nil)
		return
	}
	dto := toOverloadDTO(scan.Report)
	dto.ScannedAt = scan.ScannedAt.UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, dto)
}

// TeamStatistics returns per-member ledger and usage figures.
// GET /api/team/statistics?actor_id=&year=
func (h *Handler) TeamStatistics(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	stats, err := h.Engine.Team.Statistics(r.Context(), r.URL.Query().Get("actor_id"), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]TeamStatisticsDTO, 0, len(stats))
	for _, s := range stats {
		byType := make(map[string]int, len(s.DaysByType))
		for t, d := range s.DaysByType {
			byType[string(t)] = d
		}
		dtos = append(dtos, TeamStatisticsDTO{
			Employee:      toEmployeeDTO(s.Employee),
			RegionName:    s.RegionName,
			Year:          year,
			TotalDays:     s.Balance.Total,
			UsedDays:      s.Balance.Used,
			RemainingDays: s.Balance.Remaining,
			DaysByType:    byType,
			Utilization:   s.Utilization,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TeamCalendar returns the active requests of the actor's team in a range.
// GET /api/team/calendar?actor_id=&start=&end=
func (h *Handler) TeamCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	entries, err := h.Engine.Team.Calendar(r.Context(), r.URL.Query().Get("actor_id"), p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]CalendarEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, CalendarEntryDTO{
			RequestDTO:   toRequestDTO(e.Request),
			EmployeeName: e.EmployeeName,
			RegionName:   e.RegionName,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// METADATA
// =============================================================================

// ListAbsenceTypes returns display metadata for every absence type.
// GET /api/absence-types
func (h *Handler) ListAbsenceTypes(w http.ResponseWriter, r *http.Request) {
	types := absence.Types()
	dtos := make([]AbsenceTypeDTO, 0, len(types))
	for _, ti := range types {
		dtos = append(dtos, AbsenceTypeDTO{
			Type:        string(ti.Type),
			DisplayName: ti.DisplayName,
			Color:       ti.Color,
			Debits:      h.Engine.Policy.Debits(ti.Type),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns the active policy in its file format.
// GET /api/policy
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.PolicyToJSON(h.Engine.Policy))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "overlap", "invalid_state", "conflict":
		return http.StatusConflict
	case "insufficient_balance":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status of its kind. Internal errors
// are logged and replaced by a generic message.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	kind := generic.Kind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.Logger.Error("internal error", zap.Error(err))
		writeError(w, status, "Internal server error", kind, nil)
		return
	}
	writeError(w, status, err.Error(), kind, errorDetails(err))
}

func errorDetails(err error) map[string]any {
	var (
		ve  *generic.ValidationError
		oe  *generic.OverlapError
		ibe *generic.InsufficientBalanceError
		ise *generic.InvalidStateError
		nfe *generic.NotFoundError
		fe  *generic.ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		return map[string]any{"field": ve.Field, "reason": ve.Reason}
	case errors.As(err, &oe):
		return map[string]any{"conflicts": oe.Conflicts}
	case errors.As(err, &ibe):
		return map[string]any{
			"year":      ibe.Year,
			"total":     ibe.Total,
			"used":      ibe.Used,
			"requested": ibe.Requested,
			"remaining": ibe.Remaining(),
			"phase":     string(ibe.Phase),
		}
	case errors.As(err, &ise):
		return map[string]any{"status": ise.From, "action": ise.Action}
	case errors.As(err, &nfe):
		return map[string]any{"kind": nfe.Kind, "id": nfe.ID}
	case errors.As(err, &fe):
		return map[string]any{"reason": fe.Reason}
	}
	return nil
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "validation", map[string]any{"reason": err.Error()})
		return false
	}
	return true
}

func queryPeriod(r *http.Request) (generic.Period, error) {
	q := r.URL.Query()
	return generic.ParsePeriod(q.Get("start"), q.Get("end"))
}

// queryYear reads ?year=, defaulting to the current year.
func queryYear(r *http.Request) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return generic.Today().Year(), nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1 {
		return 0, &generic.ValidationError{Field: "year", Reason: "must be a positive integer"}
	}
	return year, nil
}
