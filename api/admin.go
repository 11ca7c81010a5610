package api

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// ListEmployees returns employees, optionally filtered.
// GET /api/employees?region_id=&active=true
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter absence.EmployeeFilter
	if q.Has("region_id") {
		region := q.Get("region_id")
		filter.RegionID = &region
	}
	filter.ActiveOnly = q.Get("active") == "true"

	employees, err := h.Engine.Admin.ListEmployees(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Engine.Admin.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	emp, err := h.Engine.Admin.CreateEmployee(r.Context(), req.ActorID, req.ID, employeeInput(req))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// UpdateEmployee changes the fields present in the body.
// PUT /api/employees/{id}
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	emp, err := h.Engine.Admin.UpdateEmployee(r.Context(), req.ActorID, chi.URLParam(r, "id"), employeeInput(req))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// DeactivateEmployee marks an employee inactive. History is kept.
// DELETE /api/employees/{id}?actor_id=
func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Engine.Admin.DeactivateEmployee(r.Context(), r.URL.Query().Get("actor_id"), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// SetQuota sets the yearly entitlement.
// PUT /api/employees/{id}/quota
func (h *Handler) SetQuota(w http.ResponseWriter, r *http.Request) {
	var req QuotaRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Year == 0 {
		req.Year = generic.Today().Year()
	}
	bal, err := h.Engine.Admin.SetQuota(r.Context(), req.ActorID, chi.URLParam(r, "id"), req.Year, req.TotalDays)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

func employeeInput(req EmployeeRequest) absence.EmployeeInput {
	return absence.EmployeeInput{
		Name:      req.Name,
		Role:      absence.Role(req.Role),
		RegionID:  req.RegionID,
		TotalDays: req.TotalDays,
		Active:    req.Active,
	}
}

// =============================================================================
// REGION ENDPOINTS
// =============================================================================

// ListRegions returns all regions.
// GET /api/regions
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.Engine.Admin.ListRegions(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]RegionDTO, 0, len(regions))
	for _, reg := range regions {
		dtos = append(dtos, toRegionDTO(reg))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRegion(w http.ResponseWriter, r *http.Request) {
	reg, err := h.Engine.Admin.GetRegion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegionDTO(reg))
}

// CreateRegion creates a region. Names are unique.
// POST /api/regions
func (h *Handler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var req RegionRequest
	if !h.decode(w, r, &req) {
		return
	}
	reg, err := h.Engine.Admin.CreateRegion(r.Context(), req.ActorID, req.ID, regionInput(req))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRegionDTO(reg))
}

// UpdateRegion changes the fields present in the body.
// PUT /api/regions/{id}
func (h *Handler) UpdateRegion(w http.ResponseWriter, r *http.Request) {
	var req RegionRequest
	if !h.decode(w, r, &req) {
		return
	}
	reg, err := h.Engine.Admin.UpdateRegion(r.Context(), req.ActorID, chi.URLParam(r, "id"), regionInput(req))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegionDTO(reg))
}

func regionInput(req RegionRequest) absence.RegionInput {
	return absence.RegionInput{Name: req.Name, City: req.City, Country: req.Country, Active: req.Active}
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns the region's holidays plus the global ones.
// GET /api/regions/{id}/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Engine.Admin.ListHolidays(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(holidays))
}

// CreateHoliday adds one holiday to the region.
// POST /api/regions/{id}/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	hol, err := h.Engine.Admin.AddHoliday(r.Context(), req.ActorID, generic.Holiday{
		RegionID:  chi.URLParam(r, "id"),
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

// DeleteHoliday removes a holiday.
// DELETE /api/regions/{id}/holidays/{holidayID}?actor_id=
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Admin.DeleteHoliday(r.Context(), r.URL.Query().Get("actor_id"), chi.URLParam(r, "holidayID")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// ImportHolidays imports a holiday file into the region. The body is either
// an iCalendar file (Content-Type text/calendar, or ?format=ics) or a JSON
// array of {date, name, recurring}. ?preset=de imports the German public
// holidays of ?year= instead.
// POST /api/regions/{id}/holidays/import?actor_id=
func (h *Handler) ImportHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var holidays []generic.Holiday
	switch {
	case q.Get("preset") == "de":
		year, err := queryYear(r)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		holidays = factory.GermanPublicHolidays(year)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read request body", "validation", nil)
			return
		}
		if isICS(r) {
			holidays, err = factory.ParseHolidaysICS(bytes.NewReader(body))
		} else {
			holidays, err = factory.ParseHolidaysJSON(bytes.NewReader(body))
		}
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	added, err := h.Engine.Admin.ImportHolidays(r.Context(), q.Get("actor_id"), chi.URLParam(r, "id"), holidays)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayImportResponse{Added: toHolidayDTOs(added)})
}

func isICS(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "ics") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/calendar"
}

func toHolidayDTOs(holidays []generic.Holiday) []HolidayDTO {
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	return dtos
}
