/*
handlers.go - HTTP API handlers for the workday engine

PURPOSE:
  Exposes the working-day accounting core over REST. Each handler checks the
  session, loads a snapshot from the store, hands it to a pure core function
  (calendar, leave, attendance) and serializes the result.

ENDPOINTS:
  Calendars:
    GET    /api/calendars                          List calendar names
    GET    /api/calendars/{name}/holidays?year=    Holiday set of a year
    GET    /api/calendars/{name}/working-days      Business days in [start, end]

  Holidays (persisted calendar):
    GET    /api/holidays                           List
    POST   /api/holidays                           Create (admin)
    DELETE /api/holidays/{id}                      Delete (admin)

  Users:
    GET    /api/users                              List (admin)
    GET    /api/users/{id}                         Get
    PUT    /api/users/{id}                         Create or update (admin)

  Leave:
    GET    /api/leave-types                        List
    POST   /api/leave-types                        Create (admin)
    GET    /api/users/{id}/leave-balances          Reconciled view per leave type
    PUT    /api/users/{id}/leave-balances/{typeID} Set balance (admin)

  Attendance:
    POST   /api/users/{id}/attendance              Mark present
    GET    /api/users/{id}/attendance              List records in range
    GET    /api/users/{id}/attendance/working-days Present vs. working days

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (bad dates, bad body)
  - 401: Missing session
  - 403: Caller may not touch this user / needs admin
  - 404: Unknown calendar, holiday, leave type
  - 409: Duplicate attendance, duplicate balance rows
  - 500: Internal errors

SEE ALSO:
  - dto.go:     Request/response data structures
  - server.go:  Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/workday-engine/attendance"
	"github.com/warp/workday-engine/calendar"
	"github.com/warp/workday-engine/leave"
	"github.com/warp/workday-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Calendars *calendar.Registry
	Logger    *logrus.Logger

	now func() time.Time
}

// NewHandler wires the fixed, persisted and merged calendars around store.
func NewHandler(store *sqlite.Store, fixed *calendar.StaticCalendar, logger *logrus.Logger) *Handler {
	persisted := calendar.NewPersistedCalendar(store)
	return &Handler{
		Store:     store,
		Calendars: calendar.NewRegistry(fixed, persisted, calendar.NewMergedCalendar(fixed, persisted)),
		Logger:    logger,
		now:       time.Now,
	}
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListCalendars returns the calendar names.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CalendarListDTO{Calendars: h.Calendars.Names()})
}

// GetCalendarHolidays returns the holiday set of one year.
// GET /api/calendars/{name}/holidays?year=2025
func (h *Handler) GetCalendarHolidays(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.calendarParam(w, r, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	set, err := cal.Holidays(r.Context(), year)
	if err != nil {
		h.internalError(w, r, "Failed to compute holidays", err)
		return
	}

	writeJSON(w, http.StatusOK, HolidaySetDTO{
		Calendar: cal.Name(),
		Year:     year,
		Count:    set.Len(),
		Dates:    set,
	})
}

// GetWorkingDays counts business days in [start, end]. A reversed range is 0.
// GET /api/calendars/{name}/working-days?start=2025-01-01&end=2025-01-31
func (h *Handler) GetWorkingDays(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.calendarParam(w, r, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	period, err := requiredPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	n, err := calendar.CountWorkingDaysIn(r.Context(), cal, period)
	if err != nil {
		h.internalError(w, r, "Failed to count working days", err)
		return
	}

	writeJSON(w, http.StatusOK, WorkingDaysDTO{
		Calendar:    cal.Name(),
		Start:       period.Start.String(),
		End:         period.End.String(),
		WorkingDays: n,
	})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users ordered by name.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns one user.
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	u, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		h.internalError(w, r, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// SaveUser creates or updates a user.
// PUT /api/users/{id}
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u := sqlite.User{
		ID:    chi.URLParam(r, "id"),
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Role:  strings.ToLower(strings.TrimSpace(req.Role)),
	}
	if u.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if u.Role == "" {
		u.Role = RoleEmployee
	}
	if u.Role != RoleAdmin && u.Role != RoleEmployee {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid role %q", req.Role), nil)
		return
	}

	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		h.internalError(w, r, "Failed to save user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func toUserDTO(u sqlite.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all persisted holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to get holidays", err)
		return
	}
	if holidays == nil {
		holidays = []calendar.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

// CreateHoliday creates a persisted holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	holiday, err := h.Store.SaveHoliday(r.Context(), calendar.Holiday{
		Date:      date,
		Name:      name,
		Recurring: req.Recurring,
	})
	if err != nil {
		h.internalError(w, r, "Failed to create holiday", err)
		return
	}

	h.Logger.WithFields(logrus.Fields{"holiday_id": holiday.ID, "date": holiday.Date.String()}).Info("holiday created")
	writeJSON(w, http.StatusCreated, holiday)
}

// DeleteHoliday deletes a persisted holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Holiday not found", nil)
			return
		}
		h.internalError(w, r, "Failed to delete holiday", err)
		return
	}

	h.Logger.WithField("holiday_id", id).Info("holiday deleted")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaveTypes returns every leave type, ordered by name.
// GET /api/leave-types
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListLeaveTypes(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list leave types", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = LeaveTypeDTO{ID: lt.ID, Name: lt.Name, Limit: lt.Limit, Description: lt.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveType creates or replaces a leave type.
// POST /api/leave-types
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lt := leave.LeaveType{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	switch {
	case lt.ID == "" || lt.Name == "":
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	case req.Limit == nil || *req.Limit < 0:
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return
	}
	lt.Limit = *req.Limit

	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		h.internalError(w, r, "Failed to save leave type", err)
		return
	}

	writeJSON(w, http.StatusCreated, LeaveTypeDTO{ID: lt.ID, Name: lt.Name, Limit: lt.Limit, Description: lt.Description})
}

// GetLeaveBalances returns every leave type merged with the user's balance.
// GET /api/users/{id}/leave-balances
func (h *Handler) GetLeaveBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	types, err := h.Store.ListLeaveTypes(ctx)
	if err != nil {
		h.internalError(w, r, "Failed to list leave types", err)
		return
	}
	balances, err := h.Store.ListLeaveBalances(ctx, userID)
	if err != nil {
		h.internalError(w, r, "Failed to list leave balances", err)
		return
	}

	views, err := leave.Reconcile(types, balances, userID)
	if err != nil {
		if errors.Is(err, leave.ErrDuplicateBalance) {
			h.Logger.WithError(err).WithField("user_id", userID).Error("leave balance uniqueness violated")
			writeError(w, http.StatusConflict, "Conflicting leave balances", err)
			return
		}
		h.internalError(w, r, "Failed to reconcile leave balances", err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// SetLeaveBalance sets a user's used/remaining counters for one leave type.
// PUT /api/users/{id}/leave-balances/{typeID}
func (h *Handler) SetLeaveBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	typeID := chi.URLParam(r, "typeID")
	ctx := r.Context()

	var req SetLeaveBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Used < 0 || req.Remaining < 0 {
		writeError(w, http.StatusBadRequest, "used and remaining must be non-negative", nil)
		return
	}

	types, err := h.Store.ListLeaveTypes(ctx)
	if err != nil {
		h.internalError(w, r, "Failed to list leave types", err)
		return
	}
	if !hasLeaveType(types, typeID) {
		writeError(w, http.StatusNotFound, "Leave type not found", nil)
		return
	}

	balance := leave.LeaveBalance{UserID: userID, LeaveTypeID: typeID, Used: req.Used, Remaining: req.Remaining}
	if err := h.Store.SaveLeaveBalance(ctx, balance); err != nil {
		h.internalError(w, r, "Failed to save leave balance", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"leave_type_id": typeID,
		"used":          req.Used,
		"remaining":     req.Remaining,
	})
}

func hasLeaveType(types []leave.LeaveType, id string) bool {
	for _, lt := range types {
		if lt.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// MarkAttendance records the user as present on a date.
// POST /api/users/{id}/attendance
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	var req MarkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	status := attendance.Status(req.Status)
	if status == "" {
		status = attendance.StatusPresent
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status %q", req.Status), nil)
		return
	}

	rec, err := h.Store.MarkAttendance(r.Context(), attendance.Record{UserID: userID, Date: date, Status: status})
	if err != nil {
		if errors.Is(err, sqlite.ErrDuplicateAttendance) {
			writeError(w, http.StatusConflict, "Attendance already marked for "+date.String(), nil)
			return
		}
		h.internalError(w, r, "Failed to mark attendance", err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ListAttendance returns the user's records; the range defaults to the current year.
// GET /api/users/{id}/attendance?start=&end=
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}
	period, err := h.optionalPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	records, err := h.Store.ListAttendance(r.Context(), userID, period)
	if err != nil {
		h.internalError(w, r, "Failed to list attendance", err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetAttendanceWorkingDays counts the days the user was present and compares
// them with the working days of the range under the chosen calendar.
// GET /api/users/{id}/attendance/working-days?start=&end=&calendar=fixed
func (h *Handler) GetAttendanceWorkingDays(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("calendar")
	if name == "" {
		name = calendar.NameFixed
	}
	cal, ok := h.calendarParam(w, r, name)
	if !ok {
		return
	}
	period, err := h.optionalPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	ctx := r.Context()

	records, err := h.Store.ListAttendance(ctx, userID, period)
	if err != nil {
		h.internalError(w, r, "Failed to list attendance", err)
		return
	}
	holidays, err := calendar.HolidaysForPeriod(ctx, cal, period)
	if err != nil {
		h.internalError(w, r, "Failed to compute holidays", err)
		return
	}

	summary := attendance.Summarize(records, period, holidays)
	writeJSON(w, http.StatusOK, AttendanceSummaryDTO{
		UserID:        userID,
		Calendar:      cal.Name(),
		Start:         period.Start.String(),
		End:           period.End.String(),
		Present:       summary.Present,
		OffDayPresent: summary.OffDayPresent,
		WorkingDays:   summary.WorkingDays,
		Absent:        summary.Absent,
		Rate:          summary.Rate.StringFixed(4),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// internalError logs err and answers 500 without leaking details.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.Logger.WithError(err).WithField("path", r.URL.Path).Error(message)
	writeError(w, http.StatusInternalServerError, message, nil)
}

func (h *Handler) calendarParam(w http.ResponseWriter, r *http.Request, name string) (calendar.Calendar, bool) {
	cal, err := h.Calendars.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Calendar not found", err)
		return nil, false
	}
	return cal, true
}

// userParam returns the {id} URL param if the session may access that user.
func (h *Handler) userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "id")
	s, ok := SessionFrom(r.Context())
	if !ok || !s.CanAccessUser(userID) {
		writeError(w, http.StatusForbidden, "Not allowed to access this user", nil)
		return "", false
	}
	return userID, true
}

// requiredPeriod parses mandatory start/end query params. start > end is
// returned as-is; the counters treat it as empty.
func requiredPeriod(r *http.Request) (calendar.Period, error) {
	q := r.URL.Query()
	start, err := calendar.ParseDate(q.Get("start"))
	if err != nil {
		return calendar.Period{}, fmt.Errorf("start: %w", err)
	}
	end, err := calendar.ParseDate(q.Get("end"))
	if err != nil {
		return calendar.Period{}, fmt.Errorf("end: %w", err)
	}
	return checkSpan(calendar.Period{Start: start, End: end})
}

// maxSpanYears bounds the day-by-day walks a single request can trigger.
const maxSpanYears = 50

func checkSpan(p calendar.Period) (calendar.Period, error) {
	if p.End.Year()-p.Start.Year() > maxSpanYears {
		return calendar.Period{}, fmt.Errorf("range %s exceeds %d years", p, maxSpanYears)
	}
	return p, nil
}

// optionalPeriod is requiredPeriod with the current year as default bounds.
func (h *Handler) optionalPeriod(r *http.Request) (calendar.Period, error) {
	period := calendar.YearPeriod(h.now().Year())
	q := r.URL.Query()
	if raw := q.Get("start"); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			return calendar.Period{}, fmt.Errorf("start: %w", err)
		}
		period.Start = d
	}
	if raw := q.Get("end"); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			return calendar.Period{}, fmt.Errorf("end: %w", err)
		}
		period.End = d
	}
	return checkSpan(period)
}
