/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Calendar holidays and working-day counts per named calendar
- Persisted holiday create/delete and its effect on the persisted calendar only
- Leave balance reconciliation over HTTP
- Attendance marking and working-days summary
- Session and role checks
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workday-engine/calendar"
	"github.com/warp/workday-engine/leave"
	"github.com/warp/workday-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	store  *sqlite.Store
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := NewHandler(store, calendar.NewStaticCalendar(calendar.DefaultFixedHolidays()), logger)
	h.now = func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }

	return &testServer{
		t:      t,
		store:  store,
		router: NewRouter(h, RouterOptions{AllowedOrigins: []string{"*"}}),
	}
}

func (s *testServer) do(method, path, userID, role string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	if role != "" {
		req.Header.Set(headerRole, role)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// holidaySetView decodes HolidaySetDTO; HolidaySet itself only marshals.
type holidaySetView struct {
	Calendar string   `json:"calendar"`
	Year     int      `json:"year"`
	Count    int      `json:"count"`
	Dates    []string `json:"dates"`
}

// =============================================================================
// SESSION
// =============================================================================

func TestSession_MissingUserIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/calendars", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth_NoSessionNeeded(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_EmployeeCannotReadOthers(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/users/u2/leave-balances", "u1", RoleEmployee, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/users/u2/leave-balances", "boss", RoleAdmin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers_SaveAndGet(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPut, "/api/users/u1", "boss", RoleAdmin, SaveUserRequest{Name: "Ada", Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, RoleEmployee, decode[UserDTO](t, rec).Role)

	rec = s.do(http.MethodGet, "/api/users/u1", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, UserDTO{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: RoleEmployee}, decode[UserDTO](t, rec))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/users/u9", "boss", RoleAdmin, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", "u1", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, "/api/users/u1", "u1", "", SaveUserRequest{Name: "Ada"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/users/u1", "boss", RoleAdmin, SaveUserRequest{Name: "Ada", Role: "root"}).Code)

	users := decode[[]UserDTO](t, s.do(http.MethodGet, "/api/users", "boss", RoleAdmin, nil))
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
}

// =============================================================================
// CALENDARS
// =============================================================================

func TestListCalendars(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/calendars", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[CalendarListDTO](t, rec)
	assert.Equal(t, []string{"fixed", "merged", "persisted"}, got.Calendars)
}

func TestGetCalendarHolidays_Fixed2025(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/calendars/fixed/holidays?year=2025", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[holidaySetView](t, rec)
	assert.Equal(t, "fixed", got.Calendar)
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 56, got.Count)
	assert.Len(t, got.Dates, 56)
	assert.Equal(t, "2025-01-01", got.Dates[0])
	assert.Contains(t, got.Dates, "2025-12-25")
}

func TestGetCalendarHolidays_DefaultsToCurrentYear(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/calendars/fixed/holidays", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2025, decode[holidaySetView](t, rec).Year)
}

func TestGetCalendarHolidays_Errors(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/calendars/payroll/holidays", "u1", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/calendars/fixed/holidays?year=abc", "u1", "", nil).Code)
}

func TestGetWorkingDays(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		code int
		want int
	}{
		{"first week of 2025", "/api/calendars/fixed/working-days?start=2025-01-01&end=2025-01-07", http.StatusOK, 4},
		{"reversed range", "/api/calendars/fixed/working-days?start=2025-01-07&end=2025-01-01", http.StatusOK, 0},
		{"bad date", "/api/calendars/fixed/working-days?start=2025-01-32&end=2025-02-01", http.StatusBadRequest, 0},
		{"missing end", "/api/calendars/fixed/working-days?start=2025-01-01", http.StatusBadRequest, 0},
		{"too wide", "/api/calendars/fixed/working-days?start=1900-01-01&end=2025-01-01", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, tt.path, "u1", "", nil)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.want, decode[WorkingDaysDTO](t, rec).WorkingDays)
			}
		})
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHolidays_PersistedCalendarIsIndependentOfFixed(t *testing.T) {
	// GIVEN: An admin-created holiday on Monday 2025-03-10
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/holidays", "boss", RoleAdmin, CreateHolidayRequest{Date: "2025-03-10", Name: "Office move"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[calendar.Holiday](t, rec)
	require.NotEmpty(t, created.ID)

	week := "/working-days?start=2025-03-10&end=2025-03-14"

	// THEN: Only the persisted and merged calendars see it
	assert.Equal(t, 5, decode[WorkingDaysDTO](t, s.do(http.MethodGet, "/api/calendars/fixed"+week, "u1", "", nil)).WorkingDays)
	assert.Equal(t, 4, decode[WorkingDaysDTO](t, s.do(http.MethodGet, "/api/calendars/persisted"+week, "u1", "", nil)).WorkingDays)
	assert.Equal(t, 4, decode[WorkingDaysDTO](t, s.do(http.MethodGet, "/api/calendars/merged"+week, "u1", "", nil)).WorkingDays)

	// WHEN: The holiday is deleted
	rec = s.do(http.MethodDelete, "/api/holidays/"+created.ID, "boss", RoleAdmin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// THEN: The persisted calendar counts the day again; deleting twice is 404
	assert.Equal(t, 5, decode[WorkingDaysDTO](t, s.do(http.MethodGet, "/api/calendars/persisted"+week, "u1", "", nil)).WorkingDays)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/holidays/"+created.ID, "boss", RoleAdmin, nil).Code)
}

func TestHolidays_AdminOnlyWrites(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/holidays", "u1", RoleEmployee, CreateHolidayRequest{Date: "2025-03-10", Name: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/holidays", "u1", RoleEmployee, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHolidays_Validation(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/holidays", "boss", RoleAdmin, CreateHolidayRequest{Date: "10/03/2025", Name: "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/holidays", "boss", RoleAdmin, CreateHolidayRequest{Date: "2025-03-10", Name: "  "}).Code)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeaveBalances_DefaultAndOverride(t *testing.T) {
	s := newTestServer(t)

	limit12, limit10 := 12, 10
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/leave-types", "boss", RoleAdmin,
		CreateLeaveTypeRequest{ID: "CL", Name: "Casual", Limit: &limit12}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/leave-types", "boss", RoleAdmin,
		CreateLeaveTypeRequest{ID: "SL", Name: "Sick", Limit: &limit10, Description: "Paid"}).Code)

	// GIVEN: No balance rows for u1
	rec := s.do(http.MethodGet, "/api/users/u1/leave-balances", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":"CL","name":"Casual","limit":12,"description":"","used":0,"remaining":12},
		{"id":"SL","name":"Sick","limit":10,"description":"Paid","used":0,"remaining":10}
	]`, rec.Body.String())

	// WHEN: An admin records Sick usage
	rec = s.do(http.MethodPut, "/api/users/u1/leave-balances/SL", "boss", RoleAdmin, SetLeaveBalanceRequest{Used: 4, Remaining: 6})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Sick shows the row, Casual keeps the default
	views := decode[[]leave.LeaveTypeView](t, s.do(http.MethodGet, "/api/users/u1/leave-balances", "u1", "", nil))
	require.Len(t, views, 2)
	assert.Equal(t, 0, views[0].Used)
	assert.Equal(t, 12, views[0].Remaining)
	assert.Equal(t, 4, views[1].Used)
	assert.Equal(t, 6, views[1].Remaining)
}

func TestLeaveBalances_Validation(t *testing.T) {
	s := newTestServer(t)
	negative := -1

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/leave-types", "boss", RoleAdmin,
		CreateLeaveTypeRequest{ID: "CL", Name: "Casual", Limit: &negative}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/leave-types", "boss", RoleAdmin,
		CreateLeaveTypeRequest{ID: "CL", Name: "Casual"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/leave-types", "u1", "", nil).Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/api/users/u1/leave-balances/NOPE", "boss", RoleAdmin,
		SetLeaveBalanceRequest{Used: 1, Remaining: 1}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/users/u1/leave-balances/CL", "boss", RoleAdmin,
		SetLeaveBalanceRequest{Used: -1}).Code)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestAttendance_MarkAndSummarize(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: u1 present Jan 2, 3 and 6 2025
	for _, d := range []string{"2025-01-02", "2025-01-03", "2025-01-06"} {
		rec := s.do(http.MethodPost, "/api/users/u1/attendance", "u1", "", MarkAttendanceRequest{Date: d})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// marking the same day again conflicts
	rec := s.do(http.MethodPost, "/api/users/u1/attendance", "u1", "", MarkAttendanceRequest{Date: "2025-01-02", Status: "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// WHEN: Summarizing Jan 1 - Jan 7 on the fixed calendar (Jan 1 holiday, Jan 4/5 weekend)
	rec = s.do(http.MethodGet, "/api/users/u1/attendance/working-days?start=2025-01-01&end=2025-01-07", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: 3 of 4 working days
	got := decode[AttendanceSummaryDTO](t, rec)
	assert.Equal(t, "fixed", got.Calendar)
	assert.Equal(t, 3, got.Present)
	assert.Equal(t, 4, got.WorkingDays)
	assert.Equal(t, 1, got.Absent)
	assert.Equal(t, "0.7500", got.Rate)

	// listing defaults to the current year (2025)
	records := decode[[]map[string]any](t, s.do(http.MethodGet, "/api/users/u1/attendance", "u1", "", nil))
	assert.Len(t, records, 3)
	assert.Equal(t, "2025-01-02", records[0]["date"])
}

func TestAttendance_WeekendPresenceReportedSeparately(t *testing.T) {
	// GIVEN: u1 present Mon-Thu and Saturday of the week of Jan 6 2025
	s := newTestServer(t)
	for _, d := range []string{"2025-01-06", "2025-01-07", "2025-01-08", "2025-01-09", "2025-01-11"} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users/u1/attendance", "u1", "", MarkAttendanceRequest{Date: d}).Code)
	}

	// WHEN: Summarizing the week
	rec := s.do(http.MethodGet, "/api/users/u1/attendance/working-days?start=2025-01-06&end=2025-01-12", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Friday counts as absent; Saturday is off-day presence
	got := decode[AttendanceSummaryDTO](t, rec)
	assert.Equal(t, 4, got.Present)
	assert.Equal(t, 1, got.OffDayPresent)
	assert.Equal(t, 5, got.WorkingDays)
	assert.Equal(t, 1, got.Absent)
	assert.Equal(t, "0.8000", got.Rate)
}

func TestAttendance_Validation(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/users/u1/attendance", "u1", "", MarkAttendanceRequest{Date: "2025-1-2"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/users/u1/attendance", "u1", "", MarkAttendanceRequest{Date: "2025-01-02", Status: "absent"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/users/u2/attendance", "u1", "", MarkAttendanceRequest{Date: "2025-01-02"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/users/u1/attendance/working-days?calendar=payroll", "u1", "", nil).Code)
}

// =============================================================================
// RATE LIMIT
// =============================================================================

func TestRateLimit(t *testing.T) {
	limited := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_IdleClientsArePruned(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(10)
	store.now = func() time.Time { return now }
	store.lastPrune = now

	store.get("10.0.0.1")
	store.get("10.0.0.2")
	require.Equal(t, 2, store.size())

	// 10.0.0.2 stays active, 10.0.0.1 goes idle
	now = now.Add(2 * time.Minute)
	store.get("10.0.0.2")
	assert.Equal(t, 2, store.size())

	now = now.Add(limiterIdleTTL)
	store.get("10.0.0.3")
	assert.Equal(t, 1, store.size(), "both earlier clients idle past the TTL")
}
