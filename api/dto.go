/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Core types that already
  carry their wire shape (leave.LeaveTypeView, calendar.HolidaySet,
  attendance.Record) are returned as-is; everything else is wrapped here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Every date field is an ISO "YYYY-MM-DD" string.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/workday-engine/calendar"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CALENDARS
// =============================================================================

type CalendarListDTO struct {
	Calendars []string `json:"calendars"`
}

// HolidaySetDTO is a calendar's holiday set for one year.
type HolidaySetDTO struct {
	Calendar string              `json:"calendar"`
	Year     int                 `json:"year"`
	Count    int                 `json:"count"`
	Dates    calendar.HolidaySet `json:"dates"`
}

// WorkingDaysDTO is the business-day count of a date range.
type WorkingDaysDTO struct {
	Calendar    string `json:"calendar"`
	Start       string `json:"start"`
	End         string `json:"end"`
	WorkingDays int    `json:"working_days"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type SaveUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type CreateHolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// LEAVE
// =============================================================================

// LeaveTypeDTO is a leave type definition.
type LeaveTypeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Limit       int    `json:"limit"`
	Description string `json:"description"`
}

type CreateLeaveTypeRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Limit       *int   `json:"limit"`
	Description string `json:"description"`
}

type SetLeaveBalanceRequest struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type MarkAttendanceRequest struct {
	Date   string `json:"date"`
	Status string `json:"status,omitempty"`
}

// AttendanceSummaryDTO reports presence against the working days of a range.
type AttendanceSummaryDTO struct {
	UserID        string `json:"user_id"`
	Calendar      string `json:"calendar"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Present       int    `json:"present"`
	OffDayPresent int    `json:"off_day_present"`
	WorkingDays   int    `json:"working_days"`
	Absent        int    `json:"absent"`
	Rate          string `json:"rate"`
}
