// Package attendance derives working-days-present counts from attendance records.
package attendance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/workday-engine/calendar"
)

// Status is how the user was marked on a day. Every status means "present";
// the distinction is informational.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusHalfDay Status = "half_day"
	StatusRemote  Status = "remote"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusHalfDay, StatusRemote:
		return true
	}
	return false
}

// Record marks a user present on one calendar date.
type Record struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"`
	Date   calendar.Date `json:"date"`
	Status Status        `json:"status"`
}

// AggregateWorkingDays counts the distinct dates among records.
// Records must already be filtered to one user (and range, if wanted).
// Two records on the same date count once.
func AggregateWorkingDays(records []Record) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.Date.String()] = struct{}{}
	}
	return len(seen)
}

// Summary compares presence against the working days of a period.
type Summary struct {
	Present       int // distinct working days present
	OffDayPresent int // distinct weekend/holiday dates present
	WorkingDays   int
	Absent        int
	Rate          decimal.Decimal // Present / WorkingDays, 4 places
}

// Summarize counts presence within p against the working days of p.
// Records outside p are ignored. Presence on a weekend or holiday is reported
// in OffDayPresent and never offsets a missed working day, so Present never
// exceeds WorkingDays and Rate stays within [0, 1].
func Summarize(records []Record, p calendar.Period, holidays calendar.HolidaySet) Summary {
	var onWorkingDay, onOffDay []Record
	for _, r := range records {
		if !p.Contains(r.Date) {
			continue
		}
		if calendar.IsWorkingDay(r.Date, holidays) {
			onWorkingDay = append(onWorkingDay, r)
		} else {
			onOffDay = append(onOffDay, r)
		}
	}

	s := Summary{
		Present:       AggregateWorkingDays(onWorkingDay),
		OffDayPresent: AggregateWorkingDays(onOffDay),
		WorkingDays:   calendar.CountWorkingDays(p.Start, p.End, holidays),
		Rate:          decimal.Zero,
	}
	s.Absent = s.WorkingDays - s.Present
	if s.WorkingDays > 0 {
		s.Rate = decimal.NewFromInt(int64(s.Present)).
			DivRound(decimal.NewFromInt(int64(s.WorkingDays)), 4)
	}
	return s
}
