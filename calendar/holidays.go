package calendar

import (
	"encoding/json"
	"sort"
	"time"
)

// =============================================================================
// FIXED HOLIDAY TABLE
// =============================================================================

// FixedHolidayTable maps a year to its non-computed public holidays.
// Years missing from the table simply have no fixed holidays.
type FixedHolidayTable map[int][]Date

// DefaultFixedHolidays returns the built-in reference table.
func DefaultFixedHolidays() FixedHolidayTable {
	return FixedHolidayTable{
		2025: {
			NewDate(2025, time.January, 1),
			NewDate(2025, time.January, 26),
			NewDate(2025, time.August, 15),
			NewDate(2025, time.October, 2),
			NewDate(2025, time.December, 25),
		},
	}
}

// DefaultOffDays is the weekly off-day of the reference configuration.
var DefaultOffDays = []time.Weekday{time.Sunday}

// =============================================================================
// HOLIDAY SET
// =============================================================================

// HolidaySet is an ordered, duplicate-free set of non-working dates.
type HolidaySet struct {
	dates []Date
	index map[string]struct{}
}

// NewHolidaySet builds a set from dates in any order, dropping duplicates.
func NewHolidaySet(dates ...Date) HolidaySet {
	s := HolidaySet{index: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		key := d.String()
		if _, ok := s.index[key]; ok {
			continue
		}
		s.index[key] = struct{}{}
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s
}

// Contains reports whether d is in the set. The zero HolidaySet is empty.
func (s HolidaySet) Contains(d Date) bool {
	_, ok := s.index[d.String()]
	return ok
}

// Len returns the number of dates.
func (s HolidaySet) Len() int { return len(s.dates) }

// Dates returns a copy of the dates in chronological order.
func (s HolidaySet) Dates() []Date {
	out := make([]Date, len(s.dates))
	copy(out, s.dates)
	return out
}

// Strings returns the dates as ISO strings in chronological order.
func (s HolidaySet) Strings() []string {
	out := make([]string, len(s.dates))
	for i, d := range s.dates {
		out[i] = d.String()
	}
	return out
}

// Union returns a new set holding the dates of both sets.
func (s HolidaySet) Union(other HolidaySet) HolidaySet {
	all := make([]Date, 0, len(s.dates)+len(other.dates))
	all = append(all, s.dates...)
	all = append(all, other.dates...)
	return NewHolidaySet(all...)
}

// MarshalJSON encodes the set as an array of "YYYY-MM-DD" strings.
func (s HolidaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// =============================================================================
// HOLIDAYS FOR YEAR
// =============================================================================

// HolidaysForYear returns the fixed holidays of year plus every weekly
// off-day of that year. With no offDays given, Sunday is used.
func HolidaysForYear(year int, fixed FixedHolidayTable, offDays ...time.Weekday) HolidaySet {
	if len(offDays) == 0 {
		offDays = DefaultOffDays
	}
	off := make(map[time.Weekday]bool, len(offDays))
	for _, wd := range offDays {
		off[wd] = true
	}

	var dates []Date
	for _, d := range fixed[year] {
		// a table entry filed under the wrong year never leaks into this one
		if d.Year() == year {
			dates = append(dates, d)
		}
	}
	for _, d := range YearPeriod(year).Days() {
		if off[d.Weekday()] {
			dates = append(dates, d)
		}
	}
	return NewHolidaySet(dates...)
}
