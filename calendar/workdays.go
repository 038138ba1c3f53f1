package calendar

import (
	"context"
	"fmt"
)

// IsWorkingDay reports whether d is neither a weekend day nor in holidays.
func IsWorkingDay(d Date, holidays HolidaySet) bool {
	return !d.IsWeekend() && !holidays.Contains(d)
}

// CountWorkingDays counts the business days in [start, end].
// Saturdays, Sundays and holiday dates are excluded. A reversed range counts 0.
func CountWorkingDays(start, end Date, holidays HolidaySet) int {
	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if IsWorkingDay(d, holidays) {
			count++
		}
	}
	return count
}

// WorkingDays returns the business days of the period in order.
func WorkingDays(p Period, holidays HolidaySet) []Date {
	var days []Date
	for _, d := range p.Days() {
		if IsWorkingDay(d, holidays) {
			days = append(days, d)
		}
	}
	return days
}

// HolidaysForPeriod unions the calendar's holidays for every year the period touches.
func HolidaysForPeriod(ctx context.Context, cal Calendar, p Period) (HolidaySet, error) {
	var set HolidaySet
	for _, year := range p.Years() {
		hs, err := cal.Holidays(ctx, year)
		if err != nil {
			return HolidaySet{}, fmt.Errorf("%s calendar, year %d: %w", cal.Name(), year, err)
		}
		set = set.Union(hs)
	}
	return set, nil
}

// CountWorkingDaysIn counts business days in p using a named calendar.
func CountWorkingDaysIn(ctx context.Context, cal Calendar, p Period) (int, error) {
	if !p.Valid() {
		return 0, nil
	}
	holidays, err := HolidaysForPeriod(ctx, cal, p)
	if err != nil {
		return 0, err
	}
	return CountWorkingDays(p.Start, p.End, holidays), nil
}
