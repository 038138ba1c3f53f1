package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// NAMED CALENDARS
// =============================================================================
//
// Two notions of "holiday" exist side by side: the fixed table computed from
// configuration, and the admin-editable holidays kept in storage. They are
// not reconciled automatically. Each is exposed as its own named Calendar,
// and MergedCalendar unions them when a caller asks for that explicitly.

// Calendar names.
const (
	NameFixed     = "fixed"
	NamePersisted = "persisted"
	NameMerged    = "merged"
)

// ErrUnknownCalendar is returned by Registry.Get for names it does not hold.
var ErrUnknownCalendar = errors.New("unknown calendar")

// Calendar produces the non-working dates of a year.
type Calendar interface {
	Name() string
	Holidays(ctx context.Context, year int) (HolidaySet, error)
}

// StaticCalendar is the fixed holiday table plus weekly off-days. Pure.
type StaticCalendar struct {
	Fixed   FixedHolidayTable
	OffDays []time.Weekday
}

// NewStaticCalendar creates a fixed calendar. Empty offDays means Sunday.
func NewStaticCalendar(fixed FixedHolidayTable, offDays ...time.Weekday) *StaticCalendar {
	return &StaticCalendar{Fixed: fixed, OffDays: offDays}
}

func (c *StaticCalendar) Name() string { return NameFixed }

func (c *StaticCalendar) Holidays(_ context.Context, year int) (HolidaySet, error) {
	return HolidaysForYear(year, c.Fixed, c.OffDays...), nil
}

// Holiday is an admin-managed holiday record.
type Holiday struct {
	ID        string `json:"id"`
	Date      Date   `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"` // same month/day every year
}

// OccursOn returns the date the holiday falls on in year, if any.
// A recurring holiday starts in the year of its date and never runs backwards.
func (h Holiday) OccursOn(year int) (Date, bool) {
	if !h.Recurring {
		return h.Date, h.Date.Year() == year
	}
	if year < h.Date.Year() {
		return Date{}, false
	}
	// Feb 29 only recurs in leap years
	d := NewDate(year, h.Date.Month(), h.Date.Day())
	return d, d.Month() == h.Date.Month()
}

// HolidayStore is the persistence read side PersistedCalendar needs.
type HolidayStore interface {
	HolidaysForYear(ctx context.Context, year int) ([]Holiday, error)
}

// PersistedCalendar serves the holidays kept in storage. Weekly off-days are
// not added: the stored table is the whole calendar.
type PersistedCalendar struct {
	store HolidayStore
}

func NewPersistedCalendar(store HolidayStore) *PersistedCalendar {
	return &PersistedCalendar{store: store}
}

func (c *PersistedCalendar) Name() string { return NamePersisted }

func (c *PersistedCalendar) Holidays(ctx context.Context, year int) (HolidaySet, error) {
	records, err := c.store.HolidaysForYear(ctx, year)
	if err != nil {
		return HolidaySet{}, err
	}
	dates := make([]Date, 0, len(records))
	for _, h := range records {
		if d, ok := h.OccursOn(year); ok {
			dates = append(dates, d)
		}
	}
	return NewHolidaySet(dates...), nil
}

// MergedCalendar is the union of its members.
type MergedCalendar struct {
	members []Calendar
}

func NewMergedCalendar(members ...Calendar) *MergedCalendar {
	return &MergedCalendar{members: members}
}

func (c *MergedCalendar) Name() string { return NameMerged }

func (c *MergedCalendar) Holidays(ctx context.Context, year int) (HolidaySet, error) {
	var set HolidaySet
	for _, m := range c.members {
		hs, err := m.Holidays(ctx, year)
		if err != nil {
			return HolidaySet{}, fmt.Errorf("%s: %w", m.Name(), err)
		}
		set = set.Union(hs)
	}
	return set, nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry looks calendars up by name. Not safe for concurrent Register calls;
// build it once at startup.
type Registry struct {
	calendars map[string]Calendar
}

func NewRegistry(calendars ...Calendar) *Registry {
	r := &Registry{calendars: make(map[string]Calendar, len(calendars))}
	for _, c := range calendars {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Calendar) {
	r.calendars[c.Name()] = c
}

func (r *Registry) Get(name string) (Calendar, error) {
	c, ok := r.calendars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCalendar, name)
	}
	return c, nil
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.calendars))
	for name := range r.calendars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
