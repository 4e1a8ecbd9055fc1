package models

import (
	"time"
)

// DefaultCalendarName is the calendar used when a report does not name one.
const DefaultCalendarName = "default"

// WorkingDay defines the working hours of a single weekday. A nil WorkingDay
// on the calendar means the whole day is non-working.
type WorkingDay struct {
	StartHour int `json:"start_hour" validate:"min=0,max=23"`
	EndHour   int `json:"end_hour"   validate:"min=0,max=24"`
}

// ExcludedDay is a calendar date with no working hours, e.g. a public
// holiday. Year 0 means the exclusion recurs every year.
type ExcludedDay struct {
	Day    int    `json:"day"              validate:"min=1,max=31"`
	Month  int    `json:"month"            validate:"min=1,max=12"`
	Year   int    `json:"year,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Calendar describes the working week used by SLA duration calculations.
type Calendar struct {
	Name         string        `json:"name" validate:"required"`
	Timezone     string        `json:"timezone,omitempty"`
	Monday       *WorkingDay   `json:"monday,omitempty"`
	Tuesday      *WorkingDay   `json:"tuesday,omitempty"`
	Wednesday    *WorkingDay   `json:"wednesday,omitempty"`
	Thursday     *WorkingDay   `json:"thursday,omitempty"`
	Friday       *WorkingDay   `json:"friday,omitempty"`
	Saturday     *WorkingDay   `json:"saturday,omitempty"`
	Sunday       *WorkingDay   `json:"sunday,omitempty"`
	ExcludedDays []ExcludedDay `json:"excluded_days,omitempty"`
}

// DefaultCalendar returns the built-in Monday to Friday 9-17 working week
// with Christmas Day excluded.
func DefaultCalendar() *Calendar {
	nineToFive := &WorkingDay{StartHour: 9, EndHour: 17}

	return &Calendar{
		Name:      DefaultCalendarName,
		Monday:    nineToFive,
		Tuesday:   nineToFive,
		Wednesday: nineToFive,
		Thursday:  nineToFive,
		Friday:    nineToFive,
		ExcludedDays: []ExcludedDay{
			{Day: 25, Month: 12, Reason: "Christmas Day"},
		},
	}
}

// WorkingDayFor returns the working hours for a weekday.
func (c *Calendar) WorkingDayFor(day time.Weekday) *WorkingDay {
	switch day {
	case time.Monday:
		return c.Monday
	case time.Tuesday:
		return c.Tuesday
	case time.Wednesday:
		return c.Wednesday
	case time.Thursday:
		return c.Thursday
	case time.Friday:
		return c.Friday
	case time.Saturday:
		return c.Saturday
	default:
		return c.Sunday
	}
}

// Excluded reports whether the date falls on an excluded day.
func (c *Calendar) Excluded(t time.Time) bool {
	for _, ex := range c.ExcludedDays {
		if ex.Day == t.Day() && time.Month(ex.Month) == t.Month() &&
			(ex.Year == 0 || ex.Year == t.Year()) {
			return true
		}
	}

	return false
}

// Location resolves the calendar timezone, falling back to UTC when the
// timezone is unset or unknown.
func (c *Calendar) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}

	return time.UTC
}

// WorkingDuration returns the amount of working time between from and to
// according to the calendar, walking day by day and clipping each day to its
// configured working hours.
func (c *Calendar) WorkingDuration(from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}

	loc := c.Location()
	from = from.In(loc)
	to = to.In(loc)

	var total time.Duration

	for day := from; day.Before(to); day = startOfDay(day).AddDate(0, 0, 1) {
		wd := c.WorkingDayFor(day.Weekday())
		if wd == nil || c.Excluded(day) {
			continue
		}

		start := startOfDay(day).Add(time.Duration(wd.StartHour) * time.Hour)
		end := startOfDay(day).Add(time.Duration(wd.EndHour) * time.Hour)

		if day.After(start) {
			start = day
		}

		if to.Before(end) {
			end = to
		}

		if end.After(start) {
			total += end.Sub(start)
		}
	}

	return total
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
