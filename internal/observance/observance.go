package observance

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultDays is the length of the observance period.
const DefaultDays = 30

// Calendar maps calendar dates onto days of the observance.
type Calendar struct {
	FirstDay civil.Date
	Days     int
}

// State describes where a date falls relative to the observance.
// Exactly one of Day, DaysUntil or Over is meaningful when Configured is true.
type State struct {
	Configured bool `json:"configured"`
	Day        int  `json:"day,omitempty"`
	DaysUntil  int  `json:"days_until,omitempty"`
	Over       bool `json:"over,omitempty"`
}

// Active reports whether the date is inside the observance window.
func (s State) Active() bool {
	return s.Configured && s.Day > 0
}

// ParseCalendar builds a calendar from a YYYY-MM-DD first day. An empty value yields an
// unconfigured calendar.
func ParseCalendar(firstDay string, days int) (Calendar, error) {
	if days <= 0 {
		days = DefaultDays
	}
	raw := strings.TrimSpace(firstDay)
	if raw == "" {
		return Calendar{Days: days}, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return Calendar{}, fmt.Errorf("invalid observance first day %q: %w", firstDay, err)
	}
	return Calendar{FirstDay: d, Days: days}, nil
}

func (c Calendar) Configured() bool {
	return c.FirstDay.IsValid()
}

// DayOf returns the observance state for today.
func (c Calendar) DayOf(today civil.Date) State {
	if !c.Configured() {
		return State{}
	}
	days := c.Days
	if days <= 0 {
		days = DefaultDays
	}

	since := today.DaysSince(c.FirstDay)
	switch {
	case since < 0:
		return State{Configured: true, DaysUntil: -since}
	case since < days:
		return State{Configured: true, Day: since + 1}
	default:
		return State{Configured: true, Over: true}
	}
}

// Today is the calendar date of now in loc. The day rolls over at local midnight.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}

// LoadLocation resolves an IANA zone name, falling back when the name is empty or unknown.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
