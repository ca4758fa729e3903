// Package slottime handles the compact date-time forms used at the API and
// messaging boundaries: "DD.MM HH:MM" for a slot start, "HH:MM" for a template
// clock and "DD.MM.YYYY" for a calendar day.
//
// The compact slot form carries no year. Parse assigns the year of the
// reference instant; ParseNextIfPast additionally rolls over to the next year
// when the result would already be in the past, which is the rule reminder
// delivery uses. Persisted timestamps always carry an explicit year, so the
// inference only ever happens at the edges.
package slottime

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("slottime: invalid compact date-time")

// Parse converts "DD.MM HH:MM" into a concrete time in now's location,
// assuming now's calendar year.
func Parse(s string, now time.Time) (time.Time, error) {
	day, month, hour, minute, err := splitCompact(s)
	if err != nil {
		return time.Time{}, err
	}
	return buildDate(now.Year(), month, day, hour, minute, now.Location())
}

// ParseNextIfPast parses like Parse but re-derives the result with next year's
// calendar when the current-year reading is strictly before now.
func ParseNextIfPast(s string, now time.Time) (time.Time, error) {
	day, month, hour, minute, err := splitCompact(s)
	if err != nil {
		return time.Time{}, err
	}
	t, err := buildDate(now.Year(), month, day, hour, minute, now.Location())
	if err != nil {
		return time.Time{}, err
	}
	if t.Before(now) {
		return buildDate(now.Year()+1, month, day, hour, minute, now.Location())
	}
	return t, nil
}

// ParseDay converts "DD.MM.YYYY" into midnight of that day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return time.Time{}, ErrInvalid
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || year < 1 {
		return time.Time{}, ErrInvalid
	}
	return buildDate(year, month, day, 0, 0, loc)
}

// ParseClock converts "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	hour, minute, err = splitClock(strings.TrimSpace(s))
	return
}

// Format renders a time in the compact "DD.MM HH:MM" form.
func Format(t time.Time) string {
	return t.Format("02.01 15:04")
}

// FormatDay renders a calendar day as "DD.MM.YYYY".
func FormatDay(t time.Time) string {
	return t.Format("02.01.2006")
}

// FormatClock renders a time-of-day as "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// WeekdayIndex maps a time to the template weekday index, 0=Monday … 6=Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsPast reports whether t is unavailable relative to now. The boundary is
// inclusive: a slot starting exactly at now counts as past.
func IsPast(t, now time.Time) bool {
	return !t.After(now)
}

func splitCompact(s string) (day, month, hour, minute int, err error) {
	datePart, timePart, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return 0, 0, 0, 0, ErrInvalid
	}
	dayStr, monthStr, ok := strings.Cut(datePart, ".")
	if !ok {
		return 0, 0, 0, 0, ErrInvalid
	}
	day, err1 := strconv.Atoi(dayStr)
	month, err2 := strconv.Atoi(monthStr)
	if err1 != nil || err2 != nil {
		return 0, 0, 0, 0, ErrInvalid
	}
	hour, minute, err = splitClock(timePart)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return day, month, hour, minute, nil
}

func splitClock(s string) (hour, minute int, err error) {
	hourStr, minStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, ErrInvalid
	}
	hour, err1 := strconv.Atoi(hourStr)
	minute, err2 := strconv.Atoi(minStr)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalid
	}
	return hour, minute, nil
}

// buildDate rejects field combinations time.Date would silently normalize,
// e.g. 31.02 rolling into March.
func buildDate(year, month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrInvalid
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrInvalid
	}
	return t, nil
}
