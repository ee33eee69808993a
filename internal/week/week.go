// Package week converts between calendar dates and ISO-8601 week identifiers
// of the form "2024-W10". Weeks start on Monday 00:00 in a given location.
package week

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidID is returned when a week identifier cannot be parsed.
var ErrInvalidID = errors.New("invalid week id")

// ID returns the ISO week identifier of the local date of t in loc.
func ID(t time.Time, loc *time.Location) string {
	year, wk := t.In(loc).ISOWeek()
	return Format(year, wk)
}

// Format renders an ISO year and week number as an identifier.
func Format(year, wk int) string {
	return fmt.Sprintf("%04d-W%02d", year, wk)
}

// Start returns Monday 00:00 local on or before the local date of t.
func Start(t time.Time, loc *time.Location) time.Time {
	d := t.In(loc)
	offset := (int(d.Weekday()) + 6) % 7
	return time.Date(d.Year(), d.Month(), d.Day()-offset, 0, 0, 0, 0, loc)
}

// Parse splits an identifier into its ISO year and week number.
func Parse(id string) (int, int, error) {
	var year, wk int
	if len(id) != 8 || id[4] != '-' || id[5] != 'W' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := fmt.Sscanf(id, "%04d-W%02d", &year, &wk); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	// Sscanf tolerates signs, spaces and trailing input; only the canonical
	// spelling of a week is accepted.
	if id != Format(year, wk) || year < 1 || wk < 1 || wk > WeeksInYear(year) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return year, wk, nil
}

// WeeksInYear returns 52 or 53, the number of ISO weeks in year.
func WeeksInYear(year int) int {
	// Dec 28 always falls in the last ISO week of its year.
	_, wk := time.Date(year, time.December, 28, 12, 0, 0, 0, time.UTC).ISOWeek()
	return wk
}

// StartOf returns Monday 00:00 in loc of the identified week.
func StartOf(id string, loc *time.Location) (time.Time, error) {
	year, wk, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	// Jan 4 is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	monday := Start(jan4, loc)
	return time.Date(monday.Year(), monday.Month(), monday.Day()+(wk-1)*7, 0, 0, 0, 0, loc), nil
}

// Bounds returns the half-open interval [start, end) covering the identified
// week in loc. The end is the following Monday 00:00 local, which is not
// always 168 hours after start when a DST transition falls inside the week.
func Bounds(id string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := StartOf(id, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 7), nil
}

// DayDate returns the local midnight of choreDay (0=Sunday..6=Saturday)
// within the week starting at weekStart. Sunday is the last day of the week.
func DayDate(weekStart time.Time, choreDay int) time.Time {
	offset := (choreDay + 6) % 7
	return weekStart.AddDate(0, 0, offset)
}

// Next returns the identifier of the week after id.
func Next(id string) (string, error) {
	start, err := StartOf(id, time.UTC)
	if err != nil {
		return "", err
	}
	return ID(start.AddDate(0, 0, 7), time.UTC), nil
}
