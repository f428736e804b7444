package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in "HH:MM" form.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (Clock, error) {
	trimmed := strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(trimmed, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return Clock{}, fmt.Errorf("%w: invalid time of day %q, want HH:MM", ErrValidation, s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: invalid hour in %q", ErrValidation, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: invalid minute in %q", ErrValidation, s)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func DefaultDigestClock() Clock {
	return Clock{Hour: 9}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// NextOccurrence returns the first instant at or after now whose wall clock in loc
// equals c: today if it has not passed yet, otherwise tomorrow.
func (c Clock) NextOccurrence(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, 0, 0, loc)
	if candidate.Before(now) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, c.Hour, c.Minute, 0, 0, loc)
	}
	return candidate
}
