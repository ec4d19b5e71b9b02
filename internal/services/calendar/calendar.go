// Package calendar implements arithmetic over client-supplied YYYY-MM-DD
// local dates. Dates are opaque tokens from the client; they are only ever
// compared against each other, never against the server clock.
package calendar

import (
	"errors"
	"time"
)

// Layout is the only accepted date format
const Layout = "2006-01-02"

// ErrInvalidDate is returned for anything that is not a real YYYY-MM-DD date
var ErrInvalidDate = errors.New("invalid date")

// IsValidDate reports whether s is a well-formed, real calendar date
func IsValidDate(s string) bool {
	_, err := parse(s)
	return err == nil
}

// IsSameDay compares two dates as literal strings
func IsSameDay(a, b string) bool {
	return a == b
}

// IsConsecutiveDay reports whether later is exactly one day after earlier
func IsConsecutiveDay(earlier, later string) bool {
	e, err := parse(earlier)
	if err != nil {
		return false
	}
	l, err := parse(later)
	if err != nil {
		return false
	}
	return e.AddDate(0, 0, 1).Equal(l)
}

// DaysBetween returns later - earlier in whole days. The result is negative
// when later is before earlier.
func DaysBetween(earlier, later string) (int, error) {
	e, err := parse(earlier)
	if err != nil {
		return 0, err
	}
	l, err := parse(later)
	if err != nil {
		return 0, err
	}
	// Both are UTC midnights, so the difference is an exact multiple of 24h
	return int(l.Sub(e).Hours() / 24), nil
}

// Compare returns -1, 0 or +1 depending on whether a is before, equal to or
// after b.
func Compare(a, b string) (int, error) {
	days, err := DaysBetween(b, a)
	if err != nil {
		return 0, err
	}
	switch {
	case days < 0:
		return -1, nil
	case days > 0:
		return 1, nil
	default:
		return 0, nil
	}
}

// parse anchors the date at UTC midnight. time.Parse rejects out-of-range
// days such as 2023-02-29, and the round-trip check rejects anything the
// layout would otherwise tolerate.
func parse(s string) (time.Time, error) {
	if len(s) != len(Layout) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if t.Format(Layout) != s {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}
