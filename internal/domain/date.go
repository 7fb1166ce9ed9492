package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical ISO key identifying a day's aggregate.
const DateLayout = "2006-01-02"

// DateKey formats t as the calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ParseDateKey validates an ISO date key.
func ParseDateKey(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", value)
	}
	return t, nil
}

// ShiftDateKey moves an ISO date key by days.
func ShiftDateKey(date string, days int) (string, error) {
	t, err := ParseDateKey(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}
