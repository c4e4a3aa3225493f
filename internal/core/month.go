package core

import (
	"fmt"
	"time"
)

// Month is a "YYYY-MM" bucket key.
type Month string

// MonthOf truncates an ISO date string to its month key. It is a string
// prefix, not a calendar computation.
func MonthOf(date string) Month {
	if len(date) < 7 {
		return Month(date)
	}
	return Month(date[:7])
}

// CurrentMonth returns the month key of now in UTC.
func CurrentMonth(now time.Time) Month {
	return Month(now.UTC().Format("2006-01"))
}

// ParseMonth validates a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", Invalid("month", fmt.Errorf("month must be YYYY-MM, got %q", s))
	}
	return Month(s), nil
}

func (m Month) String() string {
	return string(m)
}
