package core

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM". String order equals
// chronological order.
type MonthKey string

const monthKeyLayout = "2006-01"

// NewMonthKey builds a key from a year and a 1-based month. Out-of-range months
// roll over the year the way time.Date does.
func NewMonthKey(year, month int) MonthKey {
	return MonthKeyOf(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
}

// MonthKeyOf returns the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParseMonthKey validates s as a YYYY-MM key.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthKeyOf(t), nil
}

func (k MonthKey) start() time.Time {
	t, err := time.Parse(monthKeyLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (k MonthKey) String() string { return string(k) }

func (k MonthKey) Year() int { return k.start().Year() }

func (k MonthKey) Month() int { return int(k.start().Month()) }

// AddMonths moves the key by n months, crossing year boundaries as needed.
func (k MonthKey) AddMonths(n int) MonthKey {
	return MonthKeyOf(k.start().AddDate(0, n, 0))
}

func (k MonthKey) Next() MonthKey { return k.AddMonths(1) }

// DaysIn returns the number of days in the month.
func (k MonthKey) DaysIn() int {
	return DaysInMonth(k.Year(), k.Month())
}

// Name renders the display label, e.g. 2025年3月.
func (k MonthKey) Name() string {
	return fmt.Sprintf("%d年%d月", k.Year(), k.Month())
}

// Contains reports whether t falls inside the month.
func (k MonthKey) Contains(t time.Time) bool {
	return MonthKeyOf(t) == k
}

// DaysInMonth returns the length of month in year, honouring leap years.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidMonth reports whether month is in 1..12.
func ValidMonth(month int) bool {
	return month >= 1 && month <= 12
}
