package core

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar month, written as YYYY-MM.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing t (in t's location).
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start is the first day of the month.
func (m Month) Start() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

// End is the last day of the month.
func (m Month) End() Date {
	return Date{Time: m.Start().AddDate(0, 1, -1)}
}

// AddMonths shifts the month by n (negative n goes back).
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Contains reports whether d lies within the month, both ends inclusive.
func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Time.Month() == m.Month
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Trailing returns the n months immediately before m, oldest first.
func (m Month) Trailing(n int) []Month {
	if n <= 0 {
		return nil
	}
	months := make([]Month, n)
	for i := 0; i < n; i++ {
		months[i] = m.AddMonths(i - n)
	}
	return months
}
