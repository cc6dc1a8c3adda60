// Package calendar manages future scheduled runs for a site: month views,
// day toggles, weekday-based month filling and the ready-today query.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonathan/content-autopilot/internal/types"
)

// MonthLayout is the wire format of a YearMonth.
const MonthLayout = "2006-01"

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a YYYY-MM string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Range returns the first day of the month and the first day of the next,
// both as UTC midnight.
func (ym YearMonth) Range() (from, to time.Time) {
	from = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Days returns every day of the month in order.
func (ym YearMonth) Days() []time.Time {
	from, to := ym.Range()
	var days []time.Time
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether the day falls in the month.
func (ym YearMonth) Contains(day time.Time) bool {
	return MonthOf(types.Day(day)) == ym
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	_, to := ym.Range()
	return MonthOf(to)
}

// Weekdays converts 0-6 (Sunday=0) integers into a weekday set.
func Weekdays(days []int) (map[time.Weekday]bool, error) {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		set[time.Weekday(d)] = true
	}
	return set, nil
}

// EligibleDates returns the days of the month strictly after today whose
// weekday is selected.
func EligibleDates(ym YearMonth, weekdays map[time.Weekday]bool, today time.Time) []time.Time {
	today = types.Day(today)
	var dates []time.Time
	for _, d := range ym.Days() {
		if !d.After(today) || !weekdays[d.Weekday()] {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// uniqueDays normalises dates to calendar days, drops duplicates and sorts them.
func uniqueDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	var out []time.Time
	for _, d := range dates {
		day := types.Day(d)
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
