package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2025-07")
	require.NoError(t, err)
	assert.Equal(t, YearMonth{Year: 2025, Month: time.July}, ym)
	assert.Equal(t, "2025-07", ym.String())

	for _, bad := range []string{"", "2025-13", "2025/07", "July 2025", "2025-07-01"} {
		_, err := ParseYearMonth(bad)
		assert.Error(t, err, bad)
	}
}

func TestYearMonth_RangeAndDays(t *testing.T) {
	feb := YearMonth{Year: 2024, Month: time.February}
	from, to := feb.Range()
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), to)
	assert.Len(t, feb.Days(), 29)

	dec := YearMonth{Year: 2025, Month: time.December}
	assert.Equal(t, YearMonth{Year: 2026, Month: time.January}, dec.Next())
	assert.True(t, dec.Contains(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, dec.Contains(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEligibleDates(t *testing.T) {
	july := YearMonth{Year: 2025, Month: time.July}
	weekdays, err := Weekdays([]int{1, 3, 5})
	require.NoError(t, err)

	today := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	dates := EligibleDates(july, weekdays, today)
	require.Len(t, dates, 9)
	assert.Equal(t, 11, dates[0].Day())
	assert.Equal(t, 30, dates[len(dates)-1].Day())
	for _, d := range dates {
		assert.True(t, d.After(today))
		assert.True(t, weekdays[d.Weekday()])
	}

	// A selected weekday that falls on today is excluded.
	friday := time.Date(2025, 7, 11, 18, 0, 0, 0, time.UTC)
	dates = EligibleDates(july, weekdays, friday)
	assert.Equal(t, 14, dates[0].Day())
}

func TestWeekdays(t *testing.T) {
	set, err := Weekdays([]int{0, 6, 6})
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.True(t, set[time.Sunday])
	assert.True(t, set[time.Saturday])

	_, err = Weekdays([]int{-1})
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestUniqueDays(t *testing.T) {
	a := time.Date(2025, 7, 20, 8, 0, 0, 0, time.UTC)
	b := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
	days := uniqueDays([]time.Time{a, b, a.Add(time.Hour)})
	require.Len(t, days, 2)
	assert.Equal(t, 18, days[0].Day())
	assert.Equal(t, 20, days[1].Day())
	assert.Zero(t, days[1].Hour())
}
