package calendar

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/types"
)

// memRuns mirrors the scheduled_runs table: one row per site and day,
// pending-only deletes.
type memRuns struct {
	rows        map[time.Time]*types.ScheduledRun
	createCalls int
}

func newMemRuns() *memRuns {
	return &memRuns{rows: map[time.Time]*types.ScheduledRun{}}
}

func (m *memRuns) put(siteID uuid.UUID, date string, status types.ScheduledRunStatus) {
	day, _ := types.ParseDate(date)
	m.rows[day] = &types.ScheduledRun{ID: uuid.New(), SiteID: siteID, ScheduledDate: day, Status: status}
}

func (m *memRuns) sorted() []types.ScheduledRun {
	var out []types.ScheduledRun
	for _, r := range m.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out
}

func (m *memRuns) ListScheduledRuns(_ context.Context, _ uuid.UUID, from, to time.Time) ([]types.ScheduledRun, error) {
	var out []types.ScheduledRun
	for _, r := range m.sorted() {
		if !r.ScheduledDate.Before(from) && r.ScheduledDate.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRuns) ListScheduledRunsByStatus(_ context.Context, _ uuid.UUID, date time.Time, status types.ScheduledRunStatus) ([]types.ScheduledRun, error) {
	var out []types.ScheduledRun
	for _, r := range m.sorted() {
		if r.ScheduledDate.Equal(date) && r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRuns) GetScheduledRun(_ context.Context, _ uuid.UUID, date time.Time) (*types.ScheduledRun, error) {
	r, ok := m.rows[types.Day(date)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRuns) CreateScheduledRuns(_ context.Context, siteID uuid.UUID, dates []time.Time) ([]types.ScheduledRun, error) {
	m.createCalls++
	var created []types.ScheduledRun
	for _, d := range dates {
		day := types.Day(d)
		if _, ok := m.rows[day]; ok {
			continue
		}
		r := &types.ScheduledRun{ID: uuid.New(), SiteID: siteID, ScheduledDate: day, Status: types.ScheduledRunPending}
		m.rows[day] = r
		created = append(created, *r)
	}
	return created, nil
}

func (m *memRuns) DeleteScheduledRun(_ context.Context, _ uuid.UUID, date time.Time) error {
	r, ok := m.rows[types.Day(date)]
	if !ok {
		return db.ErrScheduledRunNotFound
	}
	if r.Status != types.ScheduledRunPending {
		return db.ErrScheduledRunNotPending
	}
	delete(m.rows, types.Day(date))
	return nil
}

func newTestScheduler(store Store, today string) *Scheduler {
	s := NewScheduler(store, time.UTC, nil)
	day, _ := types.ParseDate(today)
	s.now = func() time.Time { return day.Add(15 * time.Hour) }
	return s
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := types.ParseDate(s)
	require.NoError(t, err)
	return d
}

func dateStrings(runs []types.ScheduledRun) []string {
	var out []string
	for _, r := range runs {
		out = append(out, r.ScheduledDate.Format(types.DateLayout))
	}
	return out
}

func TestScheduleMonth_WeekdaysAfterToday(t *testing.T) {
	store := newMemRuns()
	s := newTestScheduler(store, "2025-07-10")
	site := uuid.New()
	july := YearMonth{Year: 2025, Month: time.July}

	created, err := s.ScheduleMonth(context.Background(), site, july, []int{1, 3, 5}, mustDate(t, "2025-07-10"))
	require.NoError(t, err)

	want := []string{
		"2025-07-11", "2025-07-14", "2025-07-16", "2025-07-18", "2025-07-21",
		"2025-07-23", "2025-07-25", "2025-07-28", "2025-07-30",
	}
	assert.Equal(t, want, dateStrings(created))
	for _, r := range store.sorted() {
		assert.True(t, r.ScheduledDate.After(mustDate(t, "2025-07-10")), "no row on or before today")
		assert.Equal(t, types.ScheduledRunPending, r.Status)
	}
}

func TestScheduleMonth_Idempotent(t *testing.T) {
	store := newMemRuns()
	s := newTestScheduler(store, "2025-07-10")
	site := uuid.New()
	july := YearMonth{Year: 2025, Month: time.July}
	today := mustDate(t, "2025-07-10")

	_, err := s.ScheduleMonth(context.Background(), site, july, []int{1, 3, 5}, today)
	require.NoError(t, err)
	before := len(store.rows)

	created, err := s.ScheduleMonth(context.Background(), site, july, []int{1, 3, 5}, today)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Equal(t, before, len(store.rows))
}

func TestScheduleMonth_LeavesExistingRowsUntouched(t *testing.T) {
	store := newMemRuns()
	site := uuid.New()
	store.put(site, "2025-07-14", types.ScheduledRunCompleted)
	store.put(site, "2025-07-16", types.ScheduledRunFailed)
	s := newTestScheduler(store, "2025-07-10")

	created, err := s.ScheduleMonth(context.Background(), site, YearMonth{2025, time.July}, []int{1, 3}, mustDate(t, "2025-07-10"))
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-07-21", "2025-07-23", "2025-07-28", "2025-07-30"}, dateStrings(created))
	assert.Equal(t, types.ScheduledRunCompleted, store.rows[mustDate(t, "2025-07-14")].Status)
	assert.Equal(t, types.ScheduledRunFailed, store.rows[mustDate(t, "2025-07-16")].Status)
}

func TestScheduleMonth_PastMonthCreatesNothing(t *testing.T) {
	store := newMemRuns()
	s := newTestScheduler(store, "2025-08-01")

	created, err := s.ScheduleMonth(context.Background(), uuid.New(), YearMonth{2025, time.July}, []int{0, 1, 2, 3, 4, 5, 6}, mustDate(t, "2025-08-01"))
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Zero(t, store.createCalls)
}

func TestScheduleMonth_InvalidWeekday(t *testing.T) {
	s := newTestScheduler(newMemRuns(), "2025-07-10")
	_, err := s.ScheduleMonth(context.Background(), uuid.New(), YearMonth{2025, time.July}, []int{7}, mustDate(t, "2025-07-10"))
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestToggleDay(t *testing.T) {
	ctx := context.Background()
	site := uuid.New()

	t.Run("creates pending row on empty day", func(t *testing.T) {
		store := newMemRuns()
		s := newTestScheduler(store, "2025-07-10")

		res, err := s.ToggleDay(ctx, site, mustDate(t, "2025-07-15"))
		require.NoError(t, err)
		assert.Equal(t, ToggleCreated, res.Action)
		require.NotNil(t, res.Run)
		assert.Equal(t, types.ScheduledRunPending, res.Run.Status)
		assert.Len(t, store.rows, 1)
	})

	t.Run("deletes pending row", func(t *testing.T) {
		store := newMemRuns()
		store.put(site, "2025-07-15", types.ScheduledRunPending)
		s := newTestScheduler(store, "2025-07-10")

		res, err := s.ToggleDay(ctx, site, mustDate(t, "2025-07-15"))
		require.NoError(t, err)
		assert.Equal(t, ToggleDeleted, res.Action)
		assert.Nil(t, res.Run)
		assert.Empty(t, store.rows)
	})

	t.Run("keyword picked row is unchanged", func(t *testing.T) {
		store := newMemRuns()
		store.put(site, "2025-07-14", types.ScheduledRunKeywordPicked)
		before := *store.rows[mustDate(t, "2025-07-14")]
		s := newTestScheduler(store, "2025-07-10")

		res, err := s.ToggleDay(ctx, site, mustDate(t, "2025-07-14"))
		require.NoError(t, err)
		assert.Equal(t, ToggleUnchanged, res.Action)
		assert.Equal(t, before, *store.rows[mustDate(t, "2025-07-14")])
	})

	t.Run("past day is never actionable", func(t *testing.T) {
		for _, status := range []types.ScheduledRunStatus{"", types.ScheduledRunPending, types.ScheduledRunCompleted} {
			store := newMemRuns()
			if status != "" {
				store.put(site, "2025-07-09", status)
			}
			s := newTestScheduler(store, "2025-07-10")

			res, err := s.ToggleDay(ctx, site, mustDate(t, "2025-07-09"))
			require.NoError(t, err)
			assert.Equal(t, ToggleUnchanged, res.Action, "status %q", status)
			if status == "" {
				assert.Empty(t, store.rows)
			} else {
				assert.Equal(t, status, store.rows[mustDate(t, "2025-07-09")].Status)
			}
		}
	})

	t.Run("today is actionable", func(t *testing.T) {
		store := newMemRuns()
		s := newTestScheduler(store, "2025-07-10")

		res, err := s.ToggleDay(ctx, site, mustDate(t, "2025-07-10"))
		require.NoError(t, err)
		assert.Equal(t, ToggleCreated, res.Action)
	})
}

func TestCreateRuns(t *testing.T) {
	ctx := context.Background()
	site := uuid.New()

	t.Run("same date twice yields one row", func(t *testing.T) {
		store := newMemRuns()
		s := newTestScheduler(store, "2025-07-10")
		d := mustDate(t, "2025-07-20")

		first, err := s.CreateRuns(ctx, site, []time.Time{d})
		require.NoError(t, err)
		assert.Len(t, first, 1)

		second, err := s.CreateRuns(ctx, site, []time.Time{d})
		require.NoError(t, err)
		assert.Empty(t, second)
		assert.Len(t, store.rows, 1)
	})

	t.Run("duplicate dates in one call", func(t *testing.T) {
		store := newMemRuns()
		s := newTestScheduler(store, "2025-07-10")
		d := mustDate(t, "2025-07-20")

		created, err := s.CreateRuns(ctx, site, []time.Time{d, d.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, created, 1)
	})

	t.Run("past date rejected", func(t *testing.T) {
		store := newMemRuns()
		s := newTestScheduler(store, "2025-07-10")

		_, err := s.CreateRuns(ctx, site, []time.Time{mustDate(t, "2025-07-20"), mustDate(t, "2025-07-01")})
		assert.ErrorIs(t, err, ErrPastDate)
		assert.Empty(t, store.rows)
	})
}

func TestDeleteRun_Guard(t *testing.T) {
	ctx := context.Background()
	site := uuid.New()

	for _, status := range []types.ScheduledRunStatus{
		types.ScheduledRunKeywordPicked, types.ScheduledRunRunning,
		types.ScheduledRunCompleted, types.ScheduledRunFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemRuns()
			store.put(site, "2025-07-20", status)
			s := newTestScheduler(store, "2025-07-10")

			err := s.DeleteRun(ctx, site, mustDate(t, "2025-07-20"))
			assert.ErrorIs(t, err, db.ErrScheduledRunNotPending)
			assert.Len(t, store.rows, 1)
		})
	}

	t.Run("pending", func(t *testing.T) {
		store := newMemRuns()
		store.put(site, "2025-07-20", types.ScheduledRunPending)
		s := newTestScheduler(store, "2025-07-10")

		require.NoError(t, s.DeleteRun(ctx, site, mustDate(t, "2025-07-20")))
		assert.Empty(t, store.rows)
	})

	t.Run("missing", func(t *testing.T) {
		s := newTestScheduler(newMemRuns(), "2025-07-10")
		assert.ErrorIs(t, s.DeleteRun(ctx, site, mustDate(t, "2025-07-20")), db.ErrScheduledRunNotFound)
	})
}

func TestListMonthAndReadyToday(t *testing.T) {
	ctx := context.Background()
	site := uuid.New()
	store := newMemRuns()
	store.put(site, "2025-06-30", types.ScheduledRunCompleted)
	store.put(site, "2025-07-01", types.ScheduledRunCompleted)
	store.put(site, "2025-07-14", types.ScheduledRunKeywordPicked)
	store.put(site, "2025-07-31", types.ScheduledRunPending)
	store.put(site, "2025-08-01", types.ScheduledRunPending)
	s := newTestScheduler(store, "2025-07-14")

	runs, err := s.ListMonth(ctx, site, YearMonth{2025, time.July})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-01", "2025-07-14", "2025-07-31"}, dateStrings(runs))

	ready, err := s.ReadyToday(ctx, site, s.Today())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-14"}, dateStrings(ready))

	ready, err = s.ReadyToday(ctx, site, mustDate(t, "2025-07-31"))
	require.NoError(t, err)
	assert.Empty(t, ready)
}
