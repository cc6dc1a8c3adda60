package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

// SiteStore loads and updates site autopilot configuration.
type SiteStore interface {
	GetAutopilotConfig(ctx context.Context, siteID uuid.UUID) (*types.AutopilotConfig, error)
	UpdateAutopilotConfig(ctx context.Context, siteID uuid.UUID, update types.AutopilotConfigUpdate) (*types.AutopilotConfig, error)
	ListAutopilotSites(ctx context.Context) ([]types.AutopilotConfig, error)
}

// RunStore reads and transitions scheduled runs.
type RunStore interface {
	ListScheduledRunsByStatus(ctx context.Context, siteID uuid.UUID, date time.Time, status types.ScheduledRunStatus) ([]types.ScheduledRun, error)
	TransitionScheduledRun(ctx context.Context, id uuid.UUID, from, to types.ScheduledRunStatus) error
	PickScheduledRunKeyword(ctx context.Context, id uuid.UUID, keyword *types.Keyword) error
	CompleteScheduledRun(ctx context.Context, id uuid.UUID, article *types.Article, publishedURL string) error
	FailScheduledRun(ctx context.Context, id uuid.UUID, from types.ScheduledRunStatus, message string) error
	FailStaleScheduledRuns(ctx context.Context, siteID uuid.UUID, olderThan time.Time, message string) (int, error)
}

// Locker grants at most one ad hoc run per site at a time.
type Locker interface {
	TryLock(ctx context.Context, siteID uuid.UUID) (bool, error)
	Unlock(ctx context.Context, siteID uuid.UUID) error
}

// Executor is the entry point for running the pipeline against stored sites.
type Executor struct {
	orchestrator *Orchestrator
	sites        SiteStore
	runs         RunStore
	locker       Locker
	location     *time.Location
	concurrency  int
	staleAfter   time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLocation sets the time zone that decides which calendar day is today.
func WithLocation(loc *time.Location) ExecutorOption {
	return func(e *Executor) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithSweepConcurrency bounds how many sites a sweep processes at once.
func WithSweepConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithStaleRunAfter sets how long a row may sit in running before it is
// treated as abandoned and marked failed.
func WithStaleRunAfter(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(orchestrator *Orchestrator, sites SiteStore, runs RunStore, locker Locker, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		orchestrator: orchestrator,
		sites:        sites,
		runs:         runs,
		locker:       locker,
		location:     time.UTC,
		concurrency:  4,
		staleAfter:   time.Hour,
		logger:       logger.With("component", "executor"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current calendar day in the executor's time zone.
func (e *Executor) Today() time.Time {
	return types.Day(e.now().In(e.location))
}

func (e *Executor) loadConfig(ctx context.Context, siteID uuid.UUID) (*types.AutopilotConfig, error) {
	cfg, err := e.sites.GetAutopilotConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, db.ErrSiteNotFound
	}
	return cfg, nil
}

// withLock runs fn while holding the site's ad hoc run lock. The config is
// reloaded after the lock is taken so fn sees the state the previous holder left.
func (e *Executor) withLock(ctx context.Context, siteID uuid.UUID, fn func(cfg *types.AutopilotConfig) (*RunReport, error)) (*RunReport, error) {
	locked, err := e.locker.TryLock(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrRunInFlight
	}
	defer func() {
		if err := e.locker.Unlock(context.WithoutCancel(ctx), siteID); err != nil {
			e.logger.Error("failed to release site lock", "site_id", siteID, "error", err)
		}
	}()

	cfg, err := e.loadConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return fn(cfg)
}

// RunNow starts a fresh run of articlesPerRun units. It is rejected when an
// unfinished unit is recorded or another ad hoc run holds the site. A
// successful run schedules the next cadence run.
func (e *Executor) RunNow(ctx context.Context, siteID uuid.UUID, opts RunOptions) (*RunReport, error) {
	cfg, err := e.loadConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if cfg.InFlight() {
		return nil, ErrResumeRequired
	}

	return e.withLock(ctx, siteID, func(cfg *types.AutopilotConfig) (*RunReport, error) {
		if cfg.InFlight() {
			return nil, ErrResumeRequired
		}

		e.logger.Info("starting fresh run", "site_id", siteID, "domain", cfg.Domain, "articles", cfg.ArticlesPerRun)
		report, err := e.orchestrator.RunFresh(ctx, cfg, cfg.ArticlesPerRun, opts)
		if err != nil {
			return report, err
		}

		next := cfg.Cadence.Next(e.now())
		if _, err := e.sites.UpdateAutopilotConfig(ctx, siteID, types.AutopilotConfigUpdate{NextRunAt: &next}); err != nil {
			return report, fmt.Errorf("failed to schedule next run: %w", err)
		}
		return report, nil
	})
}

// Resume finishes the unit recorded on the site.
func (e *Executor) Resume(ctx context.Context, siteID uuid.UUID, opts RunOptions) (*RunReport, error) {
	cfg, err := e.loadConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !cfg.InFlight() {
		return nil, ErrNothingToResume
	}

	return e.withLock(ctx, siteID, func(cfg *types.AutopilotConfig) (*RunReport, error) {
		if !cfg.InFlight() {
			return nil, ErrNothingToResume
		}
		e.logger.Info("resuming run", "site_id", siteID, "keyword_id", cfg.PipelineKeywordID)
		return e.orchestrator.Resume(ctx, cfg, opts)
	})
}

// RunReadyToday generates and publishes every keyword_picked row for today.
// Each row is claimed by moving it to running; rows another invocation
// already claimed are skipped, unless the claim is older than the stale
// window, in which case the row is marked failed first. The site's progress
// record is not touched. The batch halts on the first failing row.
func (e *Executor) RunReadyToday(ctx context.Context, siteID uuid.UUID, today time.Time, opts RunOptions) (*RunReport, error) {
	cfg, err := e.loadConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}

	day := types.Day(today)
	e.failStaleRuns(ctx, siteID)
	rows, err := e.runs.ListScheduledRunsByStatus(ctx, siteID, day, types.ScheduledRunKeywordPicked)
	if err != nil {
		return nil, err
	}

	o := e.orchestrator
	report := o.newReport(siteID, ModeScheduled)

	for i, row := range rows {
		unit := newUnitReport(i + 1)
		date := row.ScheduledDate
		unit.ScheduledDate = &date
		unit.KeywordID = row.KeywordID
		if row.KeywordText != nil {
			unit.Keyword = *row.KeywordText
		}
		unit.Step(steps.PickKeyword).Status = steps.StatusSkipped
		report.Units = append(report.Units, unit)

		if err := e.runs.TransitionScheduledRun(ctx, row.ID, types.ScheduledRunKeywordPicked, types.ScheduledRunRunning); err != nil {
			if errors.Is(err, db.ErrStatusConflict) {
				e.logger.Info("scheduled run claimed elsewhere, skipping", "site_id", siteID, "run_id", row.ID)
				for _, s := range unit.Steps {
					s.Status = steps.StatusSkipped
				}
				continue
			}
			return e.failBatch(report, unit, day, err)
		}

		if row.KeywordID == nil {
			err := errors.New("scheduled run has no keyword")
			e.failRow(ctx, row.ID, err)
			return e.failBatch(report, unit, day, err)
		}

		if err := o.produce(ctx, cfg, unit, *row.KeywordID, nil, opts, false); err != nil {
			e.failRow(ctx, row.ID, err)
			return e.failBatch(report, unit, day, err)
		}

		if err := e.completeRow(ctx, row.ID, unit); err != nil {
			return e.failBatch(report, unit, day, err)
		}
		e.logger.Info("scheduled run completed", "site_id", siteID, "run_id", row.ID, "url", unit.Publish.PublishedURL)
	}

	o.finish(report)
	return report, nil
}

// completeRow records a published unit on its row. The write is retried once
// outside the caller's cancellation; if that also fails the row is marked
// failed with the published URL so it is not left running or republished.
func (e *Executor) completeRow(ctx context.Context, id uuid.UUID, unit *UnitReport) error {
	url := unit.Publish.PublishedURL
	err := e.runs.CompleteScheduledRun(ctx, id, unit.Article, url)
	if err == nil {
		return nil
	}
	e.logger.Warn("failed to record scheduled run completion, retrying", "run_id", id, "error", err)

	bg := context.WithoutCancel(ctx)
	if err = e.runs.CompleteScheduledRun(bg, id, unit.Article, url); err == nil {
		return nil
	}
	msg := fmt.Sprintf("published %s but failed to record completion: %v", url, err)
	if ferr := e.runs.FailScheduledRun(bg, id, types.ScheduledRunRunning, msg); ferr != nil {
		e.logger.Error("failed to mark scheduled run failed", "run_id", id, "error", ferr)
	}
	return fmt.Errorf("failed to record completion of %s: %w", url, err)
}

// failStaleRuns marks failed any running row whose claim has outlived the
// stale window. Errors are logged; the claim CAS still guards fresh rows.
func (e *Executor) failStaleRuns(ctx context.Context, siteID uuid.UUID) {
	cutoff := e.now().Add(-e.staleAfter)
	n, err := e.runs.FailStaleScheduledRuns(ctx, siteID, cutoff, "abandoned while running")
	if err != nil {
		e.logger.Error("failed to reclaim stale scheduled runs", "site_id", siteID, "error", err)
		return
	}
	if n > 0 {
		e.logger.Warn("marked stale scheduled runs failed", "site_id", siteID, "count", n)
	}
}

func (e *Executor) failRow(ctx context.Context, id uuid.UUID, cause error) {
	if err := e.runs.FailScheduledRun(context.WithoutCancel(ctx), id, types.ScheduledRunRunning, failureMessage(cause)); err != nil {
		e.logger.Error("failed to mark scheduled run failed", "run_id", id, "error", err)
	}
}

func (e *Executor) failBatch(report *RunReport, unit *UnitReport, day time.Time, err error) (*RunReport, error) {
	batchErr := &BatchError{Index: unit.Index, Date: day, Err: err}
	report.Error = batchErr.Error()
	e.orchestrator.finish(report)
	return report, batchErr
}

// PrepareResult summarises a nightly keyword pre-selection.
type PrepareResult struct {
	Date      time.Time            `json:"date"`
	Refreshed *types.RefreshResult `json:"refreshed,omitempty"`
	Picked    []types.ScheduledRun `json:"picked"`
}

// PrepareDay picks a keyword for every pending row of day. Opportunities are
// refreshed once for the batch. A row whose pick fails is marked failed and
// the remaining rows are left pending.
func (e *Executor) PrepareDay(ctx context.Context, siteID uuid.UUID, day time.Time) (*PrepareResult, error) {
	cfg, err := e.loadConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}

	result := &PrepareResult{Date: types.Day(day)}
	rows, err := e.runs.ListScheduledRunsByStatus(ctx, siteID, result.Date, types.ScheduledRunPending)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return result, nil
	}

	opportunities := e.orchestrator.opportunities
	refreshed, err := opportunities.RefreshOpportunities(ctx, cfg)
	if err != nil {
		return result, &StepError{Step: steps.RefreshOpportunities, Err: err}
	}
	result.Refreshed = refreshed

	for i, row := range rows {
		keyword, err := opportunities.PickBestKeyword(ctx, siteID)
		if err != nil {
			if ferr := e.runs.FailScheduledRun(context.WithoutCancel(ctx), row.ID, types.ScheduledRunPending, err.Error()); ferr != nil {
				e.logger.Error("failed to mark scheduled run failed", "run_id", row.ID, "error", ferr)
			}
			return result, &BatchError{Index: i + 1, Date: result.Date, Err: &StepError{Unit: i + 1, Step: steps.PickKeyword, Err: err}}
		}

		if err := e.runs.PickScheduledRunKeyword(ctx, row.ID, keyword); err != nil {
			if errors.Is(err, db.ErrStatusConflict) {
				e.logger.Info("scheduled run changed before keyword pick, skipping", "run_id", row.ID)
				continue
			}
			return result, &BatchError{Index: i + 1, Date: result.Date, Err: err}
		}

		row.Status = types.ScheduledRunKeywordPicked
		row.KeywordID = &keyword.ID
		row.KeywordText = &keyword.Keyword
		result.Picked = append(result.Picked, row)
		e.logger.Info("keyword picked for scheduled run", "site_id", siteID, "run_id", row.ID, "keyword", keyword.Keyword)
	}
	return result, nil
}

// SiteSweep is the outcome of sweeping one site.
type SiteSweep struct {
	SiteID    uuid.UUID  `json:"site_id"`
	Domain    string     `json:"domain"`
	Scheduled *RunReport `json:"scheduled,omitempty"`
	Cadence   *RunReport `json:"cadence,omitempty"`
	Skipped   string     `json:"skipped,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Sweep processes every enabled site: today's ready rows first, then a fresh
// run when the cadence is due. Sites run concurrently up to the configured
// limit; work within a site stays sequential. A failing site does not stop
// the others.
func (e *Executor) Sweep(ctx context.Context, opts RunOptions) ([]SiteSweep, error) {
	sites, err := e.sites.ListAutopilotSites(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	today := e.Today()
	results := make([]SiteSweep, len(sites))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i := range sites {
		site := sites[i]
		g.Go(func() error {
			res := e.sweepSite(ctx, &site, now, today, opts)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

func (e *Executor) sweepSite(ctx context.Context, site *types.AutopilotConfig, now, today time.Time, opts RunOptions) SiteSweep {
	res := SiteSweep{SiteID: site.SiteID, Domain: site.Domain}
	logger := e.logger.With("site_id", site.SiteID, "domain", site.Domain)

	scheduled, err := e.RunReadyToday(ctx, site.SiteID, today, opts)
	if scheduled != nil && len(scheduled.Units) > 0 {
		res.Scheduled = scheduled
	}
	if err != nil {
		logger.Error("scheduled runs failed", "error", err)
		res.Error = err.Error()
		return res
	}

	switch {
	case site.InFlight():
		res.Skipped = "awaiting resume"
		return res
	case site.NextRunAt != nil && site.NextRunAt.After(now):
		res.Skipped = "not due"
		return res
	}

	report, err := e.RunNow(ctx, site.SiteID, opts)
	res.Cadence = report
	if err != nil {
		if errors.Is(err, ErrRunInFlight) || errors.Is(err, ErrResumeRequired) {
			res.Skipped = err.Error()
			return res
		}
		logger.Error("cadence run failed", "error", err)
		res.Error = err.Error()
	}
	return res
}
