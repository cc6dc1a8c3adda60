// Package pipeline sequences the four autopilot steps for a site and exposes
// the run now, resume and ready-today entry points.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

// ConfigStore persists the per-site progress checkpoints.
type ConfigStore interface {
	SavePipelineKeyword(ctx context.Context, siteID, keywordID uuid.UUID) error
	SavePipelineArticle(ctx context.Context, siteID, articleID uuid.UUID) error
	ClearPipelineProgress(ctx context.Context, siteID uuid.UUID, lastRunAt time.Time) error
	SetLastError(ctx context.Context, siteID uuid.UUID, message string) error
	GetArticle(ctx context.Context, id uuid.UUID) (*types.Article, error)
}

// OpportunityService runs steps 1 and 2.
type OpportunityService interface {
	RefreshOpportunities(ctx context.Context, site *types.AutopilotConfig) (*types.RefreshResult, error)
	PickBestKeyword(ctx context.Context, siteID uuid.UUID) (*types.Keyword, error)
}

// ArticleGenerator runs step 3.
type ArticleGenerator interface {
	Generate(ctx context.Context, req types.GenerateRequest) (*types.Article, error)
}

// Publisher runs step 4.
type Publisher interface {
	PublishAndIndex(ctx context.Context, req types.PublishRequest) (*types.PublishResult, error)
}

// Orchestrator drives articles from keyword discovery to a published URL.
// Units run one at a time and steps run in order; the first failure halts
// the invocation.
type Orchestrator struct {
	store         ConfigStore
	opportunities OpportunityService
	generator     ArticleGenerator
	publisher     Publisher
	logger        *slog.Logger
	now           func() time.Time
}

// NewOrchestrator creates an orchestrator over its collaborators.
func NewOrchestrator(store ConfigStore, opportunities OpportunityService, generator ArticleGenerator, publisher Publisher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:         store,
		opportunities: opportunities,
		generator:     generator,
		publisher:     publisher,
		logger:        logger.With("component", "orchestrator"),
		now:           time.Now,
	}
}

// RunFresh refreshes opportunities once, then produces n articles in order.
// The keyword checkpoint is written before generation starts and cleared
// after publishing, so a failure in step 3 or 4 leaves a resumable unit.
func (o *Orchestrator) RunFresh(ctx context.Context, cfg *types.AutopilotConfig, n int, opts RunOptions) (*RunReport, error) {
	if cfg.InFlight() {
		return nil, ErrResumeRequired
	}
	if n < 1 {
		return nil, fmt.Errorf("articles per run must be at least 1, got %d", n)
	}

	report := o.newReport(cfg.SiteID, ModeFresh)
	report.Refresh = newStepState(steps.RefreshOpportunities)
	for i := 1; i <= n; i++ {
		report.Units = append(report.Units, newUnitReport(i))
	}

	err := o.runStep(ctx, opts, cfg.SiteID, 0, report.Refresh, func() (string, any, error) {
		result, err := o.opportunities.RefreshOpportunities(ctx, cfg)
		if err != nil {
			return "", nil, err
		}
		report.Refreshed = result
		return fmt.Sprintf("Synced %d queries, scored %d opportunities", result.QueriesSynced, result.OpportunitiesScored), result, nil
	})
	if err != nil {
		return o.fail(ctx, cfg.SiteID, report, &StepError{Step: steps.RefreshOpportunities, Err: err})
	}

	for _, unit := range report.Units {
		if err := o.runUnit(ctx, cfg, unit, opts); err != nil {
			return o.fail(ctx, cfg.SiteID, report, err)
		}
	}

	o.finish(report)
	return report, nil
}

func (o *Orchestrator) runUnit(ctx context.Context, cfg *types.AutopilotConfig, unit *UnitReport, opts RunOptions) error {
	err := o.runStep(ctx, opts, cfg.SiteID, unit.Index, unit.Step(steps.PickKeyword), func() (string, any, error) {
		keyword, err := o.opportunities.PickBestKeyword(ctx, cfg.SiteID)
		if err != nil {
			return "", nil, err
		}
		if err := o.store.SavePipelineKeyword(ctx, cfg.SiteID, keyword.ID); err != nil {
			return "", nil, err
		}
		unit.KeywordID = &keyword.ID
		unit.Keyword = keyword.Keyword
		return fmt.Sprintf("Picked %q (%s, score %.2f)", keyword.Keyword, keyword.Opportunity, keyword.Score), keyword, nil
	})
	if err != nil {
		return &StepError{Unit: unit.Index, Step: steps.PickKeyword, Err: err}
	}

	return o.produce(ctx, cfg, unit, *unit.KeywordID, nil, opts, true)
}

// Resume finishes the unit recorded on the site: it generates an article for
// the carried keyword, or reuses the one already generated, and publishes it.
// Steps 1 and 2 are never invoked. After a publish failure the article
// recorded as pipelineArticleId is published again rather than regenerated.
func (o *Orchestrator) Resume(ctx context.Context, cfg *types.AutopilotConfig, opts RunOptions) (*RunReport, error) {
	if !cfg.InFlight() || cfg.PipelineKeywordID == nil {
		return nil, ErrNothingToResume
	}

	report := o.newReport(cfg.SiteID, ModeResume)
	report.Refresh = newStepState(steps.RefreshOpportunities)
	report.Refresh.Status = steps.StatusSkipped
	unit := newUnitReport(1)
	unit.KeywordID = cfg.PipelineKeywordID
	pick := unit.Step(steps.PickKeyword)
	pick.Status = steps.StatusSkipped
	pick.Message = "Keyword carried over from the interrupted run"
	report.Units = append(report.Units, unit)

	var existing *types.Article
	if cfg.PipelineArticleID != nil {
		article, err := o.store.GetArticle(ctx, *cfg.PipelineArticleID)
		if err != nil {
			return nil, err
		}
		existing = article
	}

	if err := o.produce(ctx, cfg, unit, *cfg.PipelineKeywordID, existing, opts, true); err != nil {
		return o.fail(ctx, cfg.SiteID, report, err)
	}

	o.finish(report)
	return report, nil
}

// Produce runs steps 3 and 4 for a fixed keyword without touching the site's
// progress record. Scheduled rows track their own status.
func (o *Orchestrator) Produce(ctx context.Context, cfg *types.AutopilotConfig, keywordID uuid.UUID, opts RunOptions) (*UnitReport, error) {
	unit := newUnitReport(1)
	unit.KeywordID = &keywordID
	unit.Step(steps.PickKeyword).Status = steps.StatusSkipped
	if err := o.produce(ctx, cfg, unit, keywordID, nil, opts, false); err != nil {
		return unit, err
	}
	return unit, nil
}

// produce runs steps 3-4. When track is set the site checkpoints are written:
// the article handle after step 3 and the cleared progress after step 4.
func (o *Orchestrator) produce(ctx context.Context, cfg *types.AutopilotConfig, unit *UnitReport, keywordID uuid.UUID, existing *types.Article, opts RunOptions, track bool) error {
	generate := unit.Step(steps.GenerateArticle)
	if existing != nil {
		unit.Article = existing
		generate.Status = steps.StatusSkipped
		generate.Message = fmt.Sprintf("Reusing generated article %q", existing.Title)
		o.emit(opts, cfg.SiteID, unit.Index, generate, existing)
	} else {
		err := o.runStep(ctx, opts, cfg.SiteID, unit.Index, generate, func() (string, any, error) {
			article, err := o.generator.Generate(ctx, types.GenerateRequest{
				SiteID:         cfg.SiteID,
				KeywordID:      keywordID,
				ReasoningLevel: cfg.ReasoningLevel,
				Instructions:   opts.Instructions,
			})
			if err != nil {
				return "", nil, err
			}
			if track {
				if err := o.store.SavePipelineArticle(ctx, cfg.SiteID, article.ID); err != nil {
					return "", nil, err
				}
			}
			unit.Article = article
			return fmt.Sprintf("Generated %q", article.Title), article, nil
		})
		if err != nil {
			return &StepError{Unit: unit.Index, Step: steps.GenerateArticle, Err: err}
		}
	}

	err := o.runStep(ctx, opts, cfg.SiteID, unit.Index, unit.Step(steps.PublishAndIndex), func() (string, any, error) {
		result, err := o.publisher.PublishAndIndex(ctx, types.PublishRequest{
			ArticleID:         unit.Article.ID,
			GenerateThumbnail: opts.GenerateThumbnail,
			SubmitIndexing:    opts.SubmitIndexing,
		})
		if err != nil {
			return "", nil, err
		}
		if track {
			if err := o.store.ClearPipelineProgress(ctx, cfg.SiteID, o.now()); err != nil {
				return "", nil, err
			}
		}
		unit.Publish = result
		return fmt.Sprintf("Published %s", result.PublishedURL), result, nil
	})
	if err != nil {
		return &StepError{Unit: unit.Index, Step: steps.PublishAndIndex, Err: err}
	}
	return nil
}

// runStep marks a step in progress, runs fn and records the outcome.
func (o *Orchestrator) runStep(ctx context.Context, opts RunOptions, siteID uuid.UUID, unit int, state *StepState, fn func() (string, any, error)) error {
	if err := ctx.Err(); err != nil {
		state.Status = steps.StatusFailed
		state.Error = err.Error()
		o.emit(opts, siteID, unit, state, nil)
		return err
	}

	state.Status = steps.StatusInProgress
	state.Message = steps.StepRegistry[state.Step].Title
	o.emit(opts, siteID, unit, state, nil)

	start := time.Now()
	message, content, err := fn()
	state.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		state.Status = steps.StatusFailed
		state.Error = err.Error()
		state.Message = fmt.Sprintf("%s failed", steps.StepRegistry[state.Step].Title)
		o.logger.Error("step failed", "site_id", siteID, "unit", unit, "step", state.Step, "error", err)
		o.emit(opts, siteID, unit, state, nil)
		return err
	}

	state.Status = steps.StatusCompleted
	state.Message = message
	o.logger.Info("step completed", "site_id", siteID, "unit", unit, "step", state.Step, "duration_ms", state.DurationMs)
	o.emit(opts, siteID, unit, state, content)
	return nil
}

// emit calls the progress callback if configured
func (o *Orchestrator) emit(opts RunOptions, siteID uuid.UUID, unit int, state *StepState, content any) {
	if opts.OnProgress == nil {
		return
	}
	opts.OnProgress(ProgressEvent{
		SiteID:   siteID,
		Unit:     unit,
		Step:     state.Step,
		Number:   state.Number,
		Category: steps.StepRegistry[state.Step].Category,
		Status:   state.Status,
		Message:  state.Message,
		Content:  content,
	})
}

func (o *Orchestrator) newReport(siteID uuid.UUID, mode Mode) *RunReport {
	return &RunReport{SiteID: siteID, Mode: mode, StartedAt: o.now()}
}

func (o *Orchestrator) finish(report *RunReport) {
	now := o.now()
	report.FinishedAt = &now
}

// fail records the failure on the report and as the site's lastError.
// The progress checkpoints are left as they are.
func (o *Orchestrator) fail(ctx context.Context, siteID uuid.UUID, report *RunReport, err error) (*RunReport, error) {
	report.Error = err.Error()
	o.finish(report)
	if serr := o.store.SetLastError(context.WithoutCancel(ctx), siteID, failureMessage(err)); serr != nil {
		o.logger.Error("failed to record last error", "site_id", siteID, "error", serr)
	}
	return report, err
}
