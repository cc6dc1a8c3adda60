package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-autopilot/internal/types"
)

// -----------------------------------------------------------------------------
// Sites
// -----------------------------------------------------------------------------

// CreateSite registers a site and its autopilot row with default settings.
func (db *DB) CreateSite(ctx context.Context, organizationID uuid.UUID, domain string) (*types.Site, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var site types.Site
	err = tx.QueryRow(ctx,
		`INSERT INTO sites (organization_id, domain)
		 VALUES ($1, $2)
		 RETURNING id, organization_id, domain, created_at`,
		organizationID, domain,
	).Scan(&site.ID, &site.OrganizationID, &site.Domain, &site.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO site_autopilot (site_id) VALUES ($1)`, site.ID); err != nil {
		return nil, fmt.Errorf("failed to create autopilot config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit site: %w", err)
	}
	return &site, nil
}

// GetSite retrieves a site by ID
func (db *DB) GetSite(ctx context.Context, siteID uuid.UUID) (*types.Site, error) {
	var site types.Site
	err := db.pool.QueryRow(ctx,
		`SELECT id, organization_id, domain, created_at FROM sites WHERE id = $1`,
		siteID,
	).Scan(&site.ID, &site.OrganizationID, &site.Domain, &site.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &site, nil
}

// -----------------------------------------------------------------------------
// Autopilot configuration and progress
// -----------------------------------------------------------------------------

const autopilotColumns = `a.site_id, s.organization_id, s.domain, a.enabled, a.cadence,
	a.reasoning_level, a.articles_per_run, a.next_run_at, a.pipeline_step,
	a.pipeline_keyword_id, a.pipeline_article_id, a.last_run_at, a.last_error,
	a.running_since, a.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutopilotConfig(row rowScanner) (*types.AutopilotConfig, error) {
	var cfg types.AutopilotConfig
	var cadence, reasoning string
	var step *string

	err := row.Scan(&cfg.SiteID, &cfg.OrganizationID, &cfg.Domain, &cfg.Enabled, &cadence,
		&reasoning, &cfg.ArticlesPerRun, &cfg.NextRunAt, &step,
		&cfg.PipelineKeywordID, &cfg.PipelineArticleID, &cfg.LastRunAt, &cfg.LastError,
		&cfg.RunningSince, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	cfg.Cadence = types.Cadence(cadence)
	cfg.ReasoningLevel = types.ReasoningLevel(reasoning)
	if step != nil {
		cfg.PipelineStep = types.PipelineStep(*step)
	}
	return &cfg, nil
}

// GetAutopilotConfig retrieves the autopilot configuration and progress for a site.
// Returns nil, nil when the site does not exist.
func (db *DB) GetAutopilotConfig(ctx context.Context, siteID uuid.UUID) (*types.AutopilotConfig, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+autopilotColumns+`
		 FROM site_autopilot a JOIN sites s ON s.id = a.site_id
		 WHERE a.site_id = $1`,
		siteID,
	)
	cfg, err := scanAutopilotConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get autopilot config: %w", err)
	}
	return cfg, nil
}

// ListAutopilotSites returns the configuration of every site with autopilot enabled.
func (db *DB) ListAutopilotSites(ctx context.Context) ([]types.AutopilotConfig, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+autopilotColumns+`
		 FROM site_autopilot a JOIN sites s ON s.id = a.site_id
		 WHERE a.enabled
		 ORDER BY s.domain`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list autopilot sites: %w", err)
	}
	defer rows.Close()

	var configs []types.AutopilotConfig
	for rows.Next() {
		cfg, err := scanAutopilotConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan autopilot config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// UpdateAutopilotConfig applies a partial update of the user-editable settings.
func (db *DB) UpdateAutopilotConfig(ctx context.Context, siteID uuid.UUID, update types.AutopilotConfigUpdate) (*types.AutopilotConfig, error) {
	if !update.Empty() {
		q := psql.Update("site_autopilot").
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"site_id": siteID})

		if update.Enabled != nil {
			q = q.Set("enabled", *update.Enabled)
		}
		if update.Cadence != nil {
			q = q.Set("cadence", string(*update.Cadence))
		}
		if update.ReasoningLevel != nil {
			q = q.Set("reasoning_level", string(*update.ReasoningLevel))
		}
		if update.ArticlesPerRun != nil {
			q = q.Set("articles_per_run", *update.ArticlesPerRun)
		}
		if update.NextRunAt != nil {
			q = q.Set("next_run_at", *update.NextRunAt)
		}

		query, args, err := q.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build autopilot update: %w", err)
		}
		tag, err := db.pool.Exec(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update autopilot config: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrSiteNotFound
		}
	}

	cfg, err := db.GetAutopilotConfig(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrSiteNotFound
	}
	return cfg, nil
}

// SavePipelineKeyword records the step-2 checkpoint: the step marker and the
// chosen keyword are written together so they never disagree.
func (db *DB) SavePipelineKeyword(ctx context.Context, siteID, keywordID uuid.UUID) error {
	return db.execSite(ctx, "save pipeline keyword",
		`UPDATE site_autopilot
		 SET pipeline_step = 'awaiting_generation', pipeline_keyword_id = $2,
		     pipeline_article_id = NULL, last_error = NULL, updated_at = NOW()
		 WHERE site_id = $1`,
		siteID, keywordID,
	)
}

// SavePipelineArticle records the generated article so a resume can skip regeneration.
func (db *DB) SavePipelineArticle(ctx context.Context, siteID, articleID uuid.UUID) error {
	return db.execSite(ctx, "save pipeline article",
		`UPDATE site_autopilot
		 SET pipeline_article_id = $2, updated_at = NOW()
		 WHERE site_id = $1 AND pipeline_step = 'awaiting_generation'`,
		siteID, articleID,
	)
}

// ClearPipelineProgress records the step-4 checkpoint: progress handles are
// cleared together and lastRunAt is stamped.
func (db *DB) ClearPipelineProgress(ctx context.Context, siteID uuid.UUID, lastRunAt time.Time) error {
	return db.execSite(ctx, "clear pipeline progress",
		`UPDATE site_autopilot
		 SET pipeline_step = NULL, pipeline_keyword_id = NULL, pipeline_article_id = NULL,
		     last_run_at = $2, last_error = NULL, updated_at = NOW()
		 WHERE site_id = $1`,
		siteID, lastRunAt,
	)
}

// SetLastError records the most recent pipeline failure message.
func (db *DB) SetLastError(ctx context.Context, siteID uuid.UUID, message string) error {
	return db.execSite(ctx, "set last error",
		`UPDATE site_autopilot SET last_error = $2, updated_at = NOW() WHERE site_id = $1`,
		siteID, message,
	)
}

func (db *DB) execSite(ctx context.Context, op, query string, args ...any) error {
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to %s: %w", op, ErrSiteNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Ad hoc run lock
// -----------------------------------------------------------------------------

// TryLockSite marks the site as running unless another run holds it.
// A lock older than ttl is considered abandoned and may be taken over.
func (db *DB) TryLockSite(ctx context.Context, siteID uuid.UUID, ttl time.Duration) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE site_autopilot SET running_since = NOW()
		 WHERE site_id = $1
		   AND (running_since IS NULL OR running_since < NOW() - make_interval(secs => $2))`,
		siteID, ttl.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to lock site: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UnlockSite releases the running marker.
func (db *DB) UnlockSite(ctx context.Context, siteID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE site_autopilot SET running_since = NULL WHERE site_id = $1`,
		siteID,
	)
	if err != nil {
		return fmt.Errorf("failed to unlock site: %w", err)
	}
	return nil
}
