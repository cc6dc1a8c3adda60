package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-autopilot/internal/types"
)

var scheduledRunColumns = []string{
	"id", "site_id", "scheduled_date", "status", "keyword_id", "keyword_text",
	"article_id", "article_title", "published_url", "last_error", "created_at", "updated_at",
}

func scanScheduledRun(row rowScanner) (*types.ScheduledRun, error) {
	var run types.ScheduledRun
	var status string
	err := row.Scan(&run.ID, &run.SiteID, &run.ScheduledDate, &status, &run.KeywordID, &run.KeywordText,
		&run.ArticleID, &run.ArticleTitle, &run.PublishedURL, &run.LastError, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	run.Status = types.ScheduledRunStatus(status)
	run.ScheduledDate = types.Day(run.ScheduledDate)
	return &run, nil
}

func (db *DB) queryScheduledRuns(ctx context.Context, q sq.SelectBuilder) ([]types.ScheduledRun, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build scheduled run query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled runs: %w", err)
	}
	defer rows.Close()

	var runs []types.ScheduledRun
	for rows.Next() {
		run, err := scanScheduledRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListScheduledRuns returns the site's rows with from <= scheduled_date < to, ordered by date.
func (db *DB) ListScheduledRuns(ctx context.Context, siteID uuid.UUID, from, to time.Time) ([]types.ScheduledRun, error) {
	q := psql.Select(scheduledRunColumns...).
		From("scheduled_runs").
		Where(sq.Eq{"site_id": siteID}).
		Where(sq.GtOrEq{"scheduled_date": types.Day(from)}).
		Where(sq.Lt{"scheduled_date": types.Day(to)}).
		OrderBy("scheduled_date")
	return db.queryScheduledRuns(ctx, q)
}

// ListScheduledRunsByStatus returns the site's rows for one date in the given status.
func (db *DB) ListScheduledRunsByStatus(ctx context.Context, siteID uuid.UUID, date time.Time, status types.ScheduledRunStatus) ([]types.ScheduledRun, error) {
	q := psql.Select(scheduledRunColumns...).
		From("scheduled_runs").
		Where(sq.Eq{"site_id": siteID, "scheduled_date": types.Day(date), "status": string(status)}).
		OrderBy("created_at", "id")
	return db.queryScheduledRuns(ctx, q)
}

// GetScheduledRun retrieves the row for a site and date. Returns nil, nil when absent.
func (db *DB) GetScheduledRun(ctx context.Context, siteID uuid.UUID, date time.Time) (*types.ScheduledRun, error) {
	query, args, err := psql.Select(scheduledRunColumns...).
		From("scheduled_runs").
		Where(sq.Eq{"site_id": siteID, "scheduled_date": types.Day(date)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build scheduled run query: %w", err)
	}

	run, err := scanScheduledRun(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scheduled run: %w", err)
	}
	return run, nil
}

// CreateScheduledRuns inserts pending rows for the given dates. Dates that
// already have a row are left untouched; only newly created rows are returned.
func (db *DB) CreateScheduledRuns(ctx context.Context, siteID uuid.UUID, dates []time.Time) ([]types.ScheduledRun, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	q := psql.Insert("scheduled_runs").Columns("site_id", "scheduled_date", "status")
	for _, d := range dates {
		q = q.Values(siteID, types.Day(d), string(types.ScheduledRunPending))
	}
	q = q.Suffix("ON CONFLICT (site_id, scheduled_date) DO NOTHING RETURNING " + strings.Join(scheduledRunColumns, ", "))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build scheduled run insert: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled runs: %w", err)
	}
	defer rows.Close()

	var created []types.ScheduledRun
	for rows.Next() {
		run, err := scanScheduledRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled run: %w", err)
		}
		created = append(created, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to create scheduled runs: %w", err)
	}
	return created, nil
}

// DeleteScheduledRun removes a pending row. Rows that have progressed past
// pending are history and cannot be deleted.
func (db *DB) DeleteScheduledRun(ctx context.Context, siteID uuid.UUID, date time.Time) error {
	day := types.Day(date)
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM scheduled_runs
		 WHERE site_id = $1 AND scheduled_date = $2 AND status = 'pending'`,
		siteID, day,
	)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled run: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := db.GetScheduledRun(ctx, siteID, day)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrScheduledRunNotFound
	}
	return ErrScheduledRunNotPending
}

// TransitionScheduledRun moves a row from one status to another only if it is
// still in the expected status. Returns ErrStatusConflict when another writer won.
func (db *DB) TransitionScheduledRun(ctx context.Context, id uuid.UUID, from, to types.ScheduledRunStatus) error {
	return db.transition(ctx, id, from, to, nil)
}

// PickScheduledRunKeyword records the keyword chosen for a pending row.
func (db *DB) PickScheduledRunKeyword(ctx context.Context, id uuid.UUID, keyword *types.Keyword) error {
	return db.transition(ctx, id, types.ScheduledRunPending, types.ScheduledRunKeywordPicked, map[string]any{
		"keyword_id":   keyword.ID,
		"keyword_text": keyword.Keyword,
	})
}

// CompleteScheduledRun records the published article for a running row.
func (db *DB) CompleteScheduledRun(ctx context.Context, id uuid.UUID, article *types.Article, publishedURL string) error {
	return db.transition(ctx, id, types.ScheduledRunRunning, types.ScheduledRunCompleted, map[string]any{
		"article_id":    article.ID,
		"article_title": article.Title,
		"published_url": publishedURL,
		"last_error":    nil,
	})
}

// FailScheduledRun marks a row failed from whichever non-terminal status it is in.
func (db *DB) FailScheduledRun(ctx context.Context, id uuid.UUID, from types.ScheduledRunStatus, message string) error {
	return db.transition(ctx, id, from, types.ScheduledRunFailed, map[string]any{
		"last_error": message,
	})
}

func (db *DB) transition(ctx context.Context, id uuid.UUID, from, to types.ScheduledRunStatus, fields map[string]any) error {
	query, args, err := transitionQuery(id, from, to, fields)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update scheduled run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrStatusConflict, from)
	}
	return nil
}

// transitionQuery builds the conditional UPDATE for a status change. The
// WHERE clause pins the expected current status.
func transitionQuery(id uuid.UUID, from, to types.ScheduledRunStatus, fields map[string]any) (string, []any, error) {
	if !types.CanTransition(from, to) {
		return "", nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	q := psql.Update("scheduled_runs").
		Set("status", string(to)).
		Set("updated_at", sq.Expr("NOW()"))

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		q = q.Set(col, fields[col])
	}

	query, args, err := q.Where(sq.Eq{"id": id, "status": string(from)}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build scheduled run update: %w", err)
	}
	return query, args, nil
}

// FailStaleScheduledRuns marks failed every running row of a site that has not
// been updated since olderThan. The executor that claimed such a row is gone,
// and the article may already be published, so the row is not put back in line.
func (db *DB) FailStaleScheduledRuns(ctx context.Context, siteID uuid.UUID, olderThan time.Time, message string) (int, error) {
	query, args, err := staleRunsQuery(siteID, olderThan, message)
	if err != nil {
		return 0, err
	}
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale scheduled runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func staleRunsQuery(siteID uuid.UUID, olderThan time.Time, message string) (string, []any, error) {
	query, args, err := psql.Update("scheduled_runs").
		Set("status", string(types.ScheduledRunFailed)).
		Set("last_error", message).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"site_id": siteID, "status": string(types.ScheduledRunRunning)}).
		Where(sq.Lt{"updated_at": olderThan}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build stale run update: %w", err)
	}
	return query, args, nil
}
