package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-autopilot/internal/types"
)

const keywordColumns = `id, site_id, keyword, opportunity, score, clicks, impressions,
	ctr, position, status, article_id, updated_at`

func scanKeyword(row rowScanner) (*types.Keyword, error) {
	var kw types.Keyword
	var opportunity, status string
	err := row.Scan(&kw.ID, &kw.SiteID, &kw.Keyword, &opportunity, &kw.Score, &kw.Clicks, &kw.Impressions,
		&kw.CTR, &kw.Position, &status, &kw.ArticleID, &kw.UpdatedAt)
	if err != nil {
		return nil, err
	}
	kw.Opportunity = types.OpportunityKind(opportunity)
	kw.Status = types.KeywordStatus(status)
	return &kw, nil
}

// UpsertQueryStats stores the latest search performance for each query.
// Used keywords keep their status; only the metrics are refreshed.
func (db *DB) UpsertQueryStats(ctx context.Context, siteID uuid.UUID, stats []types.QueryStat) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range stats {
		batch.Queue(
			`INSERT INTO keywords (site_id, keyword, clicks, impressions, ctr, position)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (site_id, keyword) DO UPDATE
			 SET clicks = EXCLUDED.clicks, impressions = EXCLUDED.impressions,
			     ctr = EXCLUDED.ctr, position = EXCLUDED.position, updated_at = NOW()`,
			siteID, s.Query, s.Clicks, s.Impressions, s.CTR, s.Position,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for range stats {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("failed to upsert query stats: %w", err)
		}
	}
	return len(stats), nil
}

// ListOpenKeywords returns the unused keywords of a site, best first.
func (db *DB) ListOpenKeywords(ctx context.Context, siteID uuid.UUID) ([]types.Keyword, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+keywordColumns+`
		 FROM keywords
		 WHERE site_id = $1 AND status = 'open'
		 ORDER BY score DESC, impressions DESC, keyword`,
		siteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list open keywords: %w", err)
	}
	defer rows.Close()

	var keywords []types.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, *kw)
	}
	return keywords, rows.Err()
}

// UpdateKeywordScores persists the opportunity class and score of each keyword.
func (db *DB) UpdateKeywordScores(ctx context.Context, keywords []types.Keyword) error {
	if len(keywords) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, kw := range keywords {
		batch.Queue(
			`UPDATE keywords SET opportunity = $2, score = $3, updated_at = NOW() WHERE id = $1`,
			kw.ID, string(kw.Opportunity), kw.Score,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for range keywords {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to update keyword scores: %w", err)
		}
	}
	return nil
}

// PickBestKeyword atomically claims the highest-scored open keyword of a site.
// Concurrent pickers never receive the same keyword.
func (db *DB) PickBestKeyword(ctx context.Context, siteID uuid.UUID) (*types.Keyword, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE keywords SET status = 'picked', updated_at = NOW()
		 WHERE id = (
		     SELECT id FROM keywords
		     WHERE site_id = $1 AND status = 'open'
		     ORDER BY score DESC, impressions DESC, keyword
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+keywordColumns,
		siteID,
	)
	kw, err := scanKeyword(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpportunity
		}
		return nil, fmt.Errorf("failed to pick keyword: %w", err)
	}
	return kw, nil
}

// GetKeyword retrieves a keyword by ID. Returns nil, nil when absent.
func (db *DB) GetKeyword(ctx context.Context, id uuid.UUID) (*types.Keyword, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE id = $1`, id)
	kw, err := scanKeyword(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}
	return kw, nil
}

// MarkKeywordPublished links a keyword to the article that covers it.
func (db *DB) MarkKeywordPublished(ctx context.Context, id, articleID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE keywords SET status = 'published', article_id = $2, updated_at = NOW() WHERE id = $1`,
		id, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark keyword published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeywordNotFound
	}
	return nil
}
