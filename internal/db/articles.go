package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-autopilot/internal/types"
)

const articleColumns = `id, site_id, keyword_id, title, slug, meta_description, content_markdown,
	status, published_url, thumbnail_url, created_at, published_at`

func scanArticle(row rowScanner) (*types.Article, error) {
	var a types.Article
	var status string
	err := row.Scan(&a.ID, &a.SiteID, &a.KeywordID, &a.Title, &a.Slug, &a.MetaDescription, &a.ContentMarkdown,
		&status, &a.PublishedURL, &a.ThumbnailURL, &a.CreatedAt, &a.PublishedAt)
	if err != nil {
		return nil, err
	}
	a.Status = types.ArticleStatus(status)
	return &a, nil
}

// CreateArticle stores a generated draft.
func (db *DB) CreateArticle(ctx context.Context, article *types.Article) (*types.Article, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO articles (site_id, keyword_id, title, slug, meta_description, content_markdown, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'draft')
		 RETURNING `+articleColumns,
		article.SiteID, article.KeywordID, article.Title, article.Slug,
		article.MetaDescription, article.ContentMarkdown,
	)
	created, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}
	return created, nil
}

// GetArticle retrieves an article by ID. Returns nil, nil when absent.
func (db *DB) GetArticle(ctx context.Context, id uuid.UUID) (*types.Article, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return a, nil
}

// MarkArticlePublished records where an article went live.
func (db *DB) MarkArticlePublished(ctx context.Context, id uuid.UUID, publishedURL string, thumbnailURL *string, publishedAt time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE articles
		 SET status = 'published', published_url = $2,
		     thumbnail_url = COALESCE($3, thumbnail_url), published_at = $4
		 WHERE id = $1`,
		id, publishedURL, thumbnailURL, publishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark article published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}
