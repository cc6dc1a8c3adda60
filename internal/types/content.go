package types

import (
	"time"

	"github.com/google/uuid"
)

// OpportunityKind classifies why a keyword is worth writing about.
type OpportunityKind string

// OpportunityKind values
const (
	OpportunityStrikingDistance OpportunityKind = "striking_distance"
	OpportunityLowCTR           OpportunityKind = "low_ctr"
	OpportunityEmerging         OpportunityKind = "emerging"
)

// KeywordStatus tracks whether a keyword has been used.
type KeywordStatus string

// KeywordStatus values
const (
	KeywordOpen      KeywordStatus = "open"
	KeywordPicked    KeywordStatus = "picked"
	KeywordPublished KeywordStatus = "published"
)

// Keyword is a scored content opportunity for a site.
type Keyword struct {
	ID          uuid.UUID       `json:"id"`
	SiteID      uuid.UUID       `json:"site_id"`
	Keyword     string          `json:"keyword"`
	Opportunity OpportunityKind `json:"opportunity"`
	Score       float64         `json:"score"`
	Clicks      int             `json:"clicks"`
	Impressions int             `json:"impressions"`
	CTR         float64         `json:"ctr"`
	Position    float64         `json:"position"`
	Status      KeywordStatus   `json:"status"`
	ArticleID   *uuid.UUID      `json:"article_id,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ArticleStatus is the publication state of a generated article.
type ArticleStatus string

// ArticleStatus values
const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
)

// Article is a generated piece of content.
type Article struct {
	ID              uuid.UUID     `json:"id"`
	SiteID          uuid.UUID     `json:"site_id"`
	KeywordID       uuid.UUID     `json:"keyword_id"`
	Title           string        `json:"title"`
	Slug            string        `json:"slug"`
	MetaDescription string        `json:"meta_description"`
	ContentMarkdown string        `json:"content_markdown"`
	Status          ArticleStatus `json:"status"`
	PublishedURL    *string       `json:"published_url,omitempty"`
	ThumbnailURL    *string       `json:"thumbnail_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	PublishedAt     *time.Time    `json:"published_at,omitempty"`
}

// QueryStat is one row of search performance data for a query.
type QueryStat struct {
	Query       string  `json:"query"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// RefreshResult is the outcome of refreshing opportunities for a site.
type RefreshResult struct {
	QueriesSynced       int `json:"queries_synced"`
	OpportunitiesScored int `json:"opportunities_scored"`
}

// GenerateRequest asks the generator to draft an article for a keyword.
type GenerateRequest struct {
	SiteID         uuid.UUID      `json:"site_id"`
	KeywordID      uuid.UUID      `json:"keyword_id"`
	ReasoningLevel ReasoningLevel `json:"reasoning_level"`
	Instructions   string         `json:"instructions,omitempty"`
}

// PublishRequest asks the publisher to push an article live.
type PublishRequest struct {
	ArticleID         uuid.UUID `json:"article_id"`
	GenerateThumbnail bool      `json:"generate_thumbnail"`
	SubmitIndexing    bool      `json:"submit_indexing"`
}

// PublishResult is the outcome of publishing and indexing an article.
type PublishResult struct {
	PublishedURL       string `json:"published_url"`
	ThumbnailGenerated bool   `json:"thumbnail_generated"`
	IndexingSubmitted  bool   `json:"indexing_submitted"`
}
