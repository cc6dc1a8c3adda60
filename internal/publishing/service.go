package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/fetch"
	"github.com/jonathan/content-autopilot/internal/types"
)

// Store loads articles and records publication.
type Store interface {
	GetSite(ctx context.Context, siteID uuid.UUID) (*types.Site, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*types.Article, error)
	MarkArticlePublished(ctx context.Context, id uuid.UUID, publishedURL string, thumbnailURL *string, publishedAt time.Time) error
	MarkKeywordPublished(ctx context.Context, id, articleID uuid.UUID) error
}

// CMS makes an article public and returns its URL.
type CMS interface {
	Publish(ctx context.Context, site *types.Site, article *types.Article, thumbnailURL string) (string, error)
}

// Thumbnailer renders an image for an article and returns its URL.
type Thumbnailer interface {
	Render(ctx context.Context, site *types.Site, article *types.Article) (string, error)
}

// Indexer submits a URL to a search engine.
type Indexer interface {
	Submit(ctx context.Context, url string) error
}

// Service runs the publish-and-index step.
type Service struct {
	store       Store
	cms         CMS
	thumbnailer Thumbnailer
	indexer     Indexer
	verify      *fetch.Options
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithThumbnailer enables thumbnail rendering.
func WithThumbnailer(t Thumbnailer) Option { return func(s *Service) { s.thumbnailer = t } }

// WithIndexer enables search engine submission.
func WithIndexer(i Indexer) Option { return func(s *Service) { s.indexer = i } }

// WithLiveCheck fetches the published URL after publishing.
func WithLiveCheck(opts *fetch.Options) Option { return func(s *Service) { s.verify = opts } }

// NewService creates a publishing service around a CMS.
func NewService(store Store, cms CMS, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, cms: cms, logger: logger.With("component", "publishing"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishAndIndex publishes the article and, when requested, renders a
// thumbnail and submits the URL for indexing. An article that is already
// published keeps its URL and is not sent to the CMS again.
func (s *Service) PublishAndIndex(ctx context.Context, req types.PublishRequest) (*types.PublishResult, error) {
	article, err := s.store.GetArticle(ctx, req.ArticleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, fmt.Errorf("article %s not found", req.ArticleID)
	}
	site, err := s.store.GetSite(ctx, article.SiteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("site %s not found", article.SiteID)
	}

	result := &types.PublishResult{}

	if article.Status == types.ArticlePublished && article.PublishedURL != nil {
		result.PublishedURL = *article.PublishedURL
		result.ThumbnailGenerated = article.ThumbnailURL != nil
	} else {
		var thumbnailURL *string
		if req.GenerateThumbnail && s.thumbnailer != nil {
			u, err := s.thumbnailer.Render(ctx, site, article)
			if err != nil {
				return nil, err
			}
			thumbnailURL = &u
			result.ThumbnailGenerated = true
		}

		thumb := ""
		if thumbnailURL != nil {
			thumb = *thumbnailURL
		}
		publishedURL, err := s.cms.Publish(ctx, site, article, thumb)
		if err != nil {
			return nil, err
		}
		if err := s.store.MarkArticlePublished(ctx, article.ID, publishedURL, thumbnailURL, s.now().UTC()); err != nil {
			return nil, err
		}
		result.PublishedURL = publishedURL
	}

	if err := s.store.MarkKeywordPublished(ctx, article.KeywordID, article.ID); err != nil {
		return nil, err
	}

	if req.SubmitIndexing && s.indexer != nil {
		if err := s.indexer.Submit(ctx, result.PublishedURL); err != nil {
			return nil, err
		}
		result.IndexingSubmitted = true
	}

	if s.verify != nil {
		s.checkLive(ctx, result.PublishedURL, article.Title)
	}

	s.logger.Info("article published", "site", site.Domain, "url", result.PublishedURL,
		"thumbnail", result.ThumbnailGenerated, "indexed", result.IndexingSubmitted)
	return result, nil
}

// checkLive logs whether the published page is reachable and shows the article.
// A miss is logged only; it never fails the step.
func (s *Service) checkLive(ctx context.Context, url, title string) {
	page, err := fetch.Live(ctx, url, s.verify)
	if err != nil {
		s.logger.Warn("published page not reachable yet", "url", url, "error", err)
		return
	}
	if !page.Mentions(title) {
		s.logger.Warn("published page does not show article title", "url", url, "title", page.Title)
		return
	}
	s.logger.Debug("published page verified", "url", url, "words", page.WordCount)
}
