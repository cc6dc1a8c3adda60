package opportunities

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/types"
)

// Store persists keywords and their scores.
type Store interface {
	UpsertQueryStats(ctx context.Context, siteID uuid.UUID, stats []types.QueryStat) (int, error)
	ListOpenKeywords(ctx context.Context, siteID uuid.UUID) ([]types.Keyword, error)
	UpdateKeywordScores(ctx context.Context, keywords []types.Keyword) error
	PickBestKeyword(ctx context.Context, siteID uuid.UUID) (*types.Keyword, error)
}

// Service refreshes and picks keyword opportunities for sites.
type Service struct {
	store        Store
	source       Source
	lookbackDays int
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates an opportunity service.
func NewService(store Store, source Source, lookbackDays int, logger *slog.Logger) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 28
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		source:       source,
		lookbackDays: lookbackDays,
		logger:       logger.With("component", "opportunities"),
		now:          time.Now,
	}
}

// searchDataLag is how far behind real time search performance data is final.
const searchDataLag = 3 * 24 * time.Hour

// RefreshOpportunities pulls recent search performance for the site, stores it
// and rescores every open keyword.
func (s *Service) RefreshOpportunities(ctx context.Context, site *types.AutopilotConfig) (*types.RefreshResult, error) {
	end := types.Day(s.now().Add(-searchDataLag))
	start := end.AddDate(0, 0, -s.lookbackDays)

	stats, err := s.source.QueryStats(ctx, site.Domain, start, end)
	if err != nil {
		return nil, err
	}

	synced, err := s.store.UpsertQueryStats(ctx, site.SiteID, stats)
	if err != nil {
		return nil, err
	}

	open, err := s.store.ListOpenKeywords(ctx, site.SiteID)
	if err != nil {
		return nil, err
	}
	scored := ScoreAll(open)
	if err := s.store.UpdateKeywordScores(ctx, scored); err != nil {
		return nil, err
	}

	s.logger.Info("opportunities refreshed",
		"site", site.Domain, "queries", synced, "scored", len(scored),
		"start", start.Format(types.DateLayout), "end", end.Format(types.DateLayout))

	return &types.RefreshResult{QueriesSynced: synced, OpportunitiesScored: len(scored)}, nil
}

// PickBestKeyword claims the best unused keyword for the site.
func (s *Service) PickBestKeyword(ctx context.Context, siteID uuid.UUID) (*types.Keyword, error) {
	kw, err := s.store.PickBestKeyword(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if kw == nil {
		return nil, fmt.Errorf("no keyword returned for site %s", siteID)
	}
	s.logger.Info("keyword picked", "site_id", siteID, "keyword", kw.Keyword,
		"opportunity", kw.Opportunity, "score", kw.Score)
	return kw, nil
}
