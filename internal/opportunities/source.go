// Package opportunities refreshes a site's search performance data and turns
// it into scored keyword opportunities.
package opportunities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/searchconsole/v1"

	"github.com/jonathan/content-autopilot/internal/types"
)

// Source supplies per-query search performance for a domain.
type Source interface {
	QueryStats(ctx context.Context, domain string, start, end time.Time) ([]types.QueryStat, error)
}

// SearchConsoleSource reads query performance from the Search Console API.
type SearchConsoleSource struct {
	service  *searchconsole.Service
	rowLimit int64
}

// NewSearchConsoleSource creates a Search Console client. credentialsFile may be
// empty, in which case application default credentials are used.
func NewSearchConsoleSource(ctx context.Context, credentialsFile string, rowLimit int) (*SearchConsoleSource, error) {
	opts := []option.ClientOption{option.WithScopes(searchconsole.WebmastersReadonlyScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	service, err := searchconsole.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search console client: %w", err)
	}
	if rowLimit <= 0 {
		rowLimit = 1000
	}
	return &SearchConsoleSource{service: service, rowLimit: int64(rowLimit)}, nil
}

// QueryStats returns one row per query for the domain property between start and end.
func (s *SearchConsoleSource) QueryStats(ctx context.Context, domain string, start, end time.Time) ([]types.QueryStat, error) {
	req := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  start.Format(types.DateLayout),
		EndDate:    end.Format(types.DateLayout),
		Dimensions: []string{"query"},
		RowLimit:   s.rowLimit,
	}

	resp, err := s.service.Searchanalytics.Query(PropertyURL(domain), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query search analytics: %w", err)
	}
	return convertRows(resp.Rows), nil
}

func convertRows(rows []*searchconsole.ApiDataRow) []types.QueryStat {
	stats := make([]types.QueryStat, 0, len(rows))
	for _, row := range rows {
		if row == nil || len(row.Keys) == 0 {
			continue
		}
		query := strings.TrimSpace(row.Keys[0])
		if query == "" {
			continue
		}
		stats = append(stats, types.QueryStat{
			Query:       query,
			Clicks:      int(row.Clicks),
			Impressions: int(row.Impressions),
			CTR:         row.Ctr,
			Position:    row.Position,
		})
	}
	return stats
}

// PropertyURL returns the domain property identifier for a site.
func PropertyURL(domain string) string {
	domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	return "sc-domain:" + strings.TrimSuffix(domain, "/")
}
