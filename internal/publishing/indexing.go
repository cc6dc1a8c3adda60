package publishing

import (
	"context"
	"fmt"

	"google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"
)

// GoogleIndexer notifies the Google Indexing API about new URLs.
type GoogleIndexer struct {
	service *indexing.Service
}

// NewGoogleIndexer creates an Indexing API client. credentialsFile may be empty
// to use application default credentials.
func NewGoogleIndexer(ctx context.Context, credentialsFile string) (*GoogleIndexer, error) {
	opts := []option.ClientOption{option.WithScopes(indexing.IndexingScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	service, err := indexing.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexing client: %w", err)
	}
	return &GoogleIndexer{service: service}, nil
}

// Submit reports that url was added or updated.
func (g *GoogleIndexer) Submit(ctx context.Context, url string) error {
	_, err := g.service.UrlNotifications.Publish(&indexing.UrlNotification{
		Url:  url,
		Type: "URL_UPDATED",
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to submit %s for indexing: %w", url, err)
	}
	return nil
}
