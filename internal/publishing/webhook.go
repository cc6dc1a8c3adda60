// Package publishing pushes generated articles to a site's CMS, renders
// thumbnails and notifies search engines.
package publishing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/content-autopilot/internal/types"
)

// WebhookPublisher delivers articles to a CMS endpoint as JSON.
type WebhookPublisher struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookPublisher creates a publisher posting to url. token is sent as a bearer token when set.
func NewWebhookPublisher(url, token string, client *http.Client) *WebhookPublisher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookPublisher{url: url, token: token, client: client}
}

type webhookPayload struct {
	SiteID          string `json:"site_id"`
	Domain          string `json:"domain"`
	ArticleID       string `json:"article_id"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	MetaDescription string `json:"meta_description"`
	ContentMarkdown string `json:"content_markdown"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

type webhookResponse struct {
	URL string `json:"url"`
}

// Publish sends the article and returns its public URL. When the CMS does
// not report one, the URL is derived from the domain and slug.
func (p *WebhookPublisher) Publish(ctx context.Context, site *types.Site, article *types.Article, thumbnailURL string) (string, error) {
	body, err := json.Marshal(webhookPayload{
		SiteID:          site.ID.String(),
		Domain:          site.Domain,
		ArticleID:       article.ID.String(),
		Title:           article.Title,
		Slug:            article.Slug,
		MetaDescription: article.MetaDescription,
		ContentMarkdown: article.ContentMarkdown,
		ThumbnailURL:    thumbnailURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode article: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read publish response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("publish rejected: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out webhookResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", fmt.Errorf("failed to decode publish response: %w", err)
		}
	}
	if out.URL == "" {
		out.URL = ArticleURL(site.Domain, article.Slug)
	}
	return out.URL, nil
}

// ArticleURL is the conventional public location of an article.
func ArticleURL(domain, slug string) string {
	domain = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://"), "/")
	return "https://" + domain + "/blog/" + slug
}
