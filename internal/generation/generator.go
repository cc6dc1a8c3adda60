// Package generation drafts articles for picked keywords with the LLM client.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/llm"
	"github.com/jonathan/content-autopilot/internal/prompts"
	"github.com/jonathan/content-autopilot/internal/schemas"
	"github.com/jonathan/content-autopilot/internal/types"
	"github.com/jonathan/content-autopilot/internal/validation"
)

// Store loads generation inputs and saves drafts.
type Store interface {
	GetSite(ctx context.Context, siteID uuid.UUID) (*types.Site, error)
	GetKeyword(ctx context.Context, id uuid.UUID) (*types.Keyword, error)
	CreateArticle(ctx context.Context, article *types.Article) (*types.Article, error)
}

// Generator drafts, validates and stores articles.
type Generator struct {
	client llm.Client
	store  Store
	logger *slog.Logger
}

// NewGenerator creates an article generator.
func NewGenerator(client llm.Client, store Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, store: store, logger: logger.With("component", "generation")}
}

// draft is the JSON document the model returns.
type draft struct {
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	MetaDescription string `json:"meta_description"`
	ContentMarkdown string `json:"content_markdown"`
}

var wordTargets = map[types.ReasoningLevel]int{
	types.ReasoningLow:    800,
	types.ReasoningMedium: 1200,
	types.ReasoningHigh:   1800,
}

// Generate drafts an article for the requested keyword and stores it as a draft.
func (g *Generator) Generate(ctx context.Context, req types.GenerateRequest) (*types.Article, error) {
	site, err := g.store.GetSite(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("site %s not found", req.SiteID)
	}
	kw, err := g.store.GetKeyword(ctx, req.KeywordID)
	if err != nil {
		return nil, err
	}
	if kw == nil {
		return nil, fmt.Errorf("keyword %s not found", req.KeywordID)
	}

	words, ok := wordTargets[req.ReasoningLevel]
	if !ok {
		words = wordTargets[types.ReasoningMedium]
	}
	instructions := ""
	if req.Instructions != "" {
		instructions = "- " + req.Instructions
	}

	// Queries are typed by searchers, so treat them as untrusted.
	query, mustMention := kw.Keyword, kw.Keyword
	if check := validation.CheckInjection(query); !check.IsSafe {
		g.logger.Warn("search query looks like a prompt injection, redacting",
			"keyword_id", kw.ID, "reason", check.Reason)
		query, mustMention = validation.StripInjectionAttempts(query), ""
	}

	prompt, err := prompts.Render("generation.json", "draft-article", map[string]string{
		"Domain":       site.Domain,
		"Keyword":      query,
		"Opportunity":  string(kw.Opportunity),
		"Position":     strconv.FormatFloat(kw.Position, 'f', 1, 64),
		"Impressions":  strconv.Itoa(kw.Impressions),
		"WordTarget":   strconv.Itoa(words),
		"Instructions": instructions,
	})
	if err != nil {
		return nil, err
	}

	tier := llm.TierForReasoning(req.ReasoningLevel)
	raw, err := g.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return nil, err
	}

	d, err := g.parse(ctx, raw, tier, mustMention)
	if err != nil {
		return nil, err
	}

	article, err := g.store.CreateArticle(ctx, &types.Article{
		SiteID:          req.SiteID,
		KeywordID:       kw.ID,
		Title:           strings.TrimSpace(d.Title),
		Slug:            d.Slug,
		MetaDescription: strings.TrimSpace(d.MetaDescription),
		ContentMarkdown: d.ContentMarkdown,
		Status:          types.ArticleDraft,
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("article drafted", "site", site.Domain, "keyword", kw.Keyword,
		"article_id", article.ID, "model", g.client.GetModel(tier))
	return article, nil
}

// parse validates the model output, asking the model once to repair a draft
// that fails the schema or the content checks.
func (g *Generator) parse(ctx context.Context, raw string, tier llm.ModelTier, query string) (*draft, error) {
	d, problems, err := checkDraft(llm.CleanJSONBlock(raw), query)
	if err != nil {
		return nil, err
	}

	if problems != "" {
		g.logger.Warn("draft failed validation, requesting repair", "problems", problems)
		prompt, err := prompts.Render("generation.json", "repair-article", map[string]string{
			"Errors": problems,
			"Draft":  llm.CleanJSONBlock(raw),
		})
		if err != nil {
			return nil, err
		}
		repaired, err := g.client.GenerateJSON(ctx, prompt, tier)
		if err != nil {
			return nil, err
		}
		d, problems, err = checkDraft(llm.CleanJSONBlock(repaired), query)
		if err != nil {
			return nil, err
		}
		if problems != "" {
			return nil, fmt.Errorf("generated article is invalid: %s", problems)
		}
	}

	if slug := Slugify(d.Slug); slug != "" {
		d.Slug = slug
	} else {
		d.Slug = Slugify(d.Title)
	}
	return d, nil
}

// checkDraft decodes raw into a draft. Problems a repair prompt could fix are
// returned as text; err is reserved for output that cannot be checked at all.
func checkDraft(raw, query string) (*draft, string, error) {
	err := schemas.ValidateArticleDraft(raw)
	var validationErr *schemas.ValidationError
	if errors.As(err, &validationErr) {
		return nil, validationErr.Error(), nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("generated article is invalid: %w", err)
	}

	var d draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, "", fmt.Errorf("failed to parse generated article: %w", err)
	}

	violations := validation.CheckArticle(validation.Article{
		Title:           d.Title,
		MetaDescription: d.MetaDescription,
		Content:         d.ContentMarkdown,
	}, query, nil)
	if len(violations) > 0 {
		return nil, "content checks failed:\n" + validation.Describe(violations), nil
	}
	return &d, "", nil
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	var sb strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	return sb.String()
}
