package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page summarises the parts of an article page that confirm publication.
type Page struct {
	Title           string
	Heading         string
	Canonical       string
	MetaDescription string
	Text            string
	WordCount       int
}

// ParsePage extracts title, first heading, canonical link and main text from HTML.
func ParsePage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		Heading:         strings.TrimSpace(doc.Find("h1").First().Text()),
		Canonical:       strings.TrimSpace(doc.Find(`link[rel="canonical"]`).AttrOr("href", "")),
		MetaDescription: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
	}

	doc.Find("nav, footer, header, script, style, noscript, .sidebar, .cookie-banner").Remove()

	var main *goquery.Selection
	for _, selector := range []string{"article", "main", ".post-content", ".entry-content", "#content"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	page.Text = cleanWhitespace(main.Text())
	page.WordCount = len(strings.Fields(page.Text))
	return page, nil
}

// Mentions reports whether the page title or first heading contains title, ignoring case.
func (p *Page) Mentions(title string) bool {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Title), want) ||
		strings.Contains(strings.ToLower(p.Heading), want)
}

// Live fetches a published URL and parses it. When the HTTP body has too little
// text and opts.UseBrowser is set, the page is rendered in a headless browser.
func Live(ctx context.Context, urlStr string, opts *Options) (*Page, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	result, err := URL(ctx, urlStr, opts)
	if err != nil {
		return nil, err
	}
	page, err := ParsePage(result.HTML)
	if err != nil {
		return nil, err
	}

	if opts.UseBrowser && ShouldUseBrowser(page.Text) {
		html, err := WithBrowser(ctx, urlStr, opts.Timeout)
		if err != nil {
			return page, nil
		}
		if rendered, err := ParsePage(html); err == nil {
			return rendered, nil
		}
	}
	return page, nil
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
