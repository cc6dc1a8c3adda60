package publishing

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/content-autopilot/internal/fetch"
	"github.com/jonathan/content-autopilot/internal/types"
)

// ChromeThumbnailer renders a title card for an article with headless Chrome
// and stores it as a PNG.
type ChromeThumbnailer struct {
	dir     string
	baseURL string
	width   int
	height  int
	timeout time.Duration
	capture func(ctx context.Context, pageURL string, width, height int, timeout time.Duration) ([]byte, error)
}

// NewChromeThumbnailer writes images to dir; baseURL is the public prefix they are served from.
func NewChromeThumbnailer(dir, baseURL string) *ChromeThumbnailer {
	return &ChromeThumbnailer{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		width:   1200,
		height:  630,
		timeout: 45 * time.Second,
		capture: fetch.Screenshot,
	}
}

var cardTemplate = template.Must(template.New("card").Parse(`<!DOCTYPE html>
<html><head><style>
body{margin:0;width:{{.Width}}px;height:{{.Height}}px;display:flex;flex-direction:column;justify-content:center;
padding:0 80px;box-sizing:border-box;background:linear-gradient(135deg,#0f172a,#1e3a8a);color:#f8fafc;
font-family:Helvetica,Arial,sans-serif}
h1{font-size:64px;line-height:1.1;margin:0 0 24px}
p{font-size:28px;opacity:.8;margin:0}
</style></head><body><h1>{{.Title}}</h1><p>{{.Domain}}</p></body></html>`))

// Render creates the thumbnail and returns its public URL.
func (t *ChromeThumbnailer) Render(ctx context.Context, site *types.Site, article *types.Article) (string, error) {
	var sb strings.Builder
	err := cardTemplate.Execute(&sb, map[string]any{
		"Title": article.Title, "Domain": site.Domain, "Width": t.width, "Height": t.height,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render thumbnail card: %w", err)
	}

	png, err := t.capture(ctx, "data:text/html,"+url.PathEscape(sb.String()), t.width, t.height, t.timeout)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail dir: %w", err)
	}
	name := article.Slug + ".png"
	if err := os.WriteFile(filepath.Join(t.dir, name), png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return t.baseURL + "/" + name, nil
}
