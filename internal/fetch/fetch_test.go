package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><head>
<title>Go Generics Explained | Example Blog</title>
<link rel="canonical" href="https://example.com/blog/go-generics-explained">
<meta name="description" content="A practical tour of Go generics.">
</head><body>
<nav>Home Blog About</nav>
<article><h1>Go Generics Explained</h1>
<p>Generics let you   write reusable code.</p>
<p>Type parameters arrived in Go 1.18.</p></article>
<footer>Copyright</footer>
</body></html>`

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.HTML, "Go Generics Explained")
}

func TestURL_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.NotNil(t, result)

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not a url", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(articleHTML)
	require.NoError(t, err)

	assert.Equal(t, "Go Generics Explained | Example Blog", page.Title)
	assert.Equal(t, "Go Generics Explained", page.Heading)
	assert.Equal(t, "https://example.com/blog/go-generics-explained", page.Canonical)
	assert.Equal(t, "A practical tour of Go generics.", page.MetaDescription)
	assert.NotContains(t, page.Text, "Copyright")
	assert.Contains(t, page.Text, "Generics let you write reusable code.")
	assert.Greater(t, page.WordCount, 10)

	assert.True(t, page.Mentions("go generics explained"))
	assert.False(t, page.Mentions("rust lifetimes"))
}

func TestLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	page, err := Live(context.Background(), server.URL, &Options{Timeout: DefaultTimeout})
	require.NoError(t, err)
	assert.True(t, page.Mentions("Go Generics Explained"))
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("  short  "))
	assert.False(t, ShouldUseBrowser(strings.Repeat("x", MinContentLength)))
}
