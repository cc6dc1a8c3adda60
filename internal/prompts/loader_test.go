package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("generation.json", "draft-article")
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.Keyword}}")
}

func TestGet_Errors(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")

	_, err = Get("generation.json", "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
}

func TestFormat(t *testing.T) {
	out := Format("Write about {{.Keyword}} for {{.Domain}}.{{.Instructions}}", map[string]string{
		"Keyword": "go generics",
		"Domain":  "example.com",
	})
	assert.Equal(t, "Write about go generics for example.com.", out)
}

func TestRender(t *testing.T) {
	out, err := Render("generation.json", "draft-article", map[string]string{
		"Domain":  "example.com",
		"Keyword": "pgx batch insert",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"pgx batch insert"`)
	assert.Contains(t, out, "example.com")
	assert.NotContains(t, out, "{{.")
}

func TestList(t *testing.T) {
	keys, err := List("generation.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft-article", "repair-article"}, keys)
}
