package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "json code block", input: "```json\n{\"title\": \"Go\"}\n```", expected: `{"title": "Go"}`},
		{name: "generic code block", input: "```\n{\"title\": \"Go\"}\n```", expected: `{"title": "Go"}`},
		{name: "plain JSON", input: `{"title": "Go"}`, expected: `{"title": "Go"}`},
		{name: "preamble", input: "Here is the article:\n{\"title\": \"Go\"}", expected: `{"title": "Go"}`},
		{name: "trailing chatter", input: "Sure! {\"title\": \"Go\"} Hope it helps.", expected: `{"title": "Go"}`},
		{name: "array", input: "Result: [1, 2]", expected: `[1, 2]`},
		{name: "no json", input: "no json here", expected: "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}
