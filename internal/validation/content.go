package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits the drafting prompt asks for. The JSON schema is looser so that a
// slightly long title is repaired instead of rejected outright.
const (
	MaxTitleLength           = 70
	MaxMetaDescriptionLength = 160
)

// DefaultForbiddenPhrases are stock filler phrases that mark machine-written copy.
var DefaultForbiddenPhrases = []string{
	"as an ai language model",
	"in today's fast-paced world",
	"in this day and age",
	"delve into",
	"unlock the power of",
	"it's important to note that",
	"in conclusion,",
}

// Article is the text of a draft under review.
type Article struct {
	Title           string
	MetaDescription string
	Content         string
}

// Violation is one problem found in a draft.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Describe renders violations as a numbered list for logs and repair prompts.
func Describe(violations []Violation) string {
	var sb strings.Builder
	for i, v := range violations {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, v)
	}
	return sb.String()
}

// CheckArticle checks a draft against the length limits, the forbidden
// phrases and the target query. A nil forbidden list uses DefaultForbiddenPhrases.
func CheckArticle(a Article, keyword string, forbidden []string) []Violation {
	if forbidden == nil {
		forbidden = DefaultForbiddenPhrases
	}

	var violations []Violation
	if n := utf8.RuneCountInString(strings.TrimSpace(a.Title)); n > MaxTitleLength {
		violations = append(violations, Violation{
			Field:   "title",
			Message: fmt.Sprintf("is %d characters, limit is %d", n, MaxTitleLength),
		})
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(a.MetaDescription)); n > MaxMetaDescriptionLength {
		violations = append(violations, Violation{
			Field:   "meta_description",
			Message: fmt.Sprintf("is %d characters, limit is %d", n, MaxMetaDescriptionLength),
		})
	}

	fields := []struct{ name, text string }{
		{"title", a.Title},
		{"meta_description", a.MetaDescription},
		{"content_markdown", a.Content},
	}
	for _, f := range fields {
		if phrase := findPhrase(f.text, forbidden); phrase != "" {
			violations = append(violations, Violation{
				Field:   f.name,
				Message: fmt.Sprintf("contains forbidden phrase %q", phrase),
			})
		}
	}

	if q := normalizeForMatching(keyword); q != "" &&
		!strings.Contains(normalizeForMatching(a.Title), q) &&
		!strings.Contains(normalizeForMatching(a.Content), q) {
		violations = append(violations, Violation{
			Field:   "title",
			Message: fmt.Sprintf("neither title nor content mentions the query %q", keyword),
		})
	}
	return violations
}

// findPhrase returns the first forbidden phrase in text, or "".
func findPhrase(text string, phrases []string) string {
	normalized := normalizeForMatching(text)
	for _, phrase := range phrases {
		p := normalizeForMatching(phrase)
		if p != "" && strings.Contains(normalized, p) {
			return phrase
		}
	}
	return ""
}

// normalizeForMatching lowercases text, folds typographic apostrophes and
// collapses whitespace so Markdown line breaks do not hide a match.
func normalizeForMatching(text string) string {
	text = strings.ReplaceAll(text, "’", "'")
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
