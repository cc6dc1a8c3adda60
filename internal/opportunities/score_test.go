package opportunities

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/content-autopilot/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		kw   types.Keyword
		want types.OpportunityKind
	}{
		{name: "page two", kw: types.Keyword{Impressions: 1000, Clicks: 5, Position: 12}, want: types.OpportunityStrikingDistance},
		{name: "bottom of page one", kw: types.Keyword{Impressions: 400, Clicks: 10, Position: 7}, want: types.OpportunityStrikingDistance},
		{name: "top result ignored", kw: types.Keyword{Impressions: 1000, Clicks: 30, CTR: 0.03, Position: 2}, want: types.OpportunityLowCTR},
		{name: "top result healthy", kw: types.Keyword{Impressions: 1000, Clicks: 200, CTR: 0.2, Position: 2}, want: types.OpportunityEmerging},
		{name: "deep result", kw: types.Keyword{Impressions: 50, Position: 45}, want: types.OpportunityEmerging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, score := Classify(tt.kw)
			assert.Equal(t, tt.want, kind)
			assert.GreaterOrEqual(t, score, 0.0)
		})
	}
}

func TestClassify_MoreMissedClicksScoresHigher(t *testing.T) {
	_, small := Classify(types.Keyword{Impressions: 100, Position: 8})
	_, large := Classify(types.Keyword{Impressions: 10000, Position: 8})
	assert.Greater(t, large, small)

	_, striking := Classify(types.Keyword{Impressions: 1000, Position: 8})
	_, emerging := Classify(types.Keyword{Impressions: 1000, Position: 40})
	assert.Greater(t, striking, emerging)
}

func TestPropertyURL(t *testing.T) {
	assert.Equal(t, "sc-domain:example.com", PropertyURL("example.com"))
	assert.Equal(t, "sc-domain:example.com", PropertyURL("https://example.com/"))
}
