package opportunities

import (
	"math"

	"github.com/jonathan/content-autopilot/internal/types"
)

// expectedCTR is the typical click-through rate for an organic result at a position.
func expectedCTR(position float64) float64 {
	switch {
	case position <= 0:
		return 0
	case position < 1.5:
		return 0.28
	case position < 2.5:
		return 0.15
	case position < 3.5:
		return 0.11
	case position < 4.5:
		return 0.08
	case position < 5.5:
		return 0.07
	case position <= 10:
		return 0.04
	case position <= 20:
		return 0.015
	default:
		return 0.005
	}
}

const (
	strikingWeight = 1.0
	lowCTRWeight   = 0.8
	emergingWeight = 0.5
)

// Classify assigns an opportunity kind and score to a keyword from its metrics.
// The score estimates missed clicks on a log scale, weighted by how actionable
// the opportunity is.
func Classify(kw types.Keyword) (types.OpportunityKind, float64) {
	impressions := float64(kw.Impressions)
	clicks := float64(kw.Clicks)

	switch {
	case kw.Position >= 4 && kw.Position <= 20:
		missed := impressions*expectedCTR(3) - clicks
		return types.OpportunityStrikingDistance, strikingWeight * math.Log1p(math.Max(missed, 0))
	case kw.Position > 0 && kw.Position < 4 && kw.CTR < expectedCTR(kw.Position)/2:
		missed := impressions*expectedCTR(kw.Position) - clicks
		return types.OpportunityLowCTR, lowCTRWeight * math.Log1p(math.Max(missed, 0))
	default:
		return types.OpportunityEmerging, emergingWeight * math.Log1p(impressions)
	}
}

// ScoreAll classifies every keyword in place and returns them.
func ScoreAll(keywords []types.Keyword) []types.Keyword {
	for i := range keywords {
		keywords[i].Opportunity, keywords[i].Score = Classify(keywords[i])
	}
	return keywords
}
