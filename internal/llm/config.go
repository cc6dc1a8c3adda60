// Package llm provides the LLM client used to draft articles, with model tiers
// selected from a site's reasoning level.
package llm

import "github.com/jonathan/content-autopilot/internal/types"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short drafts on low effort
	TierLite ModelTier = "lite"
	// TierStandard is the default drafting tier
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form drafts that need more reasoning
	TierAdvanced ModelTier = "advanced"
)

// Config holds the model configuration for the application
type Config struct {
	Models       map[ModelTier]string
	Temperatures map[ModelTier]float32
	// RequestsPerMinute paces calls to the provider. Zero disables pacing.
	RequestsPerMinute int
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperatures: map[ModelTier]float32{
			TierLite:     0.4,
			TierStandard: 0.6,
			TierAdvanced: 0.7,
		},
		RequestsPerMinute: 30,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// GetTemperature returns the sampling temperature for a tier.
func (c *Config) GetTemperature(tier ModelTier) float32 {
	if t, ok := c.Temperatures[tier]; ok {
		return t
	}
	return 0.5
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Models:            make(map[ModelTier]string, len(c.Models)+1),
		Temperatures:      make(map[ModelTier]float32, len(c.Temperatures)),
		RequestsPerMinute: c.RequestsPerMinute,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	for k, v := range c.Temperatures {
		newConfig.Temperatures[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}

// TierForReasoning maps a site's reasoning level onto a model tier.
func TierForReasoning(level types.ReasoningLevel) ModelTier {
	switch level {
	case types.ReasoningLow:
		return TierLite
	case types.ReasoningHigh:
		return TierAdvanced
	default:
		return TierStandard
	}
}
