// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

// =============================================================================
// MODEL PRICING
// =============================================================================

// Pricing is USD per 1M tokens.
type Pricing struct {
	Input  float64
	Output float64
}

// modelPricing maps model identifiers to their published rates.
var modelPricing = map[string]Pricing{
	"claude-4.5":        {Input: 3.0, Output: 15.0},
	"claude-4-opus":     {Input: 15.0, Output: 75.0},
	"claude-4-sonnet":   {Input: 3.0, Output: 15.0},
	"claude-3.5-sonnet": {Input: 3.0, Output: 15.0},
	"claude-3.5-haiku":  {Input: 0.8, Output: 4.0},
	"claude-opus-4.5":   {Input: 15.0, Output: 75.0},
}

// defaultPricing covers unknown models (claude-4.5 rates).
var defaultPricing = Pricing{Input: 3.0, Output: 15.0}

// PricingFor returns the rates for a model, falling back to the default
// for unknown identifiers.
func PricingFor(model string) Pricing {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	return defaultPricing
}

// Cost computes the USD cost of a turn.
func Cost(model string, inputTokens, outputTokens int) float64 {
	p := PricingFor(model)
	return float64(inputTokens)/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
}
