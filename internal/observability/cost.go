package observability

import (
	"strconv"
	"strings"
)

const (
	tokensPerKilo       = 1000.0
	costFormatPrecision = 6
)

// ModelPricing contains pricing information per 1K tokens
type ModelPricing struct {
	InputPricePer1K  float64 // Price per 1K input tokens in USD
	OutputPricePer1K float64 // Price per 1K output tokens in USD
}

// PricingTable contains pricing for the hosted models the service calls.
// Self-hosted melody models are not listed and cost nothing.
var PricingTable = map[string]ModelPricing{
	"gpt-5.1":          {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"gpt-5-mini":       {InputPricePer1K: 0.00025, OutputPricePer1K: 0.002},
	"gpt-4o":           {InputPricePer1K: 0.0025, OutputPricePer1K: 0.01},
	"gpt-4o-mini":      {InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006},
	"gemini-2.5-flash": {InputPricePer1K: 0.0003, OutputPricePer1K: 0.0025},
	"gemini-2.5-pro":   {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
}

// LookupPricing finds the pricing for model, falling back to the longest
// table entry that prefixes it (dated snapshots such as gpt-4o-2024-08-06).
func LookupPricing(model string) (ModelPricing, bool) {
	if p, ok := PricingTable[model]; ok {
		return p, true
	}
	best := ""
	for name := range PricingTable {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelPricing{}, false
	}
	return PricingTable[best], true
}

// CalculateCost returns the USD cost of one call.
func CalculateCost(model string, inputTokens, outputTokens int64) float64 {
	pricing, ok := LookupPricing(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/tokensPerKilo*pricing.InputPricePer1K +
		float64(outputTokens)/tokensPerKilo*pricing.OutputPricePer1K
}

// FormatCost formats a cost value as a USD string
func FormatCost(cost float64) string {
	return "$" + strconv.FormatFloat(cost, 'f', costFormatPrecision, 64)
}
