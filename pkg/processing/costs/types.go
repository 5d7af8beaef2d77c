package costs

import "github.com/shopspring/decimal"

// DefaultModel is the mandatory fallback entry of every price table.
const DefaultModel = "default"

// ModelPricing is the USD price of a model per 1000 tokens.
type ModelPricing struct {
	// InputPer1K is the cost per 1000 input (prompt) tokens.
	InputPer1K decimal.Decimal

	// OutputPer1K is the cost per 1000 output (completion) tokens.
	OutputPer1K decimal.Decimal
}

// Pricing maps model names (or model name prefixes) to prices. It must
// contain a DefaultModel entry.
type Pricing map[string]ModelPricing

// Cost is a priced token count.
type Cost struct {
	// InputCost is the cost of the input tokens in USD.
	InputCost decimal.Decimal

	// OutputCost is the cost of the output tokens in USD.
	OutputCost decimal.Decimal

	// Total is InputCost + OutputCost.
	Total decimal.Decimal

	// Model is the model that was requested.
	Model string

	// PricedAs is the price table key that matched: the model itself,
	// a prefix of it, or DefaultModel.
	PricedAs string
}
