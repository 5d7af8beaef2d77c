package costs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Calculator prices token usage from a per-model price table.
// It is thread-safe and supports hot-reload of pricing.
type Calculator struct {
	// pricing is the current price table
	pricing Pricing

	// mu protects pricing
	mu sync.RWMutex
}

// NewCalculator creates a calculator. The table must contain a "default" entry.
func NewCalculator(pricing Pricing) (*Calculator, error) {
	if err := validatePricing(pricing); err != nil {
		return nil, err
	}
	return &Calculator{pricing: clonePricing(pricing)}, nil
}

// Calculate prices the given token counts for model. Unknown models are
// priced with the default entry, so Calculate never fails.
func (c *Calculator) Calculate(inputTokens, outputTokens int, model string) Cost {
	pricing, key := c.GetModelPricing(model)

	cost := Cost{
		InputCost:  tokenCost(inputTokens, pricing.InputPer1K),
		OutputCost: tokenCost(outputTokens, pricing.OutputPer1K),
		Model:      model,
		PricedAs:   key,
	}
	cost.Total = cost.InputCost.Add(cost.OutputCost)
	return cost
}

// GetModelPricing returns the price entry for model and the key that matched.
// It tries an exact match, then the longest key that prefixes the model
// (e.g. "gpt-4o-mini" matches "gpt-4o-mini-2024-07-18"), then the default.
func (c *Calculator) GetModelPricing(model string) (ModelPricing, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.pricing[model]; ok {
		return p, model
	}

	best := ""
	for key := range c.pricing {
		if key == DefaultModel {
			continue
		}
		if strings.HasPrefix(model, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return c.pricing[best], best
	}

	return c.pricing[DefaultModel], DefaultModel
}

// UpdatePricing replaces the price table (hot-reload support).
// The current table is kept when the new one is invalid.
func (c *Calculator) UpdatePricing(pricing Pricing) error {
	if err := validatePricing(pricing); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pricing = clonePricing(pricing)
	return nil
}

// Models returns the configured price table keys.
func (c *Calculator) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	models := make([]string, 0, len(c.pricing))
	for key := range c.pricing {
		models = append(models, key)
	}
	return models
}

func validatePricing(pricing Pricing) error {
	if _, ok := pricing[DefaultModel]; !ok {
		return fmt.Errorf("pricing must contain a %q entry", DefaultModel)
	}
	for model, p := range pricing {
		if p.InputPer1K.IsNegative() || p.OutputPer1K.IsNegative() {
			return fmt.Errorf("pricing for %q cannot be negative", model)
		}
	}
	return nil
}

func clonePricing(pricing Pricing) Pricing {
	out := make(Pricing, len(pricing))
	for k, v := range pricing {
		out[k] = v
	}
	return out
}

// tokenCost returns tokens/1000 * costPer1K, exactly.
func tokenCost(tokens int, costPer1K decimal.Decimal) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(tokens)).Mul(costPer1K).Shift(-3)
}
