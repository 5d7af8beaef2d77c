// Package costs prices model usage from a per-model price table.
//
// # Pricing Model
//
// Prices are USD per 1000 tokens, separately for input and output:
//
//	cost = input/1000 * input_price + output/1000 * output_price
//
// Arithmetic uses shopspring/decimal, so sums of many small costs stay exact.
//
// # Model Lookup
//
// A model is priced by the first match of:
//
//  1. the exact model name
//  2. the longest table key that is a prefix of the model name
//  3. the mandatory "default" entry
//
// Unknown models therefore never fail; they are priced as the default.
//
// # Usage
//
//	calc, err := costs.NewCalculator(costs.Pricing{
//		"default":     {InputPer1K: decimal.RequireFromString("0.00015"), OutputPer1K: decimal.RequireFromString("0.0006")},
//		"gpt-4o-mini": {InputPer1K: decimal.RequireFromString("0.00015"), OutputPer1K: decimal.RequireFromString("0.0006")},
//	})
//	if err != nil {
//		return err
//	}
//
//	cost := calc.Calculate(1200, 300, "gpt-4o-mini")
//	fmt.Println(cost.Total) // 0.00036
//
// # Pricing Updates
//
// UpdatePricing swaps the table atomically; the config watcher calls it when
// the configuration file changes.
package costs
