// Package processing holds the token and cost arithmetic shared by the
// budget and memory engines.
//
// # Architecture
//
//   - tokens: tiktoken based token counting with a word heuristic fallback
//   - costs: per-model USD pricing with decimal arithmetic
//
// # Basic Usage
//
//	counter, _ := tokens.NewCounter("cl100k_base")
//	calc, _ := costs.NewCalculator(pricing)
//
//	in, out := counter.Count(prompt), counter.Count(reply)
//	cost := calc.Calculate(in, out, model)
package processing
