package tracing

import (
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Model call attributes follow the OpenTelemetry GenAI
// semantic conventions; the rest are namespaced under "samantha.".
const (
	AttrUserID      = attribute.Key("samantha.user_id")
	AttrChannel     = attribute.Key("samantha.channel")
	AttrForceSearch = attribute.Key("samantha.search.forced")
	AttrSearched    = attribute.Key("samantha.search.used")
	AttrDenied      = attribute.Key("samantha.budget.denied")
	AttrWarned      = attribute.Key("samantha.budget.warned")
	AttrCostUSD     = attribute.Key("samantha.cost_usd")
	AttrTurns       = attribute.Key("samantha.memory.turns")

	AttrProvider     = attribute.Key("gen_ai.system")
	AttrModel        = attribute.Key("gen_ai.request.model")
	AttrInputTokens  = attribute.Key("gen_ai.usage.input_tokens")
	AttrOutputTokens = attribute.Key("gen_ai.usage.output_tokens")
)

// SetModelAttributes records the provider and model of a completion.
func SetModelAttributes(span trace.Span, provider, model string) {
	span.SetAttributes(
		AttrProvider.String(provider),
		AttrModel.String(model),
	)
}

// SetTokenAttributes records the token usage of a completion.
func SetTokenAttributes(span trace.Span, inputTokens, outputTokens int) {
	span.SetAttributes(
		AttrInputTokens.Int(inputTokens),
		AttrOutputTokens.Int(outputTokens),
	)
}

// SetCostAttribute records a ledger cost in USD.
func SetCostAttribute(span trace.Span, cost decimal.Decimal) {
	f, _ := cost.Float64()
	span.SetAttributes(AttrCostUSD.Float64(f))
}
