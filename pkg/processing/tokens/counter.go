package tokens

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used by the gpt-4o family and text-embedding-3 models.
const DefaultEncoding = "cl100k_base"

// wordsPerToken is the heuristic ratio used when no encoder is available.
const wordsPerToken = 1.3

// Counter counts tokens in text. Count never fails; implementations fall back
// to the word heuristic when their encoder is unavailable.
type Counter interface {
	Count(text string) int
}

// Encoder is the subset of a BPE tokenizer used by EncodingCounter.
// *tiktoken.Tiktoken satisfies it.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// EncodingCounter counts tokens with a BPE encoder and falls back to
// Heuristic when the encoder is missing or panics.
// It is safe for concurrent use.
type EncodingCounter struct {
	enc    Encoder
	logger *slog.Logger
}

// NewCounter loads the named encoding. A load failure is not fatal: the
// returned counter uses the heuristic for every call and the error is
// returned for logging.
func NewCounter(encoding string) (*EncodingCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	c := &EncodingCounter{
		logger: slog.Default().With("component", "tokens.counter"),
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return c, fmt.Errorf("failed to load encoding %q: %w", encoding, err)
	}
	c.enc = enc
	return c, nil
}

// NewCounterWithEncoder wraps an existing encoder. A nil encoder yields a
// heuristic-only counter.
func NewCounterWithEncoder(enc Encoder) *EncodingCounter {
	return &EncodingCounter{
		enc:    enc,
		logger: slog.Default().With("component", "tokens.counter"),
	}
}

// Count returns the number of tokens in text.
func (c *EncodingCounter) Count(text string) (n int) {
	if text == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		return Heuristic(text)
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("encoder failed, using word heuristic", "panic", r)
			n = Heuristic(text)
		}
	}()

	return len(c.enc.Encode(text, nil, nil))
}

// Exact reports whether counts come from a real encoder.
func (c *EncodingCounter) Exact() bool {
	return c != nil && c.enc != nil
}

// Heuristic estimates tokens as round(words * 1.3).
func Heuristic(text string) int {
	words := len(strings.Fields(text))
	return int(math.Round(float64(words) * wordsPerToken))
}

// HeuristicCounter is a Counter that only uses Heuristic.
type HeuristicCounter struct{}

// Count implements Counter.
func (HeuristicCounter) Count(text string) int {
	return Heuristic(text)
}
