// Package tokens provides token counting shared by the memory and budget engines.
//
// Both engines must count with the same Counter so that the tokens recorded on
// a conversation turn match the tokens billed for it.
//
// # Counting
//
// EncodingCounter uses a tiktoken BPE encoding (cl100k_base by default). When
// the encoding cannot be loaded, or the encoder panics on some input, the
// counter falls back to a word heuristic:
//
//	tokens = round(words * 1.3)
//
// Counting never returns an error.
//
// # Usage
//
//	counter, err := tokens.NewCounter(cfg.Tokens.Encoding)
//	if err != nil {
//		logger.Warn("exact token counting unavailable", "error", err)
//	}
//
//	n := counter.Count("Bonjour, comment ça va ?")
package tokens
