package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/arogyahq/arogya/types"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text. It uses the cl100k_base
// encoding when available and falls back to a rune-count heuristic when the
// encoding cannot be loaded (for example offline test environments).
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	runes := len([]rune(text))
	return runes/4 + 1
}

// TrimHistory drops the oldest turns until the remainder fits the token
// budget. The most recent turns survive; a budget of zero keeps nothing.
func TrimHistory(history []types.HistoryTurn, budget int) []types.HistoryTurn {
	if budget <= 0 || len(history) == 0 {
		return nil
	}
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := CountTokens(history[i].Content) + 4
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}
	return history[start:]
}
