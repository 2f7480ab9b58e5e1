package vector

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/types"
)

// anaphora markers that signal a follow-up question leaning on earlier turns.
var anaphoraMarkers = []string{
	"it", "that", "this", "they", "them", "those", "these",
	"he", "she", "same", "also", "again", "more",
}

var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "being": {}, "could": {},
	"doing": {}, "have": {}, "having": {}, "should": {}, "their": {},
	"there": {}, "these": {}, "thing": {}, "things": {}, "those": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"will": {}, "with": {}, "would": {}, "your": {}, "please": {},
	"tell": {}, "know": {}, "want": {}, "need": {}, "take": {},
}

// Retriever wraps the index with history-aware query enhancement.
type Retriever struct {
	index  *Index
	logger *zap.Logger
}

// NewRetriever creates a retriever over an index.
func NewRetriever(index *Index, logger *zap.Logger) *Retriever {
	return &Retriever{index: index, logger: logger.With(zap.String("component", "retriever"))}
}

// Retrieve returns the top-k chunks for the query, enriching follow-up
// questions with keywords drawn from recent history before searching.
func (r *Retriever) Retrieve(query string, history []types.HistoryTurn, k int) []types.RetrievedChunk {
	enhanced := EnhanceQuery(query, history)
	if enhanced != query {
		r.logger.Debug("query enhanced from history",
			zap.String("query", query), zap.String("enhanced", enhanced))
	}
	return r.index.Search(enhanced, k)
}

// isFollowUp reports whether a query likely depends on earlier turns: it is
// short, or it contains an anaphoric reference.
func isFollowUp(query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) > 0 && len(words) < 5 {
		return true
	}
	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?;:")
		for _, marker := range anaphoraMarkers {
			if trimmed == marker {
				return true
			}
		}
	}
	return false
}

// EnhanceQuery appends the strongest keywords from the last turns of history
// to a follow-up query so retrieval sees the subject the pronouns point at.
// Standalone queries pass through unchanged.
func EnhanceQuery(query string, history []types.HistoryTurn) string {
	if len(history) == 0 || !isFollowUp(query) {
		return query
	}

	start := len(history) - 4
	if start < 0 {
		start = 0
	}
	counts := make(map[string]int)
	order := make(map[string]int)
	for _, turn := range history[start:] {
		for i, tok := range tokenize(turn.Content) {
			if len(tok) <= 4 {
				continue
			}
			if _, stop := stopWords[tok]; stop {
				continue
			}
			counts[tok]++
			if _, seen := order[tok]; !seen {
				order[tok] = len(order)*1000 + i
			}
		}
	}
	if len(counts) == 0 {
		return query
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return order[keywords[i]] < order[keywords[j]]
	})
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	queryTokens := make(map[string]struct{})
	for _, tok := range tokenize(query) {
		queryTokens[tok] = struct{}{}
	}
	added := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if _, dup := queryTokens[kw]; !dup {
			added = append(added, kw)
		}
	}
	if len(added) == 0 {
		return query
	}
	return query + " " + strings.Join(added, " ")
}
