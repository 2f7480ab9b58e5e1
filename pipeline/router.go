package pipeline

import (
	"regexp"
	"strings"

	"github.com/arogyahq/arogya/types"
)

// graphKeywords are single tokens that point at graph-served questions:
// contraindications, providers, safe activities, emergencies.
var graphKeywords = []string{
	"avoid", "contraindicated", "contraindication", "unsafe",
	"hospital", "clinic", "doctor", "ambulance", "helpline",
	"emergency", "urgent",
	"safe", "allowed", "exercise",
}

// graphPhrases are multi-word patterns with the same intent.
var graphPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bshould (i|we) (not |avoid )`),
	regexp.MustCompile(`(?i)\bwhich (medicines?|foods?|activities|drugs?) `),
	regexp.MustCompile(`(?i)\bis it (safe|ok|okay|dangerous) `),
	regexp.MustCompile(`(?i)\bwhere (can|do|should) (i|we) (go|find)`),
	regexp.MustCompile(`(?i)\bnear (me|my)\b`),
	regexp.MustCompile(`(?i)\b(stay away|keep away) from\b`),
}

// IsGraphIntent routes questions about contraindications, providers, safe
// activities, and emergencies to the graph path. Everything else goes to
// vector retrieval.
func IsGraphIntent(text string) bool {
	normalized := strings.ToLower(text)
	for _, phrase := range graphPhrases {
		if phrase.MatchString(normalized) {
			return true
		}
	}
	for _, tok := range strings.Fields(normalized) {
		trimmed := strings.Trim(tok, ".,!?;:'\"")
		for _, kw := range graphKeywords {
			if trimmed == kw {
				return true
			}
		}
	}
	return false
}

// Route decides the answering path for processed English text.
func Route(text string) types.Route {
	if IsGraphIntent(text) {
		return types.RouteGraph
	}
	return types.RouteVector
}

// conditionKeywords maps graph condition names to tokens that imply them in
// free text. Joined with the profile's conditions before graph lookups.
var conditionKeywords = map[string][]string{
	"diabetes":       {"diabetes", "diabetic", "sugar"},
	"hypertension":   {"hypertension", "bp", "blood pressure"},
	"pregnancy":      {"pregnancy", "pregnant"},
	"asthma":         {"asthma", "asthmatic", "inhaler"},
	"kidney disease": {"kidney", "renal"},
}

// MatchConditions extracts condition names mentioned in the text.
func MatchConditions(text string) []string {
	normalized := " " + strings.ToLower(text) + " "
	var out []string
	for condition, keywords := range conditionKeywords {
		for _, kw := range keywords {
			if strings.Contains(normalized, " "+kw+" ") || strings.Contains(normalized, " "+kw+",") ||
				strings.Contains(normalized, " "+kw+".") || strings.Contains(normalized, " "+kw+"?") {
				out = append(out, condition)
				break
			}
		}
	}
	return out
}

// MergeConditions unions the profile's conditions with ones mentioned in the
// text, preserving first-seen order.
func MergeConditions(profile types.Profile, text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, source := range [][]string{profile.Conditions(), MatchConditions(text)} {
		for _, c := range source {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// knownCities is the provider-lookup city vocabulary.
var knownCities = []string{
	"mumbai", "delhi", "chennai", "bengaluru", "bangalore", "hyderabad",
	"kolkata", "pune", "ahmedabad", "jaipur", "lucknow", "kochi",
}

// cityAliases folds alternate spellings onto the canonical graph city name.
var cityAliases = map[string]string{
	"bangalore": "bengaluru",
}

// ExtractCity finds the first known city mentioned in the text. Empty when
// none matches.
func ExtractCity(text string) string {
	normalized := strings.ToLower(text)
	for _, city := range knownCities {
		idx := strings.Index(normalized, city)
		if idx < 0 {
			continue
		}
		beforeOK := idx == 0 || !isWordByte(normalized[idx-1])
		end := idx + len(city)
		afterOK := end == len(normalized) || !isWordByte(normalized[end])
		if beforeOK && afterOK {
			if canonical, ok := cityAliases[city]; ok {
				return canonical
			}
			return city
		}
	}
	return ""
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
