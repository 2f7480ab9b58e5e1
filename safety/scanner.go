package safety

import (
	"strings"
	"unicode"

	"github.com/arogyahq/arogya/types"
)

func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsPhrase matches term as whole words inside normalized text.
func containsPhrase(normalized, term string) bool {
	idx := 0
	for {
		i := strings.Index(normalized[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || normalized[start-1] == ' '
		afterOK := end == len(normalized) || normalized[end] == ' '
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func matchAny(normalized string, vocabulary []string) []string {
	var matched []string
	for _, term := range vocabulary {
		if containsPhrase(normalized, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// DetectRedFlags scans for emergency symptoms.
func DetectRedFlags(text string) (bool, []string) {
	matched := matchAny(normalize(text), redFlagSymptoms)
	return len(matched) > 0, matched
}

// DetectMentalHealthCrisis scans for crisis phrases and, on a hit, attaches
// immediate-help guidance.
func DetectMentalHealthCrisis(text string) types.MentalHealthReport {
	matched := matchAny(normalize(text), crisisPhrases)
	report := types.MentalHealthReport{Crisis: len(matched) > 0, Matched: matched}
	if report.Crisis {
		report.FirstAid = append([]string(nil), crisisFirstAid...)
	}
	return report
}

// DetectPregnancyEmergency scans for pregnancy-emergency phrases.
func DetectPregnancyEmergency(text string) types.PregnancyReport {
	matched := matchAny(normalize(text), pregnancyEmergencyPhrases)
	return types.PregnancyReport{Concern: len(matched) > 0, Matched: matched}
}

// ExtractSymptoms returns every known symptom mentioned in the text, red-flag
// and general alike, in vocabulary order without duplicates. The result feeds
// the graph red-flag and related-symptom queries.
func ExtractSymptoms(text string) []string {
	normalized := normalize(text)
	seen := make(map[string]struct{})
	var out []string
	for _, vocab := range [][]string{redFlagSymptoms, generalSymptoms} {
		for _, term := range vocab {
			if _, dup := seen[term]; dup {
				continue
			}
			if containsPhrase(normalized, term) {
				seen[term] = struct{}{}
				out = append(out, term)
			}
		}
	}
	return out
}

// Scan runs all three detectors over the same text.
func Scan(text string) types.SafetyReport {
	redFlag, matched := DetectRedFlags(text)
	return types.SafetyReport{
		RedFlag:      redFlag,
		Matched:      matched,
		MentalHealth: DetectMentalHealthCrisis(text),
		Pregnancy:    DetectPregnancyEmergency(text),
	}
}
