package pipeline

import (
	"fmt"
	"strings"

	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/types"
)

const fallbackPreamble = "Our answer service is temporarily unavailable, so here is the most relevant verified information we have:"

const fallbackEmpty = "Our answer service is temporarily unavailable and no verified information matched your question. If symptoms are severe or worsening, please contact a doctor or call 108."

// FallbackAnswer assembles a deterministic English answer from retrieval
// chunks and facts when both model providers are down. The result depends
// only on its inputs so it stays testable and cacheable.
func FallbackAnswer(chunks []types.RetrievedChunk, facts []types.Fact) string {
	var sections []string

	if len(chunks) > 0 {
		var b strings.Builder
		b.WriteString("From our knowledge base:\n")
		limit := len(chunks)
		if limit > 2 {
			limit = 2
		}
		for _, c := range chunks[:limit] {
			fmt.Fprintf(&b, "- %s (source: %s)\n", strings.TrimSpace(c.Chunk), c.Source)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	for _, f := range facts {
		switch f.Type {
		case types.FactRedFlags:
			sections = append(sections, "Some symptoms you mentioned can signal an emergency. Please seek medical care now or call 108.")
		case types.FactContraindications:
			if contra, ok := f.Data.([]graph.Contraindication); ok && len(contra) > 0 {
				var b strings.Builder
				b.WriteString("Things to avoid for your conditions:\n")
				for _, c := range contra {
					fmt.Fprintf(&b, "- %s (because of %s)\n", c.Action, strings.Join(c.Because, ", "))
				}
				sections = append(sections, strings.TrimRight(b.String(), "\n"))
			}
		case types.FactSafeActions:
			if safe, ok := f.Data.([]graph.SafeAction); ok && len(safe) > 0 {
				var b strings.Builder
				b.WriteString("Generally safe steps:\n")
				for _, s := range safe {
					fmt.Fprintf(&b, "- %s: %s\n", s.Condition, strings.Join(s.Actions, ", "))
				}
				sections = append(sections, strings.TrimRight(b.String(), "\n"))
			}
		case types.FactProviders:
			if providers, ok := f.Data.([]graph.Provider); ok && len(providers) > 0 {
				var b strings.Builder
				b.WriteString("Care providers near you:\n")
				for _, p := range providers {
					fmt.Fprintf(&b, "- %s (%s) %s\n", p.Name, p.Mode, p.Phone)
				}
				sections = append(sections, strings.TrimRight(b.String(), "\n"))
			}
		case types.FactMentalHealthCrisis:
			if report, ok := f.Data.(types.MentalHealthReport); ok && len(report.FirstAid) > 0 {
				sections = append(sections, strings.Join(report.FirstAid, "\n"))
			}
		}
	}

	if len(sections) == 0 {
		return fallbackEmpty
	}
	return fallbackPreamble + "\n\n" + strings.Join(sections, "\n\n")
}
