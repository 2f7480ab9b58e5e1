package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/safety"
	"github.com/arogyahq/arogya/types"
)

// FactsInput carries everything fact gathering consumes.
type FactsInput struct {
	Text            string
	OriginalText    string
	Profile         types.Profile
	Safety          types.SafetyReport
	HistorySymptoms []string
}

// GatherFacts assembles the structured facts for a graph-routed request.
// Failures on individual queries degrade to fewer facts, never to an error.
func GatherFacts(ctx context.Context, g graph.Service, in FactsInput, logger *zap.Logger) Result[[]types.Fact] {
	var facts []types.Fact
	degraded := ""

	symptoms := safety.ExtractSymptoms(in.Text)

	if in.Safety.RedFlag {
		flags, err := g.RedFlags(ctx, in.Safety.Matched)
		if err != nil {
			logger.Warn("red-flag lookup failed", zap.Error(err))
			degraded = "red_flags unavailable"
		} else if len(flags) > 0 {
			facts = append(facts, types.Fact{Type: types.FactRedFlags, Data: flags})
		}
	}

	if conditions := MergeConditions(in.Profile, in.Text); len(conditions) > 0 {
		contra, err := g.Contraindications(ctx, conditions)
		if err != nil {
			logger.Warn("contraindication lookup failed", zap.Error(err))
			degraded = "contraindications unavailable"
		} else if len(contra) > 0 {
			facts = append(facts, types.Fact{Type: types.FactContraindications, Data: contra})
		}

		safe, err := g.SafeActions(ctx, conditions)
		if err != nil {
			logger.Warn("safe-action lookup failed", zap.Error(err))
			degraded = "safe_actions unavailable"
		} else if len(safe) > 0 {
			facts = append(facts, types.Fact{Type: types.FactSafeActions, Data: safe})
		}
	}

	city := in.Profile.City
	if city == "" {
		city = ExtractCity(in.OriginalText)
	}
	if city == "" {
		city = ExtractCity(in.Text)
	}
	if city != "" {
		providers, err := g.Providers(ctx, city)
		if err != nil {
			logger.Warn("provider lookup failed", zap.String("city", city), zap.Error(err))
			degraded = "providers unavailable"
		} else if len(providers) > 0 {
			facts = append(facts, types.Fact{Type: types.FactProviders, Data: providers})
		}
	}

	if in.Safety.MentalHealth.Crisis {
		facts = append(facts, types.Fact{Type: types.FactMentalHealthCrisis, Data: in.Safety.MentalHealth})
	}
	if in.Safety.Pregnancy.Concern {
		facts = append(facts, types.Fact{Type: types.FactPregnancyAlert, Data: in.Safety.Pregnancy})
	}

	if fact := relationshipFact(ctx, g, symptoms, in.HistorySymptoms, logger); fact != nil {
		facts = append(facts, *fact)
	}

	if in.Profile.HasConditions() {
		facts = append(facts, types.Fact{
			Type: types.FactPersonalization,
			Data: map[string]any{"conditions": in.Profile.Conditions()},
		})
	}

	if degraded != "" {
		return Degraded(facts, degraded)
	}
	return Ok(facts)
}

// relationshipFact compares this turn's new symptoms against earlier ones.
// A graph-confirmed link becomes a symptom_relationships fact; a confirmed
// absence becomes symptom_no_relationship so the model does not invent one.
func relationshipFact(ctx context.Context, g graph.Service, current, history []string, logger *zap.Logger) *types.Fact {
	if len(current) == 0 || len(history) == 0 {
		return nil
	}
	prior := make(map[string]struct{}, len(history))
	for _, s := range history {
		prior[s] = struct{}{}
	}
	var fresh []string
	for _, s := range current {
		if _, known := prior[s]; !known {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	relations, err := g.RelatedSymptoms(ctx, append(append([]string{}, fresh...), history...))
	if err != nil {
		logger.Warn("related-symptom lookup failed", zap.Error(err))
		return nil
	}

	// Keep only cross-turn pairs: one new symptom, one prior symptom.
	freshSet := make(map[string]struct{}, len(fresh))
	for _, s := range fresh {
		freshSet[s] = struct{}{}
	}
	var crossTurn []graph.SymptomRelation
	for _, rel := range relations {
		_, origFresh := freshSet[rel.Original]
		_, relPrior := prior[rel.Related]
		_, origPrior := prior[rel.Original]
		_, relFresh := freshSet[rel.Related]
		if (origFresh && relPrior) || (origPrior && relFresh) {
			crossTurn = append(crossTurn, rel)
		}
	}

	if len(crossTurn) > 0 {
		return &types.Fact{Type: types.FactSymptomRelationships, Data: crossTurn}
	}
	return &types.Fact{
		Type: types.FactSymptomNoRelationship,
		Data: map[string]any{"new_symptoms": fresh, "prior_symptoms": history},
	}
}
