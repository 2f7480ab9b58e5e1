package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/safety"
	"github.com/arogyahq/arogya/types"
)

func TestIsGraphIntent(t *testing.T) {
	graphQueries := []string{
		"which medicines should I avoid?",
		"is it safe to exercise with high bp",
		"where can I find a hospital near me",
		"what should I stay away from with diabetes",
		"emergency help needed",
	}
	for _, q := range graphQueries {
		assert.True(t, IsGraphIntent(q), "expected graph intent: %q", q)
	}

	vectorQueries := []string{
		"what are the symptoms of dengue",
		"how does the flu spread",
		"tell me about vitamin d deficiency",
	}
	for _, q := range vectorQueries {
		assert.False(t, IsGraphIntent(q), "expected vector intent: %q", q)
	}
}

func TestMergeConditions(t *testing.T) {
	profile := types.NewProfile(types.ProfileInput{Diabetes: true})

	merged := MergeConditions(profile, "my blood pressure is high and I am pregnant")
	assert.Contains(t, merged, "diabetes")
	assert.Contains(t, merged, "hypertension")
	assert.Contains(t, merged, "pregnancy")

	// Text repeating a profile condition must not duplicate it.
	merged = MergeConditions(profile, "I am diabetic")
	count := 0
	for _, c := range merged {
		if c == "diabetes" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractCity(t *testing.T) {
	assert.Equal(t, "mumbai", ExtractCity("I live in Mumbai, where should I go?"))
	assert.Equal(t, "bengaluru", ExtractCity("any hospital in bangalore"))
	assert.Equal(t, "", ExtractCity("I have a headache"))
	assert.Equal(t, "", ExtractCity("the mumbaikar spirit"), "substring must not match")
}

func TestGatherFacts_GraphRoute(t *testing.T) {
	g := graph.NewMemoryGraph()
	profile := types.NewProfile(types.ProfileInput{
		Diabetes: true, Hypertension: true, City: "Mumbai",
	})
	text := "which medicines should I avoid?"

	res := GatherFacts(context.Background(), g, FactsInput{
		Text:         text,
		OriginalText: text,
		Profile:      profile,
		Safety:       safety.Scan(text),
	}, zap.NewNop())
	require.True(t, res.Usable())
	require.Equal(t, StatusOK, res.Status)

	byType := make(map[types.FactType]types.Fact)
	for _, f := range res.Value {
		byType[f.Type] = f
	}
	require.Contains(t, byType, types.FactContraindications)
	contra := byType[types.FactContraindications].Data.([]graph.Contraindication)
	because := make(map[string]struct{})
	for _, c := range contra {
		for _, b := range c.Because {
			because[b] = struct{}{}
		}
	}
	assert.Contains(t, because, "Diabetes")
	assert.Contains(t, because, "Hypertension")

	require.Contains(t, byType, types.FactProviders)
	providers := byType[types.FactProviders].Data.([]graph.Provider)
	assert.NotEmpty(t, providers)

	require.Contains(t, byType, types.FactPersonalization)
}

func TestGatherFacts_RedFlagAndCrisis(t *testing.T) {
	g := graph.NewMemoryGraph()
	text := "I have chest pain and I want to die"

	res := GatherFacts(context.Background(), g, FactsInput{
		Text: text, OriginalText: text,
		Profile: types.Profile{},
		Safety:  safety.Scan(text),
	}, zap.NewNop())
	require.True(t, res.Usable())

	var foundRedFlags, foundCrisis bool
	for _, f := range res.Value {
		switch f.Type {
		case types.FactRedFlags:
			foundRedFlags = true
		case types.FactMentalHealthCrisis:
			foundCrisis = true
		}
	}
	assert.True(t, foundRedFlags)
	assert.True(t, foundCrisis)
}

func TestGatherFacts_SymptomRelationship(t *testing.T) {
	g := graph.NewMemoryGraph()
	text := "now I also have a rash"

	res := GatherFacts(context.Background(), g, FactsInput{
		Text: text, OriginalText: text,
		Profile:         types.Profile{},
		Safety:          safety.Scan(text),
		HistorySymptoms: []string{"fever"},
	}, zap.NewNop())
	require.True(t, res.Usable())

	var rel *types.Fact
	for i, f := range res.Value {
		if f.Type == types.FactSymptomRelationships {
			rel = &res.Value[i]
		}
	}
	require.NotNil(t, rel, "rash and fever share dengue, expected a relationship fact")
	relations := rel.Data.([]graph.SymptomRelation)
	require.NotEmpty(t, relations)
}

func TestApplyDisclaimer(t *testing.T) {
	withDisclaimer := ApplyDisclaimer("rest and hydrate", types.LangEnglish, false)
	assert.Contains(t, withDisclaimer, "not medical advice")

	redFlagged := ApplyDisclaimer("go to a hospital now", types.LangEnglish, true)
	assert.Equal(t, "go to a hospital now", redFlagged)

	tamil := ApplyDisclaimer("answer", types.LangTamil, false)
	assert.True(t, types.HasNativeScript(tamil, types.LangTamil))
}

func TestFallbackAnswer(t *testing.T) {
	chunks := []types.RetrievedChunk{
		{ID: "c1", Source: "who-dengue", Chunk: "Rest and fluids help dengue recovery."},
	}
	facts := []types.Fact{
		{Type: types.FactProviders, Data: []graph.Provider{{Name: "KEM Hospital", Mode: "government hospital", Phone: "022"}}},
	}

	answer := FallbackAnswer(chunks, facts)
	assert.Contains(t, answer, "temporarily unavailable")
	assert.Contains(t, answer, "who-dengue")
	assert.Contains(t, answer, "KEM Hospital")

	// Deterministic: same inputs, same output.
	assert.Equal(t, answer, FallbackAnswer(chunks, facts))

	assert.Contains(t, FallbackAnswer(nil, nil), "no verified information")
}
