package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/arogyahq/arogya/types"
)

func TestKeys_Build(t *testing.T) {
	k := NewKeys(2)
	assert.Equal(t, "session_full:sid-1:v2", k.SessionFull("sid-1"))
	assert.True(t, strings.HasPrefix(k.SessionMessages("sid-1", 20), "session_messages:sid-1:v2:"))
	assert.Equal(t, "sessions:uid-1:v2*", k.Pattern(FamilySessions, "uid-1"))
}

func TestKeys_VersionBumpChangesKeys(t *testing.T) {
	v1 := NewKeys(1)
	v2 := NewKeys(2)
	assert.NotEqual(t, v1.SessionFull("s"), v2.SessionFull("s"))
}

func TestKeys_ChatResponseIdempotent(t *testing.T) {
	k := NewKeys(1)
	profile := types.NewProfile(types.ProfileInput{Diabetes: true, City: "Mumbai"})

	a := k.ChatResponse("I have fever", types.LangEnglish, profile)
	b := k.ChatResponse("  i HAVE fever  ", types.LangEnglish, profile)
	assert.Equal(t, a, b)

	c := k.ChatResponse("I have fever", types.LangHindi, profile)
	assert.NotEqual(t, a, c)
}

func TestKeys_ChatResponseNormalizationProperty(t *testing.T) {
	k := NewKeys(1)
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 ?.]{1,120}`).Draw(t, "text")
		pad := rapid.SampledFrom([]string{"", " ", "\t", "  "}).Draw(t, "pad")
		profile := types.NewProfile(types.ProfileInput{
			Diabetes:     rapid.Bool().Draw(t, "diabetes"),
			Hypertension: rapid.Bool().Draw(t, "hypertension"),
		})

		a := k.ChatResponse(text, types.LangEnglish, profile)
		b := k.ChatResponse(pad+strings.ToUpper(text)+pad, types.LangEnglish, profile)
		if a != b {
			t.Fatalf("keys differ for trivially equivalent text: %q vs %q", a, b)
		}
	})
}
