package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LangHindi, ParseLanguage("hi"))
	assert.Equal(t, LangTamil, ParseLanguage(" TA "))
	assert.Equal(t, LangEnglish, ParseLanguage(""))
	assert.Equal(t, LangEnglish, ParseLanguage("fr"))
	assert.Equal(t, LangEnglish, ParseLanguage("hindi"))
}

func TestDetectScript(t *testing.T) {
	cases := []struct {
		text string
		want LanguageCode
	}{
		{"mujhe bukhar hai", LangEnglish},
		{"मुझे बुखार है", LangHindi},
		{"எனக்கு காய்ச்சல்", LangTamil},
		{"నాకు జ్వరం", LangTelugu},
		{"ನನಗೆ ಜ್ವರ", LangKannada},
		{"എനിക്ക് പനി", LangMalayalam},
		{"fever since 104°F", LangEnglish},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectScript(tc.text), tc.text)
	}
}

func TestHasNativeScript(t *testing.T) {
	assert.True(t, HasNativeScript("anything", LangEnglish))
	assert.True(t, HasNativeScript("बुखार in mixed text", LangHindi))
	assert.False(t, HasNativeScript("bukhar romanized", LangHindi))
	assert.False(t, HasNativeScript("मुझे", LangTamil))
}

func TestNewProfile_Sanitizes(t *testing.T) {
	age := 34
	p := NewProfile(ProfileInput{
		Age:               &age,
		Sex:               " Female ",
		City:              "<b>Mumbai</b>",
		MedicalConditions: []string{"Asthma", "asthma", " ", "GERD"},
	})
	assert.Equal(t, 34, p.Age)
	assert.Equal(t, SexFemale, p.Sex)
	assert.Equal(t, "&lt;b&gt;Mumbai&lt;/b&gt;", p.City)
	assert.Equal(t, []string{"asthma", "gerd"}, p.MedicalConditions)

	bad := 200
	p = NewProfile(ProfileInput{Age: &bad, Sex: "attack helicopter"})
	assert.Zero(t, p.Age)
	assert.Equal(t, SexUnset, p.Sex)
}

func TestProfile_Conditions(t *testing.T) {
	p := NewProfile(ProfileInput{
		Diabetes:          true,
		Pregnancy:         true,
		MedicalConditions: []string{"diabetes", "migraine"},
	})
	assert.True(t, p.HasConditions())
	assert.Equal(t, []string{"diabetes", "pregnancy", "migraine"}, p.Conditions())

	assert.True(t, NewProfile(ProfileInput{}).IsEmpty())
	assert.Empty(t, NewProfile(ProfileInput{}).Conditions())
}

func TestParseLanguage_AlwaysSupported(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tag := rapid.String().Draw(t, "tag")
		assert.True(t, IsSupported(ParseLanguage(tag)))
	})
}
