package types

import (
	"html"
	"strings"
)

// Sex is the caller-declared sex on a profile.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
	SexUnset  Sex = ""
)

const maxCityLen = 100

// Profile is the sealed caller profile attached to a chat request. All
// boundary sanitization happens in NewProfile; a Profile in hand is safe to
// use in prompts, cache keys and SQL parameters.
type Profile struct {
	Age               int  // 0 means absent; valid values are 1..130
	Sex               Sex
	Diabetes          bool
	Hypertension      bool
	Pregnancy         bool
	City              string
	MedicalConditions []string // lowercase, deduplicated, sorted order preserved from input
}

// ProfileInput is the loosely-typed profile as it arrives on the wire.
type ProfileInput struct {
	Age               *int     `json:"age,omitempty"`
	Sex               string   `json:"sex,omitempty"`
	Diabetes          bool     `json:"diabetes,omitempty"`
	Hypertension      bool     `json:"hypertension,omitempty"`
	Pregnancy         bool     `json:"pregnancy,omitempty"`
	City              string   `json:"city,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
}

// NewProfile sanitizes a wire profile into the sealed record. Out-of-range
// ages are dropped, the sex field is normalized to the known vocabulary, the
// city is HTML-escaped and truncated, and medical conditions are lowercased
// and deduplicated.
func NewProfile(in ProfileInput) Profile {
	p := Profile{
		Diabetes:     in.Diabetes,
		Hypertension: in.Hypertension,
		Pregnancy:    in.Pregnancy,
	}
	if in.Age != nil && *in.Age > 0 && *in.Age <= 130 {
		p.Age = *in.Age
	}
	switch Sex(strings.ToLower(strings.TrimSpace(in.Sex))) {
	case SexMale:
		p.Sex = SexMale
	case SexFemale:
		p.Sex = SexFemale
	case SexOther:
		p.Sex = SexOther
	}
	city := html.EscapeString(strings.TrimSpace(in.City))
	if len(city) > maxCityLen {
		city = city[:maxCityLen]
	}
	p.City = city

	seen := make(map[string]struct{}, len(in.MedicalConditions))
	for _, c := range in.MedicalConditions {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		p.MedicalConditions = append(p.MedicalConditions, c)
	}
	return p
}

// HasConditions reports whether the profile carries any chronic-condition
// signal usable by the graph route.
func (p Profile) HasConditions() bool {
	return p.Diabetes || p.Hypertension || p.Pregnancy || len(p.MedicalConditions) > 0
}

// Conditions returns the canonical condition names implied by the profile,
// merging the boolean flags with the free-form list.
func (p Profile) Conditions() []string {
	out := make([]string, 0, len(p.MedicalConditions)+3)
	if p.Diabetes {
		out = append(out, "diabetes")
	}
	if p.Hypertension {
		out = append(out, "hypertension")
	}
	if p.Pregnancy {
		out = append(out, "pregnancy")
	}
	seen := map[string]struct{}{"diabetes": {}, "hypertension": {}, "pregnancy": {}}
	for _, c := range p.MedicalConditions {
		if _, dup := seen[c]; dup && contains(out, c) {
			continue
		}
		if !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the profile carries no information at all.
func (p Profile) IsEmpty() bool {
	return p.Age == 0 && p.Sex == SexUnset && !p.Diabetes && !p.Hypertension &&
		!p.Pregnancy && p.City == "" && len(p.MedicalConditions) == 0
}
