package graph

import (
	"context"
	"sort"
	"strings"
)

// MemoryGraph is the in-process fallback with curated data. It implements
// the same Service interface as the remote gateway and is also used to seed
// development environments.
type MemoryGraph struct {
	redFlags      map[string][]string // symptom -> emergency conditions
	contra        map[string]map[string][]string
	safe          map[string][]string
	providers     map[string][]Provider
	indicates     map[string][]string // symptom -INDICATES-> condition
	associated    map[string][]string // symptom -ASSOCIATED_WITH-> condition
	cooccurs      map[string][]string // symptom -CO_OCCURS_WITH-> condition
}

// NewMemoryGraph builds the curated fallback graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		redFlags: map[string][]string{
			"chest pain":           {"Heart Attack", "Angina"},
			"difficulty breathing": {"Heart Attack", "Severe Asthma", "Anaphylaxis"},
			"shortness of breath":  {"Heart Attack", "Pulmonary Embolism"},
			"severe bleeding":      {"Hemorrhagic Shock"},
			"unconsciousness":      {"Stroke", "Cardiac Arrest"},
			"seizure":              {"Epilepsy", "Stroke"},
			"sudden weakness":      {"Stroke"},
			"slurred speech":       {"Stroke"},
			"severe headache":      {"Stroke", "Meningitis"},
			"stiff neck":           {"Meningitis"},
			"coughing blood":       {"Tuberculosis", "Pulmonary Embolism"},
			"severe abdominal pain": {"Appendicitis", "Ectopic Pregnancy"},
			"vaginal bleeding":     {"Ectopic Pregnancy", "Miscarriage"},
			"blue lips":            {"Severe Hypoxia"},
			"very high fever":      {"Sepsis", "Meningitis"},
		},
		contra: map[string]map[string][]string{
			"diabetes": {
				"skipping meals":                 {"Diabetes"},
				"sugary drinks and sweets":       {"Diabetes"},
				"prolonged fasting":              {"Diabetes"},
				"walking barefoot outdoors":      {"Diabetes"},
				"over-the-counter steroid creams": {"Diabetes"},
			},
			"hypertension": {
				"high salt intake":              {"Hypertension"},
				"decongestant cold medicines":   {"Hypertension"},
				"heavy weight lifting":          {"Hypertension"},
				"nsaid painkillers without advice": {"Hypertension"},
				"alcohol in excess":             {"Hypertension"},
			},
			"pregnancy": {
				"ibuprofen and aspirin":      {"Pregnancy"},
				"raw or undercooked seafood": {"Pregnancy"},
				"hot tubs and saunas":        {"Pregnancy"},
				"smoking and alcohol":        {"Pregnancy"},
				"isotretinoin acne medicine": {"Pregnancy"},
			},
			"asthma": {
				"beta blocker medicines": {"Asthma"},
				"smoke exposure":         {"Asthma"},
			},
			"kidney disease": {
				"nsaid painkillers": {"Kidney Disease"},
				"high protein fad diets": {"Kidney Disease"},
			},
		},
		safe: map[string][]string{
			"diabetes":     {"regular balanced meals", "daily walking", "blood sugar monitoring", "foot care checks"},
			"hypertension": {"low-salt home cooking", "brisk walking", "regular blood pressure checks", "stress reduction breathing"},
			"pregnancy":    {"prenatal vitamins as prescribed", "gentle walking", "hydration", "regular antenatal checkups"},
			"asthma":       {"carrying a reliever inhaler", "breathing exercises", "avoiding known triggers"},
			"kidney disease": {"fluid intake as advised", "blood pressure control", "regular kidney function tests"},
		},
		providers: map[string][]Provider{
			"mumbai": {
				{Name: "KEM Hospital", Mode: "government hospital", Phone: "022-24107000"},
				{Name: "Lilavati Hospital", Mode: "private hospital", Phone: "022-26751000"},
				{Name: "108 Ambulance", Mode: "emergency ambulance", Phone: "108"},
			},
			"delhi": {
				{Name: "AIIMS Delhi", Mode: "government hospital", Phone: "011-26588500"},
				{Name: "Max Super Speciality Saket", Mode: "private hospital", Phone: "011-26515050"},
				{Name: "CATS Ambulance", Mode: "emergency ambulance", Phone: "102"},
			},
			"chennai": {
				{Name: "Rajiv Gandhi Government General Hospital", Mode: "government hospital", Phone: "044-25305000"},
				{Name: "Apollo Hospitals Greams Road", Mode: "private hospital", Phone: "044-28290200"},
				{Name: "108 Ambulance", Mode: "emergency ambulance", Phone: "108"},
			},
			"bengaluru": {
				{Name: "Victoria Hospital", Mode: "government hospital", Phone: "080-26701150"},
				{Name: "Manipal Hospital Old Airport Road", Mode: "private hospital", Phone: "080-25024444"},
			},
			"hyderabad": {
				{Name: "Osmania General Hospital", Mode: "government hospital", Phone: "040-24600146"},
				{Name: "Apollo Hospitals Jubilee Hills", Mode: "private hospital", Phone: "040-23607777"},
			},
		},
		indicates: map[string][]string{
			"chest pain":           {"Heart Attack", "Angina"},
			"shortness of breath":  {"Heart Attack", "Asthma", "Anemia"},
			"difficulty breathing": {"Asthma", "Anaphylaxis"},
			"severe headache":      {"Stroke", "Migraine"},
			"dizziness":            {"Stroke", "Anemia", "Hypotension"},
			"fever":                {"Influenza", "Dengue", "Typhoid", "Malaria"},
			"body ache":            {"Influenza", "Dengue"},
			"fatigue":              {"Anemia", "Hypothyroidism", "Diabetes"},
		},
		associated: map[string][]string{
			"fever":          {"Viral Infection", "Dengue", "Malaria"},
			"headache":       {"Migraine", "Dengue", "Tension Headache"},
			"body ache":      {"Viral Infection", "Dengue"},
			"rash":           {"Dengue", "Allergy", "Measles"},
			"joint pain":     {"Dengue", "Chikungunya", "Arthritis"},
			"nausea":         {"Gastritis", "Migraine", "Food Poisoning"},
			"vomiting":       {"Gastritis", "Food Poisoning", "Dengue"},
			"diarrhea":       {"Food Poisoning", "Gastroenteritis"},
			"cough":          {"Common Cold", "Influenza", "Tuberculosis"},
			"sore throat":    {"Common Cold", "Influenza", "Tonsillitis"},
			"fatigue":        {"Anemia", "Viral Infection"},
			"dizziness":      {"Anemia", "Dehydration"},
			"frequent urination": {"Diabetes", "Urinary Tract Infection"},
			"excessive thirst":   {"Diabetes"},
		},
		cooccurs: map[string][]string{
			"fever":       {"Dengue", "Influenza"},
			"chills":      {"Malaria", "Influenza"},
			"headache":    {"Dengue", "Influenza"},
			"sweating":    {"Malaria", "Hypoglycemia"},
			"palpitations": {"Anemia", "Hyperthyroidism"},
		},
	}
}

// RedFlags returns, for each input symptom that marks an emergency, the
// conditions it can indicate.
func (m *MemoryGraph) RedFlags(ctx context.Context, symptoms []string) ([]RedFlag, error) {
	out := make([]RedFlag, 0, len(symptoms))
	for _, s := range symptoms {
		key := strings.ToLower(strings.TrimSpace(s))
		if conds, ok := m.redFlags[key]; ok {
			out = append(out, RedFlag{Symptom: key, Conditions: append([]string(nil), conds...)})
		}
	}
	return out, nil
}

// Contraindications returns the actions to avoid for the given conditions.
func (m *MemoryGraph) Contraindications(ctx context.Context, conditions []string) ([]Contraindication, error) {
	merged := make(map[string]map[string]struct{})
	for _, c := range conditions {
		key := strings.ToLower(strings.TrimSpace(c))
		for action, because := range m.contra[key] {
			if merged[action] == nil {
				merged[action] = make(map[string]struct{})
			}
			for _, b := range because {
				merged[action][b] = struct{}{}
			}
		}
	}
	out := make([]Contraindication, 0, len(merged))
	for action, becauseSet := range merged {
		because := make([]string, 0, len(becauseSet))
		for b := range becauseSet {
			because = append(because, b)
		}
		sort.Strings(because)
		out = append(out, Contraindication{Action: action, Because: because})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out, nil
}

// SafeActions returns the safe actions per condition.
func (m *MemoryGraph) SafeActions(ctx context.Context, conditions []string) ([]SafeAction, error) {
	out := make([]SafeAction, 0, len(conditions))
	for _, c := range conditions {
		key := strings.ToLower(strings.TrimSpace(c))
		if actions, ok := m.safe[key]; ok {
			out = append(out, SafeAction{Condition: key, Actions: append([]string(nil), actions...)})
		}
	}
	return out, nil
}

// Providers returns the care providers for a city.
func (m *MemoryGraph) Providers(ctx context.Context, city string) ([]Provider, error) {
	key := strings.ToLower(strings.TrimSpace(city))
	return append([]Provider(nil), m.providers[key]...), nil
}

// maxRelations bounds the RelatedSymptoms result.
const maxRelations = 20

// RelatedSymptoms finds, for each input symptom, the other symptoms sharing
// at least one condition through any of the three edge kinds. Results are
// deduplicated and sorted by shared-condition count descending, capped at 20.
func (m *MemoryGraph) RelatedSymptoms(ctx context.Context, symptoms []string) ([]SymptomRelation, error) {
	conditionsOf := func(symptom string) map[string]struct{} {
		set := make(map[string]struct{})
		for _, edges := range []map[string][]string{m.indicates, m.associated, m.cooccurs} {
			for _, c := range edges[symptom] {
				set[c] = struct{}{}
			}
		}
		return set
	}

	vocabulary := make(map[string]struct{})
	for _, edges := range []map[string][]string{m.indicates, m.associated, m.cooccurs} {
		for s := range edges {
			vocabulary[s] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var out []SymptomRelation
	for _, raw := range symptoms {
		original := strings.ToLower(strings.TrimSpace(raw))
		origConds := conditionsOf(original)
		if len(origConds) == 0 {
			continue
		}
		for related := range vocabulary {
			if related == original {
				continue
			}
			pairKey := original + "|" + related
			if _, dup := seen[pairKey]; dup {
				continue
			}
			var shared []string
			for c := range conditionsOf(related) {
				if _, ok := origConds[c]; ok {
					shared = append(shared, c)
				}
			}
			if len(shared) == 0 {
				continue
			}
			sort.Strings(shared)
			seen[pairKey] = struct{}{}
			out = append(out, SymptomRelation{Original: original, Related: related, SharedConditions: shared})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].SharedConditions) != len(out[j].SharedConditions) {
			return len(out[i].SharedConditions) > len(out[j].SharedConditions)
		}
		if out[i].Original != out[j].Original {
			return out[i].Original < out[j].Original
		}
		return out[i].Related < out[j].Related
	})
	if len(out) > maxRelations {
		out = out[:maxRelations]
	}
	return out, nil
}
