package types

// Route is the orchestrator's decision between the graph-backed and the
// vector-only answering paths.
type Route string

const (
	RouteGraph  Route = "graph"
	RouteVector Route = "vector"
)

// FactType enumerates the structured annotations that can accompany an
// answer.
type FactType string

const (
	FactRedFlags              FactType = "red_flags"
	FactContraindications     FactType = "contraindications"
	FactSafeActions           FactType = "safe_actions"
	FactProviders             FactType = "providers"
	FactMentalHealthCrisis    FactType = "mental_health_crisis"
	FactPregnancyAlert        FactType = "pregnancy_alert"
	FactSymptomRelationships  FactType = "symptom_relationships"
	FactSymptomNoRelationship FactType = "symptom_no_relationship"
	FactPersonalization       FactType = "personalization"
)

// Fact is one structured annotation attached to an answer. Data is
// JSON-serializable and shaped per fact type; the LM prompt renders it
// verbatim so the model cannot invent links the graph did not supply.
type Fact struct {
	Type FactType `json:"type"`
	Data any      `json:"data"`
}

// Citation identifies a retrieved chunk backing part of the answer.
type Citation struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	Topic  string `json:"topic,omitempty"`
}

// MentalHealthReport is the crisis-phrase detector output.
type MentalHealthReport struct {
	Crisis   bool     `json:"crisis"`
	Matched  []string `json:"matched"`
	FirstAid []string `json:"first_aid"`
}

// PregnancyReport is the pregnancy-emergency detector output.
type PregnancyReport struct {
	Concern bool     `json:"concern"`
	Matched []string `json:"matched"`
}

// SafetyReport aggregates the three safety detectors. It is informational:
// it never short-circuits the pipeline, but it steers the facts list and the
// disclaimer decision.
type SafetyReport struct {
	RedFlag      bool               `json:"red_flag"`
	Matched      []string           `json:"matched"`
	MentalHealth MentalHealthReport `json:"mental_health"`
	Pregnancy    PregnancyReport    `json:"pregnancy"`
}

// RetrievedChunk is one vector-retriever hit.
type RetrievedChunk struct {
	Chunk  string `json:"chunk"`
	ID     string `json:"id"`
	Source string `json:"source"`
	Topic  string `json:"topic"`
}

// Citation derives the citation for a retrieved chunk.
func (r RetrievedChunk) Citation() Citation {
	return Citation{Source: r.Source, ID: r.ID, Topic: r.Topic}
}

// HistoryTurn is one prior conversation turn as handed to the LM.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
