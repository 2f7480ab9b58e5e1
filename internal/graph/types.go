package graph

import "context"

// RedFlag pairs a symptom with the emergency conditions it can mark.
type RedFlag struct {
	Symptom    string   `json:"symptom"`
	Conditions []string `json:"conditions"`
}

// Contraindication pairs an action to avoid with the conditions behind the
// advice.
type Contraindication struct {
	Action  string   `json:"action"`
	Because []string `json:"because"`
}

// SafeAction lists the actions considered safe for one condition.
type SafeAction struct {
	Condition string   `json:"condition"`
	Actions   []string `json:"actions"`
}

// Provider is one care provider in a city.
type Provider struct {
	Name  string `json:"name"`
	Mode  string `json:"mode"`
	Phone string `json:"phone"`
}

// SymptomRelation links two symptoms through their shared conditions.
type SymptomRelation struct {
	Original         string   `json:"original"`
	Related          string   `json:"related"`
	SharedConditions []string `json:"shared_conditions"`
}

// Service is the read vocabulary the pipeline consumes. All operations are
// read-only.
type Service interface {
	RedFlags(ctx context.Context, symptoms []string) ([]RedFlag, error)
	Contraindications(ctx context.Context, conditions []string) ([]Contraindication, error)
	SafeActions(ctx context.Context, conditions []string) ([]SafeAction, error)
	Providers(ctx context.Context, city string) ([]Provider, error)
	RelatedSymptoms(ctx context.Context, symptoms []string) ([]SymptomRelation, error)
}
