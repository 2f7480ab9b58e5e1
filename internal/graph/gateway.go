package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"go.uber.org/zap"
)

// Config controls the neo4j connection.
type Config struct {
	URI      string `yaml:"uri" json:"uri"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`

	MaxPoolSize        int           `yaml:"max_pool_size" json:"max_pool_size"`
	AcquisitionTimeout time.Duration `yaml:"acquisition_timeout" json:"acquisition_timeout"`
	MaxConnLifetime    time.Duration `yaml:"max_conn_lifetime" json:"max_conn_lifetime"`
	QueryTimeout       time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// DefaultConfig returns the default neo4j configuration.
func DefaultConfig() Config {
	return Config{
		URI:                "bolt://localhost:7687",
		Username:           "neo4j",
		Database:           "neo4j",
		MaxPoolSize:        50,
		AcquisitionTimeout: 30 * time.Second,
		MaxConnLifetime:    time.Hour,
		QueryTimeout:       10 * time.Second,
	}
}

// Gateway serves graph reads from neo4j, falling back to the in-memory graph
// whenever the store is unreachable. Callers never observe which backend
// answered; the switch is logged and counted instead.
type Gateway struct {
	config   Config
	logger   *zap.Logger
	fallback *MemoryGraph

	mu     sync.Mutex
	driver neo4j.DriverWithContext
}

// NewGateway creates a graph gateway. The driver is constructed lazily on
// first use so the process can start while neo4j is still coming up.
func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		config:   cfg,
		logger:   logger.With(zap.String("component", "graph")),
		fallback: NewMemoryGraph(),
	}
}

// Close releases the driver if one was ever built.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.driver == nil {
		return nil
	}
	err := g.driver.Close(ctx)
	g.driver = nil
	return err
}

// Ping verifies connectivity to the live store. It does not consult the
// fallback, so health endpoints can report the real backend state.
func (g *Gateway) Ping(ctx context.Context) error {
	driver, err := g.acquireDriver(ctx)
	if err != nil {
		return err
	}
	return driver.VerifyConnectivity(ctx)
}

func (g *Gateway) acquireDriver(ctx context.Context) (neo4j.DriverWithContext, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.driver != nil {
		return g.driver, nil
	}
	driver, err := neo4j.NewDriverWithContext(
		g.config.URI,
		neo4j.BasicAuth(g.config.Username, g.config.Password, ""),
		func(c *config.Config) {
			c.MaxConnectionPoolSize = g.config.MaxPoolSize
			c.ConnectionAcquisitionTimeout = g.config.AcquisitionTimeout
			c.MaxConnectionLifetime = g.config.MaxConnLifetime
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	g.driver = driver
	return driver, nil
}

func (g *Gateway) dropDriver(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.driver != nil {
		_ = g.driver.Close(ctx)
		g.driver = nil
	}
}

// query runs a read transaction, retrying once after a reconnect when the
// first attempt fails on a connectivity error.
func (g *Gateway) query(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	records, err := g.queryOnce(ctx, cypher, params)
	if err == nil || !isConnectivityError(err) {
		return records, err
	}
	g.logger.Warn("graph query failed, reconnecting", zap.Error(err))
	g.dropDriver(ctx)
	return g.queryOnce(ctx, cypher, params)
}

func (g *Gateway) queryOnce(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	driver, err := g.acquireDriver(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.QueryTimeout)
	defer cancel()

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.config.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no route to host",
		"i/o timeout",
		"connectivity",
		"unable to retrieve routing table",
		"pool closed",
		"broken pipe",
		"context deadline exceeded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func lowered(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}

// RedFlags returns emergency conditions for the given symptoms.
func (g *Gateway) RedFlags(ctx context.Context, symptoms []string) ([]RedFlag, error) {
	if len(symptoms) == 0 {
		return nil, nil
	}
	records, err := g.query(ctx, `
		MATCH (s:Symptom)-[:INDICATES]->(c:Condition {emergency: true})
		WHERE s.name IN $symptoms
		RETURN s.name AS symptom, collect(DISTINCT c.name) AS conditions`,
		map[string]any{"symptoms": lowered(symptoms)})
	if err != nil {
		g.logger.Warn("red flags falling back to in-memory graph", zap.Error(err))
		return g.fallback.RedFlags(ctx, symptoms)
	}
	out := make([]RedFlag, 0, len(records))
	for _, rec := range records {
		symptom, _ := rec.Get("symptom")
		conditions, _ := rec.Get("conditions")
		out = append(out, RedFlag{
			Symptom:    asString(symptom),
			Conditions: asStrings(conditions),
		})
	}
	return out, nil
}

// Contraindications returns actions to avoid for the given conditions.
func (g *Gateway) Contraindications(ctx context.Context, conditions []string) ([]Contraindication, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	records, err := g.query(ctx, `
		MATCH (c:Condition)-[:CONTRAINDICATES]->(a:Action)
		WHERE toLower(c.name) IN $conditions
		RETURN a.name AS action, collect(DISTINCT c.name) AS because
		ORDER BY action`,
		map[string]any{"conditions": lowered(conditions)})
	if err != nil {
		g.logger.Warn("contraindications falling back to in-memory graph", zap.Error(err))
		return g.fallback.Contraindications(ctx, conditions)
	}
	out := make([]Contraindication, 0, len(records))
	for _, rec := range records {
		action, _ := rec.Get("action")
		because, _ := rec.Get("because")
		out = append(out, Contraindication{
			Action:  asString(action),
			Because: asStrings(because),
		})
	}
	return out, nil
}

// SafeActions returns safe actions for the given conditions.
func (g *Gateway) SafeActions(ctx context.Context, conditions []string) ([]SafeAction, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	records, err := g.query(ctx, `
		MATCH (c:Condition)-[:RECOMMENDS]->(a:Action)
		WHERE toLower(c.name) IN $conditions
		RETURN toLower(c.name) AS condition, collect(DISTINCT a.name) AS actions`,
		map[string]any{"conditions": lowered(conditions)})
	if err != nil {
		g.logger.Warn("safe actions falling back to in-memory graph", zap.Error(err))
		return g.fallback.SafeActions(ctx, conditions)
	}
	out := make([]SafeAction, 0, len(records))
	for _, rec := range records {
		condition, _ := rec.Get("condition")
		actions, _ := rec.Get("actions")
		out = append(out, SafeAction{
			Condition: asString(condition),
			Actions:   asStrings(actions),
		})
	}
	return out, nil
}

// Providers returns the care providers registered for a city.
func (g *Gateway) Providers(ctx context.Context, city string) ([]Provider, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return nil, nil
	}
	records, err := g.query(ctx, `
		MATCH (p:Provider)-[:LOCATED_IN]->(c:City)
		WHERE toLower(c.name) = $city
		RETURN p.name AS name, p.mode AS mode, p.phone AS phone
		ORDER BY name`,
		map[string]any{"city": city})
	if err != nil {
		g.logger.Warn("providers falling back to in-memory graph", zap.Error(err))
		return g.fallback.Providers(ctx, city)
	}
	out := make([]Provider, 0, len(records))
	for _, rec := range records {
		name, _ := rec.Get("name")
		mode, _ := rec.Get("mode")
		phone, _ := rec.Get("phone")
		out = append(out, Provider{
			Name:  asString(name),
			Mode:  asString(mode),
			Phone: asString(phone),
		})
	}
	return out, nil
}

// RelatedSymptoms discovers symptoms connected to the input symptoms through
// shared conditions, ranked by shared-condition count.
func (g *Gateway) RelatedSymptoms(ctx context.Context, symptoms []string) ([]SymptomRelation, error) {
	if len(symptoms) == 0 {
		return nil, nil
	}
	records, err := g.query(ctx, `
		MATCH (s:Symptom)-[:INDICATES|ASSOCIATED_WITH|CO_OCCURS_WITH]->(c:Condition)
		      <-[:INDICATES|ASSOCIATED_WITH|CO_OCCURS_WITH]-(r:Symptom)
		WHERE s.name IN $symptoms AND r.name <> s.name
		RETURN s.name AS original, r.name AS related,
		       collect(DISTINCT c.name) AS shared
		ORDER BY size(shared) DESC, original, related
		LIMIT 20`,
		map[string]any{"symptoms": lowered(symptoms)})
	if err != nil {
		g.logger.Warn("related symptoms falling back to in-memory graph", zap.Error(err))
		return g.fallback.RelatedSymptoms(ctx, symptoms)
	}
	out := make([]SymptomRelation, 0, len(records))
	for _, rec := range records {
		original, _ := rec.Get("original")
		related, _ := rec.Get("related")
		shared, _ := rec.Get("shared")
		out = append(out, SymptomRelation{
			Original:         asString(original),
			Related:          asString(related),
			SharedConditions: asStrings(shared),
		})
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
