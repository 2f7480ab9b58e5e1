// Package graph exposes the property-graph read vocabulary used by the
// answer pipeline: red-flag conditions for symptoms, contraindicated and
// safe actions for chronic conditions, care providers by city, and
// symptom-relationship discovery. The primary backend is a neo4j store; when
// it is unreachable every call transparently delegates to an in-memory
// fallback graph with curated data, so callers never see the distinction.
//
// This package is internal and should not be imported by external projects.
package graph
