// Package types defines the domain value types shared across the Arogya
// service: caller profiles, answer facts, citations, safety reports and the
// language vocabulary. These are plain values with no behavior beyond
// construction-time sanitization; gateways and pipeline stages exchange them
// without owning them.
package types
