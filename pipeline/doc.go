// Package pipeline holds the pure stages the orchestrator composes into a
// request: routing, fact gathering, disclaimer policy, and the deterministic
// fallback answer. Stages never panic and never fail on absent-but-optional
// data; they return degraded results and let the orchestrator decide.
package pipeline
