// Package orchestrator binds the pipeline stages into the /chat and
// /chat/stream entry points. It owns stage ordering, timing capture, the
// English fast path, failure degradation, and background persistence. All
// backends come in through narrow interfaces so tests run on fakes.
package orchestrator
