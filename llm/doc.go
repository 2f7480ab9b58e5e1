// Package llm is the language-model gateway. Two OpenAI-compatible
// providers (primary and fallback) sit behind one Provider interface; the
// failover chain retries each with backoff before moving on. On top of the
// raw chat contract the package owns the prompt templates for language
// detection, translation, and grounded answer generation.
package llm
