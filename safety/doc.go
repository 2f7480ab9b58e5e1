// Package safety implements the rule-based scanner that annotates every
// answer. Three detectors run over normalized English text: red-flag symptom
// extraction, mental-health crisis phrases, and pregnancy-emergency phrases.
// All functions are pure; the scanner holds no state and never blocks.
package safety
