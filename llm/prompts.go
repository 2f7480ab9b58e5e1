package llm

import (
	"fmt"
	"strings"

	"github.com/arogyahq/arogya/types"
)

var languageNames = map[types.LanguageCode]string{
	types.LangEnglish:   "English",
	types.LangHindi:     "Hindi",
	types.LangTamil:     "Tamil",
	types.LangTelugu:    "Telugu",
	types.LangKannada:   "Kannada",
	types.LangMalayalam: "Malayalam",
}

const answerSystemPrompt = `You are a careful health information assistant for users in India.
Ground every statement in the provided context and facts. If the context
says no information is available, say that you do not have reliable
information and suggest consulting a doctor. Never invent medicine names,
dosages, or provider details. Keep answers short, practical and calm.
You are not a doctor and must not give a diagnosis.`

const detectLanguagePrompt = `Identify the language of the user text.
Answer with a JSON object only, no prose: {"language": "<code>"}
where <code> is one of: en, hi, ta, te, kn, ml.
Romanized Indian languages (Latin letters, Indian words) must map to their
language code, not en.`

func translatePrompt(src types.LanguageCode) string {
	return fmt.Sprintf(`Translate the user text from %s to English.
Reply with the translation only, no explanations.`, languageNames[src])
}

func translateBackPrompt(target types.LanguageCode) string {
	return fmt.Sprintf(`Translate the user text to %s.
Write the translation in the native %s script, never romanized Latin.
Reply with the translation only, no explanations.`,
		languageNames[target], languageNames[target])
}

// buildAnswerContext renders retrieval results, facts and profile into the
// grounding block the model answers from.
func buildAnswerContext(chunks []types.RetrievedChunk, facts []types.Fact, profile types.Profile) string {
	var b strings.Builder

	if len(chunks) == 0 {
		b.WriteString("CONTEXT: No information was found in the knowledge base for this question. Say so honestly.\n")
	} else {
		b.WriteString("CONTEXT:\n")
		for i, c := range chunks {
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, c.Source, c.Chunk)
		}
	}

	if len(facts) > 0 {
		b.WriteString("\nVERIFIED FACTS (trust these over your own knowledge):\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s: %v\n", f.Type, f.Data)
		}
	}

	if !profile.IsEmpty() {
		b.WriteString("\nUSER PROFILE:\n")
		if profile.Age > 0 {
			fmt.Fprintf(&b, "- age: %d\n", profile.Age)
		}
		if profile.Sex != "" {
			fmt.Fprintf(&b, "- sex: %s\n", profile.Sex)
		}
		if conds := profile.Conditions(); len(conds) > 0 {
			fmt.Fprintf(&b, "- conditions: %s\n", strings.Join(conds, ", "))
		}
		if profile.City != "" {
			fmt.Fprintf(&b, "- city: %s\n", profile.City)
		}
	}
	return b.String()
}

// buildAnswerMessages assembles the full chat transcript for answer
// generation: system prompt, trimmed history, grounding block, question.
func buildAnswerMessages(question string, chunks []types.RetrievedChunk, facts []types.Fact, profile types.Profile, history []types.HistoryTurn, historyBudget int) []Message {
	messages := []Message{{Role: RoleSystem, Content: answerSystemPrompt}}
	for _, turn := range TrimHistory(history, historyBudget) {
		role := RoleUser
		if turn.Role == "assistant" {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, Message{
		Role:    RoleUser,
		Content: buildAnswerContext(chunks, facts, profile) + "\nQUESTION: " + question,
	})
	return messages
}
