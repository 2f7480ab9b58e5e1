package orchestrator

import (
	"context"

	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/llm"
	"github.com/arogyahq/arogya/types"
)

// LanguageModel is the slice of the LM gateway the orchestrator consumes.
type LanguageModel interface {
	DetectLanguage(ctx context.Context, text string) types.LanguageCode
	Translate(ctx context.Context, text string, src types.LanguageCode) (string, error)
	TranslateBack(ctx context.Context, text string, target types.LanguageCode) (string, error)
	GenerateAnswer(ctx context.Context, req llm.AnswerRequest) (string, bool, error)
	GenerateAnswerStream(ctx context.Context, req llm.AnswerRequest) (<-chan llm.StreamChunk, bool, error)
}

// Retriever is the vector-search surface.
type Retriever interface {
	Retrieve(query string, history []types.HistoryTurn, k int) []types.RetrievedChunk
}

// SessionStore is the persistence surface. A down database degrades every
// method; the orchestrator treats errors as "no history, no persistence".
type SessionStore interface {
	CreateSession(ctx context.Context, customerID, language string) (*database.ChatSession, error)
	GetOwnedSession(ctx context.Context, sessionID, customerID string, admin bool) (*database.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]database.ChatMessage, error)
	SaveChatMessages(ctx context.Context, customerID string, userMsg, assistantMsg *database.ChatMessage) error
}

// Input is one chat request after boundary validation.
type Input struct {
	CustomerID string
	IsAdmin    bool
	Text       string
	Lang       types.LanguageCode
	Profile    types.Profile
	Debug      bool
	SessionID  string
}

// LLMMeta reports which model path produced the answer.
type LLMMeta struct {
	Fallback bool `json:"fallback"`
}

// Metadata accompanies every answer.
type Metadata struct {
	Timings            map[string]float64 `json:"timings"`
	TargetLanguage     types.LanguageCode `json:"target_language"`
	DetectedLanguage   types.LanguageCode `json:"detected_language"`
	CustomerID         string             `json:"customer_id"`
	SessionID          string             `json:"session_id"`
	TranslationSkipped bool               `json:"translation_skipped"`
	LLM                LLMMeta            `json:"llm"`
	Debug              map[string]any     `json:"debug,omitempty"`
}

// ChatResponse is the unary answer.
type ChatResponse struct {
	Answer    string             `json:"answer"`
	Route     types.Route        `json:"route"`
	Facts     []types.Fact       `json:"facts"`
	Citations []types.Citation   `json:"citations"`
	Safety    types.SafetyReport `json:"safety"`
	Metadata  Metadata           `json:"metadata"`
}

// Stream event types.
const (
	EventChunk      = "chunk"
	EventTranslated = "translated"
	EventDone       = "done"
)

// StreamEvent is one server-sent event on /chat/stream. Chunk and translated
// events carry Content; the terminal done event carries the full response.
type StreamEvent struct {
	Type      string              `json:"type"`
	Content   string              `json:"content,omitempty"`
	Answer    string              `json:"answer,omitempty"`
	Route     types.Route         `json:"route,omitempty"`
	Facts     []types.Fact        `json:"facts,omitempty"`
	Citations []types.Citation    `json:"citations,omitempty"`
	Safety    *types.SafetyReport `json:"safety,omitempty"`
	Metadata  *Metadata           `json:"metadata,omitempty"`
}

// EmitFunc delivers one stream event to the client. Returning an error
// cancels the request (client disconnect).
type EmitFunc func(StreamEvent) error
