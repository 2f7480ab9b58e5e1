package llm

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/types"
)

// GatewayConfig tunes the specialized helpers on top of the failover chain.
type GatewayConfig struct {
	AnswerMaxTokens  int     `yaml:"answer_max_tokens" json:"answer_max_tokens"`
	AnswerTemp       float32 `yaml:"answer_temperature" json:"answer_temperature"`
	HistoryBudget    int     `yaml:"history_token_budget" json:"history_token_budget"`
	DetectMaxTokens  int     `yaml:"detect_max_tokens" json:"detect_max_tokens"`
	TranslateRetries int     `yaml:"translate_retries" json:"translate_retries"`
}

// DefaultGatewayConfig returns the default helper configuration.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		AnswerMaxTokens:  700,
		AnswerTemp:       0.3,
		HistoryBudget:    2000,
		DetectMaxTokens:  20,
		TranslateRetries: 1,
	}
}

// Gateway owns the prompt templates and exposes the typed helpers the
// pipeline calls. All helpers route through the failover chain.
type Gateway struct {
	chain  *Chain
	config GatewayConfig
	logger *zap.Logger
}

// NewGateway builds a gateway over a failover chain.
func NewGateway(chain *Chain, config GatewayConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		chain:  chain,
		config: config,
		logger: logger.With(zap.String("component", "llm_gateway")),
	}
}

// romanizedClues maps each language to Latin-script tokens common in its
// romanized form. Two or more hits classify the text without a model call.
var romanizedClues = map[types.LanguageCode][]string{
	types.LangHindi: {
		"mujhe", "mera", "meri", "hai", "hain", "kya", "karu", "karna", "nahi",
		"bukhar", "dard", "pet", "sir", "accha", "theek", "bahut", "kyun", "kaise",
	},
	types.LangTamil: {
		"naa", "naan", "enakku", "irukku", "iruku", "vanthu", "romba", "toongitan",
		"kaichal", "vali", "epdi", "enna", "venum", "illa", "seri",
	},
	types.LangTelugu: {
		"naaku", "nenu", "undi", "unnayi", "ela", "chala", "jwaram", "noppi",
		"emi", "cheyali", "ledu", "bagundi",
	},
	types.LangKannada: {
		"nanage", "nanu", "ide", "yake", "tumba", "jvara", "nove", "hege",
		"enu", "beku", "illa", "madbeku",
	},
	types.LangMalayalam: {
		"enikku", "njan", "undu", "aanu", "pani", "vedana", "enthu", "cheyyanam",
		"venam", "illa", "ente", "entha",
	},
}

// detectRomanized classifies Latin-script text by clue-token counting.
// At least two hits are required so lone loanwords do not flip the language.
func detectRomanized(text string) (types.LanguageCode, bool) {
	tokens := strings.Fields(strings.ToLower(text))
	best := types.LangEnglish
	bestHits := 0
	for lang, clues := range romanizedClues {
		hits := 0
		for _, tok := range tokens {
			trimmed := strings.Trim(tok, ".,!?;:")
			for _, clue := range clues {
				if trimmed == clue {
					hits++
					break
				}
			}
		}
		if hits > bestHits {
			best, bestHits = lang, hits
		}
	}
	if bestHits >= 2 {
		return best, true
	}
	return types.LangEnglish, false
}

// DetectLanguage identifies the language of text. Native script wins
// immediately, then the romanized heuristic, then a JSON-only model call.
// Any failure defaults to English.
func (g *Gateway) DetectLanguage(ctx context.Context, text string) types.LanguageCode {
	if lang := types.DetectScript(text); lang != types.LangEnglish {
		return lang
	}
	if lang, ok := detectRomanized(text); ok {
		return lang
	}

	resp, _, err := g.chain.Complete(ctx, &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: detectLanguagePrompt},
			{Role: RoleUser, Content: text},
		},
		MaxTokens: g.config.DetectMaxTokens,
	})
	if err != nil {
		g.logger.Warn("language detection failed, defaulting to en", zap.Error(err))
		return types.LangEnglish
	}

	var parsed struct {
		Language string `json:"language"`
	}
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.Trim(cleaned, "` \n")
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		g.logger.Warn("language detection returned non-JSON, defaulting to en",
			zap.String("response", resp))
		return types.LangEnglish
	}
	if lang := types.ParseLanguage(parsed.Language); types.IsSupported(lang) {
		return lang
	}
	return types.LangEnglish
}

// Translate renders text from src into English.
func (g *Gateway) Translate(ctx context.Context, text string, src types.LanguageCode) (string, error) {
	resp, _, err := g.chain.Complete(ctx, &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: translatePrompt(src)},
			{Role: RoleUser, Content: text},
		},
		MaxTokens: 1000,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// TranslateBack renders English text into the target language's native
// script. A romanized result is retried once with the same prompt.
func (g *Gateway) TranslateBack(ctx context.Context, text string, target types.LanguageCode) (string, error) {
	var out string
	attempts := g.config.TranslateRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		resp, _, err := g.chain.Complete(ctx, &ChatRequest{
			Messages: []Message{
				{Role: RoleSystem, Content: translateBackPrompt(target)},
				{Role: RoleUser, Content: text},
			},
			MaxTokens: 1500,
		})
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(resp)
		if types.HasNativeScript(out, target) {
			return out, nil
		}
		g.logger.Warn("translate-back returned romanized text, retrying",
			zap.String("target", string(target)))
	}
	return out, nil
}

// AnswerRequest carries everything answer generation needs.
type AnswerRequest struct {
	Question string
	Chunks   []types.RetrievedChunk
	Facts    []types.Fact
	Profile  types.Profile
	History  []types.HistoryTurn
}

// GenerateAnswer produces the grounded English answer. The bool reports
// whether the fallback provider produced it.
func (g *Gateway) GenerateAnswer(ctx context.Context, req AnswerRequest) (string, bool, error) {
	text, usedFallback, err := g.chain.Complete(ctx, &ChatRequest{
		Messages:    buildAnswerMessages(req.Question, req.Chunks, req.Facts, req.Profile, req.History, g.config.HistoryBudget),
		MaxTokens:   g.config.AnswerMaxTokens,
		Temperature: g.config.AnswerTemp,
	})
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(text), usedFallback, nil
}

// GenerateAnswerStream is GenerateAnswer with streaming deltas.
func (g *Gateway) GenerateAnswerStream(ctx context.Context, req AnswerRequest) (<-chan StreamChunk, bool, error) {
	return g.chain.Stream(ctx, &ChatRequest{
		Messages:    buildAnswerMessages(req.Question, req.Chunks, req.Facts, req.Profile, req.History, g.config.HistoryBudget),
		MaxTokens:   g.config.AnswerMaxTokens,
		Temperature: g.config.AnswerTemp,
	})
}
