package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/internal/pool"
	"github.com/arogyahq/arogya/llm"
	"github.com/arogyahq/arogya/pipeline"
	"github.com/arogyahq/arogya/safety"
	"github.com/arogyahq/arogya/store"
	"github.com/arogyahq/arogya/types"
)

// Config tunes the orchestrator.
type Config struct {
	HistoryLimit   int `yaml:"history_limit" json:"history_limit"`
	GraphRouteTopK int `yaml:"graph_route_top_k" json:"graph_route_top_k"`
	VectorTopK     int `yaml:"vector_top_k" json:"vector_top_k"`
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:   20,
		GraphRouteTopK: 3,
		VectorTopK:     4,
	}
}

// Orchestrator is the single entry point behind /chat and /chat/stream.
type Orchestrator struct {
	config    Config
	lm        LanguageModel
	retriever Retriever
	graph     graph.Service
	sessions  SessionStore
	workers   *pool.WorkerPool
	logger    *zap.Logger
}

// New wires the orchestrator.
func New(config Config, lm LanguageModel, retriever Retriever, g graph.Service, sessions SessionStore, workers *pool.WorkerPool, logger *zap.Logger) *Orchestrator {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 20
	}
	if config.GraphRouteTopK <= 0 {
		config.GraphRouteTopK = 3
	}
	if config.VectorTopK <= 0 {
		config.VectorTopK = 4
	}
	return &Orchestrator{
		config:    config,
		lm:        lm,
		retriever: retriever,
		graph:     g,
		sessions:  sessions,
		workers:   workers,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// pipelineRun is the request-local state shared by the unary and streaming
// paths up to answer generation.
type pipelineRun struct {
	input     Input
	sessionID string
	dbDown    bool
	history   []types.HistoryTurn
	detected  types.LanguageCode
	processed string
	skipped   bool
	safety    types.SafetyReport
	route     types.Route
	facts     []types.Fact
	chunks    []types.RetrievedChunk
	citations []types.Citation
	timings   *types.Timings
}

// resolveSession verifies ownership of a named session or creates a new one.
// Ownership failures propagate; infrastructure failures degrade to an
// ephemeral session with persistence disabled.
func (o *Orchestrator) resolveSession(ctx context.Context, in Input) (string, bool, error) {
	if in.SessionID != "" {
		_, err := o.sessions.GetOwnedSession(ctx, in.SessionID, in.CustomerID, in.IsAdmin)
		switch {
		case err == nil:
			return in.SessionID, false, nil
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForbidden):
			return "", false, err
		default:
			o.logger.Warn("session lookup degraded, continuing without persistence", zap.Error(err))
			return in.SessionID, true, nil
		}
	}
	session, err := o.sessions.CreateSession(ctx, in.CustomerID, string(in.Lang))
	if err != nil {
		o.logger.Warn("session create degraded, continuing without persistence", zap.Error(err))
		return uuid.NewString(), true, nil
	}
	return session.ID, false, nil
}

func (o *Orchestrator) fetchHistory(ctx context.Context, sessionID string) []types.HistoryTurn {
	messages, err := o.sessions.ListMessages(ctx, sessionID, o.config.HistoryLimit)
	if err != nil {
		o.logger.Warn("history fetch failed, answering without history", zap.Error(err))
		return nil
	}
	history := make([]types.HistoryTurn, 0, len(messages))
	for _, m := range messages {
		content := m.MessageText
		if m.Role == "assistant" && m.Answer != "" {
			content = m.Answer
		}
		history = append(history, types.HistoryTurn{Role: m.Role, Content: content})
	}
	return history
}

// historySymptoms pulls known symptoms from earlier user turns for the
// symptom-relationship comparison.
func historySymptoms(history []types.HistoryTurn) []string {
	var b strings.Builder
	for _, turn := range history {
		if turn.Role == "user" {
			b.WriteString(turn.Content)
			b.WriteByte(' ')
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return safety.ExtractSymptoms(b.String())
}

// prepare runs every stage up to (not including) answer generation.
func (o *Orchestrator) prepare(ctx context.Context, in Input) (*pipelineRun, error) {
	run := &pipelineRun{input: in, timings: types.NewTimings()}

	sessionID, dbDown, err := o.resolveSession(ctx, in)
	if err != nil {
		return nil, err
	}
	run.sessionID = sessionID
	run.dbDown = dbDown

	if !run.dbDown {
		run.timings.Observe("history_fetch", func() {
			run.history = o.fetchHistory(ctx, sessionID)
		})
	}

	run.timings.Observe("detect_language", func() {
		run.detected = o.lm.DetectLanguage(ctx, in.Text)
	})

	if run.detected == types.LangEnglish {
		run.processed = in.Text
		run.skipped = true
	} else {
		run.timings.Observe("translate_to_english", func() {
			translated, err := o.lm.Translate(ctx, in.Text, run.detected)
			if err != nil {
				o.logger.Warn("translation failed, scanning original text", zap.Error(err))
				run.processed = in.Text
				return
			}
			run.processed = translated
		})
	}

	run.timings.Observe("safety_scan", func() {
		run.safety = safety.Scan(run.processed)
	})

	run.route = pipeline.Route(run.processed)

	topK := o.config.VectorTopK
	if run.route == types.RouteGraph {
		topK = o.config.GraphRouteTopK
	}

	g, gctx := errgroup.WithContext(ctx)
	factsStart := time.Now()
	g.Go(func() error {
		defer func() { run.timings.Record("gather_facts", time.Since(factsStart)) }()
		if run.route == types.RouteGraph {
			result := pipeline.GatherFacts(gctx, o.graph, pipeline.FactsInput{
				Text:            run.processed,
				OriginalText:    in.Text,
				Profile:         in.Profile,
				Safety:          run.safety,
				HistorySymptoms: historySymptoms(run.history),
			}, o.logger)
			run.facts = result.Value
			return nil
		}
		if run.safety.MentalHealth.Crisis {
			run.facts = append(run.facts, types.Fact{Type: types.FactMentalHealthCrisis, Data: run.safety.MentalHealth})
		}
		if run.safety.Pregnancy.Concern {
			run.facts = append(run.facts, types.Fact{Type: types.FactPregnancyAlert, Data: run.safety.Pregnancy})
		}
		return nil
	})
	retrieveStart := time.Now()
	g.Go(func() error {
		defer func() { run.timings.Record("retrieve_context", time.Since(retrieveStart)) }()
		run.chunks = o.retriever.Retrieve(run.processed, run.history, topK)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run.citations = make([]types.Citation, 0, len(run.chunks))
	for _, c := range run.chunks {
		run.citations = append(run.citations, c.Citation())
	}
	return run, nil
}

// finalize localizes the English answer, applies the disclaimer, and builds
// the response.
func (o *Orchestrator) finalize(ctx context.Context, run *pipelineRun, answerEn string, llmFallback bool, totalStart time.Time) *ChatResponse {
	answer := answerEn
	if run.detected != types.LangEnglish {
		run.timings.Observe("translate_back", func() {
			translated, err := o.lm.TranslateBack(ctx, answerEn, run.detected)
			if err != nil {
				o.logger.Warn("translate-back failed, answering in English", zap.Error(err))
				return
			}
			answer = translated
		})
	}
	answer = pipeline.ApplyDisclaimer(answer, run.detected, run.safety.RedFlag)

	run.timings.Record("total", time.Since(totalStart))
	return &ChatResponse{
		Answer:    answer,
		Route:     run.route,
		Facts:     run.facts,
		Citations: run.citations,
		Safety:    run.safety,
		Metadata: Metadata{
			Timings:            run.timings.Snapshot(),
			TargetLanguage:     run.detected,
			DetectedLanguage:   run.detected,
			CustomerID:         run.input.CustomerID,
			SessionID:          run.sessionID,
			TranslationSkipped: run.skipped,
			LLM:                LLMMeta{Fallback: llmFallback},
		},
	}
}

// Answer handles one unary /chat request.
func (o *Orchestrator) Answer(ctx context.Context, in Input) (*ChatResponse, error) {
	totalStart := time.Now()
	run, err := o.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	var answerEn string
	llmFallback := false
	run.timings.Observe("generate_answer", func() {
		text, _, err := o.lm.GenerateAnswer(ctx, llm.AnswerRequest{
			Question: run.processed,
			Chunks:   run.chunks,
			Facts:    run.facts,
			Profile:  in.Profile,
			History:  run.history,
		})
		if err != nil {
			o.logger.Warn("all providers failed, using deterministic fallback", zap.Error(err))
			answerEn = pipeline.FallbackAnswer(run.chunks, run.facts)
			llmFallback = true
			return
		}
		answerEn = text
	})

	resp := o.finalize(ctx, run, answerEn, llmFallback, totalStart)
	o.persistAsync(run, resp)
	return resp, nil
}

// AnswerStream handles one /chat/stream request, emitting chunk, translated
// and done events in order. The done event always arrives last and carries
// the complete answer.
func (o *Orchestrator) AnswerStream(ctx context.Context, in Input, emit EmitFunc) error {
	totalStart := time.Now()
	run, err := o.prepare(ctx, in)
	if err != nil {
		return err
	}

	answerReq := llm.AnswerRequest{
		Question: run.processed,
		Chunks:   run.chunks,
		Facts:    run.facts,
		Profile:  in.Profile,
		History:  run.history,
	}

	var answerEn strings.Builder
	llmFallback := false
	generateStart := time.Now()

	stream, _, err := o.lm.GenerateAnswerStream(ctx, answerReq)
	if err != nil {
		o.logger.Warn("all providers failed, streaming deterministic fallback", zap.Error(err))
		llmFallback = true
		fallback := pipeline.FallbackAnswer(run.chunks, run.facts)
		if emitErr := emit(StreamEvent{Type: EventChunk, Content: fallback}); emitErr != nil {
			return emitErr
		}
		answerEn.WriteString(fallback)
	} else {
		for chunk := range stream {
			if chunk.Err != nil {
				o.logger.Warn("stream error from provider", zap.Error(chunk.Err))
				if answerEn.Len() == 0 {
					llmFallback = true
					fallback := pipeline.FallbackAnswer(run.chunks, run.facts)
					if emitErr := emit(StreamEvent{Type: EventChunk, Content: fallback}); emitErr != nil {
						return emitErr
					}
					answerEn.WriteString(fallback)
				}
				break
			}
			if chunk.Content == "" {
				continue
			}
			answerEn.WriteString(chunk.Content)
			if emitErr := emit(StreamEvent{Type: EventChunk, Content: chunk.Content}); emitErr != nil {
				return emitErr
			}
		}
	}
	run.timings.Record("generate_answer", time.Since(generateStart))

	answer := answerEn.String()
	if run.detected != types.LangEnglish {
		run.timings.Observe("translate_back", func() {
			translated, err := o.lm.TranslateBack(ctx, answer, run.detected)
			if err != nil {
				o.logger.Warn("translate-back failed, answering in English", zap.Error(err))
				return
			}
			answer = translated
		})
		if emitErr := emit(StreamEvent{Type: EventTranslated, Content: answer}); emitErr != nil {
			return emitErr
		}
	} else if !run.safety.RedFlag && answer != "" {
		// Disclaimer goes out as a chunk so the chunk concatenation equals
		// the final answer.
		suffix := "\n\n" + pipeline.Disclaimer(run.detected)
		if emitErr := emit(StreamEvent{Type: EventChunk, Content: suffix}); emitErr != nil {
			return emitErr
		}
	}
	answer = pipeline.ApplyDisclaimer(answer, run.detected, run.safety.RedFlag)

	run.timings.Record("total", time.Since(totalStart))
	resp := &ChatResponse{
		Answer:    answer,
		Route:     run.route,
		Facts:     run.facts,
		Citations: run.citations,
		Safety:    run.safety,
		Metadata: Metadata{
			Timings:            run.timings.Snapshot(),
			TargetLanguage:     run.detected,
			DetectedLanguage:   run.detected,
			CustomerID:         in.CustomerID,
			SessionID:          run.sessionID,
			TranslationSkipped: run.skipped,
			LLM:                LLMMeta{Fallback: llmFallback},
		},
	}
	if emitErr := emit(StreamEvent{
		Type:      EventDone,
		Answer:    resp.Answer,
		Route:     resp.Route,
		Facts:     resp.Facts,
		Citations: resp.Citations,
		Safety:    &resp.Safety,
		Metadata:  &resp.Metadata,
	}); emitErr != nil {
		return emitErr
	}

	o.persistAsync(run, resp)
	return nil
}

func marshalJSON(v any) string {
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// persistAsync enqueues the message pair write. The task runs on the worker
// pool with its own deadline; failures are logged, never surfaced.
func (o *Orchestrator) persistAsync(run *pipelineRun, resp *ChatResponse) {
	if run.dbDown {
		return
	}
	in := run.input
	userMsg := &database.ChatMessage{
		SessionID:   run.sessionID,
		Role:        "user",
		MessageText: in.Text,
		Language:    string(run.detected),
	}
	assistantMsg := &database.ChatMessage{
		SessionID:   run.sessionID,
		Role:        "assistant",
		MessageText: in.Text,
		Language:    string(run.detected),
		Route:       string(resp.Route),
		Answer:      resp.Answer,
		SafetyData:  marshalJSON(resp.Safety),
		Facts:       marshalJSON(resp.Facts),
		Citations:   marshalJSON(resp.Citations),
		Metadata:    marshalJSON(resp.Metadata),
	}
	err := o.workers.Submit(func(taskCtx context.Context) {
		if err := o.sessions.SaveChatMessages(taskCtx, in.CustomerID, userMsg, assistantMsg); err != nil {
			o.logger.Error("background persistence failed",
				zap.String("session_id", run.sessionID), zap.Error(err))
		}
	})
	if err != nil {
		o.logger.Warn("background persistence not scheduled", zap.Error(err))
	}
}

var _ SessionStore = (*store.Store)(nil)

// FallbackGraph returns the curated in-memory graph, used when no remote
// graph is configured.
func FallbackGraph() graph.Service { return graph.NewMemoryGraph() }
