package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arogyahq/arogya/api"
	"github.com/arogyahq/arogya/auth"
	"github.com/arogyahq/arogya/internal/cache"
	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/internal/pool"
	"github.com/arogyahq/arogya/internal/vector"
	"github.com/arogyahq/arogya/llm"
	"github.com/arogyahq/arogya/orchestrator"
	"github.com/arogyahq/arogya/store"
	"github.com/arogyahq/arogya/types"
)

// fakeLM answers deterministically and counts generation calls so tests can
// assert that rejected requests never reach the pipeline.
type fakeLM struct {
	answerCalls atomic.Int64
}

func (f *fakeLM) DetectLanguage(ctx context.Context, text string) types.LanguageCode {
	return types.DetectScript(text)
}

func (f *fakeLM) Translate(ctx context.Context, text string, src types.LanguageCode) (string, error) {
	return "english form of the question", nil
}

func (f *fakeLM) TranslateBack(ctx context.Context, text string, target types.LanguageCode) (string, error) {
	if target == types.LangHindi {
		return "बुखार में आराम करें", nil
	}
	return text, nil
}

func (f *fakeLM) GenerateAnswer(ctx context.Context, req llm.AnswerRequest) (string, bool, error) {
	f.answerCalls.Add(1)
	return "Rest, fluids and paracetamol usually help.", false, nil
}

func (f *fakeLM) GenerateAnswerStream(ctx context.Context, req llm.AnswerRequest) (<-chan llm.StreamChunk, bool, error) {
	f.answerCalls.Add(1)
	ch := make(chan llm.StreamChunk, 3)
	ch <- llm.StreamChunk{Content: "Rest, fluids "}
	ch <- llm.StreamChunk{Content: "and paracetamol "}
	ch <- llm.StreamChunk{Content: "usually help."}
	close(ch)
	return ch, false, nil
}

type testEnv struct {
	server *httptest.Server
	store  *store.Store
	auth   *auth.Service
	lm     *fakeLM
	pool   *pool.WorkerPool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&database.Customer{}, &database.CustomerProfile{}, &database.RefreshToken{},
		&database.ChatSession{}, &database.ChatMessage{}, &database.MessageFeedback{},
		&database.IPAddress{},
	))

	dcfg := database.DefaultConfig()
	dcfg.MinConns = 1
	dcfg.MaxConns = 2
	dcfg.HealthCheckInterval = 0
	gw, err := database.NewGatewayFromGorm(db, dcfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	ccfg := cache.DefaultConfig()
	ccfg.Addr = mr.Addr()
	cm := cache.NewManager(ccfg, logger)
	t.Cleanup(func() { cm.Close() })

	st := store.New(gw, cm, time.Hour, logger)

	jcfg := auth.DefaultJWTConfig()
	jcfg.Secret = "handler-test-secret"
	tokens := auth.NewTokenManager(jcfg, logger)
	authSvc := auth.NewService(st, tokens, jcfg, logger)

	index := vector.NewIndexFromChunks([]types.RetrievedChunk{
		{ID: "c1", Chunk: "Fever with body ache is common in viral infections. Rest and hydration help.", Source: "who_factsheet", Topic: "fever"},
		{ID: "c2", Chunk: "Dengue fever presents with high fever, rash and joint pain.", Source: "icmr_guideline", Topic: "dengue"},
	}, logger)
	retriever := vector.NewRetriever(index, logger)

	workers := pool.NewWorkerPool(pool.Config{Workers: 2, QueueSize: 16, TaskTimeout: 5 * time.Second}, logger)
	t.Cleanup(func() { workers.Close(time.Second) })

	lm := &fakeLM{}
	orc := orchestrator.New(orchestrator.DefaultConfig(), lm, retriever,
		graph.NewMemoryGraph(), st, workers, logger)

	mux := NewRouter(RouterDeps{
		Orchestrator: orc,
		Store:        st,
		Auth:         authSvc,
		CacheTTL:     time.Hour,
		Version:      "test",
		Logger:       logger,
	})
	handler := api.Chain(mux,
		api.Recovery(logger),
		api.JWTAuth(authSvc, []string{
			"/auth/register", "/auth/login", "/auth/refresh", "/auth/logout",
			"/auth/check-ip", "/health", "/ready", "/version",
		}, logger),
	)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: st, auth: authSvc, lm: lm, pool: workers}
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	resp := e.post(t, "/auth/register", "", map[string]string{
		"email": email, "password": "hunter42x",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.post(t, "/auth/login", "", map[string]string{
		"email": email, "password": "hunter42x",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	resp.Body.Close()
	return pair.AccessToken
}

func (e *testEnv) post(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(string(raw)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeChat(t *testing.T, resp *http.Response) orchestrator.ChatResponse {
	t.Helper()
	defer resp.Body.Close()
	var out orchestrator.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestChat_EnglishUnary(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "unary@example.com")

	resp := env.post(t, "/chat", token, api.ChatRequest{
		Text: "I have fever and body ache", Lang: "en",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	out := decodeChat(t, resp)

	assert.Equal(t, types.RouteVector, out.Route)
	assert.NotEmpty(t, out.Citations)
	assert.Equal(t, types.LangEnglish, out.Metadata.DetectedLanguage)
	assert.True(t, out.Metadata.TranslationSkipped)
	assert.NotContains(t, out.Metadata.Timings, "translate_to_english")
	assert.NotContains(t, out.Metadata.Timings, "translate_back")
	assert.NotEmpty(t, out.Metadata.SessionID)
}

func TestChat_ValidationRejectedBeforePipeline(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "inject@example.com")

	malicious := []string{
		"fever'; DROP TABLE customers; --",
		"x' OR '1'='1",
		"1 UNION SELECT password_hash FROM customers",
		"ok\"; DELETE FROM chat_sessions",
		"headache' -- comment",
	}
	for _, text := range malicious {
		resp := env.post(t, "/chat", token, api.ChatRequest{Text: text})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "text: %s", text)
		resp.Body.Close()
	}
	assert.Zero(t, env.lm.answerCalls.Load(), "rejected input must not reach the pipeline")

	resp := env.post(t, "/chat", token, api.ChatRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/chat", token, api.ChatRequest{Text: "ok", SessionID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestChat_AuthBinding(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/chat", "", api.ChatRequest{Text: "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	token := env.register(t, "bind@example.com")
	resp = env.post(t, "/chat", token, api.ChatRequest{
		Text: "hello", CustomerID: "22222222-2222-4222-8222-222222222222",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestChat_GraphFallbackProviders(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "providers@example.com")

	resp := env.post(t, "/chat", token, api.ChatRequest{
		Text:    "Where can I find a doctor near me",
		Profile: types.ProfileInput{City: "Mumbai", Diabetes: true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeChat(t, resp)

	assert.Equal(t, types.RouteGraph, out.Route)
	var providers []types.Fact
	for _, f := range out.Facts {
		if f.Type == types.FactProviders {
			providers = append(providers, f)
		}
	}
	require.Len(t, providers, 1)
	raw, err := json.Marshal(providers[0].Data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Hospital")
}

func readSSE(t *testing.T, resp *http.Response) []orchestrator.StreamEvent {
	t.Helper()
	defer resp.Body.Close()
	var events []orchestrator.StreamEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev orchestrator.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestChatStream_Protocol(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "stream@example.com")

	resp := env.post(t, "/chat/stream", token, api.ChatRequest{Text: "I have a mild fever"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	events := readSSE(t, resp)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, orchestrator.EventDone, last.Type)

	var concat strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, orchestrator.EventChunk, ev.Type)
		concat.WriteString(ev.Content)
	}
	assert.Equal(t, last.Answer, concat.String())
}

func TestSession_ReadEndpointsAndCacheHeaders(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "reader@example.com")

	chat := decodeChat(t, env.post(t, "/chat", token, api.ChatRequest{Text: "I have a headache"}))
	sid := chat.Metadata.SessionID
	require.NotEmpty(t, sid)

	// Persistence runs on the worker pool; wait for the messages to land.
	require.Eventually(t, func() bool {
		msgs, err := env.store.ListMessages(context.Background(), sid, 0)
		return err == nil && len(msgs) == 2
	}, 3*time.Second, 20*time.Millisecond)

	resp := env.get(t, "/session/"+sid, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "public, max-age=3600")
	assert.Contains(t, resp.Header.Get("Cache-Control"), "stale-while-revalidate=300")
	assert.Equal(t, "Accept-Encoding", resp.Header.Get("Vary"))
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	resp.Body.Close()

	resp = env.get(t, "/session/"+sid, token)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/session/"+sid, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("If-None-Match", etag)
	cond, err := env.server.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, cond.StatusCode)
	cond.Body.Close()

	resp = env.get(t, "/session/"+sid+"/messages", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Messages []database.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.False(t, body.Messages[1].CreatedAt.Before(body.Messages[0].CreatedAt))

	resp = env.get(t, "/session/not-a-uuid", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSession_OwnershipAndDelete(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")
	intruder := env.register(t, "intruder@example.com")

	chat := decodeChat(t, env.post(t, "/chat", owner, api.ChatRequest{Text: "I have a cough"}))
	sid := chat.Metadata.SessionID

	resp := env.get(t, "/session/"+sid, intruder)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/session/33333333-3333-4333-8333-333333333333", owner)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/session/"+sid, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+owner)
	del, err := env.server.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, del.StatusCode)
	del.Body.Close()

	resp = env.get(t, "/session/"+sid, owner)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCustomerSessions_SelfOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "lister@example.com")

	claims, err := env.auth.Verify(token)
	require.NoError(t, err)
	uid := claims.Subject

	decodeChat(t, env.post(t, "/chat", token, api.ChatRequest{Text: "I feel dizzy"}))

	resp := env.get(t, "/customer/"+uid+"/sessions", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Sessions []database.ChatSession `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Len(t, body.Sessions, 1)

	other := env.register(t, "other@example.com")
	resp = env.get(t, "/customer/"+uid+"/sessions", other)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckIP(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/auth/check-ip", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	var first api.IPCheckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	resp.Body.Close()
	assert.True(t, first.Known)
	assert.Equal(t, 1, first.VisitCount)

	resp = env.get(t, "/auth/check-ip", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	resp.Body.Close()
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "hunter42x",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "hunter42x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/auth/register", "", map[string]string{
		"email": "weak@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "hunter42x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/auth/login", "", map[string]string{
		"email": "dup@example.com", "password": "wrongpass1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/auth/login", "", map[string]string{
		"email": "dup@example.com", "password": "hunter42x",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	resp.Body.Close()

	resp = env.post(t, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rotated auth.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
	resp.Body.Close()
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	resp = env.post(t, "/auth/logout", "", map[string]string{"refresh_token": rotated.RefreshToken})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/auth/refresh", "", map[string]string{"refresh_token": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	resp = env.get(t, "/version", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestFeedback(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "feedback@example.com")

	chat := decodeChat(t, env.post(t, "/chat", token, api.ChatRequest{Text: "I have a sore throat"}))
	sid := chat.Metadata.SessionID
	require.Eventually(t, func() bool {
		msgs, err := env.store.ListMessages(context.Background(), sid, 0)
		return err == nil && len(msgs) == 2
	}, 3*time.Second, 20*time.Millisecond)

	msgs, err := env.store.ListMessages(context.Background(), sid, 0)
	require.NoError(t, err)
	mid := msgs[1].ID

	resp := env.post(t, fmt.Sprintf("/message/%s/feedback", mid), token, api.FeedbackRequest{Rating: 5})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, fmt.Sprintf("/message/%s/feedback", mid), token, api.FeedbackRequest{Rating: 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
