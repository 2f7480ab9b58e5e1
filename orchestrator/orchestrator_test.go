package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/internal/pool"
	"github.com/arogyahq/arogya/llm"
	"github.com/arogyahq/arogya/store"
	"github.com/arogyahq/arogya/types"
)

type fakeLM struct {
	mu             sync.Mutex
	detect         types.LanguageCode
	translateCalls int
	backCalls      int
	answer         string
	answerErr      error
	streamChunks   []string
	streamErr      error
	translated     string
}

func (f *fakeLM) DetectLanguage(ctx context.Context, text string) types.LanguageCode {
	return f.detect
}

func (f *fakeLM) Translate(ctx context.Context, text string, src types.LanguageCode) (string, error) {
	f.mu.Lock()
	f.translateCalls++
	f.mu.Unlock()
	return "translated to english: " + text, nil
}

func (f *fakeLM) TranslateBack(ctx context.Context, text string, target types.LanguageCode) (string, error) {
	f.mu.Lock()
	f.backCalls++
	f.mu.Unlock()
	if f.translated == "" {
		return "", errors.New("translation down")
	}
	return f.translated, nil
}

func (f *fakeLM) GenerateAnswer(ctx context.Context, req llm.AnswerRequest) (string, bool, error) {
	if f.answerErr != nil {
		return "", false, f.answerErr
	}
	return f.answer, false, nil
}

func (f *fakeLM) GenerateAnswerStream(ctx context.Context, req llm.AnswerRequest) (<-chan llm.StreamChunk, bool, error) {
	if f.streamErr != nil {
		return nil, false, f.streamErr
	}
	ch := make(chan llm.StreamChunk, len(f.streamChunks))
	for _, c := range f.streamChunks {
		ch <- llm.StreamChunk{Content: c}
	}
	close(ch)
	return ch, false, nil
}

type fakeRetriever struct {
	chunks []types.RetrievedChunk
	lastK  int
}

func (f *fakeRetriever) Retrieve(query string, history []types.HistoryTurn, k int) []types.RetrievedChunk {
	f.lastK = k
	return f.chunks
}

type fakeStore struct {
	mu       sync.Mutex
	down     bool
	sessions map[string]string // session id -> owner
	saved    [][2]*database.ChatMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]string{}}
}

func (f *fakeStore) CreateSession(ctx context.Context, customerID, language string) (*database.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("db down")
	}
	id := "sess-" + customerID
	f.sessions[id] = customerID
	return &database.ChatSession{ID: id, CustomerID: customerID}, nil
}

func (f *fakeStore) GetOwnedSession(ctx context.Context, sessionID, customerID string, admin bool) (*database.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("db down")
	}
	owner, ok := f.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if owner != customerID && !admin {
		return nil, store.ErrForbidden
	}
	return &database.ChatSession{ID: sessionID, CustomerID: owner}, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]database.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("db down")
	}
	var out []database.ChatMessage
	for _, pair := range f.saved {
		if pair[0].SessionID == sessionID {
			out = append(out, *pair[0], *pair[1])
		}
	}
	return out, nil
}

func (f *fakeStore) SaveChatMessages(ctx context.Context, customerID string, userMsg, assistantMsg *database.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.New("db down")
	}
	f.saved = append(f.saved, [2]*database.ChatMessage{userMsg, assistantMsg})
	return nil
}

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fixture struct {
	orch    *Orchestrator
	lm      *fakeLM
	ret     *fakeRetriever
	st      *fakeStore
	workers *pool.WorkerPool
}

func newFixture(t *testing.T, lm *fakeLM) *fixture {
	t.Helper()
	st := newFakeStore()
	ret := &fakeRetriever{chunks: []types.RetrievedChunk{
		{ID: "c1", Source: "who-fever", Topic: "fever", Chunk: "Rest and fluids help fever recovery."},
	}}
	workers := pool.NewWorkerPool(pool.Config{Workers: 1, QueueSize: 16}, zap.NewNop())
	t.Cleanup(func() { workers.Close(time.Second) })
	orch := New(DefaultConfig(), lm, ret, graph.NewMemoryGraph(), st, workers, zap.NewNop())
	return &fixture{orch: orch, lm: lm, ret: ret, st: st, workers: workers}
}

func waitSaved(t *testing.T, st *fakeStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st.savedCount() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d saved message pairs, got %d", want, st.savedCount())
}

func TestAnswer_EnglishFastPath(t *testing.T) {
	fx := newFixture(t, &fakeLM{detect: types.LangEnglish, answer: "Rest, fluids, and paracetamol if needed."})

	resp, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "I have fever and body ache", Lang: types.LangEnglish,
	})
	require.NoError(t, err)

	assert.Equal(t, types.RouteVector, resp.Route)
	assert.NotEmpty(t, resp.Citations)
	assert.Equal(t, types.LangEnglish, resp.Metadata.DetectedLanguage)
	assert.True(t, resp.Metadata.TranslationSkipped)
	assert.Equal(t, 0, fx.lm.translateCalls)
	assert.Equal(t, 0, fx.lm.backCalls)
	_, hasTranslate := resp.Metadata.Timings["translate_to_english"]
	assert.False(t, hasTranslate)
	_, hasBack := resp.Metadata.Timings["translate_back"]
	assert.False(t, hasBack)
	_, hasTotal := resp.Metadata.Timings["total"]
	assert.True(t, hasTotal)
	assert.Contains(t, resp.Answer, "not medical advice")
	assert.Equal(t, 4, fx.ret.lastK)

	waitSaved(t, fx.st, 1)
}

func TestAnswer_TranslatedPath(t *testing.T) {
	lm := &fakeLM{
		detect:     types.LangTamil,
		answer:     "Rest and drink fluids.",
		translated: "ஓய்வு எடுத்து திரவங்கள் அருந்தவும்.",
	}
	fx := newFixture(t, lm)

	resp, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "எனக்கு காய்ச்சல் வருகிறது",
	})
	require.NoError(t, err)

	assert.Equal(t, types.LangTamil, resp.Metadata.DetectedLanguage)
	assert.False(t, resp.Metadata.TranslationSkipped)
	assert.Equal(t, 1, lm.translateCalls)
	assert.Equal(t, 1, lm.backCalls)
	assert.True(t, types.HasNativeScript(resp.Answer, types.LangTamil))
	// Disclaimer localized in the Tamil block too.
	assert.Contains(t, resp.Answer, "மருத்துவ ஆலோசனை அல்ல")
}

func TestAnswer_GraphRouteWithProfile(t *testing.T) {
	fx := newFixture(t, &fakeLM{detect: types.LangEnglish, answer: "Avoid these with your conditions."})
	profile := types.NewProfile(types.ProfileInput{
		Diabetes: true, Hypertension: true, City: "Mumbai",
	})

	resp, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "which medicines should I avoid?", Profile: profile,
	})
	require.NoError(t, err)

	assert.Equal(t, types.RouteGraph, resp.Route)
	assert.Equal(t, 3, fx.ret.lastK)
	byType := map[types.FactType]bool{}
	for _, f := range resp.Facts {
		byType[f.Type] = true
	}
	assert.True(t, byType[types.FactContraindications])
	assert.True(t, byType[types.FactProviders])
}

func TestAnswer_RedFlagSuppressesDisclaimer(t *testing.T) {
	fx := newFixture(t, &fakeLM{detect: types.LangEnglish, answer: "Call an ambulance now."})

	resp, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "I have severe chest pain and difficulty breathing",
	})
	require.NoError(t, err)

	assert.True(t, resp.Safety.RedFlag)
	assert.NotContains(t, resp.Answer, "not medical advice")
}

func TestAnswer_LLMOutageFallsBack(t *testing.T) {
	fx := newFixture(t, &fakeLM{
		detect:    types.LangEnglish,
		answerErr: llm.ErrAllProvidersFailed,
	})

	resp, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "I have fever and body ache",
	})
	require.NoError(t, err, "LM outage must not fail the request")

	assert.True(t, resp.Metadata.LLM.Fallback)
	assert.Contains(t, resp.Answer, "temporarily unavailable")
	assert.Contains(t, resp.Answer, "who-fever")

	// Deterministic: a second identical request yields the same answer.
	resp2, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "I have fever and body ache",
	})
	require.NoError(t, err)
	assert.Equal(t, resp.Answer, resp2.Answer)
}

func TestAnswer_DatabaseDownStillAnswers(t *testing.T) {
	lm := &fakeLM{detect: types.LangEnglish, answer: "Rest well."}
	fx := newFixture(t, lm)
	fx.st.down = true

	resp, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "I have a mild headache",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
	assert.NotEmpty(t, resp.Metadata.SessionID)

	// Persistence dropped, not attempted against a dead database.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, fx.st.savedCount())
}

func TestAnswer_SessionOwnership(t *testing.T) {
	fx := newFixture(t, &fakeLM{detect: types.LangEnglish, answer: "ok"})
	fx.st.sessions["sess-x"] = "other-user"

	_, err := fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "hello there doctor", SessionID: "sess-x",
	})
	assert.ErrorIs(t, err, store.ErrForbidden)

	_, err = fx.orch.Answer(context.Background(), Input{
		CustomerID: "u1", Text: "hello there doctor", SessionID: "sess-missing",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func collectEvents(t *testing.T, fx *fixture, in Input) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	err := fx.orch.AnswerStream(context.Background(), in, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	return events
}

func TestAnswerStream_EnglishChunksEqualAnswer(t *testing.T) {
	fx := newFixture(t, &fakeLM{
		detect:       types.LangEnglish,
		streamChunks: []string{"Rest ", "and ", "drink fluids."},
	})

	events := collectEvents(t, fx, Input{CustomerID: "u1", Text: "I have fever and body ache"})

	done := events[len(events)-1]
	require.Equal(t, EventDone, done.Type)

	var concat strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, EventChunk, ev.Type)
		concat.WriteString(ev.Content)
	}
	assert.Equal(t, concat.String(), done.Answer)
	assert.Contains(t, done.Answer, "not medical advice")
	require.NotNil(t, done.Metadata)
	assert.True(t, done.Metadata.TranslationSkipped)
}

func TestAnswerStream_TranslatedEvent(t *testing.T) {
	lm := &fakeLM{
		detect:       types.LangTamil,
		streamChunks: []string{"I slept ", "well."},
		translated:   "நான் நன்றாக தூங்கினேன்.",
	}
	fx := newFixture(t, lm)

	events := collectEvents(t, fx, Input{CustomerID: "u1", Text: "naa toongitan"})

	var chunkCount, translatedIdx, doneIdx int
	translatedIdx, doneIdx = -1, -1
	for i, ev := range events {
		switch ev.Type {
		case EventChunk:
			chunkCount++
		case EventTranslated:
			require.Equal(t, -1, translatedIdx, "translated must be emitted exactly once")
			translatedIdx = i
		case EventDone:
			doneIdx = i
		}
	}
	require.GreaterOrEqual(t, chunkCount, 1)
	require.NotEqual(t, -1, translatedIdx)
	require.Equal(t, len(events)-1, doneIdx, "done must be last")
	assert.Greater(t, doneIdx, translatedIdx)

	done := events[doneIdx]
	translated := events[translatedIdx]
	assert.Equal(t, translated.Content+"\n\n"+"இது பொதுவான சுகாதாரத் தகவல் மட்டுமே, மருத்துவ ஆலோசனை அல்ல. நோயறிதலுக்கும் சிகிச்சைக்கும் மருத்துவரை அணுகவும்.", done.Answer)
	assert.True(t, types.HasNativeScript(done.Answer, types.LangTamil))
}

func TestAnswerStream_OutageStreamsFallback(t *testing.T) {
	fx := newFixture(t, &fakeLM{
		detect:    types.LangEnglish,
		streamErr: llm.ErrAllProvidersFailed,
	})

	events := collectEvents(t, fx, Input{CustomerID: "u1", Text: "I have fever and body ache"})
	done := events[len(events)-1]
	require.Equal(t, EventDone, done.Type)
	require.NotNil(t, done.Metadata)
	assert.True(t, done.Metadata.LLM.Fallback)
	assert.Contains(t, done.Answer, "temporarily unavailable")
}

func TestAnswerStream_ClientDisconnectSkipsPersistence(t *testing.T) {
	fx := newFixture(t, &fakeLM{
		detect:       types.LangEnglish,
		streamChunks: []string{"Rest ", "and ", "drink fluids."},
	})

	calls := 0
	err := fx.orch.AnswerStream(context.Background(), Input{CustomerID: "u1", Text: "I have fever"}, func(ev StreamEvent) error {
		calls++
		if calls >= 2 {
			return errors.New("client went away")
		}
		return nil
	})
	require.Error(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, fx.st.savedCount(), "disconnect must abandon the persistence task")
}
