package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/melodycomp-api/internal/api/middleware"
	"github.com/Conceptual-Machines/melodycomp-api/internal/conversation"
	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
	"github.com/Conceptual-Machines/melodycomp-api/internal/melody"
	"github.com/Conceptual-Machines/melodycomp-api/internal/progression"
	"github.com/Conceptual-Machines/melodycomp-api/internal/prompt"
	"github.com/Conceptual-Machines/melodycomp-api/internal/render"
	"github.com/Conceptual-Machines/melodycomp-api/internal/store"
	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

// MockProvider is a test implementation of llm.Provider
type MockProvider struct {
	generateFunc func(ctx context.Context, request *llm.GenerationRequest) (*llm.GenerationResponse, error)
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, request *llm.GenerationRequest) (*llm.GenerationResponse, error) {
	return m.generateFunc(ctx, request)
}

// MockCompleter is a test implementation of llm.Completer
type MockCompleter struct {
	completeFunc func(ctx context.Context, request *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (m *MockCompleter) Complete(ctx context.Context, request *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return m.completeFunc(ctx, request)
}

const testSecret = "test-secret"

func chordOutput(raw string) *MockProvider {
	return &MockProvider{generateFunc: func(context.Context, *llm.GenerationRequest) (*llm.GenerationResponse, error) {
		return &llm.GenerationResponse{RawOutput: raw}, nil
	}}
}

func setupRouter(t *testing.T, provider llm.Provider, auth gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	table := theory.DefaultModeTable()
	vocab := theory.GenerateVocabulary()
	parser, err := progression.NewParser(progression.FormatList)
	require.NoError(t, err)
	resolver := theory.NewResolver(table)
	palette := theory.NewPaletteGenerator(table, vocab)
	renderer := render.NewRenderer(vocab)
	prompts := prompt.NewPromptBuilder()

	manager := conversation.NewManager(conversation.Dependencies{
		Provider: provider,
		Resolver: resolver,
		Palette:  palette,
		Parser:   parser,
		Renderer: renderer,
		Prompts:  prompts,
	}, conversation.Config{Model: "test-model"}, store.NewMemoryStore())

	completer := &MockCompleter{completeFunc: func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: "A2 c2 e2 a2|"}, nil
	}}

	return SetupRouter(Services{
		Table:    table,
		Resolver: resolver,
		Palette:  palette,
		Renderer: renderer,
		Manager:  manager,
		Melody:   melody.NewService(completer, nil, prompts, nil, melody.Config{MelodyModel: "melody-test"}),
		Cookies:  apimiddleware.NewCookieStore("cookie-secret-for-tests", false),
		Auth:     auth,
		Info:     map[string]interface{}{"format": progression.FormatList},
	}, "test")
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupRouter(t, chordOutput("['C']"), nil)

	w := do(t, router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"memory"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, router, http.MethodGet, "/api/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	metrics := decode[handlers.MetricsResponse](t, w)
	assert.Equal(t, "test", metrics.Version)
	assert.Equal(t, progression.FormatList, metrics.API["format"])
	assert.Equal(t, 0, metrics.Composer.ActiveSessions)
	assert.Positive(t, metrics.Composer.Goroutines)
}

func TestTheoryRoutes(t *testing.T) {
	router := setupRouter(t, chordOutput("['C']"), nil)

	w := do(t, router, http.MethodGet, "/api/v1/theory/modes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"minor"`)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
		wantKey  string
		contains string
	}{
		{name: "text", body: map[string]string{"text": "something in A minor"}, wantCode: http.StatusOK, wantKey: "A", contains: "Am"},
		{name: "root and mode", body: map[string]string{"root": "G", "mode": "major"}, wantCode: http.StatusOK, wantKey: "G", contains: "D7"},
		{name: "no key", body: map[string]string{"text": "something moody"}, wantCode: http.StatusOK},
		{name: "empty", body: map[string]string{}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/theory/palette", tt.body, nil)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[handlers.PaletteResponse](t, w)
			if tt.wantKey == "" {
				assert.Nil(t, resp.Key)
				assert.Empty(t, resp.Palette)
				return
			}
			require.NotNil(t, resp.Key)
			assert.Equal(t, tt.wantKey, resp.Key.RootName)
			assert.Contains(t, resp.Palette, tt.contains)
		})
	}
}

func TestRenderRoute(t *testing.T) {
	router := setupRouter(t, chordOutput("['C']"), nil)

	w := do(t, router, http.MethodPost, "/api/v1/render", map[string]any{"chords": []string{"C", "G"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handlers.NotesResponse](t, w)
	require.Len(t, resp.Notes, 6)
	assert.Equal(t, 2.0, resp.Notes[3].StartTime)
	assert.Empty(t, resp.Diagnostics)

	w = do(t, router, http.MethodPost, "/api/v1/render", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMelodyDecodeRoute(t *testing.T) {
	router := setupRouter(t, chordOutput("['C']"), nil)

	w := do(t, router, http.MethodPost, "/api/v1/melody/decode", map[string]any{"events": []map[string]any{
		{"pitch": "C4", "start_time": 0, "duration": 1},
		{"pitch": "rest", "start_time": 1, "duration": 1},
		{"pitch": "G4", "start_time": 2, "duration": 1},
	}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[handlers.NotesResponse](t, w)
	require.Len(t, resp.Notes, 2)
	assert.Equal(t, 60, resp.Notes[0].Pitch)
	assert.Equal(t, 67, resp.Notes[1].Pitch)

	w = do(t, router, http.MethodPost, "/api/v1/melody/decode", map[string]any{"abc": "K:C\nC2 G2|"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[handlers.NotesResponse](t, w).Notes, 2)

	w = do(t, router, http.MethodPost, "/api/v1/melody/decode", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	router := setupRouter(t, chordOutput("Try this: ['Am', 'F', 'C', 'G']"), nil)

	w := do(t, router, http.MethodPost, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[handlers.SessionResponse](t, w)
	id := created.Session.ID
	require.NotEmpty(t, id)

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/turns", map[string]string{"message": "a sad song in A minor"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var turn struct {
		SessionID string   `json:"session_id"`
		Chords    []string `json:"chords"`
		Palette   []string `json:"palette"`
		Key       struct {
			Root string `json:"root"`
			Mode string `json:"mode"`
		} `json:"key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.Equal(t, id, turn.SessionID)
	assert.Equal(t, []string{"Am", "F", "C", "G"}, turn.Chords)
	assert.Equal(t, "minor", turn.Key.Mode)
	assert.Contains(t, turn.Palette, "Am")

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/melody", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"key":"A"`)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[handlers.SessionResponse](t, w)
	assert.Len(t, got.History, 2)
	assert.Equal(t, []string{"Am", "F", "C", "G"}, got.Session.LastChords)
	assert.Len(t, got.Session.LastMelody, 4)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id+"/midi?part=combined", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "combined.mid")
	file, err := smf.ReadFrom(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, file.Tracks, 3)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id+"/midi?part=drums", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTurnWithoutProgression(t *testing.T) {
	router := setupRouter(t, chordOutput("I would rather not."), nil)

	w := do(t, router, http.MethodPost, "/api/v1/sessions", nil, nil)
	id := decode[handlers.SessionResponse](t, w).Session.ID

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/turns", map[string]string{"message": "anything"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, conversation.FailureMessage, decode[map[string]string](t, w)["error"])

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil, nil)
	assert.Len(t, decode[handlers.SessionResponse](t, w).History, 2)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id+"/midi", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/melody", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownSession(t *testing.T) {
	router := setupRouter(t, chordOutput("['C']"), nil)

	w := do(t, router, http.MethodPost, "/api/v1/sessions/missing/turns", map[string]string{"message": "hi"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatBindsSessionCookie(t *testing.T) {
	router := setupRouter(t, chordOutput("['Dm', 'G', 'C']"), nil)

	w := do(t, router, http.MethodPost, "/api/v1/chat", map[string]string{"message": "a jazzy turnaround"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[map[string]any](t, w)["session_id"].(string)

	cookie := w.Header().Get("Set-Cookie")
	require.True(t, strings.HasPrefix(cookie, apimiddleware.SessionCookieName+"="))
	cookieValue := strings.SplitN(cookie, ";", 2)[0]

	w = do(t, router, http.MethodPost, "/api/v1/chat", map[string]string{"message": "again"}, map[string]string{"Cookie": cookieValue})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decode[map[string]any](t, w)["session_id"])

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+first, nil, nil)
	assert.Len(t, decode[handlers.SessionResponse](t, w).History, 4)
}

func TestJWTAuthScopesSessions(t *testing.T) {
	router := setupRouter(t, chordOutput("['C']"), apimiddleware.JWTAuth(testSecret))

	w := do(t, router, http.MethodPost, "/api/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	alice, err := apimiddleware.IssueToken(testSecret, "alice", "", time.Hour)
	require.NoError(t, err)
	bob, err := apimiddleware.IssueToken(testSecret, "bob", "", time.Hour)
	require.NoError(t, err)

	w = do(t, router, http.MethodPost, "/api/v1/sessions", nil, map[string]string{"Authorization": "Bearer " + alice})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[handlers.SessionResponse](t, w).Session.ID

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil, map[string]string{"Authorization": "Bearer " + alice})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil, map[string]string{"Authorization": "Bearer " + bob})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
