package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legallens.org/assistant/internal/api/recovery"
	"legallens.org/assistant/internal/cache"
	"legallens.org/assistant/internal/core"
	"legallens.org/assistant/internal/fir"
	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
	"legallens.org/assistant/internal/vectorindex"
)

type scriptedGenerator struct {
	answer string
	tokens []string
}

func (g *scriptedGenerator) Generate(context.Context, string) (string, error) {
	return g.answer, nil
}

func (g *scriptedGenerator) GenerateStream(_ context.Context, _ string, onToken func(string) error) error {
	for _, t := range g.tokens {
		if err := onToken(t); err != nil {
			return err
		}
	}
	return nil
}

type stubRetriever struct {
	chunks []vectorindex.RetrievedChunk
	err    error
}

func (s *stubRetriever) Retrieve(context.Context, string) ([]vectorindex.RetrievedChunk, error) {
	return s.chunks, s.err
}

type testServer struct {
	handler   http.Handler
	retriever *stubRetriever
	history   *store.HistoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	nop := zerolog.Nop()

	gen := &scriptedGenerator{
		answer: "You can complain to the Internal Committee.",
		tokens: []string{"You ", "can ", "complain."},
	}
	rt := &stubRetriever{chunks: []vectorindex.RetrievedChunk{
		{Text: "The Internal Committee shall inquire into complaints.", Score: 0.9, Category: "POSH Act"},
	}}
	tr, err := translate.NewTranslator(translate.Disabled{}, 100, nop)
	require.NoError(t, err)
	h := store.NewHistoryStore(100)

	chat := core.NewChatService(tr, rt, core.NewOrchestrator(gen, nop), cache.NewResponseCache(50, 30*time.Minute), h, nop)
	renderer := fir.NewRenderer(t.TempDir(), t.TempDir(), nop)
	firSvc := fir.NewService(h, fir.NewExtractor(gen, tr, nop), renderer, nop)

	return &testServer{
		handler:   NewRouter(NewAPIHandler(chat, firSvc, nop), []string{"https://legallens.example"}, nop),
		retriever: rt,
		history:   h,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/send", `{"message":"How do I complain?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "You can complain to the Internal Committee.", body["response"])
	assert.Equal(t, "en", body["detectedLanguage"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, "unchanged", body["translation"])
	assert.Equal(t, []any{map[string]any{"score": 0.9, "category": "POSH Act"}}, body["sources"])

	again := decode(t, s.do(t, http.MethodPost, "/api/chat/send", `{"message":"how do i complain?"}`))
	assert.Equal(t, true, again["cached"])
	assert.Empty(t, again["sources"])
}

func TestSendMessage_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/send", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message cannot be empty", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/chat/send", `{"message":"hi","language":"fr"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported language: fr", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/chat/send", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_RetrievalFailure(t *testing.T) {
	s := newTestServer(t)
	s.retriever.err = vectorindex.ErrRetrieval

	rec := s.do(t, http.MethodPost, "/api/chat/send", `{"message":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, msgProcessingFailed, body["error"])
	assert.Equal(t, "retrieval_failed", body["details"])
	assert.ElementsMatch(t, []string{"error", "code", "details"}, keys(body))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestStreamMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/stream", `{"message":"How do I complain?","language":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	want := `data: {"token":"You "}` + "\n\n" +
		`data: {"token":"can "}` + "\n\n" +
		`data: {"token":"complain."}` + "\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestStreamMessage_NoContextIsSingleFrame(t *testing.T) {
	s := newTestServer(t)
	s.retriever.chunks = nil

	rec := s.do(t, http.MethodPost, "/api/chat/stream", `{"message":"What is POSH Act?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "couldn't find specific information")
	assert.Equal(t, "data: [DONE]", frames[1])
}

func TestStreamMessage_ErrorsBeforeHeadersAreJSON(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/stream", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	s.retriever.err = vectorindex.ErrRetrieval
	rec = s.do(t, http.MethodPost, "/api/chat/stream", `{"message":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryLifecycle(t *testing.T) {
	s := newTestServer(t)

	msgs := decode(t, s.do(t, http.MethodGet, "/api/chat/history?userId=u1", ""))["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, core.WelcomeMessage, msgs[0].(map[string]any)["text"])

	s.do(t, http.MethodPost, "/api/chat/send", `{"message":"hello","userId":"u1"}`)
	msgs = decode(t, s.do(t, http.MethodGet, "/api/chat/history?userId=u1", ""))["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])

	rec := s.do(t, http.MethodPost, "/api/chat/clear-history", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chat history cleared successfully", decode(t, rec)["message"])
	assert.Zero(t, s.history.Len("u1"))
}

func TestCacheStatsAndClear(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/chat/send", `{"message":"hello"}`)

	body := decode(t, s.do(t, http.MethodGet, "/api/chat/cache-stats", ""))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "0%", body["hitRate"])
	assert.Equal(t, "Cache is 0% efficient", body["message"])
	assert.Equal(t, map[string]any{"size": float64(1), "maxSize": float64(50)}, body["responseCache"])
	assert.Contains(t, body["cache"], "misses")

	rec := s.do(t, http.MethodPost, "/api/chat/clear-cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, s.do(t, http.MethodGet, "/api/chat/cache-stats", ""))
	assert.Equal(t, float64(0), body["responseCache"].(map[string]any)["size"])
}

func TestGenerateFIR(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/generate-fir", `{"userId":"u2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInsufficient, decode(t, rec)["error"])

	s.do(t, http.MethodPost, "/api/chat/send", `{"message":"My supervisor harassed me on Monday.","userId":"u2"}`)

	preview := decode(t, s.do(t, http.MethodPost, "/api/chat/generate-fir", `{"userId":"u2","previewOnly":true}`))
	assert.Equal(t, "FIR details extracted successfully", preview["message"])
	assert.NotContains(t, preview, "filename")
	details := preview["details"].(map[string]any)
	assert.Equal(t, "My supervisor harassed me on Monday.", details["incident_description"])
	assert.Equal(t, fir.Placeholder, details["accused_name"])

	full := decode(t, s.do(t, http.MethodPost, "/api/chat/generate-fir", `{"userId":"u2","language":"en"}`))
	filename := full["filename"].(string)
	assert.Regexp(t, `^FIR_u2_\d+\.pdf$`, filename)
	assert.Equal(t, "/api/chat/download-fir/"+filename, full["downloadUrl"])
	assert.Equal(t, "FIR draft generated successfully in English", full["message"])

	dl := s.do(t, http.MethodGet, full["downloadUrl"].(string), "")
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "application/pdf", dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), filename)
	assert.True(t, strings.HasPrefix(dl.Body.String(), "%PDF-"))
}

func TestGenerateFIRPDF(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/chat/generate-fir-pdf", `{"userId":"u3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FIR details are required", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/chat/generate-fir-pdf", `{"userId":"u3","language":"xx","firDetails":{"accused_name":"R. Kumar"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "FIR PDF generated successfully", body["message"])
	assert.Regexp(t, `^FIR_u3_\d+\.pdf$`, body["filename"])
}

func TestDownloadFIR_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/chat/download-fir/FIR_x_1.pdf", "/api/chat/download-fir/secrets.txt"} {
		rec := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "FIR file not found", decode(t, rec)["error"])
	}
}

func TestEmailFIR(t *testing.T) {
	rec := newTestServer(t).do(t, http.MethodPost, "/api/chat/email-fir", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]any{
		"error":   "Email service is not configured",
		"message": "Please use the Download PDF option instead",
	}, decode(t, rec))
}

func TestServiceEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, map[string]any{"status": "running", "message": "LegalLens API is running"},
		decode(t, s.do(t, http.MethodGet, "/api/status", "")))
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, s.do(t, http.MethodGet, "/api/health/", "")))

	s.do(t, http.MethodPost, "/api/chat/send", `{"message":"hello"}`)
	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "legallens_chat_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/send", nil)
	req.Header.Set("Origin", "https://legallens.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://legallens.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/chat/send", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recovery.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error","code":500}`, rec.Body.String())
}
