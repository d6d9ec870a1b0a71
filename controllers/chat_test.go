package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/onepond/fairygate/models"
	"github.com/onepond/fairygate/relay"
	"github.com/onepond/fairygate/stores"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubUpstream fakes the generative-language API and records every request
// body it receives.
type stubUpstream struct {
	server *httptest.Server
	calls  atomic.Int32
	last   models.GenerateRequest
}

func newStubUpstream(t *testing.T, status int, responseBody string) *stubUpstream {
	t.Helper()
	stub := &stubUpstream{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&stub.last); err != nil {
			t.Errorf("upstream received bad body: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(responseBody))
	}))
	return stub
}

const okUpstreamBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi"}]}}],"usageMetadata":{"totalTokenCount":12}}`

func newTestRouter(apiKey, baseURL string, store stores.TranscriptStore) *gin.Engine {
	handler := &Handler{
		Relay:       &relay.Client{APIKey: apiKey, Model: "gemini-2.0-flash", BaseURL: baseURL},
		Store:       store,
		Port:        "8080",
		Environment: "test",
	}
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func postChat(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChat_HistoryMessageScenario(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()
	router := newTestRouter("key", upstream.server.URL, nil)

	rec := postChat(router, `{"history":[],"message":"Hello","persona":"tech"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Text  string                `json:"text"`
		Reply string                `json:"reply"`
		Usage *models.UsageMetadata `json:"usage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Text != "Hi" || resp.Reply != "Hi" {
		t.Errorf("text/reply = %q/%q, want Hi", resp.Text, resp.Reply)
	}
	if resp.Usage == nil || resp.Usage.TotalTokenCount != 12 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	// the forwarded request carries one user turn and the tech budget
	if len(upstream.last.Contents) != 1 || upstream.last.Contents[0].Parts[0].Text != "Hello" {
		t.Errorf("forwarded contents = %+v", upstream.last.Contents)
	}
	if upstream.last.GenerationConfig == nil || upstream.last.GenerationConfig.MaxOutputTokens != 3072 {
		t.Errorf("generationConfig = %+v, want tech budget 3072", upstream.last.GenerationConfig)
	}
	if upstream.last.SystemInstruction == nil {
		t.Error("persona should produce a system instruction")
	}
}

func TestChat_ContentsPassThrough(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()
	router := newTestRouter("key", upstream.server.URL, nil)

	rec := postChat(router, `{"contents":[{"role":"user","parts":[{"text":"direct"}]}],"systemInstruction":"be brief","maxOutputTokens":256}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if upstream.last.Contents[0].Parts[0].Text != "direct" {
		t.Errorf("forwarded contents = %+v", upstream.last.Contents)
	}
	if upstream.last.SystemInstruction == nil || upstream.last.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("systemInstruction = %+v, want wrapped string form", upstream.last.SystemInstruction)
	}
	if upstream.last.GenerationConfig.MaxOutputTokens != 256 {
		t.Errorf("maxOutputTokens = %d, want explicit override", upstream.last.GenerationConfig.MaxOutputTokens)
	}
}

func TestChat_WrappedSystemInstruction(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()
	router := newTestRouter("key", upstream.server.URL, nil)

	rec := postChat(router, `{"message":"hi","systemInstruction":{"parts":[{"text":"wrapped form"}]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if upstream.last.SystemInstruction == nil || upstream.last.SystemInstruction.Parts[0].Text != "wrapped form" {
		t.Errorf("systemInstruction = %+v", upstream.last.SystemInstruction)
	}
}

func TestChat_NormalizationFailureSkipsUpstream(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()
	router := newTestRouter("key", upstream.server.URL, nil)

	rec := postChat(router, `{"settings":{},"mode":"tech"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if upstream.calls.Load() != 0 {
		t.Errorf("upstream called %d times, want 0", upstream.calls.Load())
	}

	var resp struct {
		Error    string   `json:"error"`
		Received []string `json:"received"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if resp.Error == "" {
		t.Error("error message missing")
	}
	if len(resp.Received) != 2 {
		t.Errorf("received = %v, want the body's field names", resp.Received)
	}
}

func TestChat_MissingKeyShortCircuits(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()
	router := newTestRouter("", upstream.server.URL, nil)

	rec := postChat(router, `{"message":"Hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if upstream.calls.Load() != 0 {
		t.Errorf("upstream called %d times, want 0", upstream.calls.Load())
	}
}

func TestChat_RateLimitMirrorsStatus(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusTooManyRequests, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`)
	defer upstream.server.Close()
	router := newTestRouter("key", upstream.server.URL, nil)

	rec := postChat(router, `{"message":"Hello"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var resp struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if resp.Error != relay.MsgRateLimited {
		t.Errorf("error = %q, want rate-limit message", resp.Error)
	}
	if !strings.Contains(resp.Details, "RESOURCE_EXHAUSTED") {
		t.Errorf("details = %q, want raw upstream body", resp.Details)
	}
}

func TestChat_OtherUpstreamErrorMirrorsStatus(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`)
	defer upstream.server.Close()
	router := newTestRouter("key", upstream.server.URL, nil)

	rec := postChat(router, `{"message":"Hello"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestChat_PersistsTurnsWhenStoreConfigured(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()

	store, err := stores.NewSQLiteStoreSimple(filepath.Join(t.TempDir(), "chat.sqlite"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	router := newTestRouter("key", upstream.server.URL, store)
	rec := postChat(router, `{"message":"Hello","conversationId":"conv-7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	turns, err := store.FetchHistory("conv-7", 0)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("persisted turns = %d, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Text != "Hello" {
		t.Errorf("user turn = %+v", turns[0])
	}
	if turns[1].Role != "model" || turns[1].Text != "Hi" {
		t.Errorf("model turn = %+v", turns[1])
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter("key", "http://unused", nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp["status"] != "ok" || resp["timestamp"] == "" {
		t.Errorf("health body = %v", resp)
	}
}

func TestStatus(t *testing.T) {
	router := newTestRouter("", "http://unused", nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Server           string `json:"server"`
		APIKeyConfigured bool   `json:"apiKeyConfigured"`
		Port             string `json:"port"`
		Environment      string `json:"environment"`
		Version          string `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Server != "fairygate" || resp.APIKeyConfigured {
		t.Errorf("status body = %+v", resp)
	}
	if resp.Port != "8080" || resp.Environment != "test" || resp.Version != version {
		t.Errorf("status body = %+v", resp)
	}
}
