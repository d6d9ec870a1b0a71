package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestChatSocket_TurnRoundTrip(t *testing.T) {
	upstream := newStubUpstream(t, http.StatusOK, okUpstreamBody)
	defer upstream.server.Close()

	router := newTestRouter("key", upstream.server.URL, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{"message": "Hello", "persona": "concise"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp struct {
		Text  string `json:"text"`
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error frame: %s", resp.Error)
	}
	if resp.Text != "Hi" || resp.Reply != "Hi" {
		t.Errorf("text/reply = %q/%q", resp.Text, resp.Reply)
	}
	if upstream.last.GenerationConfig.MaxOutputTokens != 512 {
		t.Errorf("maxOutputTokens = %d, want concise budget 512", upstream.last.GenerationConfig.MaxOutputTokens)
	}

	// a bad frame gets an error object back, connection stays open
	if err := conn.WriteJSON(map[string]interface{}{"unknown": true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error frame for an unnormalizable body")
	}

	// the connection still serves turns after an error frame
	if err := conn.WriteJSON(map[string]interface{}{"message": "again"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Text != "Hi" {
		t.Errorf("text = %q after recovery", resp.Text)
	}
}
