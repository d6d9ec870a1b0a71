// Package controllers exposes the relay over HTTP and WebSocket transports.
package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onepond/fairygate/models"
	"github.com/onepond/fairygate/persona"
	"github.com/onepond/fairygate/relay"
	"github.com/onepond/fairygate/stores"
)

const version = "0.1.0"

// Handler wires the relay pipeline into HTTP handlers. Store is optional;
// when present, successful exchanges are persisted best-effort.
type Handler struct {
	Relay       *relay.Client
	Store       stores.TranscriptStore
	Logger      *log.Logger
	Port        string
	Environment string
}

// RegisterRoutes mounts all endpoints on the given engine.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/chat", h.Chat)
	router.GET("/ws/chat", h.ChatSocket)
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
}

// chatOptions are the optional fields a chat body may carry alongside its
// turn payload. SystemInstruction may be a plain string or the wrapped
// {parts:[{text}]} form, depending on client revision.
type chatOptions struct {
	SystemInstruction string
	MaxOutputTokens   int
	Persona           persona.Persona
	CustomMemory      string
	Location          *persona.Location
	ConversationID    string
}

func parseOptions(body map[string]json.RawMessage) chatOptions {
	var opts chatOptions

	if raw, ok := body["systemInstruction"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			opts.SystemInstruction = s
		} else {
			var wrapped models.SystemInstruction
			if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Parts) > 0 {
				opts.SystemInstruction = wrapped.Parts[0].Text
			}
		}
	}

	if raw, ok := body["maxOutputTokens"]; ok {
		json.Unmarshal(raw, &opts.MaxOutputTokens)
	}
	if raw, ok := body["persona"]; ok {
		json.Unmarshal(raw, &opts.Persona)
	}
	if raw, ok := body["mode"]; ok && opts.Persona == "" {
		// older clients send the persona under "mode"
		json.Unmarshal(raw, &opts.Persona)
	}
	if raw, ok := body["customMemory"]; ok {
		json.Unmarshal(raw, &opts.CustomMemory)
	}
	if raw, ok := body["location"]; ok {
		var loc persona.Location
		if err := json.Unmarshal(raw, &loc); err == nil {
			opts.Location = &loc
		}
	}
	if raw, ok := body["conversationId"]; ok {
		json.Unmarshal(raw, &opts.ConversationID)
	}
	return opts
}

// turnError is the JSON error body shared by the HTTP and WebSocket paths.
type turnError struct {
	Status   int      `json:"-"`
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Received []string `json:"received,omitempty"`
}

// chatReply is the success body. Reply duplicates Text as a deprecated alias
// for clients still reading the old field name.
type chatReply struct {
	Text  string                `json:"text"`
	Reply string                `json:"reply"`
	Usage *models.UsageMetadata `json:"usage,omitempty"`
}

// runTurn executes the normalize -> forward -> translate pipeline for one
// chat body. Exactly one upstream attempt; all failures are terminal for the
// turn.
func (h *Handler) runTurn(ctx context.Context, body map[string]json.RawMessage) (*chatReply, *turnError) {
	contents, err := relay.Normalize(body)
	if err != nil {
		var normErr *relay.NormalizeError
		if errors.As(err, &normErr) {
			return nil, &turnError{
				Status:   http.StatusBadRequest,
				Error:    "request body could not be normalized into chat turns",
				Received: normErr.Received,
			}
		}
		return nil, &turnError{Status: http.StatusBadRequest, Error: err.Error()}
	}

	opts := parseOptions(body)

	instruction := opts.SystemInstruction
	if instruction == "" && (opts.Persona != "" || opts.CustomMemory != "") {
		instruction = persona.Instruction(opts.Persona, opts.CustomMemory, opts.Location)
	}

	req := models.GenerateRequest{
		Contents:          contents,
		SystemInstruction: models.WrapSystemInstruction(instruction),
		GenerationConfig: &models.GenerationConfig{
			MaxOutputTokens: persona.MaxTokens(opts.Persona, opts.MaxOutputTokens),
		},
	}

	reply, err := h.Relay.Generate(ctx, req)
	if err != nil {
		return nil, translateError(err)
	}

	h.persistTurn(opts.ConversationID, contents, reply.Text)

	return &chatReply{Text: reply.Text, Reply: reply.Text, Usage: reply.Usage}, nil
}

func translateError(err error) *turnError {
	if errors.Is(err, relay.ErrMissingAPIKey) {
		return &turnError{Status: http.StatusInternalServerError, Error: relay.ErrMissingAPIKey.Error()}
	}
	var upErr *relay.UpstreamError
	if errors.As(err, &upErr) {
		return &turnError{Status: upErr.Status, Error: upErr.UserMessage(), Details: upErr.Body}
	}
	return &turnError{Status: http.StatusInternalServerError, Error: err.Error()}
}

// persistTurn appends the latest user turn and the model reply to the
// transcript. Persistence failures are logged, never surfaced: the chat
// response already succeeded.
func (h *Handler) persistTurn(conversationID string, contents []models.Content, replyText string) {
	if h.Store == nil || conversationID == "" {
		return
	}
	userText := ""
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == "user" && len(contents[i].Parts) > 0 {
			userText = contents[i].Parts[0].Text
			break
		}
	}
	if err := h.Store.SaveTurn(conversationID, string(models.RoleUser), userText); err != nil {
		h.logf("failed to persist user turn for %s: %v", conversationID, err)
		return
	}
	if err := h.Store.SaveTurn(conversationID, string(models.RoleModel), replyText); err != nil {
		h.logf("failed to persist model turn for %s: %v", conversationID, err)
	}
}

func (h *Handler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(c *gin.Context) {
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	reply, turnErr := h.runTurn(c.Request.Context(), body)
	if turnErr != nil {
		c.JSON(turnErr.Status, turnErr)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status handles GET /status.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server":           "fairygate",
		"apiKeyConfigured": h.Relay.APIKey != "",
		"port":             h.Port,
		"environment":      h.Environment,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"version":          version,
	})
}
