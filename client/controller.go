// Package client implements the chat controller: it owns the conversation
// history, the current settings, and drives requests against the relay.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/onepond/fairygate/models"
	"github.com/onepond/fairygate/persona"
)

// ErrBusy is returned when a send is attempted while another is outstanding.
// Turns are strictly serialized so replies always land at the right position
// in the history.
var ErrBusy = errors.New("a send is already in progress")

// RelayError is a failure response from the relay.
type RelayError struct {
	Status  int
	Message string
	Details string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay returned status %d: %s", e.Status, e.Message)
}

// Controller drives one conversation against the relay service.
type Controller struct {
	RelayURL   string // e.g. "http://localhost:8080/api/chat"
	HTTPClient *http.Client

	mu        sync.Mutex
	busy      bool
	settings  Settings
	store     SettingsStore
	history   []models.Message
	lastUsage *models.UsageMetadata
}

// NewController creates a controller, loading persisted settings when the
// store has any.
func NewController(relayURL string, store SettingsStore) (*Controller, error) {
	settings := DefaultSettings()
	if store != nil {
		loaded, err := store.Load()
		switch {
		case err == nil:
			settings = loaded
		case errors.Is(err, ErrNoSettings):
			// first run
		default:
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
	}
	return &Controller{RelayURL: relayURL, store: store, settings: settings}, nil
}

func (c *Controller) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// History returns a copy of the conversation so far.
func (c *Controller) History() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]models.Message, len(c.history))
	copy(history, c.history)
	return history
}

// Settings returns the current settings value.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// LastUsage returns the usage metadata from the most recent successful turn.
func (c *Controller) LastUsage() *models.UsageMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

// UpdateSettings applies fn to a copy of the current settings, swaps the
// result in, and persists it through the store.
func (c *Controller) UpdateSettings(fn func(Settings) Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	updated := fn(c.settings)
	if c.store != nil {
		if err := c.store.Save(updated); err != nil {
			return fmt.Errorf("failed to persist settings: %w", err)
		}
	}
	c.settings = updated
	return nil
}

// Send appends a user message and runs one round trip against the relay.
// On success the reply is appended and the user message is marked sent; on
// any failure the user message is marked failed and the turn is over. The
// relay is called exactly once; Retry is the only way to try again.
func (c *Controller) Send(ctx context.Context, text string, attachments []models.Attachment) (*models.Message, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy = true

	userMsg := models.NewUserMessage(text, attachments)
	c.history = append(c.history, userMsg)
	contents := models.BuildContents(c.history)
	settings := c.settings
	c.mu.Unlock()

	reply, err := c.roundTrip(ctx, contents, settings)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		c.setStatus(userMsg.ID, models.StatusFailed)
		return nil, err
	}

	c.setStatus(userMsg.ID, models.StatusSent)
	c.lastUsage = reply.Usage
	modelMsg := models.NewModelMessage(reply.Text)
	c.history = append(c.history, modelMsg)
	return &modelMsg, nil
}

// Retry re-submits a failed user message as a brand-new request. Only the
// most recent message can be retried; the conversation is append-only.
func (c *Controller) Retry(ctx context.Context, messageID string) (*models.Message, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if len(c.history) == 0 {
		c.mu.Unlock()
		return nil, errors.New("nothing to retry")
	}
	last := &c.history[len(c.history)-1]
	if last.ID != messageID || last.Status != models.StatusFailed {
		c.mu.Unlock()
		return nil, fmt.Errorf("message %s is not the latest failed message", messageID)
	}
	last.Status = models.StatusPending
	c.busy = true
	contents := models.BuildContents(c.history)
	settings := c.settings
	c.mu.Unlock()

	reply, err := c.roundTrip(ctx, contents, settings)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		c.setStatus(messageID, models.StatusFailed)
		return nil, err
	}

	c.setStatus(messageID, models.StatusSent)
	c.lastUsage = reply.Usage
	modelMsg := models.NewModelMessage(reply.Text)
	c.history = append(c.history, modelMsg)
	return &modelMsg, nil
}

func (c *Controller) setStatus(id string, status models.SendStatus) {
	for i := range c.history {
		if c.history[i].ID == id {
			c.history[i].Status = status
			return
		}
	}
}

// chatPayload is the body sent to the relay: canonical contents plus the
// persona-derived instruction and budget.
type chatPayload struct {
	Contents          []models.Content `json:"contents"`
	SystemInstruction string           `json:"systemInstruction,omitempty"`
	MaxOutputTokens   int              `json:"maxOutputTokens,omitempty"`
}

type relayResponse struct {
	Text  string                `json:"text"`
	Reply string                `json:"reply"`
	Usage *models.UsageMetadata `json:"usage,omitempty"`
	Error string                `json:"error,omitempty"`

	Details string `json:"details,omitempty"`
}

func (c *Controller) roundTrip(ctx context.Context, contents []models.Content, settings Settings) (*relayResponse, error) {
	payload := chatPayload{
		Contents:          contents,
		SystemInstruction: persona.Instruction(settings.Persona, settings.CustomMemory, settings.Location),
		MaxOutputTokens:   persona.MaxTokens(settings.Persona, settings.MaxOutputTokens),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RelayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}

	var parsed relayResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RelayError{Status: resp.StatusCode, Message: parsed.Error, Details: parsed.Details}
	}

	// old relay revisions answer with "reply" instead of "text"
	if parsed.Text == "" {
		parsed.Text = parsed.Reply
	}
	return &parsed, nil
}
