package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/onepond/fairygate/models"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Reply is the relayed outcome of one upstream call.
type Reply struct {
	Text  string                `json:"text"`
	Usage *models.UsageMetadata `json:"usage,omitempty"`
}

// Client performs generateContent calls against the generative-language API.
// Each call is attempted exactly once; retrying is the end user's decision,
// never the relay's.
type Client struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given credential and model.
func NewClient(apiKey, model string) *Client {
	return &Client{APIKey: apiKey, Model: model}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Generate forwards one canonical request upstream and extracts the reply.
// Returns ErrMissingAPIKey without any network activity when no credential is
// configured, *UpstreamError for non-2xx upstream statuses, and plain errors
// for transport or decode failures.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*Reply, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL(), c.Model, c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var generated models.GenerateResponse
	if err := json.Unmarshal(body, &generated); err != nil {
		return nil, fmt.Errorf("failed to decode upstream response: %w", err)
	}

	return &Reply{Text: generated.FirstText(), Usage: generated.UsageMetadata}, nil
}
