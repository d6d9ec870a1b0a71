package relay

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey means the server-side credential is absent. The request
// fails with a configuration error and no upstream call is attempted.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not configured")

// User-facing messages for translated upstream failures.
const (
	MsgRateLimited   = "仙氣額度已用盡,請稍後再試 🙏"
	MsgUpstreamError = "請求失敗,請稍後再試"
)

// NormalizeError means the request body could not be converted into a
// non-empty canonical turn sequence. Received lists the body's top-level
// field names for diagnosability.
type NormalizeError struct {
	Received []string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("request body could not be normalized into chat turns (received fields: %s)",
		strings.Join(e.Received, ", "))
}

// UpstreamError is a non-2xx response from the generative-language API.
// Status is mirrored to the caller unchanged; Body carries the raw upstream
// error payload for diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// RateLimited reports whether the upstream signalled quota exhaustion.
func (e *UpstreamError) RateLimited() bool {
	return e.Status == 429
}

// UserMessage returns the translated message shown to the end user.
func (e *UpstreamError) UserMessage() string {
	if e.RateLimited() {
		return MsgRateLimited
	}
	return MsgUpstreamError
}
