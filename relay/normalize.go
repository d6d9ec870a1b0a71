package relay

import (
	"encoding/json"
	"sort"

	"github.com/onepond/fairygate/models"
)

// looseTurn is a history/messages entry as historical clients send it. The
// text may live in either "text" or "content" depending on client revision.
type looseTurn struct {
	Role    string `json:"role"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

func (t looseTurn) resolvedText() string {
	if t.Text != "" {
		return t.Text
	}
	return t.Content
}

func (t looseTurn) resolvedRole() string {
	if t.Role == "assistant" || t.Role == "model" {
		return "model"
	}
	return "user"
}

// Normalize converts any of the accepted chat body shapes into canonical
// contents. Precedence, first match wins:
//
//  1. A "contents" array is trusted as already canonical.
//  2. Otherwise "history" entries are mapped (role coerced, empty text
//     dropped) and a trailing user turn is appended from "message" or "text".
//  3. If that produced nothing, a "messages" array is mapped the same way.
//
// An empty result is always a *NormalizeError, including an explicitly empty
// "contents" array: forwarding zero turns upstream has no meaning.
func Normalize(body map[string]json.RawMessage) ([]models.Content, error) {
	if raw, ok := body["contents"]; ok {
		var contents []models.Content
		if err := json.Unmarshal(raw, &contents); err == nil && contents != nil {
			if len(contents) == 0 {
				return nil, &NormalizeError{Received: fieldNames(body)}
			}
			return contents, nil
		}
	}

	var contents []models.Content

	if raw, ok := body["history"]; ok {
		var history []looseTurn
		if err := json.Unmarshal(raw, &history); err == nil {
			contents = append(contents, mapTurns(history)...)
		}
	}

	if text := stringField(body, "message", "text"); text != "" {
		contents = append(contents, models.Content{
			Role:  "user",
			Parts: []models.Part{{Text: text}},
		})
	}

	if len(contents) == 0 {
		if raw, ok := body["messages"]; ok {
			var msgs []looseTurn
			if err := json.Unmarshal(raw, &msgs); err == nil {
				contents = mapTurns(msgs)
			}
		}
	}

	if len(contents) == 0 {
		return nil, &NormalizeError{Received: fieldNames(body)}
	}
	return contents, nil
}

func mapTurns(turns []looseTurn) []models.Content {
	var contents []models.Content
	for _, turn := range turns {
		text := turn.resolvedText()
		if text == "" {
			continue
		}
		contents = append(contents, models.Content{
			Role:  turn.resolvedRole(),
			Parts: []models.Part{{Text: text}},
		})
	}
	return contents
}

func stringField(body map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if raw, ok := body[key]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
	}
	return ""
}

func fieldNames(body map[string]json.RawMessage) []string {
	names := make([]string, 0, len(body))
	for name := range body {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
