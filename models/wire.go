package models

// Wire types for the generativelanguage REST API. This is the only shape the
// upstream accepts; everything the relay receives is normalized into it.

type GenerateRequest struct {
	Contents          []Content          `json:"contents"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type SystemInstruction struct {
	Parts []SystemPart `json:"parts"`
}

type SystemPart struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// FirstText returns the first text part of the first candidate, or "" when
// the response carries no text.
func (r *GenerateResponse) FirstText() string {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// WrapSystemInstruction wraps a plain instruction string into the parts form
// the upstream expects. Callers send the string form; the relay wraps it.
func WrapSystemInstruction(text string) *SystemInstruction {
	if text == "" {
		return nil
	}
	return &SystemInstruction{Parts: []SystemPart{{Text: text}}}
}

// BuildContents converts a conversation history into canonical contents.
// Only the final message keeps its attachments as inline data; attachments on
// earlier turns are degraded to a text placeholder so old binary payloads are
// not resent on every request.
func BuildContents(history []Message) []Content {
	contents := make([]Content, 0, len(history))
	for i, msg := range history {
		parts := []Part{{Text: msg.Text}}
		for _, att := range msg.Attachments {
			if i == len(history)-1 {
				parts = append(parts, Part{InlineData: &InlineData{MimeType: att.MimeType, Data: att.Data}})
			} else {
				parts = append(parts, Part{Text: "[Attachment: " + att.Filename + "]"})
			}
		}
		contents = append(contents, Content{Role: string(msg.Role), Parts: parts})
	}
	return contents
}
