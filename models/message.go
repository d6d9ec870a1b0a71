package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// SendStatus tracks the lifecycle of a user message on the client side.
type SendStatus string

const (
	StatusPending SendStatus = "pending"
	StatusSent    SendStatus = "sent"
	StatusFailed  SendStatus = "failed"
)

// Attachment is an inline binary payload carried by a message.
// Data is base64-encoded and never mutated after creation.
type Attachment struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Filename string `json:"filename,omitempty"`
}

// Message is one turn in a conversation. The sequence is append-only;
// the only field that changes after creation is Status (pending -> sent/failed).
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Status      SendStatus   `json:"status,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewUserMessage creates a pending user message ready to send.
func NewUserMessage(text string, attachments []Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Text:        text,
		Attachments: attachments,
		Status:      StatusPending,
		Timestamp:   time.Now(),
	}
}

// NewModelMessage creates a message holding a model reply.
func NewModelMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleModel,
		Text:      text,
		Timestamp: time.Now(),
	}
}
