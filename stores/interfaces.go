// Package stores persists chat transcripts behind a small interface so the
// relay can run with SQLite, PostgreSQL, or no persistence at all.
package stores

import (
	"time"

	"gorm.io/gorm"
)

// Turn is one persisted conversation entry.
type Turn struct {
	gorm.Model
	ConversationID string `gorm:"index;not null"`
	Sequence       int    `gorm:"not null"`
	Role           string `gorm:"not null"` // "user", "model"
	Text           string `gorm:"type:text"`
}

// Conversation holds metadata for a persisted chat.
type Conversation struct {
	gorm.Model
	ConversationID string `gorm:"uniqueIndex;not null"`
	Title          string `gorm:"type:text"`
	TurnCount      int    `gorm:"default:0"`
	Turns          []Turn `gorm:"foreignKey:ConversationID;references:ConversationID"`
}

// ConversationInfo is the listing view of a conversation.
type ConversationInfo struct {
	ConversationID string
	Title          string
	TurnCount      int
	UpdatedAt      time.Time
}

// TranscriptStore abstracts transcript persistence.
type TranscriptStore interface {
	SaveTurn(conversationID, role, text string) error
	FetchHistory(conversationID string, limit int) ([]Turn, error)

	CreateConversation(conversationID string) error
	ListConversations() ([]ConversationInfo, error)

	// PruneBefore deletes conversations not updated since the cutoff and
	// returns how many were removed.
	PruneBefore(cutoff time.Time) (int64, error)

	Ping() error
	Close() error
}

// StoreConfig selects and configures a store backend.
type StoreConfig struct {
	Type       string `json:"type"`       // "sqlite", "postgres"
	Connection string `json:"connection"` // file path or DSN
}

// NewStoreConfig creates a store configuration.
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{Type: storeType, Connection: connection}
}
