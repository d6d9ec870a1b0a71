package stores

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// gormStore holds the operations shared by every gorm-backed store.
type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) connect(dialector gorm.Dialector) error {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	if err := s.db.AutoMigrate(&Conversation{}, &Turn{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

func (s *gormStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *gormStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// SaveTurn appends a turn to a conversation, creating the conversation record
// on first write. The sequence number is the current turn count plus one.
func (s *gormStore) SaveTurn(conversationID, role, text string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var count int64
	if err := s.db.Model(&Conversation{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for conversation %s: %w", conversationID, err)
	}
	if count == 0 {
		if err := s.CreateConversation(conversationID); err != nil {
			return fmt.Errorf("failed to create conversation %s: %w", conversationID, err)
		}
	}

	if err := s.db.Model(&Turn{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count existing turns: %w", err)
	}

	turn := Turn{
		ConversationID: conversationID,
		Sequence:       int(count) + 1,
		Role:           role,
		Text:           text,
	}
	if err := s.db.Create(&turn).Error; err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}

	return s.db.Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Updates(map[string]interface{}{"turn_count": turn.Sequence, "updated_at": time.Now()}).Error
}

// FetchHistory returns the turns of a conversation in sequence order. A limit
// of zero means no limit; otherwise the most recent turns are returned.
func (s *gormStore) FetchHistory(conversationID string, limit int) ([]Turn, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var turns []Turn
	query := s.db.Where("conversation_id = ?", conversationID).Order("sequence asc")
	if limit > 0 {
		var total int64
		if err := s.db.Model(&Turn{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("failed to count turns: %w", err)
		}
		if int(total) > limit {
			query = query.Offset(int(total) - limit)
		}
	}
	if err := query.Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return turns, nil
}

func (s *gormStore) CreateConversation(conversationID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	conv := Conversation{ConversationID: conversationID}
	return s.db.Create(&conv).Error
}

func (s *gormStore) ListConversations() ([]ConversationInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var convs []Conversation
	if err := s.db.Order("updated_at desc").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	infos := make([]ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		infos = append(infos, ConversationInfo{
			ConversationID: conv.ConversationID,
			Title:          conv.Title,
			TurnCount:      conv.TurnCount,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	return infos, nil
}

// PruneBefore removes conversations whose last update predates the cutoff,
// along with their turns.
func (s *gormStore) PruneBefore(cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var stale []Conversation
	if err := s.db.Where("updated_at < ?", cutoff).Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale conversations: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, conv := range stale {
		ids = append(ids, conv.ConversationID)
	}

	if err := s.db.Where("conversation_id IN ?", ids).Delete(&Turn{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete stale turns: %w", err)
	}
	result := s.db.Where("conversation_id IN ?", ids).Delete(&Conversation{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale conversations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
