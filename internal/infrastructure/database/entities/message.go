package entities

import (
	"time"

	"workify/services/conversation-api/internal/domain/conversation"
)

// Message is the row shape of the messages table.
type Message struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID  int64     `gorm:"not null;index:idx_messages_conversation_id"`
	SenderID        int64     `gorm:"not null"`
	SenderType      string    `gorm:"type:varchar(16);not null"`
	Content         string    `gorm:"type:text;not null"`
	Seen            bool      `gorm:"not null;default:false"`
	ClientMessageID *string   `gorm:"type:varchar(64)"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// NewSchemaMessage converts a domain message into its row.
func NewSchemaMessage(m *conversation.Message) *Message {
	return &Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderType:      string(m.SenderType),
		Content:         m.Content,
		Seen:            m.Seen,
		ClientMessageID: m.ClientMessageID,
		CreatedAt:       m.CreatedAt,
	}
}

// EtoD converts the row into a domain message.
func (m *Message) EtoD() *conversation.Message {
	return &conversation.Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderType:      conversation.SenderType(m.SenderType),
		Content:         m.Content,
		Seen:            m.Seen,
		ClientMessageID: m.ClientMessageID,
		CreatedAt:       m.CreatedAt,
	}
}
