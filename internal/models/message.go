package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a direct message. Only IsRead/ReadAt change after insert.
type Message struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id" bson:"_id"`
	SenderID       string     `gorm:"type:uuid;not null;index" json:"senderId" bson:"sender_id"`
	RecipientID    string     `gorm:"type:uuid;not null;index:idx_messages_unread,priority:1" json:"recipientId" bson:"recipient_id"`
	ConversationID string     `gorm:"type:uuid;not null;index:idx_messages_conversation,priority:1" json:"conversationId" bson:"conversation_id"`
	Content        string     `gorm:"type:text;not null" json:"content" bson:"content"`
	SentAt         time.Time  `gorm:"not null;index:idx_messages_conversation,priority:2" json:"sentAt" bson:"sent_at"`
	IsRead         bool       `gorm:"not null;default:false;index:idx_messages_unread,priority:2" json:"isRead" bson:"is_read"`
	ReadAt         *time.Time `json:"readAt,omitempty" bson:"read_at,omitempty"`
}

// MarkRead flips the read flag and stamps the read time. Repeated calls move
// the timestamp forward.
func (m *Message) MarkRead(now time.Time) {
	m.IsRead = true
	m.ReadAt = &now
}

func (m *Message) EnsureID() {
	if m.ID == "" {
		m.ID = NewID()
	}
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	m.EnsureID()
	return
}
