package models

import (
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Conversation is the single thread shared by an unordered pair of users.
// Participants are stored sorted, and PairKey is unique, so a pair maps to at
// most one record.
type Conversation struct {
	ID            string         `gorm:"primaryKey;type:uuid" json:"id" bson:"_id"`
	Participants  pq.StringArray `gorm:"type:text[];not null;index:idx_conversations_participants,type:gin" json:"participants" bson:"participants"`
	PairKey       string         `gorm:"uniqueIndex;not null" json:"-" bson:"pair_key"`
	CreatedAt     time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updated_at"`
	LastMessageID *string        `gorm:"type:uuid" json:"lastMessage" bson:"last_message"`
	LastMessageAt time.Time      `gorm:"index" json:"lastMessageAt" bson:"last_message_at"`

	LastMessage *Message `gorm:"foreignKey:LastMessageID" json:"-" bson:"-"`
}

// ConversationSummary is one row of the "recent conversations" view.
type ConversationSummary struct {
	ID            string     `json:"id" bson:"_id"`
	Participants  []string   `json:"participants" bson:"participants"`
	LastMessageAt time.Time  `json:"lastMessageAt" bson:"last_message_at"`
	LastMessage   *Message   `json:"lastMessage" bson:"last_message,omitempty"`
	User          PublicUser `json:"user" bson:"user"`
}

// CanonicalPair sorts the two ids so lookups do not depend on argument order.
func CanonicalPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// PairKey joins a canonical pair into the unique lookup key.
func PairKey(a, b string) string {
	return strings.Join(CanonicalPair(a, b), ":")
}

// NewConversation builds an unsaved conversation for the pair with every
// timestamp set to now and no last message.
func NewConversation(a, b string, now time.Time) *Conversation {
	return &Conversation{
		ID:            NewID(),
		Participants:  pq.StringArray(CanonicalPair(a, b)),
		PairKey:       PairKey(a, b),
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return userID
}

// Has reports whether userID takes part in the conversation.
func (c *Conversation) Has(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) EnsureID() {
	if c.ID == "" {
		c.ID = NewID()
	}
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	c.EnsureID()
	return
}
