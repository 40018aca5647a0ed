package storage

import (
	"context"
	"errors"
	"time"

	"carelink/backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (email, conversation pair) already exists.
	ErrDuplicate = errors.New("duplicate key")
)

// Storage is the persistence contract shared by the Postgres, Mongo and memory backends.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// FindConversationByPair matches the exact participant set {a, b}.
	FindConversationByPair(ctx context.Context, a, b string) (*models.Conversation, error)
	// CreateConversation returns ErrDuplicate when another writer created the pair first.
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	RecentConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)

	// SaveMessage inserts msg and points its conversation at it.
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	ListMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	ListUnreadMessages(ctx context.Context, recipientID string) ([]models.Message, error)

	Close(ctx context.Context) error
}

const defaultTimeout = 5 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
