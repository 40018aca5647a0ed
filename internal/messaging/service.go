// Package messaging holds the conversation resolver and the message store
// logic on top of the storage backends.
package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"carelink/backend/internal/apperr"
	"carelink/backend/internal/models"
	"carelink/backend/internal/storage"

	"go.uber.org/zap"
)

type Service struct {
	store storage.Storage
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store storage.Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

// SetClock replaces the time source. Tests use it to get distinct sentAt values.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func internalErr(msg string, err error) error {
	return apperr.Wrap(apperr.KindInternal, msg, err)
}

// ResolveConversation returns the one conversation between a and b, creating
// it when absent. Argument order does not matter.
func (s *Service) ResolveConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	if a == "" || b == "" {
		return nil, apperr.Validation("both participants are required")
	}

	conv, err := s.store.FindConversationByPair(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, internalErr("find conversation", err)
	}

	conv = models.NewConversation(a, b, s.now())
	err = s.store.CreateConversation(ctx, conv)
	switch {
	case err == nil:
		s.log.Debug("conversation created", zap.String("conversation_id", conv.ID), zap.Strings("participants", conv.Participants))
		return conv, nil
	case errors.Is(err, storage.ErrDuplicate):
		// Lost the creation race; the winner's record is the conversation.
		winner, err := s.store.FindConversationByPair(ctx, a, b)
		if err != nil {
			return nil, internalErr("find conversation", err)
		}
		return winner, nil
	default:
		return nil, internalErr("create conversation", err)
	}
}

// CreateMessage persists a message from sender to recipient and moves the
// conversation's last-message pointer to it.
func (s *Service) CreateMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	if recipientID == "" {
		return nil, apperr.Validation("recipientId is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content is required")
	}

	if err := s.requireUser(ctx, senderID, "Sender not found"); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, recipientID, "Recipient not found"); err != nil {
		return nil, err
	}

	conv, err := s.ResolveConversation(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             models.NewID(),
		SenderID:       senderID,
		RecipientID:    recipientID,
		ConversationID: conv.ID,
		Content:        content,
		SentAt:         s.now(),
		IsRead:         false,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, internalErr("save message", err)
	}
	return msg, nil
}

func (s *Service) requireUser(ctx context.Context, id, notFound string) error {
	if id == "" {
		return apperr.NotFound(notFound)
	}
	_, err := s.store.GetUserByID(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(notFound)
	default:
		return internalErr("load user", err)
	}
}

// UserExists reports whether id names an account.
func (s *Service) UserExists(ctx context.Context, id string) (bool, error) {
	err := s.requireUser(ctx, id, "User not found")
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListBetween returns the conversation history between two users, oldest first.
func (s *Service) ListBetween(ctx context.Context, userID, otherUserID string) ([]models.Message, error) {
	conv, err := s.ResolveConversation(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesByConversation(ctx, conv.ID)
	if err != nil {
		return nil, internalErr("list messages", err)
	}
	return msgs, nil
}

// ListUnread returns messages addressed to userID that are still unread, newest first.
func (s *Service) ListUnread(ctx context.Context, userID string) ([]models.Message, error) {
	msgs, err := s.store.ListUnreadMessages(ctx, userID)
	if err != nil {
		return nil, internalErr("list unread messages", err)
	}
	return msgs, nil
}

// MarkRead sets the read flag. Calling it again only moves readAt forward.
func (s *Service) MarkRead(ctx context.Context, messageID string) (*models.Message, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, internalErr("load message", err)
	}

	msg.MarkRead(s.now())
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return nil, internalErr("update message", err)
	}
	return msg, nil
}

// RecentConversations lists userID's conversations with the last message and
// the counterpart's public profile, most recent first.
func (s *Service) RecentConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	out, err := s.store.RecentConversations(ctx, userID)
	if err != nil {
		return nil, internalErr("recent conversations", err)
	}
	return out, nil
}
