package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"carelink/backend/internal/models"
)

// MemoryStore keeps everything in process. It backs tests and STORAGE_BACKEND=memory.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	emails        map[string]string
	conversations map[string]models.Conversation
	pairs         map[string]string
	messages      map[string]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]models.User),
		emails:        make(map[string]string),
		conversations: make(map[string]models.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string]models.Message),
	}
}

func (m *MemoryStore) Close(context.Context) error { return nil }

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := emailKey(user.Email)
	if _, taken := m.emails[key]; taken {
		return ErrDuplicate
	}
	user.EnsureID()
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	m.users[user.ID] = *user
	m.emails[key] = user.ID
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if newKey := emailKey(user.Email); newKey != emailKey(prev.Email) {
		if _, taken := m.emails[newKey]; taken {
			return ErrDuplicate
		}
		delete(m.emails, emailKey(prev.Email))
		m.emails[newKey] = user.ID
	}
	user.UpdatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) FindConversationByPair(_ context.Context, a, b string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.pairs[models.PairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	c := m.conversations[id]
	return &c, nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv.PairKey == "" && len(conv.Participants) == 2 {
		conv.PairKey = models.PairKey(conv.Participants[0], conv.Participants[1])
	}
	if _, exists := m.pairs[conv.PairKey]; exists {
		return ErrDuplicate
	}
	conv.EnsureID()
	m.conversations[conv.ID] = *conv
	m.pairs[conv.PairKey] = conv.ID
	return nil
}

func (m *MemoryStore) ListConversationsForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversationsFor(userID), nil
}

// conversationsFor must be called with mu held.
func (m *MemoryStore) conversationsFor(userID string) []models.Conversation {
	out := []models.Conversation{}
	for _, c := range m.conversations {
		if c.Has(userID) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

func (m *MemoryStore) RecentConversations(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := m.conversationsFor(userID)
	lastMessages := make(map[string]*models.Message)
	users := make(map[string]*models.User)
	for _, c := range convs {
		if c.LastMessageID != nil {
			if msg, ok := m.messages[*c.LastMessageID]; ok {
				lastMessages[msg.ID] = &msg
			}
		}
		if u, ok := m.users[c.Other(userID)]; ok {
			users[u.ID] = &u
		}
	}
	return buildSummaries(userID, convs, lastMessages, users), nil
}

func (m *MemoryStore) SaveMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	msg.EnsureID()
	if _, exists := m.messages[msg.ID]; exists {
		return ErrDuplicate
	}
	m.messages[msg.ID] = *msg

	id := msg.ID
	conv.LastMessageID = &id
	conv.LastMessageAt = msg.SentAt
	conv.UpdatedAt = time.Now()
	m.conversations[conv.ID] = conv
	return nil
}

func (m *MemoryStore) GetMessageByID(_ context.Context, id string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &msg, nil
}

func (m *MemoryStore) UpdateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[msg.ID]; !ok {
		return ErrNotFound
	}
	m.messages[msg.ID] = *msg
	return nil
}

func (m *MemoryStore) ListMessagesByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out, nil
}

func (m *MemoryStore) ListUnreadMessages(_ context.Context, recipientID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.RecipientID == recipientID && !msg.IsRead {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.After(out[j].SentAt)
	})
	return out, nil
}
