package chathub_test

import (
	"sync"
	"testing"
	"time"

	"carelink/backend/internal/models"
)

type MockClient struct {
	userID      string
	RecvChannel chan models.Envelope

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID string) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan models.Envelope, 10),
	}
}

func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.RecvChannel <- env:
		return true
	default:
		return false
	}
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// next waits briefly for a frame.
func (c *MockClient) next(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case env := <-c.RecvChannel:
		return env
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.userID)
		return models.Envelope{}
	}
}

func (c *MockClient) empty() bool {
	return len(c.RecvChannel) == 0
}
