package chathub

import "carelink/backend/internal/models"

// Client is one live realtime connection. The hub only ever talks to clients
// through this interface, so tests can register fakes.
type Client interface {
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string

	// Send queues an outbound frame. It reports false when the frame was
	// dropped because the client is closed or its buffer is full.
	Send(env models.Envelope) bool

	// Run starts the read and write pumps.
	Run()
	// Close stops delivery. It is safe to call more than once.
	Close()
}
