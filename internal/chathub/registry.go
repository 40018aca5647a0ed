package chathub

import "sync"

// Registry maps a user id to the connection currently representing that user
// on this instance. One entry per user: a second connection replaces the first.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register stores c under its user id and returns the handle it replaced, if
// any. The previous connection is left open; the caller decides what to do with it.
func (r *Registry) Register(c Client) Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[c.GetUserID()]
	r.clients[c.GetUserID()] = c
	return prev
}

// Unregister removes the entry only if it still points at c, so a stale
// connection closing late cannot evict its replacement.
func (r *Registry) Unregister(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.clients[c.GetUserID()]; ok && cur == c {
		delete(r.clients, c.GetUserID())
		return true
	}
	return false
}

func (r *Registry) Lookup(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
