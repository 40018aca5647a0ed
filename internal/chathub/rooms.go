package chathub

import "sync"

// Rooms is the named-group subscription table. Every connection is put in the
// room named after its own user id on connect.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[Client]struct{}
	joined  map[Client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[Client]struct{}),
		joined:  make(map[Client]map[string]struct{}),
	}
}

func (r *Rooms) Join(room string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[room] == nil {
		r.members[room] = make(map[Client]struct{})
	}
	r.members[room][c] = struct{}{}

	if r.joined[c] == nil {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][room] = struct{}{}
}

// SubscribeSelf joins c to the room named after its user id.
func (r *Rooms) SubscribeSelf(c Client) {
	r.Join(c.GetUserID(), c)
}

func (r *Rooms) Leave(room string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, c)
}

func (r *Rooms) leaveLocked(room string, c Client) {
	if set := r.members[room]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if set := r.joined[c]; set != nil {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, c)
		}
	}
}

// LeaveAll removes c from every room it joined.
func (r *Rooms) LeaveAll(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[c] {
		r.leaveLocked(room, c)
	}
}

// Members returns a snapshot of the clients in room.
func (r *Rooms) Members(room string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Client, 0, len(r.members[room]))
	for c := range r.members[room] {
		out = append(out, c)
	}
	return out
}

// RoomsOf lists the rooms c is subscribed to.
func (r *Rooms) RoomsOf(c Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.joined[c]))
	for room := range r.joined[c] {
		out = append(out, room)
	}
	return out
}
