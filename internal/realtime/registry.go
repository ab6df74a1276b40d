package realtime

import (
	"sort"
	"sync"
)

// roomEntry is one connection's presence in a room. seq preserves join
// order for MembersOf.
type roomEntry struct {
	username string
	client   *Client
	seq      uint64
}

// Registry is the process-wide presence state: which principal owns which
// live connection, and which connections are in which whiteboard room.
// It is a disposable cache: lost on restart, rebuilt by clients rejoining,
// and never the source of truth for authorization.
type Registry struct {
	mu    sync.RWMutex
	apps  map[string]*Client              // username -> application-level connection
	rooms map[string]map[string]*roomEntry // room -> connection id -> entry
	seq   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		apps:  make(map[string]*Client),
		rooms: make(map[string]map[string]*roomEntry),
	}
}

// RegisterApplication records the application-level connection for a
// principal. A newer connection for the same principal replaces the old
// one (e.g. a fresh tab).
func (r *Registry) RegisterApplication(username string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[username] = client
}

// UnregisterApplication drops the principal's application presence, but
// only if it still points at the given connection: a replacement
// connection must not be evicted by the old one's cleanup.
func (r *Registry) UnregisterApplication(username string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.apps[username]; ok && current.ID == client.ID {
		delete(r.apps, username)
	}
}

// LookupApplication returns the live application connection of a
// principal, if any.
func (r *Registry) LookupApplication(username string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.apps[username]
	return client, ok
}

// RegisterRoom adds a connection to a room. The room is created lazily on
// first join. Joining twice is idempotent: the existing entry is kept, so
// a re-join never duplicates membership.
func (r *Registry) RegisterRoom(room, username string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.rooms[room]
	if !ok {
		entries = make(map[string]*roomEntry)
		r.rooms[room] = entries
	}
	if existing, ok := entries[client.ID]; ok {
		existing.username = username
		return
	}
	r.seq++
	entries[client.ID] = &roomEntry{username: username, client: client, seq: r.seq}
}

// UnregisterRoom removes a connection from a room and reports whether it
// was present. The room itself is discarded when its last member leaves.
// Safe to call any number of times.
func (r *Registry) UnregisterRoom(room string, client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, present := entries[client.ID]; !present {
		return false
	}
	delete(entries, client.ID)
	if len(entries) == 0 {
		delete(r.rooms, room)
	}
	return true
}

// MembersOf returns the usernames currently in a room, in join order.
func (r *Registry) MembersOf(room string) []string {
	entries := r.sortedEntries(room)
	members := make([]string, 0, len(entries))
	for _, entry := range entries {
		members = append(members, entry.username)
	}
	return members
}

// MembersOfExcept returns the usernames in a room excluding one
// connection, in join order.
func (r *Registry) MembersOfExcept(room string, client *Client) []string {
	entries := r.sortedEntries(room)
	members := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.client.ID == client.ID {
			continue
		}
		members = append(members, entry.username)
	}
	return members
}

// RoomClients returns the live connections in a room, in join order.
// Callers fan out over this snapshot; it is re-read on every broadcast.
func (r *Registry) RoomClients(room string) []*Client {
	entries := r.sortedEntries(room)
	clients := make([]*Client, 0, len(entries))
	for _, entry := range entries {
		clients = append(clients, entry.client)
	}
	return clients
}

func (r *Registry) sortedEntries(room string) []*roomEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*roomEntry, 0, len(r.rooms[room]))
	for _, entry := range r.rooms[room] {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

// Reset clears all presence state. Test isolation only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps = make(map[string]*Client)
	r.rooms = make(map[string]map[string]*roomEntry)
	r.seq = 0
}
