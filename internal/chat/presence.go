package chat

import (
	"log"
	"sync"
)

// Conn is the transport half of a registry entry. The websocket layer
// implements it; tests substitute an in-memory fake.
type Conn interface {
	Send(event string, payload interface{}) error
}

// Registry is the in-memory presence table mapping a user id to their current
// live connection. At most one connection per user is tracked: a second Join
// for the same user replaces the previous handle. Entries are never persisted;
// after a restart every client must rejoin.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Conn
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Conn)}
}

// Join registers conn as the live connection for userID, replacing any prior
// handle. It reports whether a prior handle existed, so callers broadcast a
// user_online transition only on a true offline-to-online join.
func (r *Registry) Join(userID string, conn Conn) (reconnect bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, reconnect = r.clients[userID]
	r.clients[userID] = conn
	return reconnect
}

// Leave removes the entry for userID only if the stored handle is still conn.
// The guard stops a stale disconnect from a replaced connection evicting the
// connection that replaced it. It reports whether an entry was removed.
func (r *Registry) Leave(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[userID]; ok && current == conn {
		delete(r.clients, userID)
		return true
	}
	return false
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.clients[userID]
	return conn, ok
}

// Online reports whether userID currently has a live connection.
func (r *Registry) Online(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Unicast delivers an event to userID's live connection. A false return means
// the recipient is not currently reachable live; callers must treat that as
// "defer to history fetch", never as a failure of the underlying operation.
func (r *Registry) Unicast(userID string, event string, payload interface{}) bool {
	conn, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	if err := conn.Send(event, payload); err != nil {
		log.Printf("presence: unicast %s to %s failed: %v", event, userID, err)
		return false
	}
	return true
}

// Broadcast delivers an event to every live connection.
func (r *Registry) Broadcast(event string, payload interface{}) {
	r.mu.RLock()
	conns := make(map[string]Conn, len(r.clients))
	for id, c := range r.clients {
		conns[id] = c
	}
	r.mu.RUnlock()

	for id, c := range conns {
		if err := c.Send(event, payload); err != nil {
			log.Printf("presence: broadcast %s to %s failed: %v", event, id, err)
		}
	}
}

// OnlineUsers returns the ids of all users with a live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
