package websocket

import (
	"sync"

	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
)

// ConnectedUser binds a user identity to its active transport connection.
// There is at most one entry per userId: a new connection overwrites the
// old one (last-writer-wins, no multi-tab presence).
type ConnectedUser struct {
	UserID   string          `json:"user_id"`
	SocketID string          `json:"socket_id"`
	Profile  models.SafeUser `json:"profile"`

	client *Client
}

// Registry is the authoritative in-process set of connected users. It is
// an explicit object handed to the hub, relay and signaling router, not
// a package-level singleton. Nothing here is persisted: a process restart
// loses all presence state and clients re-register on reconnect.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*ConnectedUser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*ConnectedUser)}
}

// Register inserts or overwrites the entry for the user and returns the
// entry that was displaced, if any. The caller is responsible for
// closing the displaced connection.
func (r *Registry) Register(cu *ConnectedUser) (replaced *ConnectedUser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced = r.users[cu.UserID]
	r.users[cu.UserID] = cu
	return replaced
}

// Unregister removes the entry for the user, but only if it still refers
// to the given socket. A connection superseded by a newer one must not
// evict its successor when it finally disconnects.
func (r *Registry) Unregister(userID, socketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cu, ok := r.users[userID]
	if !ok || cu.SocketID != socketID {
		return false
	}
	delete(r.users, userID)
	return true
}

// Lookup resolves a user to its connection. A miss means the user is
// offline and the caller treats that as a soft failure.
func (r *Registry) Lookup(userID string) (*ConnectedUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cu, ok := r.users[userID]
	return cu, ok
}

// Snapshot returns the current entries.
func (r *Registry) Snapshot() []*ConnectedUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ConnectedUser, 0, len(r.users))
	for _, cu := range r.users {
		out = append(out, cu)
	}
	return out
}

// SnapshotExcept returns the current entries minus one user.
func (r *Registry) SnapshotExcept(userID string) []*ConnectedUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ConnectedUser, 0, len(r.users))
	for id, cu := range r.users {
		if id == userID {
			continue
		}
		out = append(out, cu)
	}
	return out
}

// Profiles returns the safe profiles of everyone connected. Used for the
// roster sent to a newly registered client.
func (r *Registry) Profiles() []models.SafeUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SafeUser, 0, len(r.users))
	for _, cu := range r.users {
		out = append(out, cu.Profile)
	}
	return out
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
