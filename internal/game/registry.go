package game

import (
	"context"
	"fmt"
	"sync"
)

// Registry tracks the automatic sessions (bingo callers) that are running,
// keyed by entity ID. Cancelling a session stops its loop; the loop itself
// removes the entry with Done when it exits.
type Registry struct {
	sessions map[string]context.CancelFunc
	mu       sync.RWMutex
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]context.CancelFunc),
	}
}

// Register records a running session. It fails with ErrSessionExists if one
// is already registered for the ID.
func (r *Registry) Register(id string, cancel context.CancelFunc) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if cancel == nil {
		return fmt.Errorf("cannot register nil cancel func")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return ErrSessionExists
	}
	r.sessions[id] = cancel
	return nil
}

// Cancel stops the session for the ID.
// Returns true if a session was found and cancelled.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Done removes the session without cancelling it. Called by the session
// loop on exit.
func (r *Registry) Done(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Active reports whether a session is registered for the ID.
func (r *Registry) Active(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// IDs returns the IDs of all running sessions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of running sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CancelAll stops every running session. Used on shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]context.CancelFunc)
	r.mu.Unlock()

	for _, cancel := range sessions {
		cancel()
	}
}
