package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/alanyang/statesync/internal/port/session"
)

var ErrNotFound = errors.New("registry: session not found")

// Entry is a registered session and the transport it arrived on.
type Entry struct {
	Session   session.Session
	Transport string
}

// Registry is the in-memory directory of observer sessions across every
// transport. It only stores handles; liveness is the session's own concern.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Entry),
	}
}

// Add registers s, replacing any session already stored under the same ID.
func (r *Registry) Add(transport string, s session.Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = Entry{Session: s, Transport: transport}
	r.mu.Unlock()
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (session.Session, error) {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return entry.Session, nil
}

// List returns every registered session ordered by ID.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Session.ID() < out[j].Session.ID() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
