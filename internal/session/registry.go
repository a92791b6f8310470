package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry tracks live sessions by ID for the transport layer. Sessions are
// never aliased across entries; Release closes and forgets in one step.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	uploader Uploader
	applier  TransformApplier
}

func NewRegistry(uploader Uploader, applier TransformApplier) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		uploader: uploader,
		applier:  applier,
	}
}

// Create builds a new session, opens it, and registers it.
func (r *Registry) Create() (*Session, error) {
	s := New(uuid.NewString(), r.uploader, r.applier)
	if err := s.Open(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Release closes the session and removes it from the registry. Releasing an
// unknown ID is an error so the transport can answer 404.
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len reports the number of live sessions, for metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
