// Package session tracks the progress of long-running analyses. Progress
// flows one way: analyzers push checkpoint updates through a sink and
// never read anything back, so a slow or broken store can only ever cost
// visibility, not correctness.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Progress is one checkpoint of a running analysis.
type Progress struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	Percentage int       `json:"percentage"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store holds per-session progress. Implementations must be safe for
// concurrent use.
type Store interface {
	// Update replaces the progress snapshot for a session.
	Update(sessionID string, p Progress) error

	// GetAll returns a snapshot of every tracked session.
	GetAll() map[string]Progress

	// Delete removes a session, reporting whether it existed.
	Delete(sessionID string) bool
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Progress
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Progress)}
}

// Update replaces the progress snapshot for a session.
func (s *MemoryStore) Update(sessionID string, p Progress) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}
	p.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = p
	return nil
}

// Get returns the progress snapshot for one session.
func (s *MemoryStore) Get(sessionID string) (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sessions[sessionID]
	return p, ok
}

// GetAll returns a copy of every tracked session.
func (s *MemoryStore) GetAll() map[string]Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Progress, len(s.sessions))
	for id, p := range s.sessions {
		out[id] = p
	}
	return out
}

// Delete removes a session, reporting whether it existed.
func (s *MemoryStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}
