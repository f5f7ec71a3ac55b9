// Package session keeps per-browser-session state for the enrichment
// service. Each session holds at most one working dataset: the upload, or
// the join result that replaced it. State is scoped by an opaque id so
// concurrent users never see each other's data.
package session

import (
	"sync"

	"github.com/google/uuid"

	"enrich/internal/frame"
)

// Manager is an in-memory session table. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	datasets map[string]*frame.Frame
}

func NewManager() *Manager {
	return &Manager{datasets: make(map[string]*frame.Frame)}
}

// NewID returns a fresh opaque session id.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Dataset returns the session's current working dataset, or nil when the
// session is unknown or holds nothing.
func (m *Manager) Dataset(id string) *frame.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.datasets[id]
}

// SetDataset replaces the session's working dataset. A nil frame clears
// the session.
func (m *Manager) SetDataset(id string, f *frame.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f == nil {
		delete(m.datasets, id)
		return
	}
	m.datasets[id] = f
}
