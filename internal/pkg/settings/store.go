package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("settings: session not found")

// Store keeps the settings of each dashboard session.
type Store interface {
	Load(ctx context.Context, session uuid.UUID) (Settings, error)
	Save(ctx context.Context, session uuid.UUID, s Settings) error
}

// MemoryStore is a process local Store.
type MemoryStore struct {
	mux      *sync.RWMutex
	sessions map[uuid.UUID]Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mux:      &sync.RWMutex{},
		sessions: make(map[uuid.UUID]Settings),
	}
}

func (m *MemoryStore) Load(ctx context.Context, session uuid.UUID) (Settings, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	s, ok := m.sessions[session]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, session uuid.UUID, s Settings) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.sessions[session] = s.Clone()
	return nil
}
