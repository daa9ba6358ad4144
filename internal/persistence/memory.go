// Package persistence stores quote snapshots in memory, a redis session cache,
// the database, or a layered combination of the last two.
package persistence

import (
	"context"
	"sync"

	"github.com/mydentalfly/quote-backend/internal/quote"
)

// Memory keeps snapshots in process. It is used for local runs and tests.
type Memory struct {
	mu     sync.RWMutex
	states map[string]quote.State
}

func NewMemory() *Memory {
	return &Memory{states: map[string]quote.State{}}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Load(_ context.Context, key string) (*quote.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	out := st.Clone()
	return &out, nil
}

func (m *Memory) Save(_ context.Context, key string, state quote.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}
