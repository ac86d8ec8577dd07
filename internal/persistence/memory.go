package persistence

import (
	"sync"

	"github.com/rcourtman/insightctl/internal/state"
)

// Memory is an in-process Port used by tests and ephemeral runs. It
// never survives a process restart.
type Memory struct {
	mu  sync.Mutex
	snap *state.Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Init() error { return nil }

func (m *Memory) Load() (*state.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *Memory) Save(snap state.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := snap
	m.snap = &cp
	return nil
}
