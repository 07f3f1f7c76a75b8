package checkpoint

import (
	"context"
	"maps"
	"sync"
)

// Memory keeps checkpoints in process. State values are stored as given.
type Memory struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
	threads     map[string][]string
}

// NewMemory creates an empty in-memory saver.
func NewMemory() *Memory {
	return &Memory{
		checkpoints: make(map[string]*Checkpoint),
		threads:     make(map[string][]string),
	}
}

func (m *Memory) Save(ctx context.Context, cp *Checkpoint) error {
	c := *cp
	c.Metadata = maps.Clone(cp.Metadata)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.checkpoints[cp.ID]; ok {
		m.unindex(ThreadID(old), cp.ID)
	}
	m.checkpoints[cp.ID] = &c
	if thread := ThreadID(&c); thread != "" {
		m.threads[thread] = append(m.threads[thread], cp.ID)
	}
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, notFound(id)
	}
	c := *cp
	return &c, nil
}

// List returns the thread's checkpoints oldest first.
func (m *Memory) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.threads[threadID]
	out := make([]*Checkpoint, 0, len(ids))
	for _, id := range ids {
		c := *m.checkpoints[id]
		out = append(out, &c)
	}
	sortByVersion(out)
	return out, nil
}

func (m *Memory) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	cps, err := m.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return latestOf(cps, threadID)
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil
	}
	delete(m.checkpoints, id)
	m.unindex(ThreadID(cp), id)
	return nil
}

func (m *Memory) Clear(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.threads[threadID] {
		delete(m.checkpoints, id)
	}
	delete(m.threads, threadID)
	return nil
}

func (m *Memory) unindex(thread, id string) {
	ids := m.threads[thread]
	for i, v := range ids {
		if v == id {
			m.threads[thread] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(m.threads[thread]) == 0 {
		delete(m.threads, thread)
	}
}
