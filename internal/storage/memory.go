package storage

import (
	"context"
	"sync"
)

// Memory keeps a copy of the last saved dataset in process memory.
type Memory struct {
	mu   sync.Mutex
	data Dataset
}

func NewMemory() *Memory { return &Memory{data: Dataset{}} }

func (m *Memory) Load(ctx context.Context) (Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneDataset(m.data), nil
}

func (m *Memory) Save(ctx context.Context, data Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = cloneDataset(data)
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneDataset(in Dataset) Dataset {
	out := make(Dataset, len(in))
	for id, p := range in {
		out[id] = p.Clone()
	}
	return out
}
