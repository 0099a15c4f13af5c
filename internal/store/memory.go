package store

import (
	"context"
	"sync"
)

// Memory is the in-process fallback used when no Redis URL is configured.
// Status survives only as long as the process.
type Memory struct {
	mu       sync.RWMutex
	statuses map[string]Status
	reports  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		statuses: make(map[string]Status),
		reports:  make(map[string][]byte),
	}
}

func (m *Memory) SetStatus(_ context.Context, batchID string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[batchID] = st
	return nil
}

func (m *Memory) GetStatus(_ context.Context, batchID string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[batchID]
	if !ok {
		return Status{}, ErrNotFound
	}
	return st, nil
}

func (m *Memory) SetReport(_ context.Context, batchID string, report []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(report))
	copy(cp, report)
	m.reports[batchID] = cp
	return nil
}

func (m *Memory) GetReport(_ context.Context, batchID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[batchID]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *Memory) Close() error { return nil }
