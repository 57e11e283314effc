package quota

import (
	"context"
	"sync"
)

// MemoryStore is an in-process ledger for tests and store-less deployments.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string]int
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: make(map[string]int)}
}

func key(apiName, monthKey string) string {
	return apiName + "|" + monthKey
}

// Get returns the calls used for the provider/month, zero when absent.
func (m *MemoryStore) Get(_ context.Context, apiName, monthKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key(apiName, monthKey)], nil
}

// Increment bumps the counter by one.
func (m *MemoryStore) Increment(_ context.Context, apiName, monthKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key(apiName, monthKey)]++
	return nil
}

// Upsert sets the counter to used.
func (m *MemoryStore) Upsert(_ context.Context, apiName, monthKey string, used int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key(apiName, monthKey)] = used
	return nil
}
