package storage

import (
	"context"
	"sync"

	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	npcs      []npc.Record
	removed   []string
	accounts  []ledger.Snapshot
	lastReset string
	pingError error
	saveError error
	saves     int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every save fail with err
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Saves returns the number of successful save calls
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveNPCs(ctx context.Context, recs []npc.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.npcs = append([]npc.Record(nil), recs...)
	m.saves++
	return nil
}

func (m *MockStorage) LoadNPCs(ctx context.Context) ([]npc.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]npc.Record(nil), m.npcs...), nil
}

func (m *MockStorage) SaveRemovedNPCs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.removed = append([]string(nil), ids...)
	return nil
}

func (m *MockStorage) LoadRemovedNPCs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.removed...), nil
}

func (m *MockStorage) SaveAccounts(ctx context.Context, snaps []ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.accounts = append([]ledger.Snapshot(nil), snaps...)
	m.saves++
	return nil
}

func (m *MockStorage) LoadAccounts(ctx context.Context) ([]ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Snapshot(nil), m.accounts...), nil
}

func (m *MockStorage) SaveLastReset(ctx context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.lastReset = date
	return nil
}

func (m *MockStorage) LoadLastReset(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReset, nil
}
