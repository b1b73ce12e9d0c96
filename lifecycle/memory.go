package lifecycle

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-process Storage. The mutex guards map access only.
type MemoryStorage struct {
	mu      sync.Mutex
	records map[string]Record
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]Record),
	}
}

func (m *MemoryStorage) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return ErrRecordExists
	}

	m.records[rec.ID] = rec

	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()

	if !ok {
		return Record{}, ErrRecordNotFound
	}

	return rec, nil
}

func (m *MemoryStorage) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion uint64,
	newState string,
	at time.Time,
) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}

	if rec.Version != expectedVersion {
		return Record{}, ErrConcurrentModification
	}

	rec.CurrentState = newState
	rec.Version++
	rec.UpdatedAt = at
	m.records[id] = rec

	return rec, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrRecordNotFound
	}

	delete(m.records, id)

	return nil
}

// Len returns the number of stored records.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}
