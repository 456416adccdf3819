package storage

import (
	"context"
	"sync"
	"time"

	"rsiscalper/internal/dispatch"
	"rsiscalper/internal/memorystore"
)

// MemoryStore keeps the most recent bars and every journaled order in
// memory. It is used when Postgres is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	maxBars int
	bars    []memorystore.Bar
	orders  []OrderEntry
}

// NewMemoryStore keeps at most maxBars bars; zero keeps none.
func NewMemoryStore(maxBars int) *MemoryStore {
	return &MemoryStore{
		maxBars: maxBars,
		bars:    make([]memorystore.Bar, 0),
		orders:  make([]OrderEntry, 0),
	}
}

func (m *MemoryStore) SaveBar(_ context.Context, bar memorystore.Bar) error {
	if m.maxBars <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bars) >= m.maxBars {
		m.bars = append(m.bars[:0], m.bars[1:]...)
	}
	m.bars = append(m.bars, bar)
	return nil
}

func (m *MemoryStore) RecordOrder(_ context.Context, spec dispatch.OrderSpec, ack dispatch.OrderAck, submittedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, OrderEntry{Spec: spec, Ack: ack, SubmittedAt: submittedAt})
	return nil
}

func (m *MemoryStore) GetBars() []memorystore.Bar {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid race
	copyBars := make([]memorystore.Bar, len(m.bars))
	copy(copyBars, m.bars)
	return copyBars
}

func (m *MemoryStore) GetOrders() []OrderEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyOrders := make([]OrderEntry, len(m.orders))
	copy(copyOrders, m.orders)
	return copyOrders
}
