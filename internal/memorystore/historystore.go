package memorystore

import (
	"sort"
	"sync"
)

// DefaultHistoryCapacity is the number of closes retained per symbol.
const DefaultHistoryCapacity = 5000

// HistoryStore keeps a bounded, ordered series of closed-bar closes per symbol.
// When a symbol's series is full the oldest close is evicted.
type HistoryStore struct {
	globalMu sync.RWMutex
	capacity int
	data     map[string]*symbolHistory
}

// symbolHistory is a fixed-size ring; start indexes the oldest close.
type symbolHistory struct {
	mu     sync.Mutex
	closes []float64
	start  int
	size   int
}

func NewHistoryStore(capacity int) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryStore{
		capacity: capacity,
		data:     make(map[string]*symbolHistory),
	}
}

// Append records the close of a finished bar.
func (s *HistoryStore) Append(symbol string, close float64) {
	// Fast path: lock per-symbol store only
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()

	if !ok {
		// Need to initialize new symbol store (exclusive lock)
		s.globalMu.Lock()
		if store, ok = s.data[symbol]; !ok {
			store = &symbolHistory{closes: make([]float64, s.capacity)}
			s.data[symbol] = store
		}
		s.globalMu.Unlock()
	}

	store.mu.Lock()
	if store.size < len(store.closes) {
		store.closes[(store.start+store.size)%len(store.closes)] = close
		store.size++
	} else {
		store.closes[store.start] = close
		store.start = (store.start + 1) % len(store.closes)
	}
	store.mu.Unlock()
}

// Series returns a copy of the symbol's closes, oldest first.
func (s *HistoryStore) Series(symbol string) []float64 {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	cp := make([]float64, store.size)
	for i := 0; i < store.size; i++ {
		cp[i] = store.closes[(store.start+i)%len(store.closes)]
	}
	return cp
}

// Len returns the number of closes held for symbol.
func (s *HistoryStore) Len(symbol string) int {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return 0
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	return store.size
}

// Symbols returns the symbols that have at least one close, sorted.
func (s *HistoryStore) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym := range s.data {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// CountAll returns the total number of closes stored across all symbols.
func (s *HistoryStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += store.size
		store.mu.Unlock()
	}
	return total
}
