package memorystore

import "sync"

// MemorySymbolStore holds the set of symbols the process trades.
type MemorySymbolStore struct {
	mu      sync.RWMutex
	symbols []string
	index   map[string]struct{}
}

func NewSymbolStore(symbols ...string) *MemorySymbolStore {
	s := &MemorySymbolStore{
		symbols: make([]string, 0, len(symbols)),
		index:   make(map[string]struct{}, len(symbols)),
	}
	for _, sym := range symbols {
		s.Add(sym)
	}
	return s
}

// Add registers symbol; duplicates and empty strings are ignored.
func (s *MemorySymbolStore) Add(symbol string) {
	if symbol == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[symbol]; ok {
		return
	}
	s.index[symbol] = struct{}{}
	s.symbols = append(s.symbols, symbol)
}

// StartWorker drains ch into the store in the background. The returned
// channel is closed once ch has been closed and drained.
func (s *MemorySymbolStore) StartWorker(ch <-chan string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for symbol := range ch {
			s.Add(symbol)
		}
	}()
	return done
}

// Contains reports whether symbol is registered.
func (s *MemorySymbolStore) Contains(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[symbol]
	return ok
}

// GetAll returns the registered symbols in insertion order.
func (s *MemorySymbolStore) GetAll() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}
