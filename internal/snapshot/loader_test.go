package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rsiscalper/internal/memorystore"

	"go.uber.org/zap"
)

func load(t *testing.T, l *SymbolLoader) []string {
	t.Helper()
	store := memorystore.NewSymbolStore()
	ch := make(chan string, 10)
	done := store.StartWorker(ch)
	if err := l.LoadSymbols(context.Background(), ch); err != nil {
		t.Fatalf("LoadSymbols: %v", err)
	}
	<-done
	return store.GetAll()
}

// go test -v --run TestLoadSymbolsMergesSelection
func TestLoadSymbolsMergesSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.json")
	if err := os.WriteFile(path, []byte(`["XRP/USD","BTC/USD"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	got := load(t, &SymbolLoader{Symbols: []string{"BTC/USD", "ETH/USD"}, File: path, Logger: zap.NewNop()})
	want := []string{"BTC/USD", "ETH/USD", "XRP/USD"}
	if len(got) != len(want) {
		t.Fatalf("symbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbols[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// go test -v --run TestLoadSymbolsMissingFile
func TestLoadSymbolsMissingFile(t *testing.T) {
	got := load(t, &SymbolLoader{Symbols: []string{"BTC/USD"}, File: "/nonexistent/tickers.json", Logger: zap.NewNop()})
	if len(got) != 1 {
		t.Errorf("symbols = %v", got)
	}
}

// go test -v --run TestLoadSymbolsBadFile
func TestLoadSymbolsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.json")
	_ = os.WriteFile(path, []byte(`{`), 0o644)

	ch := make(chan string, 10)
	l := &SymbolLoader{Symbols: []string{"BTC/USD"}, File: path, Logger: zap.NewNop()}
	if err := l.LoadSymbols(context.Background(), ch); err == nil {
		t.Error("expected decode error")
	}
	if _, open := <-ch; open {
		t.Error("channel must be closed")
	}
}
