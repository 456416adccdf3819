package logger

import (
	"os"
	"path/filepath"
	"testing"

	"rsiscalper/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// go test -v --run TestNewWritesFile
func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scalper.log")

	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputFile: path}, "test")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain the entry")
	}
}

// go test -v --run TestNewRejectsBadLevel
func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}, ""); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

// go test -v --run TestForSymbol
func TestForSymbol(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ForSymbol(zap.New(core), "BTC/USD").Info("bar closed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()[SymbolKey]; got != "BTC/USD" {
		t.Errorf("symbol field = %v, want BTC/USD", got)
	}

	// nil parent is tolerated
	ForSymbol(nil, "X").Info("dropped")
}
