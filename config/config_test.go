package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rsiscalper/config"
)

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("symbols: [X]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Feed.BarWidth != time.Minute {
		t.Errorf("bar width = %v, want 1m", cfg.Feed.BarWidth)
	}
	if cfg.Strategy.RSIPeriod != 14 {
		t.Errorf("rsi period = %d, want 14", cfg.Strategy.RSIPeriod)
	}
	if cfg.Strategy.BuyThreshold != 30 || cfg.Strategy.SellThreshold != 70 {
		t.Errorf("thresholds = %v/%v, want 30/70", cfg.Strategy.BuyThreshold, cfg.Strategy.SellThreshold)
	}
	if cfg.Order.StopLossPct != 0.01 || cfg.Order.TakeProfitPct != 0.02 {
		t.Errorf("stop/tp = %v/%v", cfg.Order.StopLossPct, cfg.Order.TakeProfitPct)
	}
	if cfg.Order.Cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cfg.Order.Cooldown)
	}
	if !cfg.Order.Bracket {
		t.Errorf("bracket orders should be the default")
	}
	if cfg.Feed.HistoryCapacity != 5000 {
		t.Errorf("capacity = %d, want 5000", cfg.Feed.HistoryCapacity)
	}
}

// go test -v --run TestLoadOverrides
func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
symbols: [BTC/USD]
feed:
  mode: pull
  bar_width: 5m
order:
  default_quantity: 0.5
  quantity:
    BTC/USD: 0.002
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ORDER_COOLDOWN", "45s")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.Mode != "pull" || cfg.Feed.BarWidth != 5*time.Minute {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Order.Cooldown != 45*time.Second {
		t.Errorf("cooldown = %v, want env override 45s", cfg.Order.Cooldown)
	}
	if got := cfg.Order.QuantityFor("BTC/USD"); got != 0.002 {
		t.Errorf("quantity BTC/USD = %v, want 0.002", got)
	}
	if got := cfg.Order.QuantityFor("ETH/USD"); got != 0.5 {
		t.Errorf("quantity fallback = %v, want 0.5", got)
	}
}

// go test -v --run TestValidateRejectsBadMode
func TestValidateRejectsBadMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("symbols: [X]\nfeed:\n  mode: carrier-pigeon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown feed mode")
	}
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "pw",
		DBName:   "rsiscalper",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
	want := "host=localhost port=5432 user=postgres password=pw dbname=rsiscalper sslmode=disable TimeZone=UTC"
	if got := cfg.DSN("dev"); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	if got := cfg.AdminDSN(); got == want {
		t.Errorf("admin DSN should target the postgres database, got %q", got)
	}
}
