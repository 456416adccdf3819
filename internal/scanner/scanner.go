// Package scanner ranks candidate symbols by daily RSI and selects the ones
// trading outside the neutral band.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rsiscalper/internal/feed"
	"rsiscalper/internal/indicator"

	"go.uber.org/zap"
)

// Result is the reading for one candidate.
type Result struct {
	Symbol   string
	RSI      float64
	Defined  bool
	Selected bool
	Err      error
}

type Config struct {
	RSIPeriod     int
	BuyThreshold  float64
	SellThreshold float64
	Lookback      int // daily bars fetched per candidate
	Concurrency   int
}

type Scanner struct {
	cfg     Config
	fetcher feed.BarFetcher
	logger  *zap.Logger
}

func New(cfg Config, fetcher feed.BarFetcher, logger *zap.Logger) *Scanner {
	if cfg.Lookback <= cfg.RSIPeriod {
		cfg.Lookback = cfg.RSIPeriod + 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Scan evaluates every candidate and returns results in candidate order.
// A candidate whose bars cannot be fetched carries Err and is not selected.
func (s *Scanner) Scan(ctx context.Context, candidates []string) []Result {
	results := make([]Result, len(candidates))
	sem := make(chan struct{}, s.cfg.Concurrency) // bounded concurrent fetches

	var wg sync.WaitGroup
	for i, symbol := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.evaluate(ctx, symbol)
		}()
	}
	wg.Wait()
	return results
}

func (s *Scanner) evaluate(ctx context.Context, symbol string) Result {
	res := Result{Symbol: symbol}

	bars, err := s.fetcher.FetchRecentBars(ctx, symbol, s.cfg.Lookback)
	if err != nil {
		s.logger.Warn("failed to fetch daily bars", zap.String("symbol", symbol), zap.Error(err))
		res.Err = err
		return res
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	res.RSI, res.Defined = indicator.RSI(closes, s.cfg.RSIPeriod)
	if !res.Defined {
		s.logger.Info("not enough history for RSI", zap.String("symbol", symbol), zap.Int("bars", len(bars)))
		return res
	}

	res.Selected = res.RSI < s.cfg.BuyThreshold || res.RSI > s.cfg.SellThreshold
	s.logger.Info("scanned", zap.String("symbol", symbol),
		zap.Float64("rsi", res.RSI), zap.Bool("selected", res.Selected))
	return res
}

// Selected returns the symbols of the selected results, in order.
func Selected(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Selected {
			out = append(out, r.Symbol)
		}
	}
	return out
}

// WriteSelection writes symbols to path as a JSON array. The file is
// replaced atomically.
func WriteSelection(path string, symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tickers-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write selection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close selection: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ReadSelection reads a JSON array of symbols written by WriteSelection.
func ReadSelection(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return symbols, nil
}
