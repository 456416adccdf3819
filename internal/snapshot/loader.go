package snapshot

import (
	"context"
	"errors"
	"io/fs"

	"rsiscalper/internal/scanner"

	"go.uber.org/zap"
)

// SymbolLoader resolves the trading universe: the configured symbols plus,
// when File is set, the selection last written by the scanner.
type SymbolLoader struct {
	Symbols []string
	File    string
	Logger  *zap.Logger
}

// LoadSymbols streams the universe into the provided channel, configured
// symbols first. A missing selection file is not an error.
func (l *SymbolLoader) LoadSymbols(ctx context.Context, ch chan<- string) error {
	defer close(ch) // Ensure downstream consumers can exit cleanly

	symbols := append([]string(nil), l.Symbols...)
	if l.File != "" {
		selected, err := scanner.ReadSelection(l.File)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			l.Logger.Warn("symbol selection file not found, using configured symbols", zap.String("file", l.File))
		case err != nil:
			l.Logger.Error("failed to read symbol selection", zap.String("file", l.File), zap.Error(err))
			return err
		default:
			symbols = append(symbols, selected...)
		}
	}
	l.Logger.Info("loaded symbols", zap.Int("count", len(symbols)))

	for _, symbol := range symbols {
		select {
		case ch <- symbol:
		case <-ctx.Done():
			l.Logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	return nil
}
