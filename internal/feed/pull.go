package feed

import (
	"context"
	"time"

	"rsiscalper/internal/memorystore"
	"rsiscalper/internal/metrics"

	"go.uber.org/zap"
)

// PullSource polls finished bars on a timer aligned to bar boundaries.
// Each cycle walks the symbols in configured order; a symbol whose fetch
// keeps failing is skipped for that cycle without affecting the others.
type PullSource struct {
	fetcher  BarFetcher
	symbols  []string
	width    time.Duration
	settle   time.Duration
	lookback int
	warmup   int // lookback of the first cycle
	attempts int
	retry    Backoff
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics

	lastSent map[string]time.Time
}

type PullOption func(*PullSource)

// WithRetry sets the per-symbol fetch attempts and their backoff.
func WithRetry(attempts int, b Backoff) PullOption {
	return func(p *PullSource) {
		p.attempts = attempts
		p.retry = b
	}
}

// WithWarmup makes the first cycle fetch n bars so indicators are defined
// from the start.
func WithWarmup(n int) PullOption {
	return func(p *PullSource) { p.warmup = n }
}

// WithPullClock replaces time.Now, for tests.
func WithPullClock(now func() time.Time) PullOption {
	return func(p *PullSource) { p.now = now }
}

func WithPullMetrics(m *metrics.Metrics) PullOption {
	return func(p *PullSource) { p.metrics = m }
}

func NewPullSource(fetcher BarFetcher, symbols []string, width, settle time.Duration, lookback int,
	logger *zap.Logger, opts ...PullOption) *PullSource {
	if lookback <= 0 {
		lookback = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PullSource{
		fetcher:  fetcher,
		symbols:  symbols,
		width:    width,
		settle:   settle,
		lookback: lookback,
		attempts: 3,
		retry:    Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second},
		now:      time.Now,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream polls once per bar, settle after each boundary, until ctx ends.
func (p *PullSource) Stream(ctx context.Context, out chan<- Event) error {
	for {
		// Wait until the next bar boundary plus the settle delay
		now := p.now().UTC()
		next := now.Truncate(p.width).Add(p.width).Add(p.settle)
		if !sleep(ctx, next.Sub(now)) {
			return nil
		}
		if err := p.Poll(ctx, out); err != nil {
			return nil
		}
	}
}

// Poll runs one fetch cycle over every symbol and emits the finished bars
// not emitted before, oldest first. It returns an error only when ctx ends.
func (p *PullSource) Poll(ctx context.Context, out chan<- Event) error {
	for _, symbol := range p.symbols {
		bars, ok := p.fetch(ctx, symbol)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !ok {
			continue
		}

		now := p.now()
		sent := 0
		for _, bar := range bars {
			if bar.Width == 0 {
				bar.Width = p.width
			}
			// still forming
			if bar.End().After(now) {
				continue
			}
			if last, seen := p.lastSent[symbol]; seen && !bar.Start.After(last) {
				continue
			}
			if !send(ctx, out, BarEvent(bar)) {
				return ctx.Err()
			}
			p.lastSent[symbol] = bar.Start
			sent++
		}
		p.logger.Debug("polled bars", zap.String("symbol", symbol),
			zap.Int("fetched", len(bars)), zap.Int("emitted", sent))
	}
	return nil
}

func (p *PullSource) fetch(ctx context.Context, symbol string) ([]memorystore.Bar, bool) {
	window := p.lookback
	if _, seen := p.lastSent[symbol]; !seen && p.warmup > window {
		window = p.warmup
	}

	b := p.retry
	for attempt := 1; ; attempt++ {
		bars, err := p.fetcher.FetchRecentBars(ctx, symbol, window)
		if err == nil {
			return bars, true
		}
		p.metrics.IncFetchError(symbol)
		if ctx.Err() != nil {
			return nil, false
		}
		if attempt >= p.attempts {
			p.logger.Warn("bar fetch failed, skipping symbol this cycle",
				zap.String("symbol", symbol), zap.Int("attempts", attempt), zap.Error(err))
			return nil, false
		}
		wait := b.Next()
		p.logger.Info("bar fetch failed, retrying",
			zap.String("symbol", symbol), zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
		if !sleep(ctx, wait) {
			return nil, false
		}
	}
}
