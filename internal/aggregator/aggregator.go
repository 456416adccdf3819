// Package aggregator folds ticks into fixed-width OHLCV bars.
//
// A bar stays open while ticks keep arriving for its bucket. The first tick
// that lands in a later bucket for the same symbol closes every older open
// bar of that symbol, oldest first. Ticks for a bucket that has already been
// closed are rejected with ErrLate; the aggregator never reopens a bar.
package aggregator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rsiscalper/internal/memorystore"
)

var (
	ErrMalformed     = errors.New("malformed market data")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrLate          = errors.New("bucket already closed")
)

// Aggregator builds bars for any number of symbols. It is safe for
// concurrent use; calls for one symbol are expected to arrive in order.
type Aggregator struct {
	mu      sync.Mutex
	width   time.Duration
	symbols *memorystore.MemorySymbolStore // nil accepts every symbol

	open       map[string]map[int64]*memorystore.Bar // symbol -> bucket start (unix nanos) -> bar
	lastClosed map[string]time.Time
}

// New creates an Aggregator with the given bar width. When symbols is not
// nil, ticks for symbols outside the store are rejected.
func New(width time.Duration, symbols *memorystore.MemorySymbolStore) *Aggregator {
	if width <= 0 {
		width = time.Minute
	}
	return &Aggregator{
		width:      width,
		symbols:    symbols,
		open:       make(map[string]map[int64]*memorystore.Bar),
		lastClosed: make(map[string]time.Time),
	}
}

// BucketStart truncates ts to the start of its bucket (UTC).
func (a *Aggregator) BucketStart(ts time.Time) time.Time {
	return ts.UTC().Truncate(a.width)
}

// Ingest folds tick into its bucket and returns the bars it closed, in
// ascending bucket order. The returned error is ErrMalformed, ErrUnknownSymbol
// or ErrLate (wrapped); in all three cases the tick was dropped.
func (a *Aggregator) Ingest(tick memorystore.Tick) ([]memorystore.Bar, error) {
	if err := a.validateTick(tick); err != nil {
		return nil, err
	}
	bucket := a.BucketStart(tick.Timestamp)

	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.lastClosed[tick.Symbol]; ok && !bucket.After(last) {
		return nil, fmt.Errorf("%w: %s tick at %s, last closed %s",
			ErrLate, tick.Symbol, tick.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339))
	}

	bars := a.open[tick.Symbol]
	if bars == nil {
		bars = make(map[int64]*memorystore.Bar)
		a.open[tick.Symbol] = bars
	}

	if bar, ok := bars[bucket.UnixNano()]; ok {
		if tick.Price > bar.High {
			bar.High = tick.Price
		}
		if tick.Price < bar.Low {
			bar.Low = tick.Price
		}
		bar.Close = tick.Price
		bar.Volume += tick.Size
		bar.Trades++
	} else {
		bars[bucket.UnixNano()] = &memorystore.Bar{
			Symbol: tick.Symbol,
			Start:  bucket,
			Width:  a.width,
			Open:   tick.Price,
			High:   tick.Price,
			Low:    tick.Price,
			Close:  tick.Price,
			Volume: tick.Size,
			Trades: 1,
		}
	}

	return a.closeBefore(tick.Symbol, bucket), nil
}

// AcceptBar admits a bar that the source already finished (pull mode or a
// bar stream). Open tick-built bars older than it are closed first and
// returned ahead of it. Bars at or before the last closed bucket are
// rejected with ErrLate, which makes overlapping polls idempotent.
func (a *Aggregator) AcceptBar(bar memorystore.Bar) ([]memorystore.Bar, error) {
	if err := a.validateBar(bar); err != nil {
		return nil, err
	}
	bucket := a.BucketStart(bar.Start)

	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.lastClosed[bar.Symbol]; ok && !bucket.After(last) {
		return nil, fmt.Errorf("%w: %s bar at %s, last closed %s",
			ErrLate, bar.Symbol, bucket.Format(time.RFC3339), last.Format(time.RFC3339))
	}

	closed := a.closeBefore(bar.Symbol, bucket)
	// a finished bar supersedes any partial bar built from ticks
	delete(a.open[bar.Symbol], bucket.UnixNano())

	bar.Start = bucket
	bar.Width = a.width
	a.lastClosed[bar.Symbol] = bucket
	return append(closed, bar), nil
}

// OpenBars returns copies of the symbol's in-progress bars, oldest first.
func (a *Aggregator) OpenBars(symbol string) []memorystore.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]memorystore.Bar, 0, len(a.open[symbol]))
	for _, bar := range a.open[symbol] {
		out = append(out, *bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// LastClosed returns the start of the most recently closed bucket for symbol.
func (a *Aggregator) LastClosed(symbol string) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.lastClosed[symbol]
	return t, ok
}

// closeBefore removes and returns every open bar of symbol that starts
// strictly before bucket. Caller holds a.mu.
func (a *Aggregator) closeBefore(symbol string, bucket time.Time) []memorystore.Bar {
	bars := a.open[symbol]
	if len(bars) == 0 {
		return nil
	}

	var closed []memorystore.Bar
	for key, bar := range bars {
		if bar.Start.Before(bucket) {
			closed = append(closed, *bar)
			delete(bars, key)
		}
	}
	if len(closed) == 0 {
		return nil
	}

	sort.Slice(closed, func(i, j int) bool { return closed[i].Start.Before(closed[j].Start) })
	a.lastClosed[symbol] = closed[len(closed)-1].Start
	return closed
}

func (a *Aggregator) validateTick(t memorystore.Tick) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrMalformed)
	case !(t.Price > 0):
		return fmt.Errorf("%w: %s price %v", ErrMalformed, t.Symbol, t.Price)
	case !(t.Size >= 0):
		return fmt.Errorf("%w: %s size %v", ErrMalformed, t.Symbol, t.Size)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: %s missing timestamp", ErrMalformed, t.Symbol)
	}
	if a.symbols != nil && !a.symbols.Contains(t.Symbol) {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, t.Symbol)
	}
	return nil
}

func (a *Aggregator) validateBar(b memorystore.Bar) error {
	switch {
	case b.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrMalformed)
	case !(b.Close > 0) || !(b.Open > 0) || !(b.High > 0) || !(b.Low > 0):
		return fmt.Errorf("%w: %s non-positive price", ErrMalformed, b.Symbol)
	case b.High < b.Low:
		return fmt.Errorf("%w: %s high %v below low %v", ErrMalformed, b.Symbol, b.High, b.Low)
	case !(b.Volume >= 0):
		return fmt.Errorf("%w: %s volume %v", ErrMalformed, b.Symbol, b.Volume)
	case b.Start.IsZero():
		return fmt.Errorf("%w: %s missing start", ErrMalformed, b.Symbol)
	}
	if a.symbols != nil && !a.symbols.Contains(b.Symbol) {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, b.Symbol)
	}
	return nil
}
