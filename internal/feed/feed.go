// Package feed delivers market data to the pipeline, either pushed as trades
// over a websocket or pulled as finished bars over REST.
package feed

import (
	"context"

	"rsiscalper/internal/memorystore"
)

// Event carries exactly one of a trade tick or a finished bar.
type Event struct {
	Tick *memorystore.Tick
	Bar  *memorystore.Bar
}

func TickEvent(t memorystore.Tick) Event { return Event{Tick: &t} }

func BarEvent(b memorystore.Bar) Event { return Event{Bar: &b} }

// Symbol returns the instrument the event belongs to.
func (e Event) Symbol() string {
	switch {
	case e.Tick != nil:
		return e.Tick.Symbol
	case e.Bar != nil:
		return e.Bar.Symbol
	}
	return ""
}

// Source produces events until ctx is cancelled. Stream never closes out;
// the caller owns it. A nil return means ctx ended the stream.
type Source interface {
	Stream(ctx context.Context, out chan<- Event) error
}

// BarFetcher returns up to window of the most recent bars for symbol,
// oldest first.
type BarFetcher interface {
	FetchRecentBars(ctx context.Context, symbol string, window int) ([]memorystore.Bar, error)
}

// TradeStreamer runs one websocket session, delivering raw frames to
// handler until the connection drops or ctx is cancelled.
type TradeStreamer interface {
	Session(ctx context.Context, symbols []string, handler func([]byte)) error
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
