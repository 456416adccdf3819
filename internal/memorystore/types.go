package memorystore

import (
	"time"
)

// Tick is a single trade print delivered by the market-data source.
// It is never modified after it is received.
type Tick struct {
	Symbol    string    `json:"symbol"`    // Trading symbol (e.g., "BTC/USD")
	Price     float64   `json:"price"`     // Trade price, must be positive
	Size      float64   `json:"size"`      // Trade size, must not be negative
	Timestamp time.Time `json:"timestamp"` // Exchange timestamp of the trade
}

// Bar is an OHLCV summary of all ticks that fell into one bucket.
type Bar struct {
	Symbol string        `json:"symbol"` // Trading symbol (e.g., "BTC/USD")
	Start  time.Time     `json:"start"`  // Bucket start, tick timestamp truncated to the bar width
	Width  time.Duration `json:"width"`  // Bucket width
	Open   float64       `json:"open"`   // Price of the first tick in the bucket
	High   float64       `json:"high"`   // Highest price during the bucket
	Low    float64       `json:"low"`    // Lowest price during the bucket
	Close  float64       `json:"close"`  // Price of the most recent tick
	Volume float64       `json:"volume"` // Sum of tick sizes
	Trades int           `json:"trades"` // Number of ticks folded into the bar
}

// End returns the exclusive end of the bar's bucket.
func (b Bar) End() time.Time {
	return b.Start.Add(b.Width)
}
