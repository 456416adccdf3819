package alpaca

import (
	"sort"
	"time"

	"rsiscalper/internal/memorystore"
)

// ParseBars converts data API bars to []Bar sorted by start time.
// It skips rows with a missing timestamp or non-positive prices.
func ParseBars(symbol string, width time.Duration, raw []RawBar) []memorystore.Bar {
	out := make([]memorystore.Bar, 0, len(raw))
	for _, r := range raw {
		if r.Timestamp.IsZero() {
			continue
		}
		if r.Open <= 0 || r.High <= 0 || r.Low <= 0 || r.Close <= 0 {
			continue
		}
		out = append(out, memorystore.Bar{
			Symbol: symbol,
			Start:  r.Timestamp.UTC(),
			Width:  width,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			Trades: r.TradeCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
