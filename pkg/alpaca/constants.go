package alpaca

import (
	"fmt"
	"time"
)

// Timeframe is the bar timeframe string used by the market data API.
type Timeframe string

// TimeframeMeta holds the API value, the short DB value and the bar width.
type TimeframeMeta struct {
	APIValue string
	DBValue  string
	Width    time.Duration
}

const (
	Timeframe1Min  Timeframe = "1Min"
	Timeframe5Min  Timeframe = "5Min"
	Timeframe15Min Timeframe = "15Min"
	Timeframe30Min Timeframe = "30Min"
	Timeframe1Hour Timeframe = "1Hour"
	Timeframe4Hour Timeframe = "4Hour"
	Timeframe1Day  Timeframe = "1Day"
)

// validTimeframes maps Timeframe to its API and DB representations
var validTimeframes = map[Timeframe]TimeframeMeta{
	Timeframe1Min:  {APIValue: "1Min", DBValue: "1m", Width: time.Minute},
	Timeframe5Min:  {APIValue: "5Min", DBValue: "5m", Width: 5 * time.Minute},
	Timeframe15Min: {APIValue: "15Min", DBValue: "15m", Width: 15 * time.Minute},
	Timeframe30Min: {APIValue: "30Min", DBValue: "30m", Width: 30 * time.Minute},
	Timeframe1Hour: {APIValue: "1Hour", DBValue: "1h", Width: time.Hour},
	Timeframe4Hour: {APIValue: "4Hour", DBValue: "4h", Width: 4 * time.Hour},
	Timeframe1Day:  {APIValue: "1Day", DBValue: "1d", Width: 24 * time.Hour},
}

// IsValid checks if the Timeframe is a supported predefined timeframe
func (t Timeframe) IsValid() bool {
	_, ok := validTimeframes[t]
	return ok
}

// Meta returns the representations of t. The zero value is returned for an
// unsupported timeframe.
func (t Timeframe) Meta() TimeframeMeta {
	return validTimeframes[t]
}

// TimeframeFor returns the timeframe whose bars are exactly width wide.
func TimeframeFor(width time.Duration) (Timeframe, error) {
	for tf, meta := range validTimeframes {
		if meta.Width == width {
			return tf, nil
		}
	}
	return "", fmt.Errorf("no alpaca timeframe for bar width %s", width)
}

// DBValue returns the short label ("1m", "1h", ...) for width, or the
// duration string when no timeframe matches.
func DBValue(width time.Duration) string {
	if tf, err := TimeframeFor(width); err == nil {
		return validTimeframes[tf].DBValue
	}
	return width.String()
}
