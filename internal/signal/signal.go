// Package signal turns an indicator snapshot into a trade decision.
package signal

import (
	"fmt"

	"rsiscalper/internal/indicator"
)

// Signal is the decision for one closed bar.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// TrendFilter selects the moving-average condition that must agree with
// the RSI before a Buy or Sell is emitted.
type TrendFilter string

const (
	// TrendNone trades on RSI alone.
	TrendNone TrendFilter = "none"
	// TrendSingle requires close above (buy) or below (sell) SMAShort.
	TrendSingle TrendFilter = "single"
	// TrendDual requires SMAShort above (buy) or below (sell) SMALong.
	TrendDual TrendFilter = "dual"
)

// Config holds the evaluator thresholds and trend filter.
type Config struct {
	RSIPeriod      int
	SMAShortPeriod int
	SMALongPeriod  int
	Trend          TrendFilter
	BuyThreshold   float64
	SellThreshold  float64
}

// DefaultConfig returns RSI(14) with 30/70 thresholds and no trend filter.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:     14,
		Trend:         TrendNone,
		BuyThreshold:  30,
		SellThreshold: 70,
	}
}

// Params returns the indicator set the evaluator needs.
func (c Config) Params() indicator.Params {
	p := indicator.Params{RSIPeriod: c.RSIPeriod}
	switch c.Trend {
	case TrendSingle:
		p.SMAShortPeriod = c.SMAShortPeriod
	case TrendDual:
		p.SMAShortPeriod = c.SMAShortPeriod
		p.SMALongPeriod = c.SMALongPeriod
	}
	return p
}

func (c Config) Validate() error {
	if c.RSIPeriod <= 0 {
		return fmt.Errorf("signal: rsi period must be positive, got %d", c.RSIPeriod)
	}
	if c.BuyThreshold < 0 || c.SellThreshold > 100 || c.BuyThreshold >= c.SellThreshold {
		return fmt.Errorf("signal: thresholds must satisfy 0 <= buy < sell <= 100, got %v/%v",
			c.BuyThreshold, c.SellThreshold)
	}
	switch c.Trend {
	case TrendNone, "":
	case TrendSingle:
		if c.SMAShortPeriod <= 0 {
			return fmt.Errorf("signal: single trend filter needs a positive SMA period")
		}
	case TrendDual:
		if c.SMAShortPeriod <= 0 || c.SMALongPeriod <= c.SMAShortPeriod {
			return fmt.Errorf("signal: dual trend filter needs 0 < short < long, got %d/%d",
				c.SMAShortPeriod, c.SMALongPeriod)
		}
	default:
		return fmt.Errorf("signal: unknown trend filter %q", c.Trend)
	}
	return nil
}

// Evaluate decides Buy, Sell or Hold from the latest snapshot and close.
// Any undefined reading the decision depends on yields Hold.
func Evaluate(snap indicator.Snapshot, lastClose float64, cfg Config) Signal {
	if !snap.RSI.Defined {
		return Hold
	}
	rsi := snap.RSI.Val

	switch {
	case rsi < cfg.BuyThreshold:
		if trendAgrees(snap, lastClose, cfg.Trend, Buy) {
			return Buy
		}
	case rsi > cfg.SellThreshold:
		if trendAgrees(snap, lastClose, cfg.Trend, Sell) {
			return Sell
		}
	}
	return Hold
}

func trendAgrees(snap indicator.Snapshot, lastClose float64, trend TrendFilter, side Signal) bool {
	switch trend {
	case TrendSingle:
		if !snap.SMAShort.Defined {
			return false
		}
		if side == Buy {
			return lastClose > snap.SMAShort.Val
		}
		return lastClose < snap.SMAShort.Val
	case TrendDual:
		if !snap.SMAShort.Defined || !snap.SMALong.Defined {
			return false
		}
		if side == Buy {
			return snap.SMAShort.Val > snap.SMALong.Val
		}
		return snap.SMAShort.Val < snap.SMALong.Val
	default:
		return true
	}
}
