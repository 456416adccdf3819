// Package indicator computes technical indicators over a closed-bar price series.
//
// All functions are pure: they read only the series they are given, never look
// past its last element, and return the same bits for the same input.
package indicator

// Value is an indicator reading that may be undefined when the series is
// shorter than the indicator's window.
type Value struct {
	Val     float64
	Defined bool
}

func defined(v float64) Value { return Value{Val: v, Defined: true} }

// Params selects which indicators a Snapshot carries. A zero SMA period
// leaves that moving average undefined.
type Params struct {
	RSIPeriod      int
	SMAShortPeriod int
	SMALongPeriod  int
}

// Snapshot is the set of readings taken when a bar closes.
type Snapshot struct {
	RSI      Value
	SMAShort Value
	SMALong  Value
}

// Compute evaluates every indicator configured in p over series.
func Compute(series []float64, p Params) Snapshot {
	var snap Snapshot
	if v, ok := RSI(series, p.RSIPeriod); ok {
		snap.RSI = defined(v)
	}
	if v, ok := SMA(series, p.SMAShortPeriod); ok {
		snap.SMAShort = defined(v)
	}
	if v, ok := SMA(series, p.SMALongPeriod); ok {
		snap.SMALong = defined(v)
	}
	return snap
}
