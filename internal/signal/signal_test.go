package signal

import (
	"testing"

	"rsiscalper/internal/indicator"
)

func val(v float64) indicator.Value { return indicator.Value{Val: v, Defined: true} }

// go test -v --run TestEvaluate
func TestEvaluate(t *testing.T) {
	undefined := indicator.Value{}

	cases := []struct {
		name  string
		snap  indicator.Snapshot
		close float64
		trend TrendFilter
		want  Signal
	}{
		{"rsi undefined", indicator.Snapshot{RSI: undefined}, 10, TrendNone, Hold},
		{"oversold no filter", indicator.Snapshot{RSI: val(20)}, 10, TrendNone, Buy},
		{"overbought no filter", indicator.Snapshot{RSI: val(80)}, 10, TrendNone, Sell},
		{"neutral", indicator.Snapshot{RSI: val(50)}, 10, TrendNone, Hold},
		{"at buy threshold", indicator.Snapshot{RSI: val(30)}, 10, TrendNone, Hold},
		{"at sell threshold", indicator.Snapshot{RSI: val(70)}, 10, TrendNone, Hold},

		{"single buy above sma", indicator.Snapshot{RSI: val(20), SMAShort: val(9)}, 10, TrendSingle, Buy},
		{"single buy below sma", indicator.Snapshot{RSI: val(20), SMAShort: val(11)}, 10, TrendSingle, Hold},
		{"single sell below sma", indicator.Snapshot{RSI: val(80), SMAShort: val(11)}, 10, TrendSingle, Sell},
		{"single sma undefined", indicator.Snapshot{RSI: val(20)}, 10, TrendSingle, Hold},

		{"dual golden", indicator.Snapshot{RSI: val(20), SMAShort: val(12), SMALong: val(11)}, 10, TrendDual, Buy},
		{"dual death blocks buy", indicator.Snapshot{RSI: val(20), SMAShort: val(10), SMALong: val(11)}, 10, TrendDual, Hold},
		{"dual death sell", indicator.Snapshot{RSI: val(80), SMAShort: val(10), SMALong: val(11)}, 10, TrendDual, Sell},
		{"dual long undefined", indicator.Snapshot{RSI: val(20), SMAShort: val(12)}, 10, TrendDual, Hold},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Trend = tc.trend
			if got := Evaluate(tc.snap, tc.close, cfg); got != tc.want {
				t.Errorf("Evaluate = %s, want %s", got, tc.want)
			}
		})
	}
}

// go test -v --run TestConfigValidate
func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []Config{
		{RSIPeriod: 0, BuyThreshold: 30, SellThreshold: 70},
		{RSIPeriod: 14, BuyThreshold: 70, SellThreshold: 30},
		{RSIPeriod: 14, BuyThreshold: 30, SellThreshold: 70, Trend: TrendSingle},
		{RSIPeriod: 14, BuyThreshold: 30, SellThreshold: 70, Trend: TrendDual, SMAShortPeriod: 200, SMALongPeriod: 50},
		{RSIPeriod: 14, BuyThreshold: 30, SellThreshold: 70, Trend: "macd"},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}

// go test -v --run TestParamsFollowTrend
func TestParamsFollowTrend(t *testing.T) {
	cfg := Config{RSIPeriod: 14, SMAShortPeriod: 50, SMALongPeriod: 200, Trend: TrendNone}
	if p := cfg.Params(); p.SMAShortPeriod != 0 || p.SMALongPeriod != 0 {
		t.Errorf("no trend filter should not request SMAs: %+v", p)
	}
	cfg.Trend = TrendDual
	if p := cfg.Params(); p.SMAShortPeriod != 50 || p.SMALongPeriod != 200 {
		t.Errorf("dual filter params = %+v", p)
	}
}
