package stream

import (
	"testing"
	"time"

	"rsiscalper/internal/memorystore"

	"go.uber.org/zap"
)

// go test -v --run TestParseFrame
func TestParseFrame(t *testing.T) {
	msg := []byte(`[
		{"T":"success","msg":"authenticated"},
		{"T":"t","S":"BTC/USD","p":64000.5,"s":0.002,"t":"2024-05-01T12:00:01.5Z","i":1,"tks":"B"},
		{"T":"q","S":"BTC/USD","bp":1,"ap":2},
		{"T":"t","S":"ETH/USD","p":3000,"s":1,"t":"2024-05-01T12:00:02Z","i":2,"tks":"S"}
	]`)

	f, err := ParseFrame(msg)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if len(f.Controls) != 1 || f.Controls[0].Msg != "authenticated" {
		t.Errorf("controls = %+v", f.Controls)
	}
	if len(f.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(f.Trades))
	}

	tick := ToTick(f.Trades[0])
	want := time.Date(2024, 5, 1, 12, 0, 1, 500_000_000, time.UTC)
	if tick.Symbol != "BTC/USD" || tick.Price != 64000.5 || tick.Size != 0.002 || !tick.Timestamp.Equal(want) {
		t.Errorf("tick = %+v", tick)
	}
}

// go test -v --run TestParseFrameRejectsGarbage
func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"T":"t"}`)); err == nil {
		t.Error("expected error for non-array frame")
	}
}

// go test -v --run TestMessageHandlerEmitsTicks
func TestMessageHandlerEmitsTicks(t *testing.T) {
	var got []memorystore.Tick
	h := MakeMessageHandler(zap.NewNop(), func(tick memorystore.Tick) { got = append(got, tick) })

	h([]byte(`[{"T":"subscription","trades":["BTC/USD"]}]`))
	h([]byte(`not json`))
	h([]byte(`[{"T":"t","S":"BTC/USD","p":1,"s":2,"t":"2024-05-01T12:00:00Z"}]`))

	if len(got) != 1 || got[0].Price != 1 {
		t.Errorf("ticks = %+v", got)
	}
}
