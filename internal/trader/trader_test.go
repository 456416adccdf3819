package trader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rsiscalper/config"
	"rsiscalper/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// barServer serves four finished one-minute bars ending at the current
// minute with closes 10, 9, 8, 7.
func barServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta3/crypto/us/bars" {
			http.NotFound(w, r)
			return
		}
		end := time.Now().UTC().Truncate(time.Minute)
		var rows []string
		for i, c := range []float64{10, 9, 8, 7} {
			start := end.Add(time.Duration(i-4) * time.Minute)
			rows = append(rows, fmt.Sprintf(`{"t":%q,"o":%v,"h":%v,"l":%v,"c":%v,"v":1,"n":1}`,
				start.Format(time.RFC3339), c, c, c, c))
		}
		_, _ = fmt.Fprintf(w, `{"bars":{"X/USD":[%s]},"next_page_token":null}`, strings.Join(rows, ","))
	}))
}

func testConfig(t *testing.T, dataURL string) *config.Config {
	t.Helper()
	yaml := fmt.Sprintf(`
symbols: [X/USD]
feed:
  mode: pull
  warmup_bars: 10
strategy:
  rsi_period: 3
order:
  default_quantity: 0.5
broker:
  mode: paper
  data:
    base_url: %s
metrics:
  addr: ""
`, dataURL)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

// go test -v --run TestRunOncePaper
func TestRunOncePaper(t *testing.T) {
	srv := barServer(t)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	tr, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.RunOnce(context.Background()))

	assert.Equal(t, 4, tr.history.Len("X/USD"))
	positions := tr.broker.Positions()
	require.Len(t, positions, 1, "RSI 0 on the last bar must open one paper position")
	assert.Equal(t, "X/USD", positions[0].Symbol)
	assert.Equal(t, "0.5", positions[0].Qty.String())
	assert.Equal(t, "6.93", positions[0].Stop.String())
	assert.Equal(t, "7.14", positions[0].Target.String())
}

// go test -v --run TestRunStopsOnCancel
func TestRunStopsOnCancel(t *testing.T) {
	srv := barServer(t)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Feed.StatusInterval = 10 * time.Millisecond
	tr, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// go test -v --run TestStrategyConfig
func TestStrategyConfig(t *testing.T) {
	sc := StrategyConfig(config.StrategyConfig{
		RSIPeriod: 14, SMAShort: 50, SMALong: 200, TrendFilter: "dual", BuyThreshold: 30, SellThreshold: 70,
	})
	assert.Equal(t, signal.TrendDual, sc.Trend)
	assert.NoError(t, sc.Validate())
}

// go test -v --run TestNewRejectsUnknownTimeInForce
func TestNewRejectsUnknownTimeInForce(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Order.TimeInForce = "forever"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
