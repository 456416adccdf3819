package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rsiscalper/internal/signal"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu        sync.Mutex
	submitted []OrderSpec
	err       error
	delay     time.Duration
}

func (f *fakeGateway) SubmitOrder(ctx context.Context, spec OrderSpec) (OrderAck, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return OrderAck{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return OrderAck{}, f.err
	}
	f.submitted = append(f.submitted, spec)
	return OrderAck{OrderID: spec.ClientOrderID, Status: "accepted"}, nil
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakePositions struct {
	open map[string]bool
	err  error
}

func (f *fakePositions) HasOpenPosition(_ context.Context, symbol string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.open[symbol], nil
}

type fakeJournal struct {
	recorded []OrderAck
}

func (f *fakeJournal) RecordOrder(_ context.Context, _ OrderSpec, ack OrderAck, _ time.Time) error {
	f.recorded = append(f.recorded, ack)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDispatcher(gw OrderGateway, pos PositionRegistry, c *clock, opts ...Option) *Dispatcher {
	opts = append(opts, WithClock(c.now))
	return New(DefaultConfig(), gw, pos, nil, opts...)
}

// go test -v --run TestHoldIsNoop
func TestHoldIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	d := newTestDispatcher(gw, &fakePositions{}, &clock{t: time.Unix(0, 0)})

	res, err := d.MaybeDispatch(context.Background(), "X", signal.Hold, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHold, res.Outcome)
	assert.Zero(t, gw.count())
}

// go test -v --run TestCooldownGate
func TestCooldownGate(t *testing.T) {
	gw := &fakeGateway{}
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := newTestDispatcher(gw, &fakePositions{}, c)
	ctx := context.Background()

	res, err := d.MaybeDispatch(ctx, "X", signal.Buy, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)

	c.advance(10 * time.Second)
	res, err = d.MaybeDispatch(ctx, "X", signal.Buy, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeThrottled, res.Outcome)
	assert.Equal(t, 1, gw.count(), "second buy inside the cooldown must not submit")

	// other symbols have their own gate
	res, _ = d.MaybeDispatch(ctx, "Y", signal.Buy, 100, 1)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)

	c.advance(20 * time.Second)
	res, _ = d.MaybeDispatch(ctx, "X", signal.Buy, 100, 1)
	assert.Equal(t, OutcomeSubmitted, res.Outcome, "cooldown elapsed")
	assert.Equal(t, 3, gw.count())
}

// go test -v --run TestPositionGate
func TestPositionGate(t *testing.T) {
	gw := &fakeGateway{}
	d := newTestDispatcher(gw, &fakePositions{open: map[string]bool{"X": true}}, &clock{t: time.Unix(0, 0)})

	res, err := d.MaybeDispatch(context.Background(), "X", signal.Buy, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePositionExists, res.Outcome)
	assert.Zero(t, gw.count())
}

// go test -v --run TestPositionLookupFailsClosed
func TestPositionLookupFailsClosed(t *testing.T) {
	gw := &fakeGateway{}
	d := newTestDispatcher(gw, &fakePositions{err: errors.New("connection refused")}, &clock{t: time.Unix(0, 0)})

	res, err := d.MaybeDispatch(context.Background(), "X", signal.Sell, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePositionExists, res.Outcome)
	assert.Contains(t, res.Reason, "connection refused")
	assert.Zero(t, gw.count())
}

// go test -v --run TestGatewayFailureKeepsGateOpen
func TestGatewayFailureKeepsGateOpen(t *testing.T) {
	gw := &fakeGateway{err: errors.New("insufficient buying power")}
	c := &clock{t: time.Unix(1000, 0)}
	d := newTestDispatcher(gw, &fakePositions{}, c)
	ctx := context.Background()

	res, err := d.MaybeDispatch(ctx, "X", signal.Buy, 100, 1)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	_, sent := d.LastOrderTime("X")
	assert.False(t, sent, "failed submission must not start the cooldown")

	gw.err = nil
	c.advance(time.Second)
	res, err = d.MaybeDispatch(ctx, "X", signal.Buy, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
}

// go test -v --run TestSubmitTimeoutIsFailure
func TestSubmitTimeoutIsFailure(t *testing.T) {
	gw := &fakeGateway{delay: time.Second}
	cfg := DefaultConfig()
	cfg.SubmitTimeout = 20 * time.Millisecond
	d := New(cfg, gw, &fakePositions{}, nil)

	res, err := d.MaybeDispatch(context.Background(), "X", signal.Buy, 100, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

// go test -v --run TestInFlightSubmitSurvivesCancel
func TestInFlightSubmitSurvivesCancel(t *testing.T) {
	gw := &fakeGateway{delay: 200 * time.Millisecond}
	d := New(DefaultConfig(), gw, &fakePositions{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := d.MaybeDispatch(ctx, "X", signal.Buy, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
	assert.Equal(t, 1, gw.count())
	_, ok := d.LastOrderTime("X")
	assert.True(t, ok, "a completed submission advances the cooldown")
}

// go test -v --run TestPlainMarketEntry
func TestPlainMarketEntry(t *testing.T) {
	gw := &fakeGateway{}
	cfg := DefaultConfig()
	cfg.PlainMarket = true
	d := New(cfg, gw, &fakePositions{}, nil)

	res, err := d.MaybeDispatch(context.Background(), "X", signal.Sell, 7, 0.5)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
	require.Equal(t, 1, gw.count())
	o := gw.submitted[0]
	assert.Equal(t, ClassSimple, o.Class())
	assert.Nil(t, o.StopLoss)
	assert.Nil(t, o.TakeProfit)
	assert.Equal(t, "7", o.Entry.RefPrice.String())
}

// go test -v --run TestBracketLegs
func TestBracketLegs(t *testing.T) {
	gw := &fakeGateway{}
	j := &fakeJournal{}
	c := &clock{t: time.Unix(0, 0)}
	d := newTestDispatcher(gw, &fakePositions{}, c, WithJournal(j))
	ctx := context.Background()

	_, err := d.MaybeDispatch(ctx, "BUY", signal.Buy, 7, 0.5)
	require.NoError(t, err)
	_, err = d.MaybeDispatch(ctx, "SELL", signal.Sell, 7, 0.5)
	require.NoError(t, err)
	require.Equal(t, 2, gw.count())

	buy := gw.submitted[0]
	assert.Equal(t, ClassBracket, buy.Class())
	assert.Equal(t, SideBuy, buy.Side)
	assert.Equal(t, "6.93", buy.StopLoss.StopPrice.String())
	assert.Equal(t, "7.14", buy.TakeProfit.LimitPrice.String())
	assert.Equal(t, "0.5", buy.Quantity.String())

	sell := gw.submitted[1]
	assert.Equal(t, SideSell, sell.Side)
	assert.Equal(t, "7.07", sell.StopLoss.StopPrice.String())
	assert.Equal(t, "6.86", sell.TakeProfit.LimitPrice.String())

	assert.Len(t, j.recorded, 2)
}

// go test -v --run TestRejectsNonPositiveQuantity
func TestRejectsNonPositiveQuantity(t *testing.T) {
	gw := &fakeGateway{}
	d := newTestDispatcher(gw, &fakePositions{}, &clock{t: time.Unix(0, 0)})

	res, err := d.MaybeDispatch(context.Background(), "X", signal.Buy, 100, 0)
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Zero(t, gw.count())
}

// go test -v --run TestConcurrentSameSymbolSubmitsOnce
func TestConcurrentSameSymbolSubmitsOnce(t *testing.T) {
	gw := &fakeGateway{delay: 5 * time.Millisecond}
	d := New(DefaultConfig(), gw, &fakePositions{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.MaybeDispatch(context.Background(), "X", signal.Buy, 100, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, gw.count())
}

// go test -v --run TestRoundDown
func TestRoundDown(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{100.12349, "100.1234"},
		{100.1236, "100.1236"},
		{100.99999, "100.9999"},
		{7.0, "7"},
		{0.00019, "0.0001"},
	}
	for _, tc := range cases {
		got := RoundDown(decimal.NewFromFloat(tc.in), PricePlaces)
		assert.Equal(t, tc.want, got.String(), "RoundDown(%v)", tc.in)
	}
}

// go test -v --run TestNewBracketOrderValidation
func TestNewBracketOrderValidation(t *testing.T) {
	d := decimal.RequireFromString
	one := d("1")

	_, err := NewBracketOrder("X", SideBuy, one, TimeInForceGTC, d("10"), d("9.9"), d("10.2"))
	require.NoError(t, err)

	bad := []struct {
		name               string
		side               Side
		qty                decimal.Decimal
		tif                TimeInForce
		entry, stop, limit string
	}{
		{"buy stop above entry", SideBuy, one, TimeInForceGTC, "10", "10.1", "10.2"},
		{"buy target below entry", SideBuy, one, TimeInForceGTC, "10", "9.9", "9.8"},
		{"sell legs flipped", SideSell, one, TimeInForceGTC, "10", "9.9", "10.2"},
		{"zero qty", SideBuy, decimal.Zero, TimeInForceGTC, "10", "9.9", "10.2"},
		{"bad tif", SideBuy, one, "forever", "10", "9.9", "10.2"},
		{"bad side", "hold", one, TimeInForceGTC, "10", "9.9", "10.2"},
		{"zero stop", SideBuy, one, TimeInForceGTC, "0.0001", "0", "0.0002"},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBracketOrder("X", tc.side, tc.qty, tc.tif, d(tc.entry), d(tc.stop), d(tc.limit))
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	market, err := NewMarketOrder("X", SideSell, one, TimeInForceDay, d("10"))
	require.NoError(t, err)
	assert.Equal(t, ClassSimple, market.Class())
	assert.NotEmpty(t, market.ClientOrderID)
}
