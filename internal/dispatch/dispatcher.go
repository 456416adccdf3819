// Package dispatch turns trade decisions into bracket orders.
//
// Every submission passes two gates per symbol: a cooldown since the last
// successful order and a check that no position is already open. The gate
// check, the submission and the gate update run under one per-symbol lock,
// so two evaluations of the same symbol can never both submit.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rsiscalper/internal/metrics"
	"rsiscalper/internal/signal"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderGateway submits orders to the broker.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, spec OrderSpec) (OrderAck, error)
}

// PositionRegistry answers whether a position is open. It must return
// (false, nil) when there is none and an error only when it cannot tell.
type PositionRegistry interface {
	HasOpenPosition(ctx context.Context, symbol string) (bool, error)
}

// Journal records accepted orders. Journal failures are logged and never
// undo a submission.
type Journal interface {
	RecordOrder(ctx context.Context, spec OrderSpec, ack OrderAck, submittedAt time.Time) error
}

type Outcome string

const (
	OutcomeHold           Outcome = "hold"
	OutcomeThrottled      Outcome = "throttled"
	OutcomePositionExists Outcome = "position_exists"
	OutcomeRejected       Outcome = "rejected"
	OutcomeSubmitted      Outcome = "submitted"
	OutcomeFailed         Outcome = "failed"
)

// Result describes what MaybeDispatch did.
type Result struct {
	Outcome Outcome
	Order   *OrderSpec
	Ack     *OrderAck
	Reason  string
}

type Config struct {
	StopLossPct     float64
	TakeProfitPct   float64
	Cooldown        time.Duration
	TimeInForce     TimeInForce
	SubmitTimeout   time.Duration
	PositionTimeout time.Duration

	// PlainMarket sends entries without exit legs; the percentages are
	// then only used for logging.
	PlainMarket bool
}

// DefaultConfig mirrors the documented defaults: 1% stop, 2% target, 30s cooldown.
func DefaultConfig() Config {
	return Config{
		StopLossPct:     0.01,
		TakeProfitPct:   0.02,
		Cooldown:        30 * time.Second,
		TimeInForce:     TimeInForceGTC,
		SubmitTimeout:   10 * time.Second,
		PositionTimeout: 5 * time.Second,
	}
}

type Dispatcher struct {
	cfg       Config
	gateway   OrderGateway
	positions PositionRegistry
	journal   Journal
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu    sync.Mutex
	gates map[string]*gate
}

// gate is the per-symbol critical section and cooldown state.
type gate struct {
	mu        sync.Mutex
	lastOrder time.Time
}

type Option func(*Dispatcher)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithJournal(j Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(cfg Config, gateway OrderGateway, positions PositionRegistry, logger *zap.Logger, opts ...Option) *Dispatcher {
	if cfg.TimeInForce == "" {
		cfg.TimeInForce = TimeInForceGTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		cfg:       cfg,
		gateway:   gateway,
		positions: positions,
		logger:    logger,
		now:       time.Now,
		gates:     make(map[string]*gate),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaybeDispatch submits a bracket order for sig unless a gate blocks it.
// A non-nil error is returned only for OutcomeRejected and OutcomeFailed;
// in both cases the cooldown is left untouched so the next bar may retry.
func (d *Dispatcher) MaybeDispatch(ctx context.Context, symbol string, sig signal.Signal, lastClose, quantity float64) (Result, error) {
	res, err := d.dispatch(ctx, symbol, sig, lastClose, quantity)
	if res.Outcome != OutcomeHold {
		d.metrics.IncDispatch(symbol, string(res.Outcome))
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, symbol string, sig signal.Signal, lastClose, quantity float64) (Result, error) {
	var side Side
	switch sig {
	case signal.Buy:
		side = SideBuy
	case signal.Sell:
		side = SideSell
	default:
		return Result{Outcome: OutcomeHold}, nil
	}

	g := d.gateFor(symbol)
	g.mu.Lock()
	defer g.mu.Unlock()

	now := d.now()
	if !g.lastOrder.IsZero() && now.Sub(g.lastOrder) < d.cfg.Cooldown {
		remaining := d.cfg.Cooldown - now.Sub(g.lastOrder)
		d.logger.Info("order throttled by cooldown",
			zap.String("symbol", symbol), zap.Stringer("signal", sig), zap.Duration("remaining", remaining))
		return Result{Outcome: OutcomeThrottled, Reason: fmt.Sprintf("cooldown %s remaining", remaining)}, nil
	}

	if open, reason := d.positionOpen(ctx, symbol); open {
		d.logger.Info("order skipped, position gate closed",
			zap.String("symbol", symbol), zap.Stringer("signal", sig), zap.String("reason", reason))
		return Result{Outcome: OutcomePositionExists, Reason: reason}, nil
	}

	entry := decimal.NewFromFloat(lastClose)
	stop, target := BracketPrices(side, entry, d.cfg.StopLossPct, d.cfg.TakeProfitPct)
	qty := decimal.NewFromFloat(quantity)
	var spec OrderSpec
	var err error
	if d.cfg.PlainMarket {
		spec, err = NewMarketOrder(symbol, side, qty, d.cfg.TimeInForce, entry)
	} else {
		spec, err = NewBracketOrder(symbol, side, qty, d.cfg.TimeInForce, entry, stop, target)
	}
	if err != nil {
		d.logger.Warn("order rejected before submission", zap.String("symbol", symbol), zap.Error(err))
		return Result{Outcome: OutcomeRejected, Reason: err.Error()}, err
	}

	d.logger.Info("submitting order",
		zap.String("symbol", symbol),
		zap.String("class", string(spec.Class())),
		zap.String("side", string(side)),
		zap.String("qty", spec.Quantity.String()),
		zap.String("entry", entry.String()),
		zap.String("stop", stop.String()),
		zap.String("target", target.String()),
		zap.String("client_order_id", spec.ClientOrderID),
	)

	submitCtx, cancel := d.withTimeout(ctx, d.cfg.SubmitTimeout)
	started := time.Now()
	ack, err := d.gateway.SubmitOrder(submitCtx, spec)
	cancel()
	d.metrics.ObserveSubmit(time.Since(started))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("order submission timed out after %s: %w", d.cfg.SubmitTimeout, err)
		} else {
			err = fmt.Errorf("order submission failed: %w", err)
		}
		d.logger.Error("order submission failed", zap.String("symbol", symbol), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Order: &spec, Reason: err.Error()}, err
	}

	g.lastOrder = now
	d.logger.Info("order accepted",
		zap.String("symbol", symbol), zap.String("order_id", ack.OrderID), zap.String("status", ack.Status))

	if d.journal != nil {
		if jerr := d.journal.RecordOrder(context.WithoutCancel(ctx), spec, ack, now); jerr != nil {
			d.logger.Warn("failed to journal order", zap.String("order_id", ack.OrderID), zap.Error(jerr))
		}
	}

	return Result{Outcome: OutcomeSubmitted, Order: &spec, Ack: &ack}, nil
}

// positionOpen fails closed: a lookup error counts as an open position.
func (d *Dispatcher) positionOpen(ctx context.Context, symbol string) (bool, string) {
	if d.positions == nil {
		return false, ""
	}
	lookupCtx, cancel := d.withTimeout(ctx, d.cfg.PositionTimeout)
	defer cancel()

	open, err := d.positions.HasOpenPosition(lookupCtx, symbol)
	if err != nil {
		d.logger.Warn("position lookup failed, assuming position exists",
			zap.String("symbol", symbol), zap.Error(err))
		return true, fmt.Sprintf("position lookup failed: %v", err)
	}
	if open {
		return true, "position exists"
	}
	return false, ""
}

// LastOrderTime returns when the last successful order for symbol was sent.
func (d *Dispatcher) LastOrderTime(symbol string) (time.Time, bool) {
	g := d.gateFor(symbol)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOrder, !g.lastOrder.IsZero()
}

func (d *Dispatcher) gateFor(symbol string) *gate {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.gates[symbol]
	if !ok {
		g = &gate{}
		d.gates[symbol] = g
	}
	return g
}

// withTimeout detaches broker calls from ctx cancellation so a request
// already on the wire completes; only timeout bounds it.
func (d *Dispatcher) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
