// Package pipeline runs the per-symbol aggregate, indicate, decide and
// dispatch sequence for every event a feed produces.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rsiscalper/internal/aggregator"
	"rsiscalper/internal/dispatch"
	"rsiscalper/internal/feed"
	"rsiscalper/internal/indicator"
	"rsiscalper/internal/memorystore"
	"rsiscalper/internal/metrics"
	"rsiscalper/internal/signal"
	"rsiscalper/logger"

	"go.uber.org/zap"
)

// Dispatcher is the order side of the pipeline.
type Dispatcher interface {
	MaybeDispatch(ctx context.Context, symbol string, sig signal.Signal, lastClose, quantity float64) (dispatch.Result, error)
}

// BarSink receives every closed bar, e.g. an archive table.
type BarSink interface {
	SaveBar(ctx context.Context, bar memorystore.Bar) error
}

// Evaluation is the outcome of one closed bar.
type Evaluation struct {
	Bar      memorystore.Bar
	Snapshot indicator.Snapshot
	Signal   signal.Signal
	Result   dispatch.Result
}

type Config struct {
	Strategy  signal.Config
	Quantity  func(symbol string) float64
	QueueSize int // per-lane buffer

	// MaxSignalAge stops signals on pulled bars that ended longer ago than
	// this (warmup history) from reaching the dispatcher. Bars closed by a
	// live trade are never aged out. Zero disables the check.
	MaxSignalAge time.Duration
}

type Pipeline struct {
	cfg        Config
	agg        *aggregator.Aggregator
	history    *memorystore.HistoryStore
	dispatcher Dispatcher
	sinks      []BarSink
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Pipeline)

func WithSink(s BarSink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, s) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(cfg Config, agg *aggregator.Aggregator, history *memorystore.HistoryStore,
	dispatcher Dispatcher, logger *zap.Logger, opts ...Option) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Quantity == nil {
		cfg.Quantity = func(string) float64 { return 0 }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:        cfg,
		agg:        agg,
		history:    history,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run routes events to one lane per symbol until in is closed, then lets
// every lane drain its queue and returns once all lanes have exited.
// Lanes for different symbols run concurrently; events of one symbol are
// processed in arrival order.
func (p *Pipeline) Run(ctx context.Context, in <-chan feed.Event) {
	var wg sync.WaitGroup
	lanes := make(map[string]chan feed.Event)

	for ev := range in {
		symbol := ev.Symbol()
		lane, ok := lanes[symbol]
		if !ok {
			lane = make(chan feed.Event, p.cfg.QueueSize)
			lanes[symbol] = lane
			wg.Add(1)
			go func() {
				defer wg.Done()
				for ev := range lane {
					p.Process(ctx, ev)
				}
			}()
		}
		lane <- ev
	}

	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()
}

// Process handles one event synchronously and returns an Evaluation for
// each bar it closed.
func (p *Pipeline) Process(ctx context.Context, ev feed.Event) []Evaluation {
	var (
		closed []memorystore.Bar
		err    error
	)
	switch {
	case ev.Tick != nil:
		closed, err = p.agg.Ingest(*ev.Tick)
	case ev.Bar != nil:
		closed, err = p.agg.AcceptBar(*ev.Bar)
	default:
		return nil
	}
	switch {
	case err != nil:
		p.drop(ev, err)
	case ev.Tick != nil:
		p.metrics.IncTick(ev.Tick.Symbol)
	}

	evals := make([]Evaluation, 0, len(closed))
	pulled := ev.Bar != nil
	for _, bar := range closed {
		evals = append(evals, p.onBarClose(ctx, bar, pulled))
	}
	return evals
}

func (p *Pipeline) drop(ev feed.Event, err error) {
	reason := "malformed"
	switch {
	case errors.Is(err, aggregator.ErrLate):
		reason = "late"
	case errors.Is(err, aggregator.ErrUnknownSymbol):
		reason = "unknown_symbol"
	}
	p.metrics.IncDropped(reason)
	p.logger.Debug("event dropped", zap.String("symbol", ev.Symbol()), zap.String("reason", reason), zap.Error(err))
}

func (p *Pipeline) onBarClose(ctx context.Context, bar memorystore.Bar, pulled bool) Evaluation {
	p.metrics.IncBarClosed(bar.Symbol)
	p.history.Append(bar.Symbol, bar.Close)

	log := logger.ForSymbol(p.logger, bar.Symbol)
	snap := indicator.Compute(p.history.Series(bar.Symbol), p.cfg.Strategy.Params())
	logBar(log, bar, snap)
	if snap.RSI.Defined {
		p.metrics.SetRSI(bar.Symbol, snap.RSI.Val)
	}

	for _, sink := range p.sinks {
		if err := sink.SaveBar(ctx, bar); err != nil {
			log.Warn("failed to archive bar", zap.Error(err))
		}
	}

	eval := Evaluation{Bar: bar, Snapshot: snap, Signal: signal.Evaluate(snap, bar.Close, p.cfg.Strategy)}
	if eval.Signal == signal.Hold {
		eval.Result = dispatch.Result{Outcome: dispatch.OutcomeHold}
		return eval
	}

	p.metrics.IncSignal(bar.Symbol, eval.Signal.String())
	log.Info("signal", zap.Stringer("signal", eval.Signal),
		zap.Float64("rsi", snap.RSI.Val), zap.Float64("close", bar.Close))

	if age := p.now().Sub(bar.End()); pulled && p.cfg.MaxSignalAge > 0 && age > p.cfg.MaxSignalAge {
		log.Debug("signal on stale bar not dispatched", zap.Duration("age", age))
		eval.Result = dispatch.Result{Outcome: dispatch.OutcomeHold, Reason: "stale bar"}
		return eval
	}

	if ctx.Err() != nil {
		log.Warn("shutting down, signal not dispatched")
		eval.Result = dispatch.Result{Outcome: dispatch.OutcomeFailed, Reason: ctx.Err().Error()}
		return eval
	}

	res, err := p.dispatcher.MaybeDispatch(ctx, bar.Symbol, eval.Signal, bar.Close, p.cfg.Quantity(bar.Symbol))
	if err != nil {
		log.Warn("dispatch failed", zap.Error(err))
	}
	eval.Result = res
	return eval
}

// logBar prints the closed bar with its RSI, "n/a" while undefined.
func logBar(log *zap.Logger, bar memorystore.Bar, snap indicator.Snapshot) {
	rsi := "n/a"
	if snap.RSI.Defined {
		rsi = fmt.Sprintf("%.2f", snap.RSI.Val)
	}
	log.Info("bar closed",
		zap.Time("start", bar.Start),
		zap.String("ohlc", fmt.Sprintf("O:%.2f H:%.2f L:%.2f C:%.2f", bar.Open, bar.High, bar.Low, bar.Close)),
		zap.Float64("volume", bar.Volume),
		zap.String("rsi", rsi),
	)
}
