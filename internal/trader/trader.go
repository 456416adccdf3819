// Package trader wires configuration into a running pipeline: symbol
// universe, feed, aggregator, indicators, dispatcher, broker and storage.
package trader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rsiscalper/config"
	"rsiscalper/internal/aggregator"
	"rsiscalper/internal/dispatch"
	"rsiscalper/internal/feed"
	"rsiscalper/internal/memorystore"
	"rsiscalper/internal/metrics"
	"rsiscalper/internal/paper"
	"rsiscalper/internal/pipeline"
	"rsiscalper/internal/signal"
	"rsiscalper/internal/snapshot"
	"rsiscalper/pkg/alpaca"
	"rsiscalper/pkg/storage"
	"rsiscalper/pkg/storage/postgres"

	"go.uber.org/zap"
)

var (
	_ storage.Store             = (*postgres.PostgresClient)(nil)
	_ dispatch.OrderGateway     = (*alpaca.RESTClient)(nil)
	_ dispatch.PositionRegistry = (*alpaca.RESTClient)(nil)
	_ feed.BarFetcher           = (*alpaca.BarFetcher)(nil)
	_ feed.TradeStreamer        = (*alpaca.WSClient)(nil)
)

// Trader owns every long-lived component of one process.
type Trader struct {
	cfg    *config.Config
	logger *zap.Logger

	metrics  *metrics.Metrics
	symbols  *memorystore.MemorySymbolStore
	history  *memorystore.HistoryStore
	store    storage.Store
	pg       *postgres.PostgresClient
	broker   *paper.Broker // nil unless broker.mode is paper
	pipeline *pipeline.Pipeline
	fetcher  feed.BarFetcher
	streamer feed.TradeStreamer
}

// New builds the components described by cfg. Nothing is started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Trader, error) {
	env := cfg.Log.Environment
	t := &Trader{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		history: memorystore.NewHistoryStore(cfg.Feed.HistoryCapacity),
	}

	// Resolve the symbol universe before anything subscribes
	symbolCh := make(chan string, 100)
	t.symbols = memorystore.NewSymbolStore()
	done := t.symbols.StartWorker(symbolCh)
	loader := &snapshot.SymbolLoader{Symbols: cfg.Symbols, File: cfg.SymbolsFile, Logger: logger}
	if err := loader.LoadSymbols(ctx, symbolCh); err != nil {
		return nil, fmt.Errorf("failed to load symbols: %w", err)
	}
	<-done
	if len(t.symbols.GetAll()) == 0 {
		return nil, errors.New("no symbols to trade")
	}

	// Archive and journal
	if cfg.Postgres.Enabled {
		pg, err := postgres.InitializeAndMigrate(ctx, cfg.Postgres, env, env != "prod")
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		t.pg = pg
		t.store = pg
	} else {
		t.store = storage.NewMemoryStore(cfg.Feed.HistoryCapacity)
	}

	// One lookup serves the trading and market-data clients
	key, secret, err := cfg.Broker.Credentials(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broker credentials: %w", err)
	}

	// Order gateway and position registry
	var (
		gateway   dispatch.OrderGateway
		positions dispatch.PositionRegistry
	)
	switch cfg.Broker.Mode {
	case "paper":
		t.broker = paper.NewBroker(0, logger.Named("paper"))
		gateway, positions = t.broker, t.broker
	default:
		trading := alpaca.NewRESTClient(cfg.Broker.Trading.BaseURL, key, secret, cfg.Broker.Trading.Timeout)
		gateway, positions = trading, trading
	}

	tif, err := dispatch.ParseTimeInForce(cfg.Order.TimeInForce)
	if err != nil {
		return nil, err
	}
	dispatcher := dispatch.New(dispatch.Config{
		StopLossPct:     cfg.Order.StopLossPct,
		TakeProfitPct:   cfg.Order.TakeProfitPct,
		Cooldown:        cfg.Order.Cooldown,
		TimeInForce:     tif,
		SubmitTimeout:   cfg.Order.SubmitTimeout,
		PositionTimeout: cfg.Broker.Trading.Timeout,
		PlainMarket:     !cfg.Order.Bracket,
	}, gateway, positions, logger.Named("dispatch"),
		dispatch.WithJournal(t.store),
		dispatch.WithMetrics(t.metrics),
	)

	strategy := StrategyConfig(cfg.Strategy)
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithMetrics(t.metrics), pipeline.WithSink(t.store)}
	if t.broker != nil {
		opts = append(opts, pipeline.WithSink(t.broker))
	}
	t.pipeline = pipeline.New(pipeline.Config{
		Strategy:     strategy,
		Quantity:     cfg.Order.QuantityFor,
		QueueSize:    cfg.Feed.QueueSize,
		MaxSignalAge: 2*cfg.Feed.BarWidth + cfg.Feed.SettleDelay,
	}, aggregator.New(cfg.Feed.BarWidth, t.symbols), t.history, dispatcher, logger.Named("pipeline"), opts...)

	// Market data
	data := alpaca.NewRESTClient(cfg.Broker.Data.BaseURL, key, secret, cfg.Broker.Data.Timeout)
	fetcher, err := alpaca.NewBarFetcher(data, cfg.Feed.BarWidth)
	switch {
	case err == nil:
		t.fetcher = fetcher
	case cfg.Feed.Mode == "pull":
		return nil, err
	}
	t.streamer = alpaca.NewWSClient(cfg.Broker.Stream.URL, key, secret, cfg.Broker.Stream.Timeout, logger.Named("stream"))

	return t, nil
}

// StrategyConfig maps the strategy section onto the evaluator config.
func StrategyConfig(s config.StrategyConfig) signal.Config {
	return signal.Config{
		RSIPeriod:      s.RSIPeriod,
		SMAShortPeriod: s.SMAShort,
		SMALongPeriod:  s.SMALong,
		Trend:          signal.TrendFilter(s.TrendFilter),
		BuyThreshold:   s.BuyThreshold,
		SellThreshold:  s.SellThreshold,
	}
}

// Run streams market data through the pipeline until ctx is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	stopMetrics := t.serveMetrics()
	defer stopMetrics()

	go t.statusLoop(ctx)

	source, err := t.source()
	if err != nil {
		return err
	}

	events := make(chan feed.Event, t.cfg.Feed.QueueSize)
	errCh := make(chan error, 1)
	go func() {
		err := source.Stream(ctx, events)
		close(events)
		errCh <- err
	}()

	t.logger.Info("trader started",
		zap.String("feed", t.cfg.Feed.Mode),
		zap.String("broker", t.cfg.Broker.Mode),
		zap.Strings("symbols", t.symbols.GetAll()),
		zap.Duration("bar_width", t.cfg.Feed.BarWidth),
	)
	t.pipeline.Run(ctx, events)
	t.logSummary()
	return <-errCh
}

// RunOnce performs a single pull cycle over every symbol, evaluates the
// latest finished bar and returns.
func (t *Trader) RunOnce(ctx context.Context) error {
	if t.fetcher == nil {
		return fmt.Errorf("no bar fetcher for width %s", t.cfg.Feed.BarWidth)
	}
	events := make(chan feed.Event, t.cfg.Feed.QueueSize)
	pull := feed.NewPullSource(t.fetcher, t.symbols.GetAll(), t.cfg.Feed.BarWidth, 0,
		t.warmupBars(), t.logger.Named("feed"), feed.WithPullMetrics(t.metrics))

	errCh := make(chan error, 1)
	go func() {
		errCh <- pull.Poll(ctx, events)
		close(events)
	}()
	t.pipeline.Run(ctx, events)
	t.logSummary()
	return <-errCh
}

// Close releases the database connection.
func (t *Trader) Close() error {
	if t.pg != nil {
		return t.pg.Close()
	}
	return nil
}

func (t *Trader) source() (feed.Source, error) {
	symbols := t.symbols.GetAll()
	switch t.cfg.Feed.Mode {
	case "pull":
		if t.fetcher == nil {
			return nil, fmt.Errorf("no bar fetcher for width %s", t.cfg.Feed.BarWidth)
		}
		return feed.NewPullSource(t.fetcher, symbols, t.cfg.Feed.BarWidth, t.cfg.Feed.SettleDelay,
			t.cfg.Feed.PollLookback, t.logger.Named("feed"),
			feed.WithWarmup(t.warmupBars()),
			feed.WithPullMetrics(t.metrics),
		), nil
	default:
		return feed.NewPushSource(t.streamer, symbols, t.logger.Named("feed"), t.metrics), nil
	}
}

// warmupBars is enough history for every configured indicator.
func (t *Trader) warmupBars() int {
	n := t.cfg.Feed.WarmupBars
	for _, need := range []int{t.cfg.Strategy.RSIPeriod + 1, t.cfg.Strategy.SMAShort, t.cfg.Strategy.SMALong} {
		if need > n {
			n = need
		}
	}
	return n
}

func (t *Trader) serveMetrics() func() {
	if t.cfg.Metrics.Addr == "" {
		return func() {}
	}
	srv := t.metrics.Serve(t.cfg.Metrics.Addr, t.logger)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}

// statusLoop periodically prints how much history is held.
func (t *Trader) statusLoop(ctx context.Context) {
	interval := t.cfg.Feed.StatusInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fields := []zap.Field{zap.Int("closes", t.history.CountAll())}
			for _, symbol := range t.history.Symbols() {
				fields = append(fields, zap.Int(symbol, t.history.Len(symbol)))
			}
			t.logger.Info("current saved history", fields...)
		}
	}
}

func (t *Trader) logSummary() {
	if t.broker == nil {
		return
	}
	t.logger.Info("paper session summary",
		zap.Int("fills", len(t.broker.Fills())),
		zap.Int("open_positions", len(t.broker.Positions())),
		zap.String("realized_pnl", t.broker.RealizedPnL().String()),
	)
}
