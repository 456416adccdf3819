// Package metrics exposes Prometheus counters for the trading pipeline.
//
// All methods are nil-safe so components can run without metrics in tests.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus collectors for the scalper.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal     *prometheus.CounterVec // labels: symbol
	DroppedTicks   *prometheus.CounterVec // labels: reason
	BarsClosed     *prometheus.CounterVec // labels: symbol
	Signals        *prometheus.CounterVec // labels: symbol, signal
	Dispatches     *prometheus.CounterVec // labels: symbol, outcome
	FeedReconnects prometheus.Counter
	FetchErrors    *prometheus.CounterVec // labels: symbol
	LastRSI        *prometheus.GaugeVec   // labels: symbol
	SubmitDuration prometheus.Histogram
}

// New registers and returns all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_ticks_total",
			Help: "Ticks accepted into the bar aggregator",
		}, []string{"symbol"}),
		DroppedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_dropped_ticks_total",
			Help: "Ticks or bars dropped before aggregation",
		}, []string{"reason"}),
		BarsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_bars_closed_total",
			Help: "Bars closed and appended to price history",
		}, []string{"symbol"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_signals_total",
			Help: "Signals evaluated per closed bar",
		}, []string{"symbol", "signal"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_dispatch_outcomes_total",
			Help: "Order dispatcher outcomes",
		}, []string{"symbol", "outcome"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_feed_reconnects_total",
			Help: "Websocket reconnection attempts",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_fetch_errors_total",
			Help: "Failed REST bar fetches",
		}, []string{"symbol"}),
		LastRSI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scalper_rsi",
			Help: "RSI at the most recent bar close",
		}, []string{"symbol"}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scalper_order_submit_seconds",
			Help:    "Order gateway round-trip time",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.BarsClosed,
		m.Signals,
		m.Dispatches,
		m.FeedReconnects,
		m.FetchErrors,
		m.LastRSI,
		m.SubmitDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncTick(symbol string) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(symbol).Inc()
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedTicks.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncBarClosed(symbol string) {
	if m == nil {
		return
	}
	m.BarsClosed.WithLabelValues(symbol).Inc()
}

func (m *Metrics) IncSignal(symbol, signal string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(symbol, signal).Inc()
}

func (m *Metrics) IncDispatch(symbol, outcome string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(symbol, outcome).Inc()
}

func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}

func (m *Metrics) IncFetchError(symbol string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(symbol).Inc()
}

func (m *Metrics) SetRSI(symbol string, v float64) {
	if m == nil {
		return
	}
	m.LastRSI.WithLabelValues(symbol).Set(v)
}

func (m *Metrics) ObserveSubmit(d time.Duration) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(d.Seconds())
}

// Serve starts the /metrics endpoint on addr and returns the server so the
// caller can shut it down.
func (m *Metrics) Serve(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))
	return srv
}
