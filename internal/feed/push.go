package feed

import (
	"context"
	"errors"

	"rsiscalper/internal/memorystore"
	"rsiscalper/internal/metrics"
	"rsiscalper/internal/stream"
	"rsiscalper/pkg/alpaca"

	"go.uber.org/zap"
)

// PushSource subscribes to trades and emits one Tick event per trade,
// reconnecting with exponential backoff whenever the session ends.
type PushSource struct {
	streamer TradeStreamer
	symbols  []string
	backoff  Backoff
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewPushSource(streamer TradeStreamer, symbols []string, logger *zap.Logger, m *metrics.Metrics) *PushSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushSource{
		streamer: streamer,
		symbols:  symbols,
		backoff:  DefaultBackoff(),
		logger:   logger,
		metrics:  m,
	}
}

// WithBackoff replaces the reconnect schedule.
func (p *PushSource) WithBackoff(b Backoff) *PushSource {
	p.backoff = b
	return p
}

// Stream runs sessions until ctx is cancelled. A rejected authentication
// is returned instead of retried.
func (p *PushSource) Stream(ctx context.Context, out chan<- Event) error {
	b := p.backoff
	for {
		received := false
		handler := stream.MakeMessageHandler(p.logger, func(t memorystore.Tick) {
			received = true
			send(ctx, out, TickEvent(t))
		})

		err := p.streamer.Session(ctx, p.symbols, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, alpaca.ErrAuth) {
			return err
		}
		if received {
			b.Reset()
		}

		wait := b.Next()
		p.metrics.IncReconnect()
		p.logger.Warn("trade stream disconnected, reconnecting",
			zap.Error(err), zap.Duration("backoff", wait))
		if !sleep(ctx, wait) {
			return nil
		}
	}
}
