// Package paper simulates a broker in memory. Bracket orders fill at the
// reference price and stay open until a later bar trades through the stop
// or the target, so the position gate behaves as it would against a live
// account.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rsiscalper/internal/dispatch"
	"rsiscalper/internal/memorystore"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Position is an open simulated position.
type Position struct {
	OrderID  string
	Symbol   string
	Side     dispatch.Side
	Qty      decimal.Decimal
	Entry    decimal.Decimal
	Stop     decimal.Decimal // zero for a simple order
	Target   decimal.Decimal // zero for a simple order
	OpenedAt time.Time
}

// Fill is a simulated entry or exit.
type Fill struct {
	OrderID  string
	Symbol   string
	Side     dispatch.Side
	Qty      decimal.Decimal
	Price    decimal.Decimal
	Reason   string // "entry", "stop_loss" or "take_profit"
	FilledAt time.Time
}

// Broker implements dispatch.OrderGateway and dispatch.PositionRegistry.
type Broker struct {
	mu          sync.RWMutex
	seq         int64
	positions   map[string]*Position
	fills       []Fill
	realized    decimal.Decimal
	slippageBps int64
	now         func() time.Time
	logger      *zap.Logger
}

// NewBroker creates a paper broker. slippageBps worsens every entry fill by
// that many basis points.
func NewBroker(slippageBps int64, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		positions:   make(map[string]*Position),
		fills:       make([]Fill, 0, 64),
		slippageBps: slippageBps,
		now:         time.Now,
		logger:      logger,
	}
}

// SubmitOrder fills spec immediately. A second entry while a position is
// open is rejected.
func (b *Broker) SubmitOrder(ctx context.Context, spec dispatch.OrderSpec) (dispatch.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.OrderAck{}, err
	}
	if err := spec.Validate(); err != nil {
		return dispatch.OrderAck{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, open := b.positions[spec.Symbol]; open {
		return dispatch.OrderAck{}, fmt.Errorf("paper: position already open for %s", spec.Symbol)
	}

	b.seq++
	orderID := fmt.Sprintf("PAPER-%d", b.seq)
	price := b.slip(spec.Side, spec.Entry.RefPrice)
	now := b.now()

	pos := &Position{
		OrderID:  orderID,
		Symbol:   spec.Symbol,
		Side:     spec.Side,
		Qty:      spec.Quantity,
		Entry:    price,
		OpenedAt: now,
	}
	if spec.Class() == dispatch.ClassBracket {
		pos.Stop = spec.StopLoss.StopPrice
		pos.Target = spec.TakeProfit.LimitPrice
	}
	b.positions[spec.Symbol] = pos
	b.fills = append(b.fills, Fill{OrderID: orderID, Symbol: spec.Symbol, Side: spec.Side,
		Qty: spec.Quantity, Price: price, Reason: "entry", FilledAt: now})

	b.logger.Info("paper order filled",
		zap.String("order_id", orderID),
		zap.String("symbol", spec.Symbol),
		zap.String("side", string(spec.Side)),
		zap.String("qty", spec.Quantity.String()),
		zap.String("price", price.String()),
	)
	return dispatch.OrderAck{OrderID: orderID, Status: "filled"}, nil
}

// HasOpenPosition reports whether a simulated position is open for symbol.
func (b *Broker) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.positions[symbol]
	return ok, nil
}

// SaveBar marks open positions against a closed bar and exits any whose
// stop or target the bar traded through. When both were touched the stop
// is assumed to have filled first.
func (b *Broker) SaveBar(_ context.Context, bar memorystore.Bar) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[bar.Symbol]
	if !ok || pos.Stop.IsZero() {
		return nil
	}

	high := decimal.NewFromFloat(bar.High)
	low := decimal.NewFromFloat(bar.Low)

	var exit decimal.Decimal
	var reason string
	switch pos.Side {
	case dispatch.SideBuy:
		if low.LessThanOrEqual(pos.Stop) {
			exit, reason = pos.Stop, "stop_loss"
		} else if high.GreaterThanOrEqual(pos.Target) {
			exit, reason = pos.Target, "take_profit"
		}
	case dispatch.SideSell:
		if high.GreaterThanOrEqual(pos.Stop) {
			exit, reason = pos.Stop, "stop_loss"
		} else if low.LessThanOrEqual(pos.Target) {
			exit, reason = pos.Target, "take_profit"
		}
	}
	if reason == "" {
		return nil
	}

	pnl := exit.Sub(pos.Entry).Mul(pos.Qty)
	if pos.Side == dispatch.SideSell {
		pnl = pnl.Neg()
	}
	b.realized = b.realized.Add(pnl)
	delete(b.positions, bar.Symbol)
	b.fills = append(b.fills, Fill{OrderID: pos.OrderID, Symbol: pos.Symbol, Side: opposite(pos.Side),
		Qty: pos.Qty, Price: exit, Reason: reason, FilledAt: bar.End()})

	b.logger.Info("paper position closed",
		zap.String("order_id", pos.OrderID),
		zap.String("symbol", pos.Symbol),
		zap.String("reason", reason),
		zap.String("exit", exit.String()),
		zap.String("pnl", pnl.String()),
	)
	return nil
}

// Positions returns a snapshot of the open positions.
func (b *Broker) Positions() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}

// Fills returns a snapshot of all fills.
func (b *Broker) Fills() []Fill {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cp := make([]Fill, len(b.fills))
	copy(cp, b.fills)
	return cp
}

// RealizedPnL is the sum of closed-position profits in quote currency.
func (b *Broker) RealizedPnL() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.realized
}

func (b *Broker) slip(side dispatch.Side, price decimal.Decimal) decimal.Decimal {
	if b.slippageBps == 0 {
		return price
	}
	adj := price.Mul(decimal.NewFromInt(b.slippageBps)).Div(decimal.NewFromInt(10000))
	if side == dispatch.SideBuy {
		return price.Add(adj) // buy higher
	}
	return price.Sub(adj) // sell lower
}

func opposite(s dispatch.Side) dispatch.Side {
	if s == dispatch.SideBuy {
		return dispatch.SideSell
	}
	return dispatch.SideBuy
}
