package stream

import (
	"encoding/json"
	"fmt"

	"rsiscalper/internal/memorystore"
	"rsiscalper/pkg/alpaca"

	"go.uber.org/zap"
)

// MakeMessageHandler returns a function that handles incoming WebSocket messages
// by parsing trade data and passing each trade on as a Tick.
func MakeMessageHandler(logger *zap.Logger, emit func(memorystore.Tick)) func(msg []byte) {
	return func(msg []byte) {
		frame, err := ParseFrame(msg)
		if err != nil {
			logger.Warn("failed to parse stream frame", zap.Error(err))
			return
		}

		for _, c := range frame.Controls {
			switch c.Type {
			case alpaca.MsgError:
				logger.Error("stream error message", zap.Int("code", c.Code), zap.String("msg", c.Msg))
			case alpaca.MsgSubscription:
				logger.Info("subscription confirmed", zap.Strings("trades", c.Trades))
			default:
				logger.Debug("stream control message", zap.String("type", c.Type), zap.String("msg", c.Msg))
			}
		}

		for _, t := range frame.Trades {
			emit(ToTick(t))
		}
	}
}

// ParseFrame decodes a frame. Elements of unknown type are skipped.
func ParseFrame(msg []byte) (Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(msg, &elems); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	var f Frame
	for _, raw := range elems {
		// TradeMessage names both "T" and "t", so neither key folds into the other
		var trade alpaca.TradeMessage
		if err := json.Unmarshal(raw, &trade); err != nil {
			return Frame{}, fmt.Errorf("decode element: %w", err)
		}
		switch trade.Type {
		case alpaca.MsgTrade:
			f.Trades = append(f.Trades, trade)
		case alpaca.MsgSuccess, alpaca.MsgError, alpaca.MsgSubscription:
			var c alpaca.ControlMessage
			if err := json.Unmarshal(raw, &c); err != nil {
				return Frame{}, fmt.Errorf("decode control message: %w", err)
			}
			f.Controls = append(f.Controls, c)
		}
	}
	return f, nil
}

// ToTick converts a trade message. Validation is left to the aggregator.
func ToTick(t alpaca.TradeMessage) memorystore.Tick {
	return memorystore.Tick{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Size:      t.Size,
		Timestamp: t.Timestamp.UTC(),
	}
}
