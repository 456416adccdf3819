package stream

import "rsiscalper/pkg/alpaca"

// Frame is one decoded websocket frame: the trades it carried and the
// control messages (connection status, subscription acks, errors).
type Frame struct {
	Trades   []alpaca.TradeMessage
	Controls []alpaca.ControlMessage
}
