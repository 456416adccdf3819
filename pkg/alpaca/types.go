package alpaca

import (
	"fmt"
	"time"
)

// APIError is the error body returned by the trading and data APIs.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca error %d: %s", e.StatusCode, e.Message)
}

// BarsResponse is the multi-symbol bars envelope of /v1beta3/crypto/us/bars.
type BarsResponse struct {
	Bars          map[string][]RawBar `json:"bars"`
	NextPageToken *string             `json:"next_page_token"`
}

// RawBar is one bar as sent by the data API.
type RawBar struct {
	Timestamp  time.Time `json:"t"`  // bar start (RFC3339)
	Open       float64   `json:"o"`  // open price
	High       float64   `json:"h"`  // high price
	Low        float64   `json:"l"`  // low price
	Close      float64   `json:"c"`  // close price
	Volume     float64   `json:"v"`  // traded volume
	TradeCount int       `json:"n"`  // number of trades
	VWAP       float64   `json:"vw"` // volume weighted average price
}

// OrderRequest is the body of POST /v2/orders.
type OrderRequest struct {
	Symbol        string           `json:"symbol"`
	Qty           string           `json:"qty"`
	Side          string           `json:"side"`
	Type          string           `json:"type"`
	TimeInForce   string           `json:"time_in_force"`
	OrderClass    string           `json:"order_class,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
	TakeProfit    *TakeProfitParam `json:"take_profit,omitempty"`
	StopLoss      *StopLossParam   `json:"stop_loss,omitempty"`
}

type TakeProfitParam struct {
	LimitPrice string `json:"limit_price"`
}

type StopLossParam struct {
	StopPrice string `json:"stop_price"`
}

// OrderResponse holds the fields of an order object this client reads.
type OrderResponse struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Status        string `json:"status"`
	Symbol        string `json:"symbol"`
}

// PositionResponse holds the fields of a position object this client reads.
type PositionResponse struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
	Side   string `json:"side"`
}

// Stream message types. Frames are JSON arrays mixing control messages and
// data messages.
const (
	MsgSuccess      = "success"
	MsgError        = "error"
	MsgSubscription = "subscription"
	MsgTrade        = "t"
)

// TradeMessage is a trade data message.
type TradeMessage struct {
	Type      string    `json:"T"`
	Symbol    string    `json:"S"`
	Price     float64   `json:"p"`
	Size      float64   `json:"s"`
	Timestamp time.Time `json:"t"`
	ID        int64     `json:"i"`
	TakerSide string    `json:"tks"`
}

// ControlMessage is a success or error message.
type ControlMessage struct {
	Type   string   `json:"T"`
	Msg    string   `json:"msg"`
	Code   int      `json:"code"`
	Trades []string `json:"trades"`
}
