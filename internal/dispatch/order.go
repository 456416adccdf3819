package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidOrder = errors.New("invalid order")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceDay TimeInForce = "day"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// ParseTimeInForce accepts the lower-case broker spelling.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch tif := TimeInForce(s); tif {
	case TimeInForceGTC, TimeInForceDay, TimeInForceIOC, TimeInForceFOK:
		return tif, nil
	}
	return "", fmt.Errorf("%w: unknown time in force %q", ErrInvalidOrder, s)
}

type OrderClass string

const (
	ClassSimple  OrderClass = "simple"
	ClassBracket OrderClass = "bracket"
)

// EntryLeg is the market order that opens the position. RefPrice is the
// close the protective legs were derived from.
type EntryLeg struct {
	RefPrice decimal.Decimal
}

type StopLossLeg struct {
	StopPrice decimal.Decimal
}

type TakeProfitLeg struct {
	LimitPrice decimal.Decimal
}

// OrderSpec is a validated order request. A bracket carries both exit legs;
// a simple order carries neither.
type OrderSpec struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	TimeInForce   TimeInForce
	Entry         EntryLeg
	StopLoss      *StopLossLeg
	TakeProfit    *TakeProfitLeg
}

// OrderAck is the gateway's answer to a submission.
type OrderAck struct {
	OrderID string
	Status  string
}

// Class reports whether the spec is a bracket or a plain market order.
func (o OrderSpec) Class() OrderClass {
	if o.StopLoss != nil && o.TakeProfit != nil {
		return ClassBracket
	}
	return ClassSimple
}

// NewMarketOrder builds a plain market order with no exit legs.
func NewMarketOrder(symbol string, side Side, qty decimal.Decimal, tif TimeInForce, ref decimal.Decimal) (OrderSpec, error) {
	o := OrderSpec{
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		TimeInForce:   tif,
		Entry:         EntryLeg{RefPrice: ref},
	}
	return o, o.Validate()
}

// NewBracketOrder builds an entry with a stop-loss and a take-profit leg.
// The legs must sit on the protective side of the entry: below/above it
// for a buy, above/below it for a sell.
func NewBracketOrder(symbol string, side Side, qty decimal.Decimal, tif TimeInForce,
	entry, stop, target decimal.Decimal) (OrderSpec, error) {
	o := OrderSpec{
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		TimeInForce:   tif,
		Entry:         EntryLeg{RefPrice: entry},
		StopLoss:      &StopLossLeg{StopPrice: stop},
		TakeProfit:    &TakeProfitLeg{LimitPrice: target},
	}
	return o, o.Validate()
}

func (o OrderSpec) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s must be positive", ErrInvalidOrder, o.Quantity)
	}
	if _, err := ParseTimeInForce(string(o.TimeInForce)); err != nil {
		return err
	}
	if (o.StopLoss == nil) != (o.TakeProfit == nil) {
		return fmt.Errorf("%w: bracket needs both stop-loss and take-profit", ErrInvalidOrder)
	}
	if o.Class() != ClassBracket {
		return nil
	}

	entry, stop, target := o.Entry.RefPrice, o.StopLoss.StopPrice, o.TakeProfit.LimitPrice
	if !entry.IsPositive() || !stop.IsPositive() || !target.IsPositive() {
		return fmt.Errorf("%w: bracket prices must be positive (entry=%s stop=%s target=%s)",
			ErrInvalidOrder, entry, stop, target)
	}
	switch o.Side {
	case SideBuy:
		if !stop.LessThan(entry) || !target.GreaterThan(entry) {
			return fmt.Errorf("%w: buy needs stop < entry < target (stop=%s entry=%s target=%s)",
				ErrInvalidOrder, stop, entry, target)
		}
	case SideSell:
		if !stop.GreaterThan(entry) || !target.LessThan(entry) {
			return fmt.Errorf("%w: sell needs target < entry < stop (target=%s entry=%s stop=%s)",
				ErrInvalidOrder, target, entry, stop)
		}
	}
	return nil
}
