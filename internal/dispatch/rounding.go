package dispatch

import "github.com/shopspring/decimal"

// PricePlaces is the precision of stop and target prices.
const PricePlaces = 4

// RoundDown truncates v toward negative infinity at places decimals.
func RoundDown(v decimal.Decimal, places int32) decimal.Decimal {
	return v.RoundFloor(places)
}

// BracketPrices derives the stop-loss and take-profit prices for an entry at
// lastClose. Both legs are floored to PricePlaces whatever the side, so a
// buy stop ends up slightly wider and a buy target slightly tighter than
// the exact percentage.
func BracketPrices(side Side, lastClose decimal.Decimal, stopPct, takeProfitPct float64) (stop, target decimal.Decimal) {
	one := decimal.NewFromInt(1)
	sl := decimal.NewFromFloat(stopPct)
	tp := decimal.NewFromFloat(takeProfitPct)

	if side == SideSell {
		stop = lastClose.Mul(one.Add(sl))
		target = lastClose.Mul(one.Sub(tp))
	} else {
		stop = lastClose.Mul(one.Sub(sl))
		target = lastClose.Mul(one.Add(tp))
	}
	return RoundDown(stop, PricePlaces), RoundDown(target, PricePlaces)
}
