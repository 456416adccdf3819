package indicator

// RSI returns the Relative Strength Index of series using Wilder's smoothing.
//
// The first average gain/loss is the simple mean of the first period
// changes; every later change is folded in as
// avg = (prevAvg*(period-1) + current) / period. With no losses the RSI is
// 100, and with neither gains nor losses it is 50. ok is false when the
// series holds fewer than period+1 values.
func RSI(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := change(series[i-1], series[i])
		avgGain += gain
		avgLoss += loss
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(series); i++ {
		gain, loss := change(series[i-1], series[i])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	return rsiFromAverages(avgGain, avgLoss), true
}

func change(prev, cur float64) (gain, loss float64) {
	delta := cur - prev
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)
	// clamp float noise at the edges
	if rsi < 0 {
		return 0
	}
	if rsi > 100 {
		return 100
	}
	return rsi
}
