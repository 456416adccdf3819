package indicator

// SMA returns the arithmetic mean of the last period values of series.
// ok is false when period is not positive or the series is too short.
func SMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}

	window := series[len(series)-period:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(period)

	// keep a flat window exact; summation can drift by an ulp
	flat := true
	for _, v := range window[1:] {
		if v != window[0] {
			flat = false
			break
		}
	}
	if flat {
		return window[0], true
	}
	return mean, true
}
