package indicators

// SMA returns the rolling simple moving average over period values.
func SMA(values []float64, period int) Series {
	return rolling(values, period, mean)
}

// LastSMA calculates the simple moving average for the last period values.
// It returns false when fewer than period values are present.
func LastSMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average with alpha 2/(span+1),
// seeded by the first available value and without bias adjustment.
func EMA(values []float64, span int) Series {
	out := unavailable(len(values))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	prev, seeded := 0.0, false
	for i, v := range values {
		if !Available(v) {
			if seeded {
				out[i] = prev
			}
			continue
		}
		if !seeded {
			prev, seeded = v, true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}
