package indicators

// RSI computes the Relative Strength Index using simple rolling means of
// gains and losses (not Wilder smoothing). The first delta counts as zero, so
// the first value is available at index period-1. A window without losses
// saturates to 100.
func RSI(closes []float64, period int) Series {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)
	out := unavailable(n)
	for i := range out {
		g, okG := avgGain.At(i)
		l, okL := avgLoss.At(i)
		if !okG || !okL {
			continue
		}
		if l == 0 {
			out[i] = 100
			continue
		}
		rs := g / l
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}
