package indicators

import "math"

// ADX computes the Average Directional Index.
//
// +DM and -DM come from consecutive high/low deltas, each clipped to
// non-negative in its own direction, averaged over period bars and divided by
// ATR to form +DI/-DI. DX is 0 when +DI + -DI is 0, and ADX is the rolling
// mean of DX.
func ADX(high, low, close []float64, period int) Series {
	n := minLen(high, low, close)
	plusDM := unavailable(n)
	minusDM := unavailable(n)
	for i := 1; i < n; i++ {
		plusDM[i] = math.Max(high[i]-high[i-1], 0)
		minusDM[i] = math.Max(low[i-1]-low[i], 0)
	}

	atr := ATR(high[:n], low[:n], close[:n], period)
	plusAvg := SMA(plusDM, period)
	minusAvg := SMA(minusDM, period)

	dx := unavailable(n)
	for i := 0; i < n; i++ {
		tr, okTR := atr.At(i)
		p, okP := plusAvg.At(i)
		m, okM := minusAvg.At(i)
		if !okTR || !okP || !okM {
			continue
		}
		plusDI, minusDI := 0.0, 0.0
		if tr > 0 {
			plusDI = 100 * p / tr
			minusDI = 100 * m / tr
		}
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}
	return SMA(dx, period)
}
