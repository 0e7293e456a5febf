package indicators

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) Series {
	n := minLen(high, low, close)
	out := make(Series, n)
	for i := 0; i < n; i++ {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR is the rolling simple mean of the true range over period bars.
func ATR(high, low, close []float64, period int) Series {
	return SMA(TrueRange(high, low, close), period)
}

func minLen(series ...[]float64) int {
	if len(series) == 0 {
		return 0
	}
	n := len(series[0])
	for _, s := range series[1:] {
		if len(s) < n {
			n = len(s)
		}
	}
	return n
}
