// Package indicators computes technical indicator series over bar data.
//
// Every function returns a series aligned index-for-index with its input.
// Values that cannot be computed yet (not enough preceding bars) are NaN;
// use Series.At or Available to test for them instead of comparing to zero.
package indicators

import "math"

// Series is an indicator output aligned with the input bars. NaN marks "unavailable".
type Series []float64

// At returns the value at i and whether it is available.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	v := s[i]
	return v, Available(v)
}

// Last returns the newest value and whether it is available.
func (s Series) Last() (float64, bool) {
	return s.At(len(s) - 1)
}

// Available reports whether v holds a computed value.
func Available(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func unavailable(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rolling applies fn to each full trailing window of period values.
// A window containing an unavailable value yields NaN.
func rolling(values []float64, period int, fn func(window []float64) float64) Series {
	out := unavailable(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		ok := true
		for _, v := range window {
			if !Available(v) {
				ok = false
				break
			}
		}
		if ok {
			out[i] = fn(window)
		}
	}
	return out
}

func mean(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}
