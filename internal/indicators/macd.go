package indicators

// MACD returns the MACD line (EMA fast - EMA slow), its signal line
// (EMA of MACD over signal) and the histogram (MACD - signal).
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist Series) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	macd = unavailable(len(closes))
	for i := range closes {
		f, okF := emaFast.At(i)
		s, okS := emaSlow.At(i)
		if okF && okS {
			macd[i] = f - s
		}
	}

	signalLine = EMA(macd, signal)
	hist = unavailable(len(closes))
	for i := range closes {
		m, okM := macd.At(i)
		s, okS := signalLine.At(i)
		if okM && okS {
			hist[i] = m - s
		}
	}
	return macd, signalLine, hist
}
