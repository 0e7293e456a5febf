package indicators

import (
	"math"
	"testing"
	"time"

	"okx-trader/internal/market"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestSMAUnavailableUntilWindowFull(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4}, 3)
	for i := 0; i < 2; i++ {
		if _, ok := out.At(i); ok {
			t.Fatalf("SMA[%d] should be unavailable, got %v", i, out[i])
		}
	}
	if v, ok := out.At(2); !ok || !near(v, 2) {
		t.Fatalf("SMA[2]=%v, expected 2", v)
	}
	if v, ok := out.Last(); !ok || !near(v, 3) {
		t.Fatalf("SMA[3]=%v, expected 3", v)
	}
	if v, ok := LastSMA([]float64{1, 2, 3, 4}, 2); !ok || v != 3.5 {
		t.Fatalf("LastSMA=%v, expected 3.5", v)
	}
	if _, ok := LastSMA([]float64{1}, 2); ok {
		t.Fatalf("LastSMA should report unavailable for short input")
	}
}

func TestEMASeededByFirstValue(t *testing.T) {
	out := EMA([]float64{1, 2, 3}, 3) // alpha = 0.5
	want := []float64{1, 1.5, 2.25}
	for i, w := range want {
		if !near(out[i], w) {
			t.Fatalf("EMA[%d]=%v, expected %v", i, out[i], w)
		}
	}
}

func TestRSISimpleMeans(t *testing.T) {
	out := RSI([]float64{10, 11, 10}, 2)
	if _, ok := out.At(0); ok {
		t.Fatalf("RSI[0] should be unavailable")
	}
	if v, _ := out.At(1); v != 100 {
		t.Fatalf("RSI[1]=%v, expected 100 when there are no losses", v)
	}
	if v, _ := out.At(2); !near(v, 50) {
		t.Fatalf("RSI[2]=%v, expected 50", v)
	}
}

func TestRSIShortSeriesUnavailable(t *testing.T) {
	out := RSI([]float64{1, 2, 3, 4}, 5)
	for i := range out {
		if _, ok := out.At(i); ok {
			t.Fatalf("RSI[%d] should be unavailable for a series shorter than the period", i)
		}
	}
}

func TestRSIBoundedAndSaturates(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	for i, v := range RSI(closes, 9) {
		if Available(v) && (v < 0 || v > 100) {
			t.Fatalf("RSI[%d]=%v out of [0,100]", i, v)
		}
	}

	rising := []float64{1, 1, 2, 3, 5, 8, 8, 13}
	out := RSI(rising, 4)
	for i := 3; i < len(out); i++ {
		if out[i] != 100 {
			t.Fatalf("RSI[%d]=%v, expected saturation at 100 for non-negative deltas", i, out[i])
		}
	}
}

func TestMACDHistogram(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 13, 14, 13, 15}
	macd, signal, hist := MACD(closes, 2, 4, 3)
	for i := range closes {
		if !near(hist[i], macd[i]-signal[i]) {
			t.Fatalf("hist[%d]=%v, expected %v", i, hist[i], macd[i]-signal[i])
		}
	}
	if macd[0] != 0 {
		t.Fatalf("MACD[0]=%v, expected 0 since both EMAs seed on the first close", macd[0])
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	high := []float64{10, 12, 11}
	low := []float64{9, 11, 8}
	close := []float64{9.5, 11.5, 8.5}

	tr := TrueRange(high, low, close)
	want := []float64{1, 2.5, 3.5}
	for i, w := range want {
		if !near(tr[i], w) {
			t.Fatalf("TR[%d]=%v, expected %v", i, tr[i], w)
		}
	}
	atr := ATR(high, low, close, 2)
	if v, ok := atr.Last(); !ok || !near(v, 3) {
		t.Fatalf("ATR last=%v, expected 3", v)
	}
}

func TestADXZeroWhenNoDirectionalMovement(t *testing.T) {
	n := 20
	flat := make([]float64, n)
	for i := range flat {
		flat[i] = 100
	}
	out := ADX(flat, flat, flat, 5)
	first := 2*5 - 1
	for i := 0; i < first; i++ {
		if _, ok := out.At(i); ok {
			t.Fatalf("ADX[%d] should be unavailable", i)
		}
	}
	for i := first; i < n; i++ {
		v, ok := out.At(i)
		if !ok {
			t.Fatalf("ADX[%d] should be available (DX defined as 0)", i)
		}
		if v != 0 {
			t.Fatalf("ADX[%d]=%v, expected 0", i, v)
		}
	}
}

func TestADXStrongTrend(t *testing.T) {
	n := 20
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		low[i] = 100 + float64(i)
		high[i] = low[i] + 1
		close[i] = low[i] + 0.5
	}
	v, ok := ADX(high, low, close, 5).Last()
	if !ok || !near(v, 100) {
		t.Fatalf("ADX=%v, expected 100 for a one-directional trend", v)
	}
}

func TestVolumeRatio(t *testing.T) {
	ma, ratio := VolumeRatio([]float64{0, 0, 10, 20}, 2)
	if _, ok := ratio.At(1); ok {
		t.Fatalf("ratio with zero mean should be unavailable")
	}
	if v, _ := ma.At(3); !near(v, 15) {
		t.Fatalf("volume MA=%v, expected 15", v)
	}
	if v, _ := ratio.At(3); !near(v, 20.0/15.0) {
		t.Fatalf("volume ratio=%v, expected %v", v, 20.0/15.0)
	}
}

func TestComputeAlignedAndCached(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make(market.Series, 30)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = market.Bar{Time: base.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}

	set := Compute(bars, DefaultParams())
	for name, s := range map[string]Series{
		"rsi": set.RSI, "ma": set.MA, "adx": set.ADX, "atr": set.ATR, "vr": set.VolumeRatio,
	} {
		if len(s) != len(bars) {
			t.Fatalf("%s length=%d, expected %d", name, len(s), len(bars))
		}
	}

	cache := NewCache(DefaultParams())
	a := cache.Get(bars)
	b := cache.Get(bars)
	if &a.RSI[0] != &b.RSI[0] {
		t.Fatalf("expected cached set for unchanged bars")
	}
	c := cache.Get(bars[:len(bars)-1])
	if c.Len() != len(bars)-1 {
		t.Fatalf("expected recompute for changed bars, got len %d", c.Len())
	}
}
