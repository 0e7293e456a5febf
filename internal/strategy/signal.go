package strategy

import (
	"encoding/json"

	"okx-trader/internal/indicators"
	"okx-trader/internal/market"
)

// Engine turns a bar series into one Signal per bar.
//
// It is pure: short input produces flat signals, nothing is retried or logged.
type Engine struct {
	params Params
	cache  *indicators.Cache
}

// NewEngine builds a signal engine with a single-entry indicator cache.
func NewEngine(p Params) *Engine {
	return &Engine{params: p, cache: indicators.NewCache(p.Indicators)}
}

// Params returns the engine configuration.
func (e *Engine) Params() Params { return e.params }

// Snapshot is the indicator values at one bar. OK is false when any value the
// signal consumes is unavailable.
type Snapshot struct {
	RSI         float64
	MA          float64
	MAFast      float64
	MASlow      float64
	MACD        float64
	MACDSignal  float64
	VolumeRatio float64
	ATR         float64
	ADX         float64
	OK          bool
}

// MarshalJSON writes unavailable values as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	opt := func(v float64) *float64 {
		if !indicators.Available(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		RSI         *float64 `json:"rsi"`
		MA          *float64 `json:"ma"`
		MAFast      *float64 `json:"ma_fast"`
		MASlow      *float64 `json:"ma_slow"`
		MACD        *float64 `json:"macd"`
		MACDSignal  *float64 `json:"macd_signal"`
		VolumeRatio *float64 `json:"volume_ratio"`
		ATR         *float64 `json:"atr"`
		ADX         *float64 `json:"adx"`
		OK          bool     `json:"ok"`
	}{opt(s.RSI), opt(s.MA), opt(s.MAFast), opt(s.MASlow), opt(s.MACD), opt(s.MACDSignal), opt(s.VolumeRatio), opt(s.ATR), opt(s.ADX), s.OK})
}

// Analysis is the result of one Generate pass.
type Analysis struct {
	Bars       market.Series
	Indicators indicators.Set
	Signals    []Signal
}

// Latest returns the newest bar, its signal and its indicator snapshot.
// ok is false for an empty series.
func (a Analysis) Latest() (bar market.Bar, sig Signal, snap Snapshot, ok bool) {
	n := len(a.Bars)
	if n == 0 {
		return market.Bar{}, Signal{Reason: ReasonUnavailable}, Snapshot{}, false
	}
	return a.Bars[n-1], a.Signals[n-1], snapshotAt(a.Indicators, n-1), true
}

// Generate computes indicators once and evaluates every bar.
func (e *Engine) Generate(bars market.Series) Analysis {
	set := e.cache.Get(bars)
	signals := make([]Signal, len(bars))
	for i, bar := range bars {
		signals[i] = e.evaluate(bar.Close, snapshotAt(set, i))
	}
	return Analysis{Bars: bars, Indicators: set, Signals: signals}
}

func (e *Engine) evaluate(close float64, s Snapshot) Signal {
	if !s.OK {
		return Signal{Direction: Flat, Reason: ReasonUnavailable}
	}

	trendUp := s.MAFast > s.MASlow && close > s.MA
	trendDown := s.MAFast < s.MASlow && close < s.MA
	confirmed := s.VolumeRatio > MinVolumeRatio && s.ADX > MinADX

	participation := 0.3 * (s.VolumeRatio - 1)
	trend := 0.3 * (s.ADX - MinADX) / 80

	switch {
	case confirmed && trendUp && s.RSI < e.params.Oversold && s.MACD > s.MACDSignal:
		score := 0.4*(e.params.Oversold-s.RSI)/e.params.Oversold + participation + trend
		return Signal{Direction: Long, Score: score, Strength: clamp01(score), Reason: "oversold in uptrend"}
	case confirmed && trendDown && s.RSI > e.params.Overbought && s.MACD < s.MACDSignal:
		score := 0.4*(s.RSI-e.params.Overbought)/(100-e.params.Overbought) + participation + trend
		return Signal{Direction: Short, Score: score, Strength: clamp01(score), Reason: "overbought in downtrend"}
	default:
		return Signal{Direction: Flat, Reason: ReasonNoSetup}
	}
}

func snapshotAt(set indicators.Set, i int) Snapshot {
	var s Snapshot
	oks := make([]bool, 0, 9)
	read := func(series indicators.Series, dst *float64) {
		v, ok := series.At(i)
		*dst = v
		oks = append(oks, ok)
	}
	read(set.RSI, &s.RSI)
	read(set.MA, &s.MA)
	read(set.MAFast, &s.MAFast)
	read(set.MASlow, &s.MASlow)
	read(set.MACD, &s.MACD)
	read(set.MACDSignal, &s.MACDSignal)
	read(set.VolumeRatio, &s.VolumeRatio)
	read(set.ATR, &s.ATR)
	read(set.ADX, &s.ADX)

	s.OK = true
	for _, ok := range oks {
		s.OK = s.OK && ok
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
