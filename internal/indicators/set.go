package indicators

import (
	"sync"

	"okx-trader/internal/market"
)

// Params selects the window lengths used by Compute.
type Params struct {
	RSIPeriod      int
	MAPeriod       int
	MAFast         int
	MASlow         int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	VolumeMAPeriod int
	ATRPeriod      int
}

// DefaultParams mirrors the production strategy settings.
func DefaultParams() Params {
	return Params{
		RSIPeriod:      9,
		MAPeriod:       10,
		MAFast:         5,
		MASlow:         20,
		MACDFast:       6,
		MACDSlow:       13,
		MACDSignal:     4,
		VolumeMAPeriod: 10,
		ATRPeriod:      7,
	}
}

// Set holds every indicator series used by the signal engine, aligned with the bars.
type Set struct {
	RSI         Series
	MA          Series
	MAFast      Series
	MASlow      Series
	MACD        Series
	MACDSignal  Series
	MACDHist    Series
	VolumeMA    Series
	VolumeRatio Series
	ATR         Series
	ADX         Series
}

// Len returns the number of bars covered.
func (s Set) Len() int { return len(s.RSI) }

// Compute derives the full indicator set for a bar series in one pass.
func Compute(bars market.Series, p Params) Set {
	closes := bars.Closes()
	highs := bars.Highs()
	lows := bars.Lows()

	macd, signal, hist := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	volMA, volRatio := VolumeRatio(bars.Volumes(), p.VolumeMAPeriod)

	return Set{
		RSI:         RSI(closes, p.RSIPeriod),
		MA:          SMA(closes, p.MAPeriod),
		MAFast:      SMA(closes, p.MAFast),
		MASlow:      SMA(closes, p.MASlow),
		MACD:        macd,
		MACDSignal:  signal,
		MACDHist:    hist,
		VolumeMA:    volMA,
		VolumeRatio: volRatio,
		ATR:         ATR(highs, lows, closes, p.ATRPeriod),
		ADX:         ADX(highs, lows, closes, p.ATRPeriod),
	}
}

type cacheKey struct {
	first, last int64
	n           int
	lastClose   float64
	lastVolume  float64
}

// Cache memoizes the most recent Compute result so repeated evaluation of an
// unchanged series does not recompute every indicator.
type Cache struct {
	mu     sync.Mutex
	params Params
	key    cacheKey
	set    Set
	ok     bool
}

// NewCache builds a single-entry cache for the given parameters.
func NewCache(p Params) *Cache {
	return &Cache{params: p}
}

// Get returns the indicator set for bars, computing it only when bars changed.
func (c *Cache) Get(bars market.Series) Set {
	key := cacheKey{n: len(bars)}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		key.first, key.last = bars[0].Time.UnixNano(), last.Time.UnixNano()
		key.lastClose, key.lastVolume = last.Close, last.Volume
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && c.key == key {
		return c.set
	}
	c.set = Compute(bars, c.params)
	c.key = key
	c.ok = true
	return c.set
}
