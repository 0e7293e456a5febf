package strategy

import (
	"fmt"

	"okx-trader/internal/indicators"
)

// Direction is the directional bias of a signal.
type Direction int

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// MarshalText renders the direction by name in JSON and logs.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "long":
		*d = Long
	case "short":
		*d = Short
	case "flat", "":
		*d = Flat
	default:
		return fmt.Errorf("strategy: unknown direction %q", b)
	}
	return nil
}

// Signal is the decision attached to one bar.
// Score is the raw weighted blend, Strength is Score clamped to [0,1].
// Both are zero when Direction is Flat.
type Signal struct {
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason,omitempty"`
}

// Reasons attached to flat signals.
const (
	ReasonUnavailable = "indicators unavailable"
	ReasonNoSetup     = "no entry setup"
)

// Entry filter constants shared by the long and short predicates.
const (
	MinVolumeRatio = 1.1
	MinADX         = 20.0
)

// Params configures the signal engine.
type Params struct {
	Indicators indicators.Params
	Oversold   float64
	Overbought float64
}

// DefaultParams returns the production RSI thresholds and indicator windows.
func DefaultParams() Params {
	return Params{
		Indicators: indicators.DefaultParams(),
		Oversold:   25,
		Overbought: 75,
	}
}

// Validate requires 0 < oversold < overbought < 100 and positive windows, which
// keeps the long and short predicates mutually exclusive.
func (p Params) Validate() error {
	if !(p.Oversold > 0 && p.Oversold < p.Overbought && p.Overbought < 100) {
		return fmt.Errorf("strategy: invalid RSI thresholds oversold=%.2f overbought=%.2f", p.Oversold, p.Overbought)
	}
	ip := p.Indicators
	for name, v := range map[string]int{
		"rsi_period":       ip.RSIPeriod,
		"ma_period":        ip.MAPeriod,
		"ma_fast":          ip.MAFast,
		"ma_slow":          ip.MASlow,
		"macd_fast":        ip.MACDFast,
		"macd_slow":        ip.MACDSlow,
		"macd_signal":      ip.MACDSignal,
		"volume_ma_period": ip.VolumeMAPeriod,
		"atr_period":       ip.ATRPeriod,
	} {
		if v <= 0 {
			return fmt.Errorf("strategy: %s must be positive, got %d", name, v)
		}
	}
	return nil
}
