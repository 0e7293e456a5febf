package strategy

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape of a strategy override file.
// Keys left out of the file keep the base value; zero values fall back to the tag defaults.
type FileConfig struct {
	RSIPeriod      int     `yaml:"rsi_period" default:"9"`
	RSIOversold    float64 `yaml:"rsi_oversold" default:"25"`
	RSIOverbought  float64 `yaml:"rsi_overbought" default:"75"`
	MAPeriod       int     `yaml:"ma_period" default:"10"`
	MAFast         int     `yaml:"ma_fast" default:"5"`
	MASlow         int     `yaml:"ma_slow" default:"20"`
	MACDFast       int     `yaml:"macd_fast" default:"6"`
	MACDSlow       int     `yaml:"macd_slow" default:"13"`
	MACDSignal     int     `yaml:"macd_signal" default:"4"`
	VolumeMAPeriod int     `yaml:"volume_ma_period" default:"10"`
	ATRPeriod      int     `yaml:"atr_period" default:"7"`
}

// ConfigFile represents the top-level YAML structure.
type ConfigFile struct {
	Strategy FileConfig `yaml:"strategy"`
}

func fileConfigFrom(p Params) FileConfig {
	ip := p.Indicators
	return FileConfig{
		RSIPeriod:      ip.RSIPeriod,
		RSIOversold:    p.Oversold,
		RSIOverbought:  p.Overbought,
		MAPeriod:       ip.MAPeriod,
		MAFast:         ip.MAFast,
		MASlow:         ip.MASlow,
		MACDFast:       ip.MACDFast,
		MACDSlow:       ip.MACDSlow,
		MACDSignal:     ip.MACDSignal,
		VolumeMAPeriod: ip.VolumeMAPeriod,
		ATRPeriod:      ip.ATRPeriod,
	}
}

// Params converts the file shape back into engine parameters.
func (c FileConfig) Params() Params {
	p := Params{Oversold: c.RSIOversold, Overbought: c.RSIOverbought}
	p.Indicators.RSIPeriod = c.RSIPeriod
	p.Indicators.MAPeriod = c.MAPeriod
	p.Indicators.MAFast = c.MAFast
	p.Indicators.MASlow = c.MASlow
	p.Indicators.MACDFast = c.MACDFast
	p.Indicators.MACDSlow = c.MACDSlow
	p.Indicators.MACDSignal = c.MACDSignal
	p.Indicators.VolumeMAPeriod = c.VolumeMAPeriod
	p.Indicators.ATRPeriod = c.ATRPeriod
	return p
}

// LoadParams reads strategy overrides from a YAML file on top of base.
func LoadParams(path string, base Params) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}

	file := ConfigFile{Strategy: fileConfigFrom(base)}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Params{}, fmt.Errorf("parse strategy config %s: %w", path, err)
	}
	if err := defaults.Set(&file.Strategy); err != nil {
		return Params{}, fmt.Errorf("apply strategy defaults: %w", err)
	}

	p := file.Strategy.Params()
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
