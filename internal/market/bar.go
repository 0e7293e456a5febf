package market

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrUnordered = errors.New("bars are not in ascending time order")
	ErrDuplicate = errors.New("duplicate bar timestamp")
)

// Bar is one sampled interval of OHLCV data.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered (oldest first) run of bars without duplicate timestamps.
type Series []Bar

// Validate checks ordering and uniqueness of timestamps.
func Validate(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Time, bars[i].Time
		if cur.Equal(prev) {
			return fmt.Errorf("%w at %s", ErrDuplicate, cur.Format(time.RFC3339))
		}
		if cur.Before(prev) {
			return fmt.Errorf("%w at index %d", ErrUnordered, i)
		}
	}
	return nil
}

// Normalize returns a copy of bars sorted ascending by time.
// Exchanges commonly return newest first; duplicates are rejected rather than merged.
func Normalize(bars []Bar) (Series, error) {
	out := make(Series, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Last returns the newest bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}
