package risk

import (
	"fmt"
	"math"
	"time"

	"okx-trader/internal/market"
	"okx-trader/internal/order"
	"okx-trader/pkg/exchanges/common"
)

// Sizer turns a signal into a sized order with ATR-derived protective levels.
type Sizer struct {
	PositionSizeFraction float64 // share of balance committed at full strength
	StopMultiplier       float64 // stop distance in ATRs
	RiskReward           float64 // take-profit distance / stop distance

	now func() time.Time
}

// NewSizer returns a sizer using the fixed stop multiplier and reward ratio.
func NewSizer(fraction float64) *Sizer {
	return &Sizer{
		PositionSizeFraction: fraction,
		StopMultiplier:       DefaultStopMultiplier,
		RiskReward:           DefaultRiskReward,
		now:                  time.Now,
	}
}

// SizePosition returns the base-currency quantity for a trade.
// Strength is clamped to [0,1]; the result is scaled between half and full
// allocation.
func (s *Sizer) SizePosition(balance, price, strength float64) float64 {
	if price <= 0 || balance <= 0 || math.IsNaN(price) || math.IsNaN(balance) {
		return 0
	}
	strength = math.Max(0, math.Min(1, strength))
	if math.IsNaN(strength) {
		strength = 0
	}
	return balance * s.PositionSizeFraction * (0.5 + 0.5*strength) / price
}

// StopLoss places the stop StopMultiplier ATRs against the trade.
func (s *Sizer) StopLoss(entry float64, side common.Side, atr float64) float64 {
	d := atr * s.StopMultiplier
	if side == common.SideBuy {
		return entry - d
	}
	return entry + d
}

// TakeProfit places the target RiskReward stop distances in the trade's favour.
func (s *Sizer) TakeProfit(entry float64, side common.Side, atr float64) float64 {
	d := math.Abs(entry-s.StopLoss(entry, side, atr)) * s.RiskReward
	if side == common.SideBuy {
		return entry + d
	}
	return entry - d
}

// OpenIntent builds an entry order from one bar's close and that bar's ATR.
func (s *Sizer) OpenIntent(symbol string, side common.Side, balance float64, bar market.Bar, atr, strength float64) (order.Intent, error) {
	if math.IsNaN(atr) || math.IsInf(atr, 0) || atr <= 0 {
		return order.Intent{}, fmt.Errorf("open %s %s: %w", side, symbol, ErrATRUnavailable)
	}
	size := s.SizePosition(balance, bar.Close, strength)
	if size <= 0 {
		return order.Intent{}, fmt.Errorf("open %s %s (balance %.4f, price %.4f): %w", side, symbol, balance, bar.Close, ErrZeroSize)
	}
	sl := s.StopLoss(bar.Close, side, atr)
	tp := s.TakeProfit(bar.Close, side, atr)
	return order.Intent{
		ID:         order.NewID(),
		Symbol:     symbol,
		Side:       side,
		Size:       size,
		StopLoss:   &sl,
		TakeProfit: &tp,
		EntryPrice: bar.Close,
		ATR:        atr,
		Strength:   strength,
		CreatedAt:  s.clock(),
	}, nil
}

// CloseIntent builds a reduce-only market order flattening pos.
func (s *Sizer) CloseIntent(symbol string, pos *common.Position) (order.Intent, error) {
	if pos.IsFlat() {
		return order.Intent{}, fmt.Errorf("close %s: %w", symbol, ErrZeroSize)
	}
	side := common.SideSell
	if pos.Side == common.PositionShort {
		side = common.SideBuy
	}
	return order.Intent{
		ID:         order.NewID(),
		Symbol:     symbol,
		Side:       side,
		Size:       pos.Contracts,
		ReduceOnly: true,
		EntryPrice: pos.EntryPrice,
		CreatedAt:  s.clock(),
	}, nil
}

func (s *Sizer) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
