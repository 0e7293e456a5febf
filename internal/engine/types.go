package engine

import (
	"time"

	"okx-trader/internal/market"
	"okx-trader/internal/order"
	"okx-trader/internal/risk"
	"okx-trader/internal/strategy"
	"okx-trader/pkg/exchanges/common"
)

// State is the controller's position in the cycle.
type State int

const (
	Idle State = iota
	CheckingMarket
	Throttled
	Sizing
	Submitting
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingMarket:
		return "checking_market"
	case Throttled:
		return "throttled"
	case Sizing:
		return "sizing"
	case Submitting:
		return "submitting"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Outcome summarizes how a cycle ended.
type Outcome string

const (
	OutcomeSubmitted         Outcome = "submitted"
	OutcomeNoAction          Outcome = "no_action"
	OutcomeVolatilityTripped Outcome = "volatility_tripped"
	OutcomeThrottled         Outcome = "throttle_exceeded"
	OutcomeFailed            Outcome = "failed"
)

// Config is per-controller tuning.
type Config struct {
	Symbol          string
	QuoteCurrency   string
	BarLimit        int
	VolatilityGuard float64 // max fractional ticker move between cycles
	Interval        time.Duration
}

// DefaultConfig returns the loop settings the bot ships with.
func DefaultConfig() Config {
	return Config{
		Symbol:          "BTC-USDT-SWAP",
		QuoteCurrency:   "USDT",
		BarLimit:        100,
		VolatilityGuard: 0.05,
		Interval:        60 * time.Second,
	}
}

// SignalSource turns bars into per-bar signals.
type SignalSource interface {
	Generate(bars market.Series) strategy.Analysis
}

// Metrics receives cycle observations. All methods must be cheap.
type Metrics interface {
	CycleCompleted(outcome string, d time.Duration)
	OrderSubmitted(side string)
	GatewayRetry(op string)
	SessionUpdated(lastPrice float64, tradesToday int)
}

// SessionState is what a controller carries from one cycle to the next.
type SessionState struct {
	LastPrice    float64            `json:"last_price"`
	HasLastPrice bool               `json:"has_last_price"`
	Throttle     risk.ThrottleState `json:"throttle"`
}

// CycleReport records the inputs and result of one cycle.
type CycleReport struct {
	Symbol   string              `json:"symbol"`
	Started  time.Time           `json:"started"`
	Duration time.Duration       `json:"duration"`
	Outcome  Outcome             `json:"outcome"`
	Reason   string              `json:"reason,omitempty"`
	Price    float64             `json:"price"`
	Change   float64             `json:"change"`
	Signal   strategy.Signal     `json:"signal"`
	Snapshot strategy.Snapshot   `json:"indicators"`
	Position *common.Position    `json:"position,omitempty"`
	Balance  float64             `json:"balance"`
	Intent   *order.Intent       `json:"intent,omitempty"`
	Order    *common.OrderRecord `json:"order,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Status is a read-only view for the status API.
type Status struct {
	Symbol     string       `json:"symbol"`
	State      string       `json:"state"`
	Session    SessionState `json:"session"`
	DailyLimit int          `json:"daily_limit"`
	Cycles     int          `json:"cycles"`
	LastCycle  *CycleReport `json:"last_cycle,omitempty"`
}
