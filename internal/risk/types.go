package risk

import (
	"context"
	"errors"
)

var (
	// ErrZeroSize means the computed order size was not positive.
	ErrZeroSize = errors.New("computed order size is zero")
	// ErrATRUnavailable means the stop distance could not be derived.
	ErrATRUnavailable = errors.New("ATR unavailable for sizing")
)

const (
	DefaultPositionSize   = 0.05
	DefaultStopMultiplier = 1.5
	DefaultRiskReward     = 2.0
	DefaultMaxDailyTrades = 500
)

// ThrottleState is the daily trade counter.
type ThrottleState struct {
	TradesToday   int    `json:"trades_today"`
	LastTradeDate string `json:"last_trade_date"` // YYYY-MM-DD, local calendar
}

// ThrottleStore persists throttle state across restarts. The key identifies
// the controller (usually the instrument).
type ThrottleStore interface {
	LoadThrottle(ctx context.Context, key string) (ThrottleState, bool, error)
	SaveThrottle(ctx context.Context, key string, state ThrottleState) error
}
