package common

import (
	"context"

	"okx-trader/internal/market"
)

// Gateway abstracts the trading venue for one instrument.
//
// All calls may fail with an *APIError; IsTransient reports whether the
// caller may retry.
type Gateway interface {
	// GetTicker returns the most recent trade price.
	GetTicker(ctx context.Context) (Ticker, error)
	// GetOHLCV returns up to limit bars at the configured interval, newest last.
	GetOHLCV(ctx context.Context, limit int) ([]market.Bar, error)
	// GetBalance returns balances, filtered to currency when it is non-empty.
	GetBalance(ctx context.Context, currency string) ([]Balance, error)
	// GetPosition returns the open position, or nil when there is none.
	GetPosition(ctx context.Context) (*Position, error)
	// CreateOrder submits an order. Price 0 means market.
	CreateOrder(ctx context.Context, req OrderRequest) (OrderRecord, error)
}
