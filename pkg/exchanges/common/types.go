package common

import "time"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide is the direction of held exposure.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
	PositionFlat  PositionSide = "flat"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// Ticker is the latest traded price.
type Ticker struct {
	Symbol string
	Last   float64
	Time   time.Time
}

// Balance is the available and frozen amount of one currency.
type Balance struct {
	Currency  string
	Available float64
	Frozen    float64
}

// FindBalance returns the entry for currency.
func FindBalance(bals []Balance, currency string) (Balance, bool) {
	for _, b := range bals {
		if b.Currency == currency {
			return b, true
		}
	}
	return Balance{}, false
}

// Position is exchange-reported open exposure. Contracts is expressed in base
// currency units; Contracts <= 0 means flat.
type Position struct {
	Symbol     string       `json:"symbol"`
	Side       PositionSide `json:"side"`
	Contracts  float64      `json:"contracts"`
	EntryPrice float64      `json:"entry_price"`
}

// IsFlat reports whether p holds no exposure. A nil position is flat.
func (p *Position) IsFlat() bool {
	return p == nil || p.Contracts <= 0
}

// IsLong reports whether p is a long position with positive contracts.
func (p *Position) IsLong() bool {
	return p != nil && p.Side == PositionLong && p.Contracts > 0
}

// OrderRequest captures an order to be sent to an exchange. Size is in base
// currency units. Zero Price means market; zero StopLoss/TakeProfit means unset.
type OrderRequest struct {
	Symbol     string
	ClientID   string
	Side       Side
	Size       float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	ReduceOnly bool
}

// OrderRecord is the exchange acknowledgement of an order.
type OrderRecord struct {
	OrderID  string      `json:"order_id"`
	ClientID string      `json:"client_id"`
	Status   OrderStatus `json:"status"`
	Code     string      `json:"code,omitempty"`
	Message  string      `json:"message,omitempty"`
}
