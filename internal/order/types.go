package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"okx-trader/pkg/exchanges/common"
)

// Intent is a fully sized order decision. It is built once by the sizer (or as
// a close intent) and consumed once by the controller.
type Intent struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       common.Side `json:"side"`
	Size       float64     `json:"size"` // base currency units
	StopLoss   *float64    `json:"stop_loss,omitempty"`
	TakeProfit *float64    `json:"take_profit,omitempty"`
	ReduceOnly bool        `json:"reduce_only"`
	EntryPrice float64     `json:"entry_price"`
	ATR        float64     `json:"atr"`
	Strength   float64     `json:"strength"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewID returns a client order id. OKX accepts up to 32 alphanumerics, so the
// uuid is emitted without dashes.
func NewID() string {
	u := uuid.New()
	var buf [32]byte
	const hex = "0123456789abcdef"
	for i, b := range u {
		buf[i*2] = hex[b>>4]
		buf[i*2+1] = hex[b&0x0f]
	}
	return string(buf[:])
}

// Request converts the intent into a market order request.
func (i Intent) Request() common.OrderRequest {
	req := common.OrderRequest{
		Symbol:     i.Symbol,
		ClientID:   i.ID,
		Side:       i.Side,
		Size:       i.Size,
		ReduceOnly: i.ReduceOnly,
	}
	if i.StopLoss != nil {
		req.StopLoss = *i.StopLoss
	}
	if i.TakeProfit != nil {
		req.TakeProfit = *i.TakeProfit
	}
	return req
}

// Entry is one journaled submission.
type Entry struct {
	Intent    Intent             `json:"intent"`
	Record    common.OrderRecord `json:"record"`
	CreatedAt time.Time          `json:"created_at"`
}

// Journal persists submitted orders. Failures never undo a trade.
type Journal interface {
	RecordOrder(ctx context.Context, e Entry) error
	RecentOrders(ctx context.Context, limit int) ([]Entry, error)
}
