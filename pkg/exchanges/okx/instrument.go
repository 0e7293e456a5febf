package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"okx-trader/pkg/exchanges/common"
)

var barIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "4h": "4H", "1d": "1D", "1w": "1W", "1M": "1M",
}

// BarInterval maps a configured timeframe to the OKX candle bar parameter.
func BarInterval(tf string) (string, error) {
	bar, ok := barIntervals[tf]
	if !ok {
		return "", fmt.Errorf("okx: unsupported timeframe %q", tf)
	}
	return bar, nil
}

// Instrument is the subset of the swap contract details needed for sizing.
type Instrument struct {
	InstID string
	CtVal  decimal.Decimal // base currency per contract
	LotSz  decimal.Decimal // contract increment
	MinSz  decimal.Decimal // minimum contracts
	TickSz decimal.Decimal
}

// ToContracts converts a base-currency size into a contract count rounded down
// to the lot size.
func (in Instrument) ToContracts(base float64) (decimal.Decimal, error) {
	if in.CtVal.IsZero() {
		return decimal.Zero, fmt.Errorf("instrument %s: zero contract value", in.InstID)
	}
	ct := decimal.NewFromFloat(base).Div(in.CtVal)
	if in.LotSz.IsPositive() {
		ct = ct.Div(in.LotSz).Floor().Mul(in.LotSz)
	}
	if !ct.IsPositive() || ct.LessThan(in.MinSz) {
		return decimal.Zero, fmt.Errorf("size %v %s is below minimum %s contracts", base, in.InstID, in.MinSz)
	}
	return ct, nil
}

// ToBase converts contracts to base-currency units.
func (in Instrument) ToBase(contracts decimal.Decimal) float64 {
	ctVal := in.CtVal
	if ctVal.IsZero() {
		ctVal = decimal.NewFromInt(1)
	}
	return contracts.Mul(ctVal).InexactFloat64()
}

// Instrument returns the cached instrument details, loading it on first use.
func (c *Client) Instrument(ctx context.Context) (Instrument, error) {
	c.mu.RLock()
	inst := c.inst
	c.mu.RUnlock()
	if inst != nil {
		return *inst, nil
	}
	return c.loadInstrument(ctx)
}

func (c *Client) loadInstrument(ctx context.Context) (Instrument, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", c.cfg.Symbol)
	var data []struct {
		InstID string `json:"instId"`
		CtVal  string `json:"ctVal"`
		LotSz  string `json:"lotSz"`
		MinSz  string `json:"minSz"`
		TickSz string `json:"tickSz"`
	}
	if err := c.do(ctx, "instruments", http.MethodGet, "/api/v5/public/instruments", q, nil, false, &data); err != nil {
		return Instrument{}, err
	}
	if len(data) == 0 {
		return Instrument{}, common.NewPermanent("instruments", "", "unknown instrument "+c.cfg.Symbol)
	}
	d := data[0]
	inst := Instrument{
		InstID: d.InstID,
		CtVal:  decimalOr(d.CtVal, decimal.NewFromInt(1)),
		LotSz:  decimalOr(d.LotSz, decimal.Zero),
		MinSz:  decimalOr(d.MinSz, decimal.Zero),
		TickSz: decimalOr(d.TickSz, decimal.Zero),
	}
	c.mu.Lock()
	c.inst = &inst
	c.mu.Unlock()
	return inst, nil
}

func decimalOr(s string, def decimal.Decimal) decimal.Decimal {
	if s == "" {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	return d
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}
