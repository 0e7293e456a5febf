package okx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"okx-trader/pkg/exchanges/common"
)

// GetBalance returns trading account balances, optionally for one currency.
func (c *Client) GetBalance(ctx context.Context, currency string) ([]common.Balance, error) {
	var q url.Values
	if currency != "" {
		q = url.Values{}
		q.Set("ccy", currency)
	}
	var data []struct {
		Details []struct {
			Ccy       string `json:"ccy"`
			AvailBal  string `json:"availBal"`
			FrozenBal string `json:"frozenBal"`
		} `json:"details"`
	}
	if err := c.do(ctx, "balance", http.MethodGet, "/api/v5/account/balance", q, nil, true, &data); err != nil {
		return nil, err
	}
	var out []common.Balance
	for _, acct := range data {
		for _, d := range acct.Details {
			if currency != "" && d.Ccy != currency {
				continue
			}
			avail, err := parseFloat(d.AvailBal)
			if err != nil {
				return nil, common.NewPermanent("balance", "", "invalid availBal "+strconv.Quote(d.AvailBal)+" for "+d.Ccy)
			}
			frozen, _ := parseFloat(d.FrozenBal)
			out = append(out, common.Balance{Currency: d.Ccy, Available: avail, Frozen: frozen})
		}
	}
	return out, nil
}

// GetPosition returns the open position on the instrument, or nil when flat.
// Net-mode positions carry a signed pos; hedge-mode ones carry posSide.
func (c *Client) GetPosition(ctx context.Context) (*common.Position, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", c.cfg.Symbol)
	var data []struct {
		InstID  string `json:"instId"`
		Pos     string `json:"pos"`
		PosSide string `json:"posSide"`
		AvgPx   string `json:"avgPx"`
	}
	if err := c.do(ctx, "positions", http.MethodGet, "/api/v5/account/positions", q, nil, true, &data); err != nil {
		return nil, err
	}
	for _, p := range data {
		pos := decimalOr(p.Pos, decimal.Zero)
		if pos.IsZero() {
			continue
		}
		inst, err := c.Instrument(ctx)
		if err != nil {
			return nil, err
		}
		side := common.PositionLong
		switch {
		case p.PosSide == "short":
			side = common.PositionShort
		case p.PosSide != "long" && pos.IsNegative():
			side = common.PositionShort
		}
		entry, _ := parseFloat(p.AvgPx)
		return &common.Position{
			Symbol:     p.InstID,
			Side:       side,
			Contracts:  inst.ToBase(pos.Abs()),
			EntryPrice: entry,
		}, nil
	}
	return nil, nil
}

// SetLeverage sets cross-margin leverage for the instrument.
func (c *Client) SetLeverage(ctx context.Context, leverage int) error {
	body := map[string]string{
		"instId":  c.cfg.Symbol,
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "cross",
	}
	if err := c.do(ctx, "set-leverage", http.MethodPost, "/api/v5/account/set-leverage", nil, body, true, nil); err != nil {
		return err
	}
	c.log.Info().Int("leverage", leverage).Msg("leverage set")
	return nil
}
