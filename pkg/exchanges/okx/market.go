package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"okx-trader/internal/market"
	"okx-trader/pkg/exchanges/common"
)

// GetTicker returns the last traded price.
func (c *Client) GetTicker(ctx context.Context) (common.Ticker, error) {
	q := url.Values{}
	q.Set("instId", c.cfg.Symbol)
	var data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
		Ts     string `json:"ts"`
	}
	if err := c.do(ctx, "ticker", http.MethodGet, "/api/v5/market/ticker", q, nil, false, &data); err != nil {
		return common.Ticker{}, err
	}
	if len(data) == 0 {
		return common.Ticker{}, common.NewTransient("ticker", fmt.Errorf("empty ticker for %s", c.cfg.Symbol))
	}
	last, err := parseFloat(data[0].Last)
	if err != nil || last <= 0 {
		return common.Ticker{}, common.NewPermanent("ticker", "", "invalid last price "+strconv.Quote(data[0].Last))
	}
	t := common.Ticker{Symbol: data[0].InstID, Last: last}
	if ms, err := parseInt(data[0].Ts); err == nil {
		t.Time = time.UnixMilli(ms)
	}
	return t, nil
}

// GetOHLCV returns up to limit candles, oldest first.
func (c *Client) GetOHLCV(ctx context.Context, limit int) ([]market.Bar, error) {
	q := url.Values{}
	q.Set("instId", c.cfg.Symbol)
	q.Set("bar", c.bar)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var rows [][]string
	if err := c.do(ctx, "candles", http.MethodGet, "/api/v5/market/candles", q, nil, false, &rows); err != nil {
		return nil, err
	}
	bars, err := decodeCandles(rows)
	if err != nil {
		return nil, &common.APIError{Kind: common.Permanent, Op: "candles", Msg: "decode candles", Err: err}
	}
	series, err := market.Normalize(bars)
	if err != nil {
		return nil, &common.APIError{Kind: common.Permanent, Op: "candles", Msg: "invalid candle series", Err: err}
	}
	return series, nil
}

// decodeCandles parses [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm] rows.
func decodeCandles(rows [][]string) ([]market.Bar, error) {
	bars := make([]market.Bar, 0, len(rows))
	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("candle %d: %d fields", i, len(r))
		}
		ms, err := parseInt(r[0])
		if err != nil {
			return nil, fmt.Errorf("candle %d ts: %w", i, err)
		}
		var v [5]float64
		for j := range v {
			if v[j], err = parseFloat(r[j+1]); err != nil {
				return nil, fmt.Errorf("candle %d field %d: %w", i, j+1, err)
			}
		}
		bars = append(bars, market.Bar{
			Time:   time.UnixMilli(ms),
			Open:   v[0],
			High:   v[1],
			Low:    v[2],
			Close:  v[3],
			Volume: v[4],
		})
	}
	return bars, nil
}
