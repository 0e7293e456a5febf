// Package okx implements the gateway contract against the OKX v5 REST API
// for a single perpetual swap instrument.
package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"okx-trader/pkg/exchanges/common"
)

const (
	DefaultBaseURL = "https://www.okx.com"

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Config holds OKX credentials and the traded instrument.
type Config struct {
	APIKey     string
	SecretKey  string
	Passphrase string
	BaseURL    string
	Simulated  bool // demo trading, sends x-simulated-trading: 1

	Symbol    string // e.g. BTC-USDT-SWAP
	Timeframe string // 1m, 5m, 15m, 30m, 1h, 4h, 1d, 1w, 1M
	Leverage  int

	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client is an OKX swap gateway. It is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    string
	bar        string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeSync   *common.TimeSync
	log        zerolog.Logger

	mu   sync.RWMutex
	inst *Instrument
}

var _ common.Gateway = (*Client)(nil)

// NewClient validates the timeframe and builds a client. No request is made
// until Init or the first gateway call.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	bar, err := BarInterval(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("okx: symbol required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		bar:        bar,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 5),
		log:        log.With().Str("component", "okx").Str("symbol", cfg.Symbol).Logger(),
	}
	c.timeSync = common.NewTimeSync(c.ServerTime, c.log)
	return c, nil
}

// Init syncs the clock, loads instrument details and sets cross leverage.
func (c *Client) Init(ctx context.Context) error {
	c.timeSync.Start(ctx)
	inst, err := c.loadInstrument(ctx)
	if err != nil {
		return fmt.Errorf("okx init: %w", err)
	}
	c.log.Info().
		Str("ct_val", inst.CtVal.String()).
		Str("lot_sz", inst.LotSz.String()).
		Str("min_sz", inst.MinSz.String()).
		Msg("instrument loaded")
	if c.cfg.Leverage > 0 {
		if err := c.SetLeverage(ctx, c.cfg.Leverage); err != nil {
			return fmt.Errorf("okx init: %w", err)
		}
	}
	return nil
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// do sends one request. For GET the query string is part of the signed path;
// for POST the JSON body is signed.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("okx %s: encode body: %w", op, err)
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("okx %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}
	if signed {
		ts := c.timestamp()
		req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
		req.Header.Set("OK-ACCESS-SIGN", Sign(c.cfg.SecretKey, ts, method, requestPath, string(payload)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return common.NewTransient(op, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return common.NewTransient(op, err)
	}

	var env envelope
	if jerr := json.Unmarshal(raw, &env); jerr != nil {
		if res.StatusCode >= 300 {
			return classifyStatus(op, res.StatusCode, string(raw))
		}
		return &common.APIError{Kind: common.Permanent, Op: op, Status: res.StatusCode, Msg: "decode response", Err: jerr}
	}
	if env.Code != "0" {
		if code, msg, ok := firstItemError(env.Data); ok {
			return classify(op, res.StatusCode, code, msg)
		}
		return classify(op, res.StatusCode, env.Code, env.Msg)
	}
	if res.StatusCode >= 300 {
		return classifyStatus(op, res.StatusCode, env.Msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &common.APIError{Kind: common.Permanent, Op: op, Status: res.StatusCode, Msg: "decode data", Err: err}
	}
	return nil
}

func (c *Client) timestamp() string {
	return c.timeSync.Now().UTC().Format(timestampLayout)
}

// ServerTime returns the exchange clock.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var data []struct {
		Ts string `json:"ts"`
	}
	if err := c.do(ctx, "time", http.MethodGet, "/api/v5/public/time", nil, nil, false, &data); err != nil {
		return time.Time{}, err
	}
	if len(data) == 0 {
		return time.Time{}, common.NewPermanent("time", "", "empty response")
	}
	ms, err := parseInt(data[0].Ts)
	if err != nil {
		return time.Time{}, &common.APIError{Kind: common.Permanent, Op: "time", Msg: "bad ts", Err: err}
	}
	return time.UnixMilli(ms), nil
}
