// Package paper is a simulated venue for dry runs. Prices follow a seeded
// random walk unless bars are injected; market orders fill at the last close
// with a fee and optional slippage.
package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"okx-trader/internal/market"
	"okx-trader/pkg/exchanges/common"
)

// Config tunes the simulation.
type Config struct {
	Symbol         string
	QuoteCurrency  string
	InitialBalance float64
	Leverage       float64
	FeeRate        float64 // decimal, e.g. 0.0005 = 5 bps
	SlippageBps    float64
	StartPrice     float64
	Volatility     float64 // per-bar stddev of returns
	Interval       time.Duration
	History        int // bars generated up front
	Seed           int64
}

// DefaultConfig mirrors OKX demo trading on BTC-USDT-SWAP.
func DefaultConfig() Config {
	return Config{
		Symbol:         "BTC-USDT-SWAP",
		QuoteCurrency:  "USDT",
		InitialBalance: 10000,
		Leverage:       3,
		FeeRate:        0.0005,
		StartPrice:     50000,
		Volatility:     0.002,
		Interval:       time.Minute,
		History:        200,
		Seed:           1,
	}
}

// Fill is one simulated execution.
type Fill struct {
	OrderID  string
	ClientID string
	Side     common.Side
	Size     float64
	Price    float64
	Fee      float64
	PnL      float64
	Time     time.Time
}

// Gateway implements common.Gateway in memory.
type Gateway struct {
	mu       sync.Mutex
	cfg      Config
	rng      *rand.Rand
	bars     []market.Bar
	balance  float64
	position *common.Position
	fills    []Fill
	seq      int
	log      zerolog.Logger
}

var _ common.Gateway = (*Gateway)(nil)

// New creates a paper venue with cfg.History generated bars.
func New(cfg Config, log zerolog.Logger) *Gateway {
	def := DefaultConfig()
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = def.QuoteCurrency
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = def.StartPrice
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	g := &Gateway{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		balance: cfg.InitialBalance,
		log:     log.With().Str("component", "paper").Logger(),
	}
	start := time.Now().Truncate(cfg.Interval).Add(-time.Duration(cfg.History) * cfg.Interval)
	for i := 0; i < cfg.History; i++ {
		g.step(start.Add(time.Duration(i) * cfg.Interval))
	}
	return g
}

// SetBars replaces the price history. Bars must be ordered.
func (g *Gateway) SetBars(bars []market.Bar) error {
	if err := market.Validate(bars); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bars = append(g.bars[:0:0], bars...)
	return nil
}

// Advance appends one random-walk bar after the newest one.
func (g *Gateway) Advance() market.Bar {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := time.Now().Truncate(g.cfg.Interval)
	if n := len(g.bars); n > 0 {
		next = g.bars[n-1].Time.Add(g.cfg.Interval)
	}
	return g.step(next)
}

func (g *Gateway) step(ts time.Time) market.Bar {
	open := g.cfg.StartPrice
	if n := len(g.bars); n > 0 {
		open = g.bars[n-1].Close
	}
	closePx := open * (1 + g.cfg.Volatility*g.rng.NormFloat64())
	wick := g.cfg.Volatility / 2
	b := market.Bar{
		Time:   ts,
		Open:   open,
		High:   math.Max(open, closePx) * (1 + wick*math.Abs(g.rng.NormFloat64())),
		Low:    math.Min(open, closePx) * (1 - wick*math.Abs(g.rng.NormFloat64())),
		Close:  closePx,
		Volume: 100 * (0.5 + g.rng.Float64()),
	}
	g.bars = append(g.bars, b)
	return b
}

func (g *Gateway) lastPrice() (float64, bool) {
	if len(g.bars) == 0 {
		return 0, false
	}
	return g.bars[len(g.bars)-1].Close, true
}

// GetTicker returns the newest close.
func (g *Gateway) GetTicker(ctx context.Context) (common.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return common.Ticker{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	px, ok := g.lastPrice()
	if !ok {
		return common.Ticker{}, common.NewTransient("ticker", fmt.Errorf("no price history"))
	}
	return common.Ticker{Symbol: g.cfg.Symbol, Last: px, Time: g.bars[len(g.bars)-1].Time}, nil
}

// GetOHLCV returns the newest limit bars, oldest first.
func (g *Gateway) GetOHLCV(ctx context.Context, limit int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	from := 0
	if limit > 0 && len(g.bars) > limit {
		from = len(g.bars) - limit
	}
	return append([]market.Bar(nil), g.bars[from:]...), nil
}

// GetBalance returns the simulated quote balance.
func (g *Gateway) GetBalance(ctx context.Context, currency string) ([]common.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if currency != "" && currency != g.cfg.QuoteCurrency {
		return nil, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return []common.Balance{{Currency: g.cfg.QuoteCurrency, Available: g.available()}}, nil
}

// available is cash minus the margin held by the open position.
func (g *Gateway) available() float64 {
	if g.position == nil {
		return g.balance
	}
	return g.balance - g.position.Contracts*g.position.EntryPrice/g.cfg.Leverage
}

// GetPosition returns a copy of the simulated position, nil when flat.
func (g *Gateway) GetPosition(ctx context.Context) (*common.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.position == nil {
		return nil, nil
	}
	p := *g.position
	return &p, nil
}

// CreateOrder fills market orders immediately. Limit prices are ignored.
func (g *Gateway) CreateOrder(ctx context.Context, req common.OrderRequest) (common.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return common.OrderRecord{}, err
	}
	if req.Size <= 0 {
		return common.OrderRecord{}, common.NewPermanent("order", "51000", "size must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	px, ok := g.lastPrice()
	if !ok {
		return common.OrderRecord{}, common.NewTransient("order", fmt.Errorf("no price to fill at"))
	}
	if slip := g.cfg.SlippageBps / 10000; slip > 0 {
		noise := g.rng.Float64() * slip
		if req.Side == common.SideBuy {
			px *= 1 + noise
		} else {
			px *= 1 - noise
		}
	}

	reducing := g.position != nil && sideOf(g.position.Side) != req.Side
	if req.ReduceOnly && !reducing {
		return common.OrderRecord{}, common.NewPermanent("order", "51169", "no position to reduce")
	}
	size := req.Size
	if reducing && req.ReduceOnly && size > g.position.Contracts {
		size = g.position.Contracts
	}
	fee := size * px * g.cfg.FeeRate
	if !reducing {
		if need := size*px/g.cfg.Leverage + fee; need > g.available() {
			return common.OrderRecord{}, common.NewPermanent("order", "51008", fmt.Sprintf("insufficient margin: need %.2f, have %.2f", need, g.available()))
		}
	}

	pnl := g.apply(req.Side, size, px)
	g.balance += pnl - fee
	g.seq++
	id := strconv.Itoa(g.seq)
	g.fills = append(g.fills, Fill{
		OrderID: id, ClientID: req.ClientID, Side: req.Side, Size: size,
		Price: px, Fee: fee, PnL: pnl, Time: time.Now(),
	})
	g.log.Info().
		Str("side", string(req.Side)).
		Float64("size", size).
		Float64("price", px).
		Float64("fee", fee).
		Float64("pnl", pnl).
		Float64("balance", g.balance).
		Msg("paper fill")
	return common.OrderRecord{OrderID: id, ClientID: req.ClientID, Status: common.StatusFilled}, nil
}

// apply updates the position and returns realized PnL.
func (g *Gateway) apply(side common.Side, size, px float64) float64 {
	if g.position == nil {
		g.position = &common.Position{Symbol: g.cfg.Symbol, Side: positionOf(side), Contracts: size, EntryPrice: px}
		return 0
	}
	p := g.position
	if sideOf(p.Side) == side {
		total := p.Contracts + size
		p.EntryPrice = (p.EntryPrice*p.Contracts + px*size) / total
		p.Contracts = total
		return 0
	}
	closed := math.Min(size, p.Contracts)
	pnl := (px - p.EntryPrice) * closed
	if p.Side == common.PositionShort {
		pnl = -pnl
	}
	p.Contracts -= closed
	if rest := size - closed; rest > 0 {
		g.position = &common.Position{Symbol: g.cfg.Symbol, Side: positionOf(side), Contracts: rest, EntryPrice: px}
	} else if p.Contracts <= 1e-12 {
		g.position = nil
	}
	return pnl
}

// Fills returns executed fills, oldest first.
func (g *Gateway) Fills() []Fill {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Fill(nil), g.fills...)
}

// Equity returns cash plus unrealized PnL at the last price.
func (g *Gateway) Equity() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	eq := g.balance
	if px, ok := g.lastPrice(); ok && g.position != nil {
		u := (px - g.position.EntryPrice) * g.position.Contracts
		if g.position.Side == common.PositionShort {
			u = -u
		}
		eq += u
	}
	return eq
}

func sideOf(p common.PositionSide) common.Side {
	if p == common.PositionShort {
		return common.SideSell
	}
	return common.SideBuy
}

func positionOf(s common.Side) common.PositionSide {
	if s == common.SideSell {
		return common.PositionShort
	}
	return common.PositionLong
}
