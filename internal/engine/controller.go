// Package engine runs the poll, signal, size and submit cycle for one
// instrument on one account.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"okx-trader/internal/market"
	"okx-trader/internal/order"
	"okx-trader/internal/retry"
	"okx-trader/internal/risk"
	"okx-trader/internal/strategy"
	"okx-trader/pkg/exchanges/common"
)

// Deps are the collaborators a controller drives.
type Deps struct {
	Gateway  common.Gateway
	Signals  SignalSource
	Sizer    *risk.Sizer
	Throttle *risk.Throttle
	Retry    retry.Policy
	Journal  order.Journal // optional
	Metrics  Metrics       // optional
	Logger   zerolog.Logger
	Clock    func() time.Time // optional
}

// Controller owns the session state of one (account, symbol) pair.
// Cycles are serialized; Snapshot may be called from any goroutine.
type Controller struct {
	cfg      Config
	gw       common.Gateway
	signals  SignalSource
	sizer    *risk.Sizer
	throttle *risk.Throttle
	policy   retry.Policy
	journal  order.Journal
	metrics  Metrics
	log      zerolog.Logger
	now      func() time.Time

	cycleMu sync.Mutex

	mu        sync.RWMutex
	state     State
	lastPrice float64
	hasPrice  bool
	cycles    int
	last      *CycleReport
}

// New validates deps and builds an idle controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Gateway == nil || deps.Signals == nil || deps.Sizer == nil || deps.Throttle == nil {
		return nil, errors.New("engine: gateway, signals, sizer and throttle are required")
	}
	def := DefaultConfig()
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = def.BarLimit
	}
	if cfg.VolatilityGuard <= 0 {
		cfg.VolatilityGuard = def.VolatilityGuard
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = def.QuoteCurrency
	}
	c := &Controller{
		cfg:      cfg,
		gw:       deps.Gateway,
		signals:  deps.Signals,
		sizer:    deps.Sizer,
		throttle: deps.Throttle,
		policy:   deps.Retry,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("component", "engine").Str("symbol", cfg.Symbol).Logger(),
		now:      deps.Clock,
	}
	if c.now == nil {
		c.now = time.Now
	}
	onRetry := c.policy.OnRetry
	c.policy.OnRetry = func(op string, attempt int, err error, wait time.Duration) {
		c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("gateway call failed, retrying")
		if c.metrics != nil {
			c.metrics.GatewayRetry(op)
		}
		if onRetry != nil {
			onRetry(op, attempt, err, wait)
		}
	}
	return c, nil
}

// RunCycle performs one full decision cycle. Aborts (volatility, throttle,
// no setup) return a report and a nil error; gateway failures return the
// report with OutcomeFailed and the error.
func (c *Controller) RunCycle(ctx context.Context) (CycleReport, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	now := c.now()
	rep := CycleReport{Symbol: c.cfg.Symbol, Started: now}
	err := c.cycle(ctx, now, &rep)
	if err != nil {
		rep.Outcome = OutcomeFailed
		rep.Error = err.Error()
	}
	rep.Duration = c.now().Sub(now)
	c.finish(rep)
	return rep, err
}

func (c *Controller) cycle(ctx context.Context, now time.Time, rep *CycleReport) error {
	c.setState(CheckingMarket)
	tk, err := retry.Call(ctx, c.policy, "ticker", c.gw.GetTicker)
	if err != nil {
		c.log.Error().Err(err).Msg("ticker unavailable")
		return fmt.Errorf("get ticker: %w", err)
	}
	rep.Price = tk.Last

	prev, had := c.observePrice(tk.Last)
	if had {
		rep.Change = math.Abs(tk.Last-prev) / prev
		if rep.Change > c.cfg.VolatilityGuard {
			rep.Outcome = OutcomeVolatilityTripped
			rep.Reason = fmt.Sprintf("price moved %.2f%% since last cycle", rep.Change*100)
			c.log.Warn().Float64("price", tk.Last).Float64("previous", prev).Float64("change", rep.Change).Msg("volatility guard tripped")
			return nil
		}
	}

	if !c.throttle.Allow(now) {
		c.setState(Throttled)
		st := c.throttle.State()
		rep.Outcome = OutcomeThrottled
		rep.Reason = fmt.Sprintf("%d/%d trades today", st.TradesToday, c.throttle.Limit())
		c.log.Warn().Float64("price", tk.Last).Int("trades_today", st.TradesToday).Int("limit", c.throttle.Limit()).Msg("daily trade limit reached")
		return nil
	}

	raw, err := retry.Call(ctx, c.policy, "candles", func(ctx context.Context) ([]market.Bar, error) {
		return c.gw.GetOHLCV(ctx, c.cfg.BarLimit)
	})
	if err != nil {
		c.log.Error().Err(err).Float64("price", tk.Last).Msg("candles unavailable")
		return fmt.Errorf("get candles: %w", err)
	}
	bars, err := market.Normalize(raw)
	if err != nil {
		c.log.Error().Err(err).Int("bars", len(raw)).Msg("invalid candle series")
		return fmt.Errorf("normalize candles: %w", err)
	}
	analysis := c.signals.Generate(bars)
	bar, sig, snap, hasBar := analysis.Latest()
	rep.Signal, rep.Snapshot = sig, snap

	pos, err := retry.Call(ctx, c.policy, "positions", c.gw.GetPosition)
	if err != nil {
		c.log.Error().Err(err).Float64("price", tk.Last).Str("signal", sig.Direction.String()).Msg("position unavailable")
		return fmt.Errorf("get position: %w", err)
	}
	rep.Position = pos
	bals, err := retry.Call(ctx, c.policy, "balance", func(ctx context.Context) ([]common.Balance, error) {
		return c.gw.GetBalance(ctx, c.cfg.QuoteCurrency)
	})
	if err != nil {
		c.log.Error().Err(err).Float64("price", tk.Last).Str("signal", sig.Direction.String()).Msg("balance unavailable")
		return fmt.Errorf("get balance: %w", err)
	}
	bal, _ := common.FindBalance(bals, c.cfg.QuoteCurrency)
	rep.Balance = bal.Available

	c.cycleLog(rep).Msg("cycle inputs")

	c.setState(Sizing)
	var intent order.Intent
	switch {
	case !hasBar:
		rep.Outcome, rep.Reason = OutcomeNoAction, "no bars"
		return nil
	case sig.Direction == strategy.Long && pos.IsFlat():
		intent, err = c.sizer.OpenIntent(c.cfg.Symbol, common.SideBuy, bal.Available, bar, snap.ATR, sig.Strength)
	case sig.Direction == strategy.Short && pos.IsLong():
		intent, err = c.sizer.CloseIntent(c.cfg.Symbol, pos)
	default:
		rep.Outcome = OutcomeNoAction
		rep.Reason = sig.Reason
		if sig.Direction != strategy.Flat {
			rep.Reason = fmt.Sprintf("%s signal does not change position", sig.Direction)
		}
		return nil
	}
	if err != nil {
		rep.Outcome, rep.Reason = OutcomeNoAction, err.Error()
		c.cycleLog(rep).Err(err).Msg("sizing aborted")
		return nil
	}
	rep.Intent = &intent

	c.setState(Submitting)
	rec, err := retry.Call(ctx, c.policy, "order", func(ctx context.Context) (common.OrderRecord, error) {
		return c.gw.CreateOrder(ctx, intent.Request())
	})
	if err != nil {
		c.cycleLog(rep).Err(err).Str("side", string(intent.Side)).Float64("size", intent.Size).Msg("order submission failed")
		return fmt.Errorf("create order: %w", err)
	}
	rep.Order = &rec

	c.setState(Recording)
	st, err := c.throttle.Record(ctx, now)
	if err != nil {
		c.log.Error().Err(err).Msg("throttle state not persisted")
	}
	if c.journal != nil {
		if err := c.journal.RecordOrder(ctx, order.Entry{Intent: intent, Record: rec, CreatedAt: now}); err != nil {
			c.log.Error().Err(err).Str("order_id", rec.OrderID).Msg("order journal write failed")
		}
	}
	if c.metrics != nil {
		c.metrics.OrderSubmitted(string(intent.Side))
	}
	rep.Outcome = OutcomeSubmitted
	ev := c.cycleLog(rep).
		Str("side", string(intent.Side)).
		Float64("size", intent.Size).
		Str("order_id", rec.OrderID).
		Int("trades_today", st.TradesToday)
	if intent.StopLoss != nil && intent.TakeProfit != nil {
		ev = ev.Float64("stop_loss", *intent.StopLoss).Float64("take_profit", *intent.TakeProfit)
	}
	ev.Msg("order submitted")
	return nil
}

func (c *Controller) cycleLog(rep *CycleReport) *zerolog.Event {
	ev := c.log.Info().
		Float64("price", rep.Price).
		Str("signal", rep.Signal.Direction.String()).
		Float64("strength", rep.Signal.Strength).
		Float64("balance", rep.Balance)
	if rep.Position.IsFlat() {
		return ev.Str("position", "flat")
	}
	return ev.Str("position", string(rep.Position.Side)).Float64("contracts", rep.Position.Contracts)
}

// observePrice records p as the last observed price and returns the previous one.
func (c *Controller) observePrice(p float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.lastPrice, c.hasPrice
	c.lastPrice, c.hasPrice = p, true
	return prev, had && prev > 0
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) finish(rep CycleReport) {
	c.mu.Lock()
	c.state = Idle
	c.cycles++
	c.last = &rep
	price := c.lastPrice
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CycleCompleted(string(rep.Outcome), rep.Duration)
		c.metrics.SessionUpdated(price, c.throttle.State().TradesToday)
	}
}

// Session returns a copy of the carried state.
func (c *Controller) Session() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return SessionState{LastPrice: c.lastPrice, HasLastPrice: c.hasPrice, Throttle: c.throttle.State()}
}

// Snapshot returns the controller status for read-only consumers.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		Symbol:     c.cfg.Symbol,
		State:      c.state.String(),
		Session:    SessionState{LastPrice: c.lastPrice, HasLastPrice: c.hasPrice, Throttle: c.throttle.State()},
		DailyLimit: c.throttle.Limit(),
		Cycles:     c.cycles,
	}
	if c.last != nil {
		last := *c.last
		st.LastCycle = &last
	}
	return st
}

// Run executes cycles every Interval until ctx is cancelled. Cycle errors and
// panics are logged and the loop continues.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info().Dur("interval", c.cfg.Interval).Msg("controller started")
	defer c.log.Info().Msg("controller stopped")
	for {
		c.safeCycle(ctx)
		if err := retry.Sleep(ctx, c.cfg.Interval); err != nil {
			return nil
		}
	}
}

func (c *Controller) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.setState(Idle)
			c.log.Error().Interface("panic", r).Msg("cycle panicked")
		}
	}()
	rep, err := c.RunCycle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Error().Err(err).Str("outcome", string(rep.Outcome)).Msg("cycle failed")
	}
}
