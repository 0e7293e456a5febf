package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"okx-trader/internal/indicators"
	"okx-trader/internal/market"
	"okx-trader/internal/order"
	"okx-trader/internal/retry"
	"okx-trader/internal/risk"
	"okx-trader/internal/strategy"
	"okx-trader/pkg/exchanges/common"
	"okx-trader/pkg/exchanges/paper"
)

type fakeGateway struct {
	mu       sync.Mutex
	prices   []float64
	balance  float64
	position *common.Position
	calls    map[string]int
	fail     map[string][]error // errors returned by successive calls per op
	orders   []common.OrderRequest
	onTicker func(n int)
}

func newFakeGateway(prices ...float64) *fakeGateway {
	return &fakeGateway{prices: prices, balance: 10000, calls: map[string]int{}, fail: map[string][]error{}}
}

func (g *fakeGateway) hit(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	if errs := g.fail[op]; len(errs) > 0 {
		g.fail[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) GetTicker(context.Context) (common.Ticker, error) {
	if err := g.hit("ticker"); err != nil {
		return common.Ticker{}, err
	}
	g.mu.Lock()
	n := g.calls["ticker"]
	p := g.prices[0]
	if len(g.prices) > 1 {
		g.prices = g.prices[1:]
	}
	cb := g.onTicker
	g.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return common.Ticker{Last: p}, nil
}

func (g *fakeGateway) GetOHLCV(context.Context, int) ([]market.Bar, error) {
	if err := g.hit("candles"); err != nil {
		return nil, err
	}
	return []market.Bar{{Time: time.Unix(0, 0), Close: 50000}}, nil
}

func (g *fakeGateway) GetBalance(_ context.Context, currency string) ([]common.Balance, error) {
	if err := g.hit("balance"); err != nil {
		return nil, err
	}
	return []common.Balance{{Currency: currency, Available: g.balance}}, nil
}

func (g *fakeGateway) GetPosition(context.Context) (*common.Position, error) {
	if err := g.hit("positions"); err != nil {
		return nil, err
	}
	return g.position, nil
}

func (g *fakeGateway) CreateOrder(_ context.Context, req common.OrderRequest) (common.OrderRecord, error) {
	if err := g.hit("order"); err != nil {
		return common.OrderRecord{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, req)
	return common.OrderRecord{OrderID: "1", ClientID: req.ClientID, Status: common.StatusNew}, nil
}

// fixedSignals returns a one-bar analysis with the given signal and ATR.
type fixedSignals struct {
	sig   strategy.Signal
	close float64
	atr   float64
	panic bool
}

func (f *fixedSignals) Generate(market.Series) strategy.Analysis {
	if f.panic {
		f.panic = false
		panic("boom")
	}
	one := func(v float64) indicators.Series { return indicators.Series{v} }
	return strategy.Analysis{
		Bars: market.Series{{Time: time.Unix(0, 0), Close: f.close}},
		Indicators: indicators.Set{
			RSI: one(20), MA: one(f.close - 1), MAFast: one(2), MASlow: one(1),
			MACD: one(1), MACDSignal: one(0), MACDHist: one(1), VolumeMA: one(1),
			VolumeRatio: one(1.5), ATR: one(f.atr), ADX: one(40),
		},
		Signals: []strategy.Signal{f.sig},
	}
}

type memJournal struct{ entries []order.Entry }

func (j *memJournal) RecordOrder(_ context.Context, e order.Entry) error {
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) RecentOrders(context.Context, int) ([]order.Entry, error) { return j.entries, nil }

type memStore struct{ st map[string]risk.ThrottleState }

func (m *memStore) LoadThrottle(_ context.Context, key string) (risk.ThrottleState, bool, error) {
	st, ok := m.st[key]
	return st, ok, nil
}

func (m *memStore) SaveThrottle(_ context.Context, key string, st risk.ThrottleState) error {
	m.st[key] = st
	return nil
}

type harness struct {
	ctrl    *Controller
	gw      *fakeGateway
	sig     *fixedSignals
	journal *memJournal
	sleeps  *[]time.Duration
	now     time.Time
}

func newHarness(t *testing.T, gw *fakeGateway, sig strategy.Signal, th *risk.Throttle) *harness {
	t.Helper()
	var sleeps []time.Duration
	policy := retry.DefaultPolicy()
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	if th == nil {
		th = risk.NewThrottle(500, nil, "BTC-USDT-SWAP")
	}
	h := &harness{
		gw:      gw,
		sig:     &fixedSignals{sig: sig, close: 50000, atr: 300},
		journal: &memJournal{},
		sleeps:  &sleeps,
		now:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local),
	}
	ctrl, err := New(Config{Symbol: "BTC-USDT-SWAP"}, Deps{
		Gateway:  gw,
		Signals:  h.sig,
		Sizer:    risk.NewSizer(0.05),
		Throttle: th,
		Retry:    policy,
		Journal:  h.journal,
		Logger:   zerolog.Nop(),
		Clock:    func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	return h
}

var longSignal = strategy.Signal{Direction: strategy.Long, Strength: 0.8, Score: 0.8}

func TestLongSignalOpensSizedPosition(t *testing.T) {
	gw := newFakeGateway(50000)
	h := newHarness(t, gw, longSignal, nil)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Outcome != OutcomeSubmitted || len(gw.orders) != 1 {
		t.Fatalf("outcome=%s orders=%d, expected one submitted order", rep.Outcome, len(gw.orders))
	}
	req := gw.orders[0]
	if req.Side != common.SideBuy || math.Abs(req.Size-0.009) > 1e-12 || req.ReduceOnly {
		t.Fatalf("unexpected order %+v", req)
	}
	if req.StopLoss != 49550 || req.TakeProfit != 50900 || req.Price != 0 {
		t.Fatalf("unexpected protective levels %+v", req)
	}
	if st := h.ctrl.Session().Throttle; st.TradesToday != 1 || st.LastTradeDate != "2024-06-01" {
		t.Fatalf("throttle=%+v, expected one trade", st)
	}
	if len(h.journal.entries) != 1 || h.journal.entries[0].Record.OrderID != "1" {
		t.Fatalf("journal=%+v", h.journal.entries)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != "idle" || snap.Cycles != 1 || snap.LastCycle == nil || snap.LastCycle.Outcome != OutcomeSubmitted {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestVolatilityGuardAbortsCycle(t *testing.T) {
	gw := newFakeGateway(50000, 53000)
	h := newHarness(t, gw, strategy.Signal{Direction: strategy.Flat}, nil)
	ctx := context.Background()

	if rep, err := h.ctrl.RunCycle(ctx); err != nil || rep.Outcome != OutcomeNoAction {
		t.Fatalf("first cycle=%s,%v", rep.Outcome, err)
	}
	h.sig.sig = longSignal
	candles := gw.count("candles")

	rep, err := h.ctrl.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Outcome != OutcomeVolatilityTripped || math.Abs(rep.Change-0.06) > 1e-12 {
		t.Fatalf("outcome=%s change=%v, expected volatility trip at 6%%", rep.Outcome, rep.Change)
	}
	if gw.count("order") != 0 || gw.count("candles") != candles {
		t.Fatalf("no further gateway calls expected after the guard trips")
	}
	sess := h.ctrl.Session()
	if sess.Throttle.TradesToday != 0 {
		t.Fatalf("throttle changed: %+v", sess.Throttle)
	}
	if !sess.HasLastPrice || sess.LastPrice != 53000 {
		t.Fatalf("last price=%v, expected the tripping price to be recorded", sess.LastPrice)
	}
}

func TestCycleAfterSpikeComparesAgainstSpikePrice(t *testing.T) {
	gw := newFakeGateway(50000, 53000, 53100)
	h := newHarness(t, gw, strategy.Signal{Direction: strategy.Flat}, nil)
	ctx := context.Background()

	for i, want := range []Outcome{OutcomeNoAction, OutcomeVolatilityTripped} {
		if rep, err := h.ctrl.RunCycle(ctx); err != nil || rep.Outcome != want {
			t.Fatalf("cycle %d=%s,%v, expected %s", i+1, rep.Outcome, err, want)
		}
	}
	candles := gw.count("candles")

	rep, err := h.ctrl.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rep.Outcome == OutcomeVolatilityTripped || math.Abs(rep.Change-100.0/53000) > 1e-12 {
		t.Fatalf("outcome=%s change=%v, expected the move measured from 53000", rep.Outcome, rep.Change)
	}
	if gw.count("candles") != candles+1 {
		t.Fatalf("expected the cycle after a spike to fetch candles")
	}
}

func TestThrottleExceededStopsAfterTicker(t *testing.T) {
	store := &memStore{st: map[string]risk.ThrottleState{
		"BTC-USDT-SWAP": {TradesToday: 500, LastTradeDate: "2024-06-01"},
	}}
	th := risk.NewThrottle(500, store, "BTC-USDT-SWAP")
	if err := th.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	gw := newFakeGateway(50000)
	h := newHarness(t, gw, longSignal, th)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil || rep.Outcome != OutcomeThrottled {
		t.Fatalf("RunCycle=%s,%v, expected throttled", rep.Outcome, err)
	}
	for _, op := range []string{"candles", "positions", "balance", "order"} {
		if gw.count(op) != 0 {
			t.Fatalf("%s called %d times, expected only the ticker", op, gw.count(op))
		}
	}
	if gw.count("ticker") != 1 || th.State().TradesToday != 500 {
		t.Fatalf("ticker=%d trades=%d", gw.count("ticker"), th.State().TradesToday)
	}
}

func TestShortSignalClosesLong(t *testing.T) {
	gw := newFakeGateway(50000)
	gw.position = &common.Position{Side: common.PositionLong, Contracts: 0.02, EntryPrice: 48000}
	h := newHarness(t, gw, strategy.Signal{Direction: strategy.Short, Strength: 0.5}, nil)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil || rep.Outcome != OutcomeSubmitted {
		t.Fatalf("RunCycle=%s,%v", rep.Outcome, err)
	}
	req := gw.orders[0]
	if req.Side != common.SideSell || req.Size != 0.02 || !req.ReduceOnly || req.StopLoss != 0 || req.TakeProfit != 0 {
		t.Fatalf("unexpected close order %+v", req)
	}
}

func TestNoActionCases(t *testing.T) {
	cases := []struct {
		name string
		sig  strategy.Signal
		pos  *common.Position
	}{
		{"flat signal", strategy.Signal{Direction: strategy.Flat, Reason: strategy.ReasonNoSetup}, nil},
		{"long while long", longSignal, &common.Position{Side: common.PositionLong, Contracts: 1}},
		{"short while flat", strategy.Signal{Direction: strategy.Short, Strength: 1}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newFakeGateway(50000)
			gw.position = tc.pos
			h := newHarness(t, gw, tc.sig, nil)
			rep, err := h.ctrl.RunCycle(context.Background())
			if err != nil || rep.Outcome != OutcomeNoAction || rep.Reason == "" {
				t.Fatalf("RunCycle=%+v,%v", rep, err)
			}
			if gw.count("order") != 0 || h.ctrl.Session().Throttle.TradesToday != 0 {
				t.Fatalf("expected no order and no throttle change")
			}
		})
	}
}

func TestZeroBalanceAbortsSizing(t *testing.T) {
	gw := newFakeGateway(50000)
	gw.balance = 0
	h := newHarness(t, gw, longSignal, nil)
	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil || rep.Outcome != OutcomeNoAction || gw.count("order") != 0 {
		t.Fatalf("RunCycle=%+v,%v, expected sizing abort", rep, err)
	}
}

func TestTransientFailureRetriedThenRecovered(t *testing.T) {
	gw := newFakeGateway(50000)
	for i := 0; i < 4; i++ {
		gw.fail["ticker"] = append(gw.fail["ticker"], common.NewTransient("ticker", errors.New("timeout")))
	}
	h := newHarness(t, gw, longSignal, nil)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err != nil || rep.Outcome != OutcomeSubmitted {
		t.Fatalf("RunCycle=%s,%v", rep.Outcome, err)
	}
	if gw.count("ticker") != 5 || len(*h.sleeps) != 4 {
		t.Fatalf("ticker calls=%d sleeps=%d, expected 5 and 4", gw.count("ticker"), len(*h.sleeps))
	}
}

func TestTransientFailurePropagatesAfterRetries(t *testing.T) {
	gw := newFakeGateway(50000)
	for i := 0; i < 6; i++ {
		gw.fail["candles"] = append(gw.fail["candles"], common.NewTransient("candles", errors.New("503")))
	}
	h := newHarness(t, gw, longSignal, nil)

	rep, err := h.ctrl.RunCycle(context.Background())
	if err == nil || rep.Outcome != OutcomeFailed || !common.IsTransient(err) {
		t.Fatalf("RunCycle=%s,%v, expected failed transient error", rep.Outcome, err)
	}
	if gw.count("candles") != 5 || gw.count("order") != 0 {
		t.Fatalf("candles=%d order=%d", gw.count("candles"), gw.count("order"))
	}
	if h.ctrl.Session().Throttle.TradesToday != 0 || h.ctrl.Snapshot().State != "idle" {
		t.Fatalf("expected idle controller with untouched throttle")
	}
}

func TestPermanentOrderErrorNotRetried(t *testing.T) {
	gw := newFakeGateway(50000)
	gw.fail["order"] = []error{common.NewPermanent("order", "51008", "insufficient margin")}
	h := newHarness(t, gw, longSignal, nil)

	rep, err := h.ctrl.RunCycle(context.Background())
	if !common.IsPermanent(err) || rep.Outcome != OutcomeFailed {
		t.Fatalf("RunCycle=%s,%v", rep.Outcome, err)
	}
	if gw.count("order") != 1 || len(*h.sleeps) != 0 || h.ctrl.Session().Throttle.TradesToday != 0 {
		t.Fatalf("order calls=%d sleeps=%d", gw.count("order"), len(*h.sleeps))
	}
}

func TestRunRecoversPanicsAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw := newFakeGateway(50000)
	gw.onTicker = func(n int) {
		if n >= 3 {
			cancel()
		}
	}
	policy := retry.Policy{MaxAttempts: 1}
	sig := &fixedSignals{sig: strategy.Signal{Direction: strategy.Flat}, close: 50000, atr: 300, panic: true}
	ctrl, err := New(Config{Symbol: "BTC-USDT-SWAP", Interval: time.Millisecond}, Deps{
		Gateway:  gw,
		Signals:  sig,
		Sizer:    risk.NewSizer(0.05),
		Throttle: risk.NewThrottle(10, nil, "BTC-USDT-SWAP"),
		Retry:    policy,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, expected nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
	if gw.count("ticker") < 3 {
		t.Fatalf("expected the loop to continue past the panicking cycle")
	}
	if ctrl.Snapshot().State != "idle" {
		t.Fatalf("state=%s after panic", ctrl.Snapshot().State)
	}
}

func TestCycleAgainstPaperVenue(t *testing.T) {
	cfg := paper.DefaultConfig()
	cfg.History = 150
	venue := paper.New(cfg, zerolog.Nop())
	ctrl, err := New(Config{Symbol: cfg.Symbol}, Deps{
		Gateway:  venue,
		Signals:  strategy.NewEngine(strategy.DefaultParams()),
		Sizer:    risk.NewSizer(0.05),
		Throttle: risk.NewThrottle(500, nil, cfg.Symbol),
		Retry:    retry.Policy{MaxAttempts: 1},
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		venue.Advance()
		rep, err := ctrl.RunCycle(context.Background())
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if !rep.Snapshot.OK {
			t.Fatalf("cycle %d: indicators should be available with 150 bars", i)
		}
		if rep.Balance <= 0 {
			t.Fatalf("cycle %d: balance=%v", i, rep.Balance)
		}
	}
}
