package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"okx-trader/internal/data"
	"okx-trader/internal/engine"
	"okx-trader/internal/retry"
	"okx-trader/internal/risk"
	"okx-trader/internal/strategy"
	"okx-trader/pkg/cache"
	"okx-trader/pkg/exchanges/paper"
	"okx-trader/pkg/logger"
)

// dry_run_demo drives the decision controller against the paper venue for a
// fixed number of cycles, one new bar per cycle. It never touches OKX.
//
// Usage (from the module root):
//
//	go run ./scripts/dry_run_demo -cycles 500 -bars history.csv
//
// It prints every fill and the final equity.
func main() {
	cycles := flag.Int("cycles", 300, "decision cycles to run")
	barsFile := flag.String("bars", "", "optional CSV history (ts,open,high,low,close,volume)")
	balance := flag.Float64("balance", 10000, "initial USDT balance")
	seed := flag.Int64("seed", 7, "random walk seed")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log, err := logger.New(*level, "console", os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	pcfg := paper.DefaultConfig()
	pcfg.InitialBalance = *balance
	pcfg.Seed = *seed
	venue := paper.New(pcfg, log)
	if *barsFile != "" {
		f, err := os.Open(*barsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("open bars file")
		}
		bars, err := data.ReadCSV(f)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("read bars file")
		}
		if err := venue.SetBars(bars); err != nil {
			log.Fatal().Err(err).Msg("seed paper venue")
		}
	}

	policy := retry.DefaultPolicy()
	policy.Delay = 0

	ecfg := engine.DefaultConfig()
	ecfg.Symbol = pcfg.Symbol
	ctrl, err := engine.New(ecfg, engine.Deps{
		Gateway:  venue,
		Signals:  strategy.NewEngine(strategy.DefaultParams()),
		Sizer:    risk.NewSizer(risk.DefaultPositionSize),
		Throttle: risk.NewThrottle(risk.DefaultMaxDailyTrades, cache.NewMemoryStore(), "demo:"+pcfg.Symbol),
		Retry:    policy,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build controller")
	}

	ctx := context.Background()
	outcomes := make(map[engine.Outcome]int)
	for i := 0; i < *cycles; i++ {
		rep, _ := ctrl.RunCycle(ctx)
		outcomes[rep.Outcome]++
		venue.Advance()
	}

	fmt.Printf("=== DRY-RUN demo: %d cycles ===\n", *cycles)
	for outcome, n := range outcomes {
		fmt.Printf("  %-20s %d\n", outcome, n)
	}
	for _, f := range venue.Fills() {
		fmt.Printf("  fill %-4s size=%.6f price=%.2f fee=%.4f pnl=%.4f\n", f.Side, f.Size, f.Price, f.Fee, f.PnL)
	}
	fmt.Printf("  final equity %.2f (start %.2f)\n", venue.Equity(), *balance)
}
