package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"okx-trader/internal/api"
	"okx-trader/internal/data"
	"okx-trader/internal/engine"
	"okx-trader/internal/market"
	"okx-trader/internal/monitor"
	"okx-trader/internal/order"
	"okx-trader/internal/retry"
	"okx-trader/internal/risk"
	"okx-trader/internal/strategy"
	"okx-trader/pkg/cache"
	"okx-trader/pkg/config"
	"okx-trader/pkg/db"
	"okx-trader/pkg/exchanges/common"
	"okx-trader/pkg/exchanges/okx"
	"okx-trader/pkg/exchanges/paper"
	"okx-trader/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("trader exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("version", version).
		Str("symbol", cfg.Symbol).
		Str("timeframe", cfg.Timeframe).
		Bool("dry_run", cfg.DryRun).
		Str("state_backend", cfg.StateBackend).
		Msg("starting okx trader")

	store, journal, closeState, err := openState(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeState()

	gw, venue, err := openGateway(ctx, cfg, log)
	if err != nil {
		return err
	}

	params, err := cfg.StrategyParams()
	if err != nil {
		return fmt.Errorf("strategy params: %w", err)
	}

	throttle := risk.NewThrottle(cfg.MaxDailyTrades, store, throttleKey(cfg))
	if err := throttle.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("throttle state not restored, starting from zero")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := monitor.NewRecorder(reg, cfg.Symbol)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.Delay = cfg.RetryDelay

	ecfg := engine.DefaultConfig()
	ecfg.Symbol = cfg.Symbol
	ecfg.QuoteCurrency = cfg.QuoteCurrency
	ecfg.BarLimit = cfg.BarLimit
	ecfg.Interval = cfg.CycleInterval

	ctrl, err := engine.New(ecfg, engine.Deps{
		Gateway:  gw,
		Signals:  strategy.NewEngine(params),
		Sizer:    risk.NewSizer(cfg.PositionSize),
		Throttle: throttle,
		Retry:    policy,
		Journal:  journal,
		Metrics:  recorder,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	var srv *api.Server
	if cfg.HTTPAddr != "" {
		srv = api.NewServer(api.Options{
			Status:  ctrl,
			Journal: journal,
			Latency: recorder.CycleLatency,
			Metrics: monitor.Handler(reg),
			Logger:  log,
			Meta: api.SystemMeta{
				DryRun:            cfg.DryRun,
				Venue:             venue,
				Symbol:            cfg.Symbol,
				Timeframe:         cfg.Timeframe,
				Leverage:          cfg.Leverage,
				StopLossPercent:   cfg.StopLossPercent,
				TakeProfitPercent: cfg.TakeProfitPercent,
				StateBackend:      cfg.StateBackend,
				Version:           version,
			},
		})
		go func() {
			if err := srv.Start(cfg.HTTPAddr); err != nil {
				log.Error().Err(err).Msg("status api stopped")
			}
		}()
	}

	if pg, ok := gw.(*paper.Gateway); ok {
		go feedPaper(ctx, pg, cfg.CycleInterval)
	}

	err = ctrl.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.Warn().Err(serr).Msg("status api shutdown")
		}
	}
	log.Info().
		Int("trades_today", throttle.State().TradesToday).
		Msg("shutdown complete")
	return err
}

// openState picks where the daily trade counter and order journal live.
// Only sqlite keeps a journal.
func openState(ctx context.Context, cfg *config.Config) (risk.ThrottleStore, order.Journal, func(), error) {
	switch cfg.StateBackend {
	case "sqlite":
		database, err := db.New(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		st := database.Store()
		return st, st, func() { _ = database.Close() }, nil
	case "redis":
		st, err := cache.NewThrottleStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return st, nil, func() { _ = st.Close() }, nil
	default:
		return cache.NewMemoryStore(), nil, func() {}, nil
	}
}

func openGateway(ctx context.Context, cfg *config.Config, log zerolog.Logger) (common.Gateway, string, error) {
	if cfg.DryRun {
		pcfg := paper.DefaultConfig()
		pcfg.Symbol = cfg.Symbol
		pcfg.Interval = cfg.BarDuration()
		pcfg.QuoteCurrency = cfg.QuoteCurrency
		pcfg.InitialBalance = cfg.DryRunInitialBalance
		pcfg.Leverage = float64(cfg.Leverage)
		pcfg.FeeRate = cfg.DryRunFeeRate
		pcfg.SlippageBps = cfg.DryRunSlippageBps
		pcfg.Seed = time.Now().UnixNano()
		pg := paper.New(pcfg, log)
		if err := seedPaper(ctx, cfg, pg, log); err != nil {
			return nil, "", err
		}
		return pg, "paper", nil
	}

	client, err := okx.NewClient(okx.Config{
		APIKey:     cfg.OKXAPIKey,
		SecretKey:  cfg.OKXSecretKey,
		Passphrase: cfg.OKXPassphrase,
		BaseURL:    cfg.OKXBaseURL,
		Simulated:  cfg.OKXSimulated,
		Symbol:     cfg.Symbol,
		Timeframe:  cfg.Timeframe,
		Leverage:   cfg.Leverage,
	}, log)
	if err != nil {
		return nil, "", err
	}
	// Init starts the clock re-sync loop, so it gets the process context.
	if err := client.Init(ctx); err != nil {
		return nil, "", fmt.Errorf("init okx client: %w", err)
	}
	venue := "okx"
	if cfg.OKXSimulated {
		venue = "okx-demo"
	}
	return client, venue, nil
}

// seedPaper replaces the generated paper history with a CSV file or with
// public OKX candles when configured.
func seedPaper(ctx context.Context, cfg *config.Config, pg *paper.Gateway, log zerolog.Logger) error {
	var (
		bars market.Series
		err  error
		from string
	)
	switch {
	case cfg.DryRunBarsFile != "":
		from = cfg.DryRunBarsFile
		bars, err = readBarsFile(cfg.DryRunBarsFile)
	case cfg.DryRunSeedHistory:
		from = "okx"
		var client *okx.Client
		client, err = okx.NewClient(okx.Config{
			BaseURL:   cfg.OKXBaseURL,
			Symbol:    cfg.Symbol,
			Timeframe: cfg.Timeframe,
		}, log)
		if err == nil {
			bars, err = data.NewHistoricalDataService(client).GetBars(ctx, 300)
		}
	default:
		return nil
	}
	if err == nil && len(bars) == 0 {
		err = errors.New("no bars")
	}
	if err != nil {
		return fmt.Errorf("seed paper venue from %s: %w", from, err)
	}
	if err := pg.SetBars(bars); err != nil {
		return fmt.Errorf("seed paper venue from %s: %w", from, err)
	}
	log.Info().Str("from", from).Int("bars", len(bars)).Msg("paper venue seeded")
	return nil
}

func readBarsFile(path string) (market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadCSV(f)
}

// feedPaper appends one simulated bar per interval so dry runs see a moving market.
func feedPaper(ctx context.Context, g *paper.Gateway, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.Advance()
		}
	}
}

func throttleKey(cfg *config.Config) string {
	mode := "live"
	if cfg.DryRun {
		mode = "paper"
	}
	return mode + ":" + cfg.Symbol
}
