package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"okx-trader/internal/indicators"
	"okx-trader/internal/strategy"
)

// Config holds environment-driven settings for the bot.
type Config struct {
	// OKX
	OKXAPIKey     string `validate:"required_unless=DryRun true"`
	OKXSecretKey  string `validate:"required_unless=DryRun true"`
	OKXPassphrase string `validate:"required_unless=DryRun true"`
	OKXBaseURL    string `validate:"omitempty,url"`
	OKXSimulated  bool

	// Instrument
	Symbol       string  `validate:"required"`
	Timeframe    string  `validate:"oneof=1m 5m 15m 30m 1h 4h 1d 1w 1M"`
	Leverage     int     `validate:"gte=1,lte=125"`
	PositionSize float64 `validate:"gt=0,lte=1"`

	// Strategy
	RSIPeriod         int     `validate:"gte=1"`
	RSIOverbought     float64 `validate:"gt=0,lt=100"`
	RSIOversold       float64 `validate:"gt=0,ltfield=RSIOverbought"`
	MAPeriod          int     `validate:"gte=1"`
	MAFast            int     `validate:"gte=1"`
	MASlow            int     `validate:"gte=1"`
	ATRPeriod         int     `validate:"gte=1"`
	VolumeMAPeriod    int     `validate:"gte=1"`
	StopLossPercent   float64 `validate:"gte=0,lt=1"` // reported only; stops are ATR based
	TakeProfitPercent float64 `validate:"gte=0,lt=1"` // reported only
	// StrategyConfig is an optional YAML file overriding strategy parameters.
	StrategyConfig string

	// Loop
	MaxDailyTrades   int           `validate:"gte=1"`
	BarLimit         int           `validate:"gte=1,lte=300"`
	CycleInterval    time.Duration `validate:"gte=1s"`
	RetryMaxAttempts int           `validate:"gte=1"`
	RetryDelay       time.Duration `validate:"gte=0"`
	QuoteCurrency    string        `validate:"required"`

	// Dry run
	DryRun               bool
	DryRunInitialBalance float64 `validate:"gte=0"`
	DryRunFeeRate        float64 `validate:"gte=0,lt=1"`
	DryRunSlippageBps    float64 `validate:"gte=0"`
	// DryRunBarsFile seeds the paper venue from CSV; DryRunSeedHistory from
	// public OKX candles. The file wins when both are set.
	DryRunBarsFile    string
	DryRunSeedHistory bool

	// State
	StateBackend  string `validate:"oneof=memory sqlite redis"`
	DBPath        string `validate:"required_if=StateBackend sqlite"`
	RedisAddr     string `validate:"required_if=StateBackend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	// Surfaces. An empty HTTPAddr disables the status API.
	HTTPAddr  string
	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

var validate = validator.New()

// Load reads environment variables (optionally via .env) into Config and
// validates the result.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		OKXAPIKey:     os.Getenv("OKX_API_KEY"),
		OKXSecretKey:  os.Getenv("OKX_SECRET_KEY"),
		OKXPassphrase: os.Getenv("OKX_PASSPHRASE"),
		OKXBaseURL:    getEnv("OKX_BASE_URL", "https://www.okx.com"),
		OKXSimulated:  getEnvBool("OKX_SIMULATED", true),

		Symbol:       getEnv("SYMBOL", "BTC-USDT-SWAP"),
		Timeframe:    getEnv("TIMEFRAME", "1m"),
		Leverage:     getEnvInt("LEVERAGE", 3),
		PositionSize: getEnvFloat("POSITION_SIZE", 0.05),

		RSIPeriod:         getEnvInt("RSI_PERIOD", 9),
		RSIOverbought:     getEnvFloat("RSI_OVERBOUGHT", 75),
		RSIOversold:       getEnvFloat("RSI_OVERSOLD", 25),
		MAPeriod:          getEnvInt("MA_PERIOD", 10),
		MAFast:            getEnvInt("MA_FAST", 5),
		MASlow:            getEnvInt("MA_SLOW", 20),
		ATRPeriod:         getEnvInt("ATR_PERIOD", 7),
		VolumeMAPeriod:    getEnvInt("VOLUME_MA_PERIOD", 10),
		StopLossPercent:   getEnvFloat("STOP_LOSS_PERCENT", 0.01),
		TakeProfitPercent: getEnvFloat("TAKE_PROFIT_PERCENT", 0.02),
		StrategyConfig:    os.Getenv("STRATEGY_CONFIG"),

		MaxDailyTrades:   getEnvInt("MAX_DAILY_TRADES", 500),
		BarLimit:         getEnvInt("BAR_LIMIT", 100),
		CycleInterval:    getEnvDuration("CYCLE_INTERVAL", 60*time.Second),
		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryDelay:       getEnvDuration("RETRY_DELAY", 10*time.Second),
		QuoteCurrency:    getEnv("QUOTE_CURRENCY", "USDT"),

		DryRun:               getEnvBool("DRY_RUN", false),
		DryRunInitialBalance: getEnvFloat("DRY_RUN_INITIAL_BALANCE", 10000.0),
		DryRunFeeRate:        getEnvFloat("DRY_RUN_FEE_RATE", 0.0005),
		DryRunSlippageBps:    getEnvFloat("DRY_RUN_SLIPPAGE_BPS", 2),
		DryRunBarsFile:       os.Getenv("DRY_RUN_BARS_FILE"),
		DryRunSeedHistory:    getEnvBool("DRY_RUN_SEED_HISTORY", false),

		StateBackend:  strings.ToLower(getEnv("STATE_BACKEND", "memory")),
		DBPath:        getEnv("DB_PATH", "./data/okx-trader.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "console")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("validate config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// StrategyParams builds signal engine parameters from the environment,
// applying STRATEGY_CONFIG overrides when set.
func (c *Config) StrategyParams() (strategy.Params, error) {
	ip := indicators.DefaultParams()
	ip.RSIPeriod = c.RSIPeriod
	ip.MAPeriod = c.MAPeriod
	ip.MAFast = c.MAFast
	ip.MASlow = c.MASlow
	ip.ATRPeriod = c.ATRPeriod
	ip.VolumeMAPeriod = c.VolumeMAPeriod
	p := strategy.Params{Indicators: ip, Oversold: c.RSIOversold, Overbought: c.RSIOverbought}

	if c.StrategyConfig != "" {
		return strategy.LoadParams(c.StrategyConfig, p)
	}
	return p, p.Validate()
}

var barDurations = map[string]time.Duration{
	"1m": time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute, "30m": 30 * time.Minute,
	"1h": time.Hour, "4h": 4 * time.Hour, "1d": 24 * time.Hour, "1w": 7 * 24 * time.Hour,
	"1M": 30 * 24 * time.Hour,
}

// BarDuration is the span of one candle at Timeframe, with 1M taken as 30
// days. Unknown timeframes fall back to one minute.
func (c *Config) BarDuration() time.Duration {
	if d, ok := barDurations[c.Timeframe]; ok {
		return d
	}
	return time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("60").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second
	}
	return def
}
