package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"okx-trader/internal/engine"
	"okx-trader/internal/monitor"
	"okx-trader/internal/order"
)

// StatusSource is the read-only view of a running controller.
type StatusSource interface {
	Snapshot() engine.Status
}

// Server exposes controller status, the order journal and metrics over HTTP.
// Handlers only read; nothing here can change trading state.
type Server struct {
	Router  *gin.Engine
	Status  StatusSource
	Journal order.Journal             // optional
	Latency *monitor.LatencyHistogram // optional
	Meta    SystemMeta

	log  zerolog.Logger
	http *http.Server
}

// SystemMeta describes static runtime settings reported by /api/status.
type SystemMeta struct {
	DryRun            bool    `json:"dry_run"`
	Venue             string  `json:"venue"`
	Symbol            string  `json:"symbol"`
	Timeframe         string  `json:"timeframe"`
	Leverage          int     `json:"leverage"`
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
	StateBackend      string  `json:"state_backend"`
	Version           string  `json:"version"`
}

// Options carries the collaborators of a Server.
type Options struct {
	Status  StatusSource
	Journal order.Journal
	Latency *monitor.LatencyHistogram
	Metrics http.Handler // served at /metrics when set
	Meta    SystemMeta
	Logger  zerolog.Logger
}

func NewServer(opts Options) *Server {
	r := gin.New()

	// Middleware order matters: recovery first, request id before logging.
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(opts.Logger))
	r.Use(RateLimitMiddleware(newIPLimiters(20, 50)))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Status:  opts.Status,
		Journal: opts.Journal,
		Latency: opts.Latency,
		Meta:    opts.Meta,
		log:     opts.Logger.With().Str("component", "api").Logger(),
	}
	s.routes(opts.Metrics)
	return s
}

func (s *Server) routes(metrics http.Handler) {
	s.Router.GET("/health", s.health)
	if metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(metrics))
	}

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/orders", s.getOrders)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("status api listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
