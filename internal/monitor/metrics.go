package monitor

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports controller activity as Prometheus metrics and keeps a
// sliding window of cycle latencies for the status API.
type Recorder struct {
	cycles     *prometheus.CounterVec
	orders     *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   prometheus.Histogram
	lastPrice  prometheus.Gauge
	tradeCount prometheus.Gauge

	CycleLatency *LatencyHistogram
}

// NewRecorder registers the collectors on reg. Each recorder should get its
// own registry; registering twice on one registry panics.
func NewRecorder(reg prometheus.Registerer, symbol string) *Recorder {
	labels := prometheus.Labels{"symbol": symbol}
	r := &Recorder{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "okx_trader_cycles_total",
			Help:        "Completed decision cycles by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "okx_trader_orders_total",
			Help:        "Orders accepted by the venue",
			ConstLabels: labels,
		}, []string{"side"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "okx_trader_gateway_retries_total",
			Help:        "Retried gateway calls by operation",
			ConstLabels: labels,
		}, []string{"op"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "okx_trader_cycle_duration_seconds",
			Help:        "Wall time of one decision cycle",
			ConstLabels: labels,
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "okx_trader_last_price",
			Help:        "Last observed ticker price",
			ConstLabels: labels,
		}),
		tradeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "okx_trader_trades_today",
			Help:        "Orders placed in the current trading day",
			ConstLabels: labels,
		}),
		CycleLatency: NewLatencyHistogram(500),
	}
	reg.MustRegister(r.cycles, r.orders, r.retries, r.duration, r.lastPrice, r.tradeCount)
	return r
}

func (r *Recorder) CycleCompleted(outcome string, d time.Duration) {
	r.cycles.WithLabelValues(outcome).Inc()
	r.duration.Observe(d.Seconds())
	r.CycleLatency.RecordDuration(d)
}

func (r *Recorder) OrderSubmitted(side string) {
	r.orders.WithLabelValues(side).Inc()
}

func (r *Recorder) GatewayRetry(op string) {
	r.retries.WithLabelValues(op).Inc()
}

func (r *Recorder) SessionUpdated(lastPrice float64, tradesToday int) {
	if lastPrice > 0 {
		r.lastPrice.Set(lastPrice)
	}
	r.tradeCount.Set(float64(tradesToday))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// LatencyHistogram tracks latency samples in a sliding window.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles, recomputed only after new samples.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.cachedStats
	}
	n := len(h.samples)
	if n == 0 {
		h.cachedStats, h.dirty = LatencyStats{}, false
		return h.cachedStats
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n-1)*0.95)],
		P99:   sorted[int(float64(n-1)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}
