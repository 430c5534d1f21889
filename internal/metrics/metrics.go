// Package metrics exposes Prometheus metrics for the paper-trading engine
// and serves them with a health probe over HTTP.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	OrdersPlaced    *prometheus.CounterVec // labels: type, side
	OrdersFilled    prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersCancelled prometheus.Counter

	RiskExits     *prometheus.CounterVec // labels: reason
	QuoteFailures prometheus.Counter

	FillSlippageCost prometheus.Histogram // dollars lost to slippage per fill

	RefreshCycleDur prometheus.Histogram
	MonitorCycleDur prometheus.Histogram

	OpenPositions prometheus.Gauge
	PendingOrders prometheus.Gauge
	MarketState   prometheus.Gauge // 0=closed, 1=regular session
}

// New registers and returns all engine metrics on the given registerer.
// Tests pass an isolated prometheus.NewRegistry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_placed_total",
			Help: "Orders accepted by validation (by type and side)",
		}, []string{"type", "side"}),
		OrdersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_filled_total",
			Help: "Orders transitioned to filled",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_rejected_total",
			Help: "Orders transitioned to rejected",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_orders_cancelled_total",
			Help: "Orders transitioned to cancelled",
		}),
		RiskExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_risk_exits_total",
			Help: "Positions closed by risk rules (by reason)",
		}, []string{"reason"}),
		QuoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_quote_failures_total",
			Help: "Quote lookups that returned unavailable",
		}),
		FillSlippageCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_fill_slippage_cost_dollars",
			Help:    "Adverse slippage cost per fill in dollars",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
		}),
		RefreshCycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_price_refresh_duration_seconds",
			Help:    "Price refresh cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
		MonitorCycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_order_monitor_duration_seconds",
			Help:    "Order monitor cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Open positions across all accounts",
		}),
		PendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_pending_orders",
			Help: "Orders awaiting trigger conditions",
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_market_state",
			Help: "1 while the regular session is open, else 0",
		}),
	}

	reg.MustRegister(
		m.OrdersPlaced,
		m.OrdersFilled,
		m.OrdersRejected,
		m.OrdersCancelled,
		m.RiskExits,
		m.QuoteFailures,
		m.FillSlippageCost,
		m.RefreshCycleDur,
		m.MonitorCycleDur,
		m.OpenPositions,
		m.PendingOrders,
		m.MarketState,
	)

	return m
}

// HealthStatus represents the engine health.
type HealthStatus struct {
	mu sync.RWMutex

	SQLiteOK       bool `json:"sqlite_ok"`
	RedisConnected bool `json:"redis_connected"`
	SchedulerUp    bool `json:"scheduler_up"`

	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetSchedulerUp(v bool) {
	h.mu.Lock()
	h.SchedulerUp = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

// CheckSQLite runs a ping and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// ServeHTTP writes the health status as JSON; 503 when SQLite is down.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	status := struct {
		SQLiteOK        bool      `json:"sqlite_ok"`
		RedisConnected  bool      `json:"redis_connected"`
		SchedulerUp     bool      `json:"scheduler_up"`
		SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
		LastCheckAt     time.Time `json:"last_check_at"`
		StartedAt       time.Time `json:"started_at"`
	}{h.SQLiteOK, h.RedisConnected, h.SchedulerUp, h.SQLiteLatencyMs, h.LastCheckAt, h.StartedAt}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !status.SQLiteOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
