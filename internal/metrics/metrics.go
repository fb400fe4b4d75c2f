// Package metrics provides Prometheus metrics and the health endpoint for
// the alert engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the alert engine.
// NewMetrics registers into the default registry, so construct it once.
type Metrics struct {
	// Ingestion
	CandlesAccepted   prometheus.Counter
	CandlesDuplicate  prometheus.Counter
	CandlesOutOfOrder prometheus.Counter
	CandlesRejected   prometheus.Counter

	// Pipeline
	IndicatorComputeDur prometheus.Histogram
	SignalsTotal        *prometheus.CounterVec // labels: signal
	SQLiteCommitDur     prometheus.Histogram

	// Alert engine
	RulesEvaluated     prometheus.Counter
	TriggersTotal      *prometheus.CounterVec // labels: alert_type
	TriggersSuppressed prometheus.Counter

	// Delivery
	DeliveryAttempts   prometheus.Counter
	DeliveryFailures   prometheus.Counter
	DeliveryDropped    prometheus.Counter
	DeliveryDur        prometheus.Histogram
	DeliveryQueueDepth prometheus.Gauge

	// API
	WSClients prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CandlesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_candles_accepted_total",
			Help: "Candles accepted into the pipeline",
		}),
		CandlesDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_candles_duplicate_total",
			Help: "Candles ignored as duplicates of the current head",
		}),
		CandlesOutOfOrder: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_candles_out_of_order_total",
			Help: "Candles rejected for arriving behind the series head",
		}),
		CandlesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_candles_rejected_total",
			Help: "Candles rejected by validation",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_indicator_compute_duration_seconds",
			Help:    "Per-candle indicator and signal computation latency",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_signals_total",
			Help: "Signals detected, by signal type",
		}, []string{"signal"}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		RulesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_rules_evaluated_total",
			Help: "Rule evaluations performed",
		}),
		TriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertengine_triggers_total",
			Help: "Alert triggers fired, by alert type",
		}, []string{"alert_type"}),
		TriggersSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_triggers_suppressed_total",
			Help: "Matches suppressed by frequency policy",
		}),

		DeliveryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_delivery_attempts_total",
			Help: "Webhook delivery attempts (including retries)",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_delivery_failures_total",
			Help: "Webhook deliveries abandoned after all retries",
		}),
		DeliveryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertengine_delivery_dropped_total",
			Help: "Triggers dropped because the delivery queue was full",
		}),
		DeliveryDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertengine_delivery_duration_seconds",
			Help:    "Webhook delivery latency per successful attempt",
			Buckets: prometheus.DefBuckets,
		}),
		DeliveryQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_delivery_queue_depth",
			Help: "Triggers waiting in the delivery queue",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertengine_ws_clients",
			Help: "Connected candle ingest WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.CandlesAccepted,
		m.CandlesDuplicate,
		m.CandlesOutOfOrder,
		m.CandlesRejected,
		m.IndicatorComputeDur,
		m.SignalsTotal,
		m.SQLiteCommitDur,
		m.RulesEvaluated,
		m.TriggersTotal,
		m.TriggersSuppressed,
		m.DeliveryAttempts,
		m.DeliveryFailures,
		m.DeliveryDropped,
		m.DeliveryDur,
		m.DeliveryQueueDepth,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastCandleTime time.Time `json:"last_candle_time"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
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

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisOK := !h.RedisEnabled || h.RedisConnected
	if !redisOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && !redisOK {
		overallStatus = "unhealthy"
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCandleTime  string  `json:"last_candle_time"`
		CandleAge       string  `json:"candle_age"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCandleTime:  h.LastCandleTime.Format(time.RFC3339),
		CandleAge:       candleAge,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
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
