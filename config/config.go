// Package config loads application configuration from environment variables,
// with optional .env file support for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP interfaces
	HTTPAddr    string
	MetricsAddr string

	// Persistence
	SQLitePath string

	// Redis candle-stream ingest (optional; empty RedisAddr disables it)
	RedisAddr          string
	RedisPassword      string
	CandleStreamPrefix string
	ConsumerGroup      string
	ConsumerName       string

	// Alert delivery
	AlertEndpointURL   string
	DeliveryMaxRetries int
	DeliveryQueueSize  int

	// Monitored universe (comma-separated)
	Symbols    string
	Timeframes string

	// Per-series record history kept in memory for signal lookback and
	// recent-first queries.
	HistoryWindow int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}

	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		SQLitePath: getEnv("SQLITE_PATH", "data/records.db"),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		CandleStreamPrefix: getEnv("CANDLE_STREAM_PREFIX", "candles"),
		ConsumerGroup:      getEnv("CONSUMER_GROUP", "alertengine"),
		ConsumerName:       getEnv("CONSUMER_NAME", hostnameOr("worker-1")),

		AlertEndpointURL:   getEnv("ALERT_ENDPOINT_URL", "http://localhost:8081/webhook/alert/trigger"),
		DeliveryMaxRetries: getEnvInt("DELIVERY_MAX_RETRIES", 3),
		DeliveryQueueSize:  getEnvInt("DELIVERY_QUEUE_SIZE", 256),

		Symbols:    getEnv("SYMBOLS", "BTC,ETH"),
		Timeframes: getEnv("TIMEFRAMES", "5m,15m,1h,1d"),

		HistoryWindow: getEnvInt("HISTORY_WINDOW", 256),
	}
}

// ParseSymbols parses the Symbols string into an upper-cased slice.
func (c *Config) ParseSymbols() []string {
	return splitList(c.Symbols, strings.ToUpper)
}

// ParseTimeframes parses the Timeframes string into a slice.
func (c *Config) ParseTimeframes() []string {
	return splitList(c.Timeframes, nil)
}

func splitList(s string, norm func(string) string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if norm != nil {
			p = norm(p)
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s value %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}
