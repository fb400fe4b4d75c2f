// Package model defines the core data types shared across the engine:
// candles, evaluation records, alert rules, and trigger payloads.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timeframes supported by the engine. Candles for any other timeframe are
// rejected at the ingestion boundary.
var SupportedTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}

// ValidTimeframe reports whether tf is one of the supported timeframes.
func ValidTimeframe(tf string) bool {
	for _, t := range SupportedTimeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// TimeframeDuration returns the candle period for a supported timeframe.
// Returns 0 for unknown timeframes.
func TimeframeDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	}
	return 0
}

// Candle represents one OHLCV bar for a symbol at a fixed timeframe.
// Immutable once accepted; uniquely identified by (Symbol, Timeframe, OpenTime).
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"` // bucket start (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns the series key for this candle: "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Validate checks candle fields at the ingestion boundary.
func (c *Candle) Validate() error {
	if c.Symbol == "" {
		return &ValidationError{Code: CodeInvalidCandle, Message: "candle symbol is empty"}
	}
	if !ValidTimeframe(c.Timeframe) {
		return &ValidationError{
			Code:    CodeUnsupportedTimeframe,
			Message: fmt.Sprintf("unsupported timeframe %q (supported: %v)", c.Timeframe, SupportedTimeframes),
		}
	}
	if c.OpenTime.IsZero() {
		return &ValidationError{Code: CodeInvalidCandle, Message: "candle open_time is zero"}
	}
	if c.High < c.Low {
		return &ValidationError{Code: CodeInvalidCandle, Message: "candle high < low"}
	}
	return nil
}
