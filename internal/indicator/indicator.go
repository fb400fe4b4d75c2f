// Package indicator provides incremental technical indicator calculations
// over candle data.
//
// All single-valued indicators implement the Indicator interface, receiving
// candles and producing float64 values. Multi-output indicators (MACD,
// Bollinger, Stochastic, KDJ) expose typed accessors instead and are
// composed per series by Series.
package indicator

import "github.com/wayneWudh/aiagent/internal/model"

// Indicator is the interface for single-valued technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "RSI_14").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}
