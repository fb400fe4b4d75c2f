package indicator

import (
	"fmt"

	"github.com/wayneWudh/aiagent/internal/model"
)

// MACD calculates Moving Average Convergence Divergence: a fast EMA minus a
// slow EMA, with a signal EMA smoothed over the MACD line itself and a
// histogram of their difference. Standard parameters are 12/26/9.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a new MACD indicator with the given periods.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Update(candle model.Candle) {
	m.fast.Add(candle.Close)
	m.slow.Add(candle.Close)

	// The signal line only starts accumulating once the MACD line exists
	if m.slow.Ready() {
		m.signal.Add(m.fast.Value() - m.slow.Value())
	}
}

// Line returns the MACD line (fast EMA - slow EMA).
func (m *MACD) Line() float64 { return m.fast.Value() - m.slow.Value() }

// Signal returns the signal line (EMA of the MACD line).
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns MACD line minus signal line.
func (m *MACD) Histogram() float64 { return m.Line() - m.Signal() }

// LineReady reports whether the MACD line has a value (slow EMA warmed up).
func (m *MACD) LineReady() bool { return m.slow.Ready() }

// Ready reports whether all three outputs are available.
func (m *MACD) Ready() bool { return m.signal.Ready() }
