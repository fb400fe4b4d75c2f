package indicator

import (
	"fmt"

	"github.com/wayneWudh/aiagent/internal/model"
)

// hlWindow keeps a rolling window of candle highs and lows and answers
// max-high / min-low queries over it. O(period) per query, which is fine
// for the small lookbacks used here (9 and 14 bars).
type hlWindow struct {
	period int
	highs  []float64
	lows   []float64
	idx    int
	count  int
}

func newHLWindow(period int) *hlWindow {
	return &hlWindow{
		period: period,
		highs:  make([]float64, period),
		lows:   make([]float64, period),
	}
}

func (w *hlWindow) push(high, low float64) {
	w.highs[w.idx] = high
	w.lows[w.idx] = low
	w.idx = (w.idx + 1) % w.period
	w.count++
}

func (w *hlWindow) full() bool { return w.count >= w.period }

func (w *hlWindow) maxHigh() float64 {
	n := w.count
	if n > w.period {
		n = w.period
	}
	max := w.highs[0]
	for i := 1; i < n; i++ {
		if w.highs[i] > max {
			max = w.highs[i]
		}
	}
	return max
}

func (w *hlWindow) minLow() float64 {
	n := w.count
	if n > w.period {
		n = w.period
	}
	min := w.lows[0]
	for i := 1; i < n; i++ {
		if w.lows[i] < min {
			min = w.lows[i]
		}
	}
	return min
}

// Stochastic calculates the slow Stochastic Oscillator: raw %K as the close
// position within the rolling high-low range, smoothed by an SMA to give %K,
// with %D as a further SMA of %K. Standard parameters are 14/3/3.
type Stochastic struct {
	window *hlWindow
	kLine  *SMA // smooths raw %K
	dLine  *SMA // smooths %K
}

// NewStochastic creates a new Stochastic indicator.
func NewStochastic(period, kSmooth, dSmooth int) *Stochastic {
	return &Stochastic{
		window: newHLWindow(period),
		kLine:  NewSMA(kSmooth),
		dLine:  NewSMA(dSmooth),
	}
}

func (s *Stochastic) Name() string {
	return fmt.Sprintf("STOCH_%d_%d_%d", s.window.period, s.kLine.period, s.dLine.period)
}

func (s *Stochastic) Update(candle model.Candle) {
	s.window.push(candle.High, candle.Low)
	if !s.window.full() {
		return
	}

	raw := rangePosition(candle.Close, s.window.maxHigh(), s.window.minLow())
	s.kLine.Add(raw)
	if s.kLine.Ready() {
		s.dLine.Add(s.kLine.Value())
	}
}

// rangePosition maps close into [0, 100] within the high-low range.
// A flat range (high == low) yields the neutral 50.
func rangePosition(close, high, low float64) float64 {
	if high == low {
		return 50.0
	}
	return (close - low) / (high - low) * 100.0
}

// K returns the smoothed %K line.
func (s *Stochastic) K() float64 { return s.kLine.Value() }

// D returns the %D line.
func (s *Stochastic) D() float64 { return s.dLine.Value() }

// KReady reports whether %K has a value.
func (s *Stochastic) KReady() bool { return s.kLine.Ready() }

// Ready reports whether both %K and %D are available.
func (s *Stochastic) Ready() bool { return s.dLine.Ready() }
