package indicator

import (
	"fmt"
	"math"

	"github.com/wayneWudh/aiagent/internal/model"
)

// Bollinger calculates Bollinger Bands: a middle SMA with upper and lower
// bands offset by a multiple of the population standard deviation over the
// same window. Standard parameters are period 20, multiplier 2.
type Bollinger struct {
	period int
	mult   float64
	buf    []float64 // circular window of closes
	idx    int
	count  int
	sum    float64

	middle float64
	upper  float64
	lower  float64
}

// NewBollinger creates a new Bollinger Bands indicator.
func NewBollinger(period int, mult float64) *Bollinger {
	return &Bollinger{
		period: period,
		mult:   mult,
		buf:    make([]float64, period),
	}
}

func (b *Bollinger) Name() string { return fmt.Sprintf("BB_%d", b.period) }

func (b *Bollinger) Update(candle model.Candle) {
	price := candle.Close

	if b.count >= b.period {
		b.sum -= b.buf[b.idx]
	}
	b.buf[b.idx] = price
	b.sum += price
	b.idx = (b.idx + 1) % b.period
	b.count++

	if b.count < b.period {
		return
	}

	mean := b.sum / float64(b.period)
	variance := 0.0
	for _, v := range b.buf {
		d := v - mean
		variance += d * d
	}
	variance /= float64(b.period)
	sd := math.Sqrt(variance)

	b.middle = mean
	b.upper = mean + b.mult*sd
	b.lower = mean - b.mult*sd
}

// Upper returns the upper band.
func (b *Bollinger) Upper() float64 { return b.upper }

// Middle returns the middle band (SMA).
func (b *Bollinger) Middle() float64 { return b.middle }

// Lower returns the lower band.
func (b *Bollinger) Lower() float64 { return b.lower }

// Width returns upper minus lower, the band spread used for squeeze detection.
func (b *Bollinger) Width() float64 { return b.upper - b.lower }

func (b *Bollinger) Ready() bool { return b.count >= b.period }
