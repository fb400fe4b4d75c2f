package indicator

import (
	"fmt"
	"math"

	"github.com/wayneWudh/aiagent/internal/model"
)

// CCI calculates the Commodity Channel Index over typical prices
// (high + low + close) / 3, scaled by Lambert's 0.015 constant.
type CCI struct {
	period  int
	buf     []float64 // circular window of typical prices
	idx     int
	count   int
	sum     float64
	current float64
}

// NewCCI creates a new CCI indicator with the given period (typically 14).
func NewCCI(period int) *CCI {
	return &CCI{
		period: period,
		buf:    make([]float64, period),
	}
}

func (c *CCI) Name() string { return fmt.Sprintf("CCI_%d", c.period) }

func (c *CCI) Update(candle model.Candle) {
	tp := (candle.High + candle.Low + candle.Close) / 3.0

	if c.count >= c.period {
		c.sum -= c.buf[c.idx]
	}
	c.buf[c.idx] = tp
	c.sum += tp
	c.idx = (c.idx + 1) % c.period
	c.count++

	if c.count < c.period {
		return
	}

	mean := c.sum / float64(c.period)
	meanDev := 0.0
	for _, v := range c.buf {
		meanDev += math.Abs(v - mean)
	}
	meanDev /= float64(c.period)

	if meanDev == 0 {
		// Flat window: no deviation, index pinned at zero
		c.current = 0
		return
	}
	c.current = (tp - mean) / (0.015 * meanDev)
}

func (c *CCI) Value() float64 { return c.current }
func (c *CCI) Ready() bool    { return c.count >= c.period }
