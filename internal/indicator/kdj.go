package indicator

import (
	"fmt"

	"github.com/wayneWudh/aiagent/internal/model"
)

// KDJ calculates the KDJ oscillator, a stochastic variant common on crypto
// and Asian equity platforms. RSV is the close position within the rolling
// high-low range; K and D are recursively smoothed from a neutral 50 seed,
// and J = 3K - 2D amplifies divergence between them. Standard parameters
// are 9/3/3.
type KDJ struct {
	window  *hlWindow
	kSmooth float64
	dSmooth float64
	k       float64
	d       float64
}

// NewKDJ creates a new KDJ indicator.
func NewKDJ(period, kSmooth, dSmooth int) *KDJ {
	return &KDJ{
		window:  newHLWindow(period),
		kSmooth: float64(kSmooth),
		dSmooth: float64(dSmooth),
		k:       50.0,
		d:       50.0,
	}
}

func (k *KDJ) Name() string {
	return fmt.Sprintf("KDJ_%d_%d_%d", k.window.period, int(k.kSmooth), int(k.dSmooth))
}

func (k *KDJ) Update(candle model.Candle) {
	k.window.push(candle.High, candle.Low)
	if !k.window.full() {
		return
	}

	rsv := rangePosition(candle.Close, k.window.maxHigh(), k.window.minLow())

	// K = (smooth-1)/smooth * prevK + 1/smooth * RSV, and likewise for D.
	// With smooth=3 this is the familiar K = 2/3*prevK + 1/3*RSV.
	k.k = (k.kSmooth-1)/k.kSmooth*k.k + rsv/k.kSmooth
	k.d = (k.dSmooth-1)/k.dSmooth*k.d + k.k/k.dSmooth
}

// K returns the K line.
func (k *KDJ) K() float64 { return k.k }

// D returns the D line.
func (k *KDJ) D() float64 { return k.d }

// J returns 3K - 2D. Unlike K and D it is not bounded to [0, 100].
func (k *KDJ) J() float64 { return 3*k.k - 2*k.d }

func (k *KDJ) Ready() bool { return k.window.full() }
