package indicator

import (
	"math"
	"testing"

	"github.com/wayneWudh/aiagent/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func candle(close float64) model.Candle {
	return model.Candle{
		Symbol: "BTC", Timeframe: "1h",
		Open: close, High: close + 1, Low: close - 1, Close: close,
	}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Hand-calculated SMA(3) for a known price series:
	// Prices: 100, 102, 104, 103, 105
	// SMA after candle 3: (100+102+104)/3 = 102.0000
	// SMA after candle 4: (102+104+103)/3 = 103.0000
	// SMA after candle 5: (104+103+105)/3 = 104.0000

	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(candle(p))
		if sma.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Add_EquivalentToUpdate(t *testing.T) {
	a := NewSMA(4)
	b := NewSMA(4)
	for _, p := range []float64{10, 11, 12, 13, 14, 15} {
		a.Update(candle(p))
		b.Add(p)
	}
	assertClose(t, "SMA Add vs Update", a.Value(), b.Value(), 1e-12)
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Candle 3: initial EMA = (100+102+104)/3 = 102.0 (SMA seed)
	// Candle 4: EMA = 103*0.5 + 102.0*0.5 = 102.5
	// Candle 5: EMA = 105*0.5 + 102.5*0.5 = 103.75

	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(candle(p))
		if ema.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period3(t *testing.T) {
	// RSI(3) for prices: 100, 101, 102, 101, 103
	// Deltas: +1, +1, -1, +2
	//
	// Candle 4 (first RSI): avgGain = (1+1+0)/3, avgLoss = (0+0+1)/3
	//   RS = 2, RSI = 100 - 100/3 = 66.6667
	// Candle 5 (Wilder): avgGain = (2/3*2 + 2)/3 = 10/9, avgLoss = (1/3*2)/3 = 2/9
	//   RS = 5, RSI = 100 - 100/6 = 83.3333

	rsi := NewRSI(3)
	prices := []float64{100, 101, 102, 101, 103}
	for i, p := range prices {
		rsi.Update(candle(p))
		if i < 3 && rsi.Ready() {
			t.Errorf("candle %d: RSI should not be ready yet", i)
		}
	}
	if !rsi.Ready() {
		t.Fatal("RSI should be ready after 5 candles")
	}
	assertClose(t, "RSI(3)", rsi.Value(), 83.3333, 0.001)
}

func TestRSI_AllGains_Is100(t *testing.T) {
	rsi := NewRSI(3)
	for _, p := range []float64{100, 101, 102, 103, 104} {
		rsi.Update(candle(p))
	}
	assertClose(t, "RSI monotonic up", rsi.Value(), 100.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// MACD Correctness
// ────────────────────────────────────────────────────────────

func TestMACD_Correctness_LinearTrend(t *testing.T) {
	// MACD(2,3,2) on a steady +1 trend: 10, 11, 12, 13, 14
	//
	// fast EMA(2), mult 2/3: seed 10.5, then 11.5, 12.5, 13.5
	// slow EMA(3), mult 1/2: seed 11.0, then 12.0, 13.0
	// Line: 0.5 at candles 3, 4, 5 (constant on a linear trend)
	// Signal EMA(2) over the line: seed (0.5+0.5)/2 = 0.5 at candle 4
	// Histogram: 0 once both exist

	macd := NewMACD(2, 3, 2)
	prices := []float64{10, 11, 12, 13, 14}
	for i, p := range prices {
		macd.Update(candle(p))
		if i < 2 && macd.LineReady() {
			t.Errorf("candle %d: line should not be ready yet", i)
		}
	}
	if !macd.Ready() {
		t.Fatal("MACD should be fully ready after 5 candles")
	}
	assertClose(t, "MACD line", macd.Line(), 0.5, 0.0001)
	assertClose(t, "MACD signal", macd.Signal(), 0.5, 0.0001)
	assertClose(t, "MACD histogram", macd.Histogram(), 0.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// Bollinger Correctness
// ────────────────────────────────────────────────────────────

func TestBollinger_Correctness_Period3(t *testing.T) {
	// BB(3, 2) for closes 100, 102, 104:
	// mean = 102, population variance = (4+0+4)/3, sd = 1.632993
	// upper = 102 + 2*sd = 105.265986, lower = 98.734014
	//
	// Next close 106 → window 102, 104, 106: mean 104, same sd
	// upper = 107.265986, lower = 100.734014

	bb := NewBollinger(3, 2)
	for _, p := range []float64{100, 102, 104} {
		bb.Update(candle(p))
	}
	if !bb.Ready() {
		t.Fatal("BB should be ready after 3 candles")
	}
	assertClose(t, "BB middle", bb.Middle(), 102.0, 0.0001)
	assertClose(t, "BB upper", bb.Upper(), 105.265986, 0.0001)
	assertClose(t, "BB lower", bb.Lower(), 98.734014, 0.0001)

	bb.Update(candle(106))
	assertClose(t, "BB middle after slide", bb.Middle(), 104.0, 0.0001)
	assertClose(t, "BB upper after slide", bb.Upper(), 107.265986, 0.0001)
	assertClose(t, "BB width", bb.Width(), 2*2*1.632993, 0.0001)
}

func TestBollinger_FlatSeries_ZeroWidth(t *testing.T) {
	bb := NewBollinger(3, 2)
	for i := 0; i < 5; i++ {
		bb.Update(candle(100))
	}
	assertClose(t, "flat BB width", bb.Width(), 0.0, 1e-9)
	assertClose(t, "flat BB middle", bb.Middle(), 100.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Stochastic Correctness
// ────────────────────────────────────────────────────────────

func TestStochastic_Correctness_RawK(t *testing.T) {
	// Stoch(3,1,1): with smoothing 1 the %K line equals raw %K.
	// Candles (high, low, close): (12,8,10), (13,9,11), (14,10,13)
	// Window after candle 3: maxHigh=14, minLow=8
	// raw %K = (13-8)/(14-8)*100 = 83.3333

	st := NewStochastic(3, 1, 1)
	candles := []model.Candle{
		{Symbol: "BTC", Timeframe: "1h", High: 12, Low: 8, Close: 10},
		{Symbol: "BTC", Timeframe: "1h", High: 13, Low: 9, Close: 11},
		{Symbol: "BTC", Timeframe: "1h", High: 14, Low: 10, Close: 13},
	}
	for i, c := range candles {
		st.Update(c)
		if i < 2 && st.KReady() {
			t.Errorf("candle %d: %%K should not be ready yet", i)
		}
	}
	if !st.Ready() {
		t.Fatal("Stochastic should be ready after 3 candles")
	}
	assertClose(t, "Stoch %K", st.K(), 83.3333, 0.001)
	assertClose(t, "Stoch %D", st.D(), 83.3333, 0.001)
}

func TestStochastic_FlatRange_Neutral50(t *testing.T) {
	st := NewStochastic(3, 1, 1)
	flat := model.Candle{Symbol: "BTC", Timeframe: "1h", High: 10, Low: 10, Close: 10}
	for i := 0; i < 3; i++ {
		st.Update(flat)
	}
	assertClose(t, "flat-range %K", st.K(), 50.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// CCI Correctness
// ────────────────────────────────────────────────────────────

func TestCCI_Correctness_Period3(t *testing.T) {
	// With high = close+1 and low = close-1 the typical price equals close.
	// Closes 10, 11, 12: mean = 11, mean deviation = (1+0+1)/3 = 2/3
	// CCI = (12 - 11) / (0.015 * 2/3) = 100
	// Next close 13: window 11, 12, 13: CCI = (13 - 12) / 0.01 = 100

	cci := NewCCI(3)
	for _, p := range []float64{10, 11, 12} {
		cci.Update(candle(p))
	}
	if !cci.Ready() {
		t.Fatal("CCI should be ready after 3 candles")
	}
	assertClose(t, "CCI", cci.Value(), 100.0, 0.0001)

	cci.Update(candle(13))
	assertClose(t, "CCI after slide", cci.Value(), 100.0, 0.0001)
}

func TestCCI_FlatWindow_Zero(t *testing.T) {
	cci := NewCCI(3)
	for i := 0; i < 4; i++ {
		cci.Update(candle(100))
	}
	assertClose(t, "flat CCI", cci.Value(), 0.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// KDJ Correctness
// ────────────────────────────────────────────────────────────

func TestKDJ_Correctness_Period3(t *testing.T) {
	// KDJ(3,3,3) with high = close+1, low = close-1; closes 10, 11, 12.
	// Window after candle 3: maxHigh = 13, minLow = 9
	// RSV = (12-9)/(13-9)*100 = 75
	// K = 2/3*50 + 75/3  = 58.3333 (seeded at 50)
	// D = 2/3*50 + K/3   = 52.7778
	// J = 3K - 2D        = 69.4444

	kdj := NewKDJ(3, 3, 3)
	prices := []float64{10, 11, 12}
	for i, p := range prices {
		kdj.Update(candle(p))
		if i < 2 && kdj.Ready() {
			t.Errorf("candle %d: KDJ should not be ready yet", i)
		}
	}
	if !kdj.Ready() {
		t.Fatal("KDJ should be ready after 3 candles")
	}
	assertClose(t, "KDJ K", kdj.K(), 58.3333, 0.001)
	assertClose(t, "KDJ D", kdj.D(), 52.7778, 0.001)
	assertClose(t, "KDJ J", kdj.J(), 69.4444, 0.001)
}
