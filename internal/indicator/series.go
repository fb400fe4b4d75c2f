package indicator

import "github.com/wayneWudh/aiagent/internal/model"

// Standard parameter set. These match the canonical field names in
// model.IndicatorFields; changing one requires changing the other.
var maPeriods = []int{5, 10, 20, 50, 100, 200}

const (
	rsiPeriod = 14

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	bbPeriod = 20
	bbMult   = 2.0

	stochPeriod  = 14
	stochKSmooth = 3
	stochDSmooth = 3

	cciPeriod = 14

	kdjPeriod  = 9
	kdjKSmooth = 3
	kdjDSmooth = 3
)

// Series holds the full indicator state for one (symbol, timeframe) stream.
// Update feeds a closed candle through every indicator and returns the
// resulting IndicatorSet; indicators without enough history are simply
// absent from the set. Series is not safe for concurrent use — each stream
// worker owns exactly one.
type Series struct {
	mas   []*SMA
	rsi   *RSI
	macd  *MACD
	bb    *Bollinger
	stoch *Stochastic
	cci   *CCI
	kdj   *KDJ
}

// NewSeries creates indicator state for one candle stream.
func NewSeries() *Series {
	mas := make([]*SMA, len(maPeriods))
	for i, p := range maPeriods {
		mas[i] = NewSMA(p)
	}
	return &Series{
		mas:   mas,
		rsi:   NewRSI(rsiPeriod),
		macd:  NewMACD(macdFast, macdSlow, macdSignal),
		bb:    NewBollinger(bbPeriod, bbMult),
		stoch: NewStochastic(stochPeriod, stochKSmooth, stochDSmooth),
		cci:   NewCCI(cciPeriod),
		kdj:   NewKDJ(kdjPeriod, kdjKSmooth, kdjDSmooth),
	}
}

// maFields is ordered to match maPeriods.
var maFields = []string{
	model.FieldMA5, model.FieldMA10, model.FieldMA20,
	model.FieldMA50, model.FieldMA100, model.FieldMA200,
}

// Update feeds one closed candle and returns the indicator values that are
// ready after it.
func (s *Series) Update(candle model.Candle) model.IndicatorSet {
	out := make(model.IndicatorSet, len(model.IndicatorFields))

	for i, ma := range s.mas {
		ma.Update(candle)
		if ma.Ready() {
			out[maFields[i]] = ma.Value()
		}
	}

	s.rsi.Update(candle)
	if s.rsi.Ready() {
		out[model.FieldRSI] = s.rsi.Value()
	}

	s.macd.Update(candle)
	if s.macd.LineReady() {
		out[model.FieldMACDLine] = s.macd.Line()
	}
	if s.macd.Ready() {
		out[model.FieldMACDSignal] = s.macd.Signal()
		out[model.FieldMACDHist] = s.macd.Histogram()
	}

	s.bb.Update(candle)
	if s.bb.Ready() {
		out[model.FieldBBUpper] = s.bb.Upper()
		out[model.FieldBBMiddle] = s.bb.Middle()
		out[model.FieldBBLower] = s.bb.Lower()
	}

	s.stoch.Update(candle)
	if s.stoch.KReady() {
		out[model.FieldStochK] = s.stoch.K()
	}
	if s.stoch.Ready() {
		out[model.FieldStochD] = s.stoch.D()
	}

	s.cci.Update(candle)
	if s.cci.Ready() {
		out[model.FieldCCI] = s.cci.Value()
	}

	s.kdj.Update(candle)
	if s.kdj.Ready() {
		out[model.FieldKDJK] = s.kdj.K()
		out[model.FieldKDJD] = s.kdj.D()
		out[model.FieldKDJJ] = s.kdj.J()
	}

	return out
}
