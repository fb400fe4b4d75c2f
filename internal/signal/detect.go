package signal

import "github.com/wayneWudh/aiagent/internal/model"

// Detection thresholds.
const (
	rsiOversoldLevel   = 30.0
	rsiOverboughtLevel = 70.0

	stochOversoldLevel   = 20.0
	stochOverboughtLevel = 80.0

	kdjJOversoldLevel   = 0.0
	kdjJOverboughtLevel = 100.0
	kdjCrossUpperGuard  = 80.0
	kdjCrossLowerGuard  = 20.0

	cciOverboughtLevel = 100.0
	cciOversoldLevel   = -100.0

	bbTouchTolerance = 0.005
	bbSqueezeRatio   = 0.8
	bbExpansionRatio = 1.2
	bbWidthLookback  = 19
	bbWidthMinCount  = 15

	volumeLookback   = 20
	volumeMinCount   = 10
	volumeSpikeRatio = 2.0
	volumeDryRatio   = 0.5

	divergenceLookback = 30
	divergenceMinCount = 10
)

// History is the read-only record lookback a detector scans. Index 0 is the
// oldest retained record; Len()-1 is the most recent closed candle before
// the one being detected.
type History interface {
	Len() int
	At(i int) model.Record
}

// Detect evaluates every signal rule for cur against hist and returns the
// sorted, deduplicated tag set. cur is the record under construction: its
// indicators are populated but its signals are not. hist must hold only
// records from the same (symbol, timeframe) stream.
func Detect(hist History, cur model.Record) model.SignalSet {
	var tags []string

	var prev *model.Record
	if hist.Len() > 0 {
		p := hist.At(hist.Len() - 1)
		prev = &p
	}

	tags = append(tags, levelSignals(cur)...)
	if prev != nil {
		tags = append(tags, crossSignals(*prev, cur)...)
	}
	tags = append(tags, bandWidthSignals(hist, cur)...)
	tags = append(tags, volumeSignals(hist, cur)...)
	tags = append(tags, divergenceSignals(hist, cur)...)

	return model.NewSignalSet(tags)
}

// levelSignals need only the current record.
func levelSignals(cur model.Record) []string {
	var tags []string
	ind := cur.Indicators

	if rsi, ok := ind.Get(model.FieldRSI); ok {
		if rsi < rsiOversoldLevel {
			tags = append(tags, RSIOversold)
		}
		if rsi > rsiOverboughtLevel {
			tags = append(tags, RSIOverbought)
		}
	}

	ma5, ok5 := ind.Get(model.FieldMA5)
	ma10, ok10 := ind.Get(model.FieldMA10)
	ma20, ok20 := ind.Get(model.FieldMA20)
	ma50, ok50 := ind.Get(model.FieldMA50)
	if ok5 && ok10 && ok20 && ok50 {
		if ma5 > ma10 && ma10 > ma20 && ma20 > ma50 {
			tags = append(tags, MABullishArrangement)
		}
		if ma5 < ma10 && ma10 < ma20 && ma20 < ma50 {
			tags = append(tags, MABearishArrangement)
		}
	}
	if ok50 {
		if cur.Close > ma50 {
			tags = append(tags, PriceAboveMA50)
		}
		if cur.Close < ma50 {
			tags = append(tags, PriceBelowMA50)
		}
	}

	if upper, ok := ind.Get(model.FieldBBUpper); ok {
		if cur.Close >= upper*(1-bbTouchTolerance) {
			tags = append(tags, BBUpperTouch)
		}
	}
	if lower, ok := ind.Get(model.FieldBBLower); ok {
		if cur.Close <= lower*(1+bbTouchTolerance) {
			tags = append(tags, BBLowerTouch)
		}
	}

	k, okK := ind.Get(model.FieldStochK)
	d, okD := ind.Get(model.FieldStochD)
	if okK && okD {
		if k < stochOversoldLevel && d < stochOversoldLevel {
			tags = append(tags, StochOversold)
		}
		if k > stochOverboughtLevel && d > stochOverboughtLevel {
			tags = append(tags, StochOverbought)
		}
	}

	if j, ok := ind.Get(model.FieldKDJJ); ok {
		if j < kdjJOversoldLevel {
			tags = append(tags, KDJOversold)
		}
		if j > kdjJOverboughtLevel {
			tags = append(tags, KDJOverbought)
		}
	}

	if cci, ok := ind.Get(model.FieldCCI); ok {
		if cci > cciOverboughtLevel {
			tags = append(tags, CCIOverbought)
		}
		if cci < cciOversoldLevel {
			tags = append(tags, CCIOversold)
		}
	}

	return tags
}

// crossSignals fire only on the candle where a difference changes sign.
// Both sides of the comparison must exist on both records, and the change
// must be strict: a diff resting at exactly zero never crosses.
func crossSignals(prev, cur model.Record) []string {
	var tags []string

	if pd, cd, ok := diffPair(prev, cur, model.FieldMACDLine, model.FieldMACDSignal); ok {
		if crossedUp(pd, cd) {
			tags = append(tags, MACDGoldenCross)
		}
		if crossedDown(pd, cd) {
			tags = append(tags, MACDDeathCross)
		}
	}

	if pv, ok1 := prev.Indicators.Get(model.FieldMACDLine); ok1 {
		if cv, ok2 := cur.Indicators.Get(model.FieldMACDLine); ok2 {
			if crossedUp(pv, cv) {
				tags = append(tags, MACDZeroCrossUp)
			}
			if crossedDown(pv, cv) {
				tags = append(tags, MACDZeroCrossDn)
			}
		}
	}

	if pd, cd, ok := diffPair(prev, cur, model.FieldMA5, model.FieldMA20); ok {
		if crossedUp(pd, cd) {
			tags = append(tags, MAGoldenCross)
		}
		if crossedDown(pd, cd) {
			tags = append(tags, MADeathCross)
		}
	}

	if pm, ok1 := prev.Indicators.Get(model.FieldBBMiddle); ok1 {
		if cm, ok2 := cur.Indicators.Get(model.FieldBBMiddle); ok2 {
			if crossedUp(prev.Close-pm, cur.Close-cm) {
				tags = append(tags, BBMiddleCrossUp)
			}
			if crossedDown(prev.Close-pm, cur.Close-cm) {
				tags = append(tags, BBMiddleCrossDn)
			}
		}
	}

	if pd, cd, ok := diffPair(prev, cur, model.FieldStochK, model.FieldStochD); ok {
		k, _ := cur.Indicators.Get(model.FieldStochK)
		if crossedUp(pd, cd) && k < stochOverboughtLevel {
			tags = append(tags, StochBullishCross)
		}
		if crossedDown(pd, cd) && k > stochOversoldLevel {
			tags = append(tags, StochBearishCross)
		}
	}

	if pd, cd, ok := diffPair(prev, cur, model.FieldKDJK, model.FieldKDJD); ok {
		if j, okJ := cur.Indicators.Get(model.FieldKDJJ); okJ {
			if crossedUp(pd, cd) && j < kdjCrossUpperGuard {
				tags = append(tags, KDJGoldenCross)
			}
			if crossedDown(pd, cd) && j > kdjCrossLowerGuard {
				tags = append(tags, KDJDeathCross)
			}
		}
	}

	if pv, ok1 := prev.Indicators.Get(model.FieldCCI); ok1 {
		if cv, ok2 := cur.Indicators.Get(model.FieldCCI); ok2 {
			if crossedUp(pv, cv) {
				tags = append(tags, CCIZeroCrossUp)
			}
			if crossedDown(pv, cv) {
				tags = append(tags, CCIZeroCrossDn)
			}
		}
	}

	return tags
}

// diffPair returns (prevA-prevB, curA-curB) when all four values exist.
func diffPair(prev, cur model.Record, fieldA, fieldB string) (pd, cd float64, ok bool) {
	pa, ok1 := prev.Indicators.Get(fieldA)
	pb, ok2 := prev.Indicators.Get(fieldB)
	ca, ok3 := cur.Indicators.Get(fieldA)
	cb, ok4 := cur.Indicators.Get(fieldB)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}
	return pa - pb, ca - cb, true
}

func crossedUp(prevDiff, curDiff float64) bool   { return prevDiff < 0 && curDiff > 0 }
func crossedDown(prevDiff, curDiff float64) bool { return prevDiff > 0 && curDiff < 0 }

// bandWidthSignals compare the current Bollinger width to its recent average.
func bandWidthSignals(hist History, cur model.Record) []string {
	upper, ok1 := cur.Indicators.Get(model.FieldBBUpper)
	lower, ok2 := cur.Indicators.Get(model.FieldBBLower)
	if !ok1 || !ok2 {
		return nil
	}
	width := upper - lower

	var sum float64
	var n int
	for i := hist.Len() - 1; i >= 0 && n < bbWidthLookback; i-- {
		r := hist.At(i)
		u, okU := r.Indicators.Get(model.FieldBBUpper)
		l, okL := r.Indicators.Get(model.FieldBBLower)
		if !okU || !okL {
			continue
		}
		sum += u - l
		n++
	}
	if n < bbWidthMinCount {
		return nil
	}
	avg := sum / float64(n)
	if avg <= 0 {
		return nil
	}

	var tags []string
	if width < bbSqueezeRatio*avg {
		tags = append(tags, BBSqueeze)
	}
	if width > bbExpansionRatio*avg {
		tags = append(tags, BBExpansion)
	}
	return tags
}

// volumeSignals compare the current volume to its recent average.
func volumeSignals(hist History, cur model.Record) []string {
	var sum float64
	var n int
	for i := hist.Len() - 1; i >= 0 && n < volumeLookback; i-- {
		sum += hist.At(i).Volume
		n++
	}
	if n < volumeMinCount {
		return nil
	}
	avg := sum / float64(n)
	if avg <= 0 {
		return nil
	}

	var tags []string
	if cur.Volume > volumeSpikeRatio*avg {
		tags = append(tags, VolumeSpike)
	}
	if cur.Volume < volumeDryRatio*avg {
		tags = append(tags, VolumeDry)
	}
	return tags
}
