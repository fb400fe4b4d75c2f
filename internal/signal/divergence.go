package signal

import "github.com/wayneWudh/aiagent/internal/model"

// divergenceSignals look for price/indicator divergence over the recent
// lookback: price setting a lower low while the oscillator sets a higher
// low (bullish), or price setting a higher high while the oscillator sets
// a lower high (bearish). Comparison is between the two most recent local
// extrema inside the window.
func divergenceSignals(hist History, cur model.Record) []string {
	var tags []string

	if closes, values, ok := alignedSeries(hist, cur, model.FieldRSI); ok {
		tags = append(tags, divergencePair(closes, values, RSIDivergenceBullish, RSIDivergenceBearish)...)
	}
	if closes, values, ok := alignedSeries(hist, cur, model.FieldMACDLine); ok {
		tags = append(tags, divergencePair(closes, values, MACDDivergenceBullish, MACDDivergenceBearish)...)
	}
	return tags
}

// alignedSeries collects closes and one indicator's values over the last
// divergenceLookback records (current included), skipping records where the
// indicator is absent. Requires divergenceMinCount points.
func alignedSeries(hist History, cur model.Record, field string) (closes, values []float64, ok bool) {
	start := hist.Len() - (divergenceLookback - 1)
	if start < 0 {
		start = 0
	}
	for i := start; i < hist.Len(); i++ {
		r := hist.At(i)
		v, has := r.Indicators.Get(field)
		if !has {
			continue
		}
		closes = append(closes, r.Close)
		values = append(values, v)
	}
	if v, has := cur.Indicators.Get(field); has {
		closes = append(closes, cur.Close)
		values = append(values, v)
	}
	if len(closes) < divergenceMinCount {
		return nil, nil, false
	}
	return closes, values, true
}

func divergencePair(closes, values []float64, bullTag, bearTag string) []string {
	var tags []string

	if lows := localMinima(closes); len(lows) >= 2 {
		prevIdx, lastIdx := lows[len(lows)-2], lows[len(lows)-1]
		if closes[lastIdx] < closes[prevIdx] && values[lastIdx] > values[prevIdx] {
			tags = append(tags, bullTag)
		}
	}
	if highs := localMaxima(closes); len(highs) >= 2 {
		prevIdx, lastIdx := highs[len(highs)-2], highs[len(highs)-1]
		if closes[lastIdx] > closes[prevIdx] && values[lastIdx] < values[prevIdx] {
			tags = append(tags, bearTag)
		}
	}
	return tags
}

// localMinima returns interior indexes that sit strictly below the left
// neighbor and at or below the right one, so flat-bottomed troughs register
// once at their first bar.
func localMinima(v []float64) []int {
	var out []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] < v[i-1] && v[i] <= v[i+1] {
			out = append(out, i)
		}
	}
	return out
}

func localMaxima(v []float64) []int {
	var out []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] > v[i-1] && v[i] >= v[i+1] {
			out = append(out, i)
		}
	}
	return out
}
