package model

import (
	"encoding/json"
	"sort"
)

// Canonical indicator field names attached to a record. Null values (not
// enough history yet) are represented by an absent key, never by a zero.
const (
	FieldMA5        = "ma_5"
	FieldMA10       = "ma_10"
	FieldMA20       = "ma_20"
	FieldMA50       = "ma_50"
	FieldMA100      = "ma_100"
	FieldMA200      = "ma_200"
	FieldRSI        = "rsi_14"
	FieldMACDLine   = "macd_line"
	FieldMACDSignal = "macd_signal"
	FieldMACDHist   = "macd_histogram"
	FieldBBUpper    = "bollinger_upper"
	FieldBBMiddle   = "bollinger_middle"
	FieldBBLower    = "bollinger_lower"
	FieldStochK     = "stochastic_k"
	FieldStochD     = "stochastic_d"
	FieldCCI        = "cci_14"
	FieldKDJK       = "kdj_k"
	FieldKDJD       = "kdj_d"
	FieldKDJJ       = "kdj_j"
)

// IndicatorFields lists every canonical indicator name in a stable order.
var IndicatorFields = []string{
	FieldMA5, FieldMA10, FieldMA20, FieldMA50, FieldMA100, FieldMA200,
	FieldRSI,
	FieldMACDLine, FieldMACDSignal, FieldMACDHist,
	FieldBBUpper, FieldBBMiddle, FieldBBLower,
	FieldStochK, FieldStochD,
	FieldCCI,
	FieldKDJK, FieldKDJD, FieldKDJJ,
}

// IndicatorSet maps indicator field name to value for one candle.
// A missing key means the indicator had insufficient history (a computation
// gap, not an error).
type IndicatorSet map[string]float64

// Get returns (value, true) when the indicator is present.
func (s IndicatorSet) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Clone returns a copy of the set.
func (s IndicatorSet) Clone() IndicatorSet {
	out := make(IndicatorSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SignalSet holds the signal tags detected on one candle, sorted and
// deduplicated so identical detector runs compare equal.
type SignalSet []string

// NewSignalSet sorts and deduplicates tags into a SignalSet.
func NewSignalSet(tags []string) SignalSet {
	if len(tags) == 0 {
		return SignalSet{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make(SignalSet, 0, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the set carries the given tag.
func (s SignalSet) Contains(tag string) bool {
	for _, t := range s {
		if t == tag {
			return true
		}
	}
	return false
}

// ContainsAny reports whether the set carries any of the given tags.
func (s SignalSet) ContainsAny(tags []string) bool {
	for _, t := range tags {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// Record is the flat evaluation record for one candle: the candle itself,
// its indicator values, and its detected signal tags. This is the unit the
// condition evaluator, the query interface, and the alert engine all see.
type Record struct {
	Candle
	Indicators IndicatorSet `json:"indicators"`
	Signals    SignalSet    `json:"signals"`
}

// JSON returns the JSON-encoded record.
func (r *Record) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
