package condition

import (
	"time"

	"github.com/wayneWudh/aiagent/internal/model"
)

// fieldKind classifies what a field yields so Validate can reject operators
// that make no sense for it.
type fieldKind int

const (
	kindNumber fieldKind = iota
	kindString
	kindSignals
	kindTime
)

// fieldSpec resolves one queryable field against a record. Numeric getters
// report presence: an indicator that has not warmed up yet yields (0, false)
// and any comparison against it is false (null-safe).
type fieldSpec struct {
	kind fieldKind
	num  func(r *model.Record) (float64, bool)
	str  func(r *model.Record) string
	tm   func(r *model.Record) time.Time
}

// fields is the closed registry of queryable field names. Anything not in
// here is UNKNOWN_FIELD, caught at validation time.
var fields = buildFieldRegistry()

func buildFieldRegistry() map[string]fieldSpec {
	m := map[string]fieldSpec{
		"open":   numField(func(r *model.Record) float64 { return r.Open }),
		"high":   numField(func(r *model.Record) float64 { return r.High }),
		"low":    numField(func(r *model.Record) float64 { return r.Low }),
		"close":  numField(func(r *model.Record) float64 { return r.Close }),
		"volume": numField(func(r *model.Record) float64 { return r.Volume }),

		"symbol":    {kind: kindString, str: func(r *model.Record) string { return r.Symbol }},
		"timeframe": {kind: kindString, str: func(r *model.Record) string { return r.Timeframe }},

		"signals": {kind: kindSignals},

		"timestamp": {kind: kindTime, tm: func(r *model.Record) time.Time { return r.OpenTime }},
	}

	for _, name := range model.IndicatorFields {
		field := name // capture
		m[field] = fieldSpec{
			kind: kindNumber,
			num:  func(r *model.Record) (float64, bool) { return r.Indicators.Get(field) },
		}
	}
	return m
}

func numField(get func(r *model.Record) float64) fieldSpec {
	return fieldSpec{
		kind: kindNumber,
		num:  func(r *model.Record) (float64, bool) { return get(r), true },
	}
}

// KnownField reports whether name is queryable.
func KnownField(name string) bool {
	_, ok := fields[name]
	return ok
}

// NumericField reports whether name yields a number (price, volume or
// indicator). Used by the alert layer to validate indicator rule fields.
func NumericField(name string) bool {
	f, ok := fields[name]
	return ok && f.kind == kindNumber
}
