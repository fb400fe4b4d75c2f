package condition

import (
	"testing"
	"time"

	"github.com/wayneWudh/aiagent/internal/model"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testRecord() *model.Record {
	return &model.Record{
		Candle: model.Candle{
			Symbol: "BTC", Timeframe: "1h",
			OpenTime: testNow.Add(-30 * time.Minute),
			Open:     104800, High: 105500, Low: 104500, Close: 105000, Volume: 1234,
		},
		Indicators: model.IndicatorSet{
			model.FieldRSI:  28.5,
			model.FieldMA20: 104000,
		},
		Signals: model.SignalSet{"MACD_GOLDEN_CROSS", "RSI_OVERSOLD"},
	}
}

func TestParse_LeafComparisons(t *testing.T) {
	rec := testRecord()
	cases := []struct {
		name string
		doc  string
		want bool
	}{
		{"close gt", `{"field":"close","operator":"gt","value":100000}`, true},
		{"close lt", `{"field":"close","operator":"lt","value":100000}`, false},
		{"close eq", `{"field":"close","operator":"eq","value":105000}`, true},
		{"close ne", `{"field":"close","operator":"ne","value":105000}`, false},
		{"close between", `{"field":"close","operator":"between","value":[100000,110000]}`, true},
		{"close between outside", `{"field":"close","operator":"between","value":[110000,120000]}`, false},
		{"close in", `{"field":"close","operator":"in","value":[1,105000]}`, true},
		{"close nin", `{"field":"close","operator":"nin","value":[1,2]}`, true},
		{"rsi lt", `{"field":"rsi_14","operator":"lt","value":30}`, true},
		{"symbol eq", `{"field":"symbol","operator":"eq","value":"BTC"}`, true},
		{"symbol in", `{"field":"symbol","operator":"in","value":["ETH","BTC"]}`, true},
		{"timeframe ne", `{"field":"timeframe","operator":"ne","value":"1h"}`, false},
		{"signals contains", `{"field":"signals","operator":"contains","value":"RSI_OVERSOLD"}`, true},
		{"signals contains any", `{"field":"signals","operator":"contains","value":["X","RSI_OVERSOLD"]}`, true},
		{"signals not_contains", `{"field":"signals","operator":"not_contains","value":"MA_GOLDEN_CROSS"}`, true},
		{"within_last hit", `{"field":"timestamp","operator":"within_last","value":60}`, true},
		{"within_last miss", `{"field":"timestamp","operator":"within_last","value":10}`, false},
		{"before", `{"field":"timestamp","operator":"before","value":"2024-06-15T12:00:00Z"}`, true},
		{"after", `{"field":"timestamp","operator":"after","value":"2024-06-15T12:00:00Z"}`, false},
	}
	for _, c := range cases {
		cond, err := Parse([]byte(c.doc))
		if err != nil {
			t.Fatalf("%s: parse failed: %v", c.name, err)
		}
		if got := cond.Evaluate(rec, testNow); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestParse_CompositeAndOrNot(t *testing.T) {
	rec := testRecord()

	// The canonical combined example: price breakout while oversold
	doc := `{
		"logic": "and",
		"conditions": [
			{"field": "close", "operator": "gt", "value": 100000},
			{"field": "rsi_14", "operator": "lt", "value": 30}
		]
	}`
	cond, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cond.Evaluate(rec, testNow) {
		t.Error("AND of two true leaves must be true")
	}

	doc = `{
		"logic": "or",
		"conditions": [
			{"field": "close", "operator": "lt", "value": 1},
			{"field": "symbol", "operator": "eq", "value": "BTC"}
		]
	}`
	cond, err = Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cond.Evaluate(rec, testNow) {
		t.Error("OR with one true leaf must be true")
	}

	doc = `{
		"logic": "not",
		"conditions": [
			{"field": "close", "operator": "lt", "value": 1}
		]
	}`
	cond, err = Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cond.Evaluate(rec, testNow) {
		t.Error("NOT of a false leaf must be true")
	}
}

func TestParse_NestedComposite(t *testing.T) {
	rec := testRecord()
	doc := `{
		"logic": "and",
		"conditions": [
			{"field": "symbol", "operator": "eq", "value": "BTC"},
			{
				"logic": "or",
				"conditions": [
					{"field": "rsi_14", "operator": "lt", "value": 30},
					{"field": "rsi_14", "operator": "gt", "value": 70}
				]
			}
		]
	}`
	cond, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cond.Evaluate(rec, testNow) {
		t.Error("nested composite must evaluate true")
	}
}

func TestEvaluate_NullSafeOnAbsentIndicator(t *testing.T) {
	rec := testRecord() // has no macd_line value

	for _, doc := range []string{
		`{"field":"macd_line","operator":"gt","value":0}`,
		`{"field":"macd_line","operator":"lt","value":0}`,
		`{"field":"macd_line","operator":"eq","value":0}`,
		`{"field":"macd_line","operator":"ne","value":0}`,
	} {
		cond, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if cond.Evaluate(rec, testNow) {
			t.Errorf("comparison against absent indicator must be false: %s", doc)
		}
	}

	// NOT over an absent comparison is true
	cond, err := Parse([]byte(`{"logic":"not","conditions":[{"field":"macd_line","operator":"gt","value":0}]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cond.Evaluate(rec, testNow) {
		t.Error("NOT over an absent comparison must be true")
	}
}

func TestValidate_ErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		code string
	}{
		{"unknown field", `{"field":"bogus","operator":"gt","value":1}`, model.CodeUnknownField},
		{"unknown operator", `{"field":"close","operator":"spaceship","value":1}`, model.CodeUnknownOperator},
		{"operator kind mismatch", `{"field":"close","operator":"contains","value":"x"}`, model.CodeInvalidCondition},
		{"non-numeric threshold", `{"field":"close","operator":"gt","value":"high"}`, model.CodeInvalidCondition},
		{"between wrong arity", `{"field":"close","operator":"between","value":[1]}`, model.CodeInvalidCondition},
		{"between inverted", `{"field":"close","operator":"between","value":[10,1]}`, model.CodeInvalidCondition},
		{"empty in list", `{"field":"close","operator":"in","value":[]}`, model.CodeInvalidCondition},
		{"not arity", `{"logic":"not","conditions":[{"field":"close","operator":"gt","value":1},{"field":"close","operator":"lt","value":9}]}`, model.CodeInvalidCondition},
		{"unknown logic", `{"logic":"xor","conditions":[{"field":"close","operator":"gt","value":1}]}`, model.CodeInvalidCondition},
		{"empty condition", `{}`, model.CodeInvalidCondition},
		{"mixed shapes", `{"field":"close","operator":"gt","value":1,"logic":"and","conditions":[{"field":"close","operator":"gt","value":1}]}`, model.CodeInvalidCondition},
		{"bad timestamp literal", `{"field":"timestamp","operator":"before","value":"yesterday"}`, model.CodeInvalidCondition},
		{"negative within_last", `{"field":"timestamp","operator":"within_last","value":-5}`, model.CodeInvalidCondition},
		{"nested invalid child", `{"logic":"and","conditions":[{"field":"nope","operator":"gt","value":1}]}`, model.CodeUnknownField},
	}
	for _, c := range cases {
		_, err := Parse([]byte(c.doc))
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		ve, ok := model.AsValidation(err)
		if !ok {
			t.Errorf("%s: expected ValidationError, got %T", c.name, err)
			continue
		}
		if ve.Code != c.code {
			t.Errorf("%s: code %s, want %s", c.name, ve.Code, c.code)
		}
	}
}

func TestEqFloat_Tolerance(t *testing.T) {
	rec := testRecord()
	rec.Indicators[model.FieldMA5] = 0.1 + 0.2 // 0.30000000000000004

	cond, err := Parse([]byte(`{"field":"ma_5","operator":"eq","value":0.3}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cond.Evaluate(rec, testNow) {
		t.Error("eq must tolerate float accumulation error")
	}
}

func TestString_Rendering(t *testing.T) {
	cond, err := Parse([]byte(`{
		"logic": "and",
		"conditions": [
			{"field": "close", "operator": "gt", "value": 100000},
			{"logic": "not", "conditions": [{"field": "rsi_14", "operator": "gt", "value": 70}]}
		]
	}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := "(close gt 100000 AND NOT (rsi_14 gt 70))"
	if got := cond.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
