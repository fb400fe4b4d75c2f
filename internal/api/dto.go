package api

import (
	"encoding/json"

	"github.com/wayneWudh/aiagent/internal/model"
)

// Response is the uniform envelope for every API response. ErrorCode carries
// the stable validation code on failure; FieldDescriptions documents the
// request vocabulary on management and query endpoints.
type Response struct {
	RequestID         string            `json:"request_id"`
	Success           bool              `json:"success"`
	Message           string            `json:"message,omitempty"`
	Data              interface{}       `json:"data,omitempty"`
	ErrorCode         string            `json:"error_code,omitempty"`
	FieldDescriptions map[string]string `json:"field_descriptions,omitempty"`
}

type queryRequest struct {
	Symbol     string          `json:"symbol"`
	Timeframes []string        `json:"timeframes,omitempty"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

type signalsQueryRequest struct {
	Symbol      string   `json:"symbol"`
	Timeframes  []string `json:"timeframes,omitempty"`
	SignalTypes []string `json:"signal_types,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// rulePatch is the partial-update body for PUT on a rule. Pointer fields
// distinguish "not provided" from zero values; slices replace when present.
type rulePatch struct {
	Name          *string          `json:"name"`
	Kind          *model.RuleKind  `json:"rule_kind"`
	Symbol        *string          `json:"symbol"`
	Timeframes    []string         `json:"timeframes"`
	Field         *string          `json:"field"`
	Op            *string          `json:"operator"`
	Threshold     *float64         `json:"threshold"`
	SignalTypes   []string         `json:"signal_types"`
	Frequency     *model.Frequency `json:"frequency"`
	CustomMessage *string          `json:"custom_message"`
}

func (p *rulePatch) apply(rule *model.AlertRule) {
	if p.Name != nil {
		rule.Name = *p.Name
	}
	if p.Kind != nil {
		rule.Kind = *p.Kind
	}
	if p.Symbol != nil {
		rule.Symbol = *p.Symbol
	}
	if p.Timeframes != nil {
		rule.Timeframes = p.Timeframes
	}
	if p.Field != nil {
		rule.Field = *p.Field
	}
	if p.Op != nil {
		rule.Op = *p.Op
	}
	if p.Threshold != nil {
		rule.Threshold = *p.Threshold
	}
	if p.SignalTypes != nil {
		rule.SignalTypes = p.SignalTypes
	}
	if p.Frequency != nil {
		rule.Frequency = *p.Frequency
	}
	if p.CustomMessage != nil {
		rule.CustomMessage = *p.CustomMessage
	}
}

// submitResult is the data payload for accepted candle submissions.
type submitResult struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// wsAck is the per-frame acknowledgement on the candle ingest WebSocket.
type wsAck struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// queryFieldDescriptions documents the vocabulary accepted in query
// conditions. Shipped on every query response so clients can discover the
// field set without a separate schema endpoint.
var queryFieldDescriptions = map[string]string{
	"symbol":    "Asset symbol, e.g. BTC",
	"timeframe": "Candle timeframe: 1m, 5m, 15m, 30m, 1h, 4h, 1d",
	"timestamp": "Candle open time; operators within_last (minutes), before, after (RFC 3339)",
	"open":      "Candle open price",
	"high":      "Candle high price",
	"low":       "Candle low price",
	"close":     "Candle close price",
	"volume":    "Candle volume",
	"signals":   "Detected signal tags; operators contains, not_contains",

	"ma_5":   "5-period simple moving average",
	"ma_10":  "10-period simple moving average",
	"ma_20":  "20-period simple moving average",
	"ma_50":  "50-period simple moving average",
	"ma_100": "100-period simple moving average",
	"ma_200": "200-period simple moving average",

	"rsi_14": "14-period relative strength index (0-100)",

	"macd_line":      "MACD line, EMA(12) minus EMA(26)",
	"macd_signal":    "MACD signal line, EMA(9) of the MACD line",
	"macd_histogram": "MACD histogram, line minus signal",

	"bollinger_upper":  "Bollinger upper band, MA(20) + 2 standard deviations",
	"bollinger_middle": "Bollinger middle band, MA(20)",
	"bollinger_lower":  "Bollinger lower band, MA(20) - 2 standard deviations",

	"stochastic_k": "Stochastic %K (14,3)",
	"stochastic_d": "Stochastic %D, 3-period average of %K",

	"cci_14": "14-period commodity channel index",

	"kdj_k": "KDJ K value (9,3,3)",
	"kdj_d": "KDJ D value",
	"kdj_j": "KDJ J value, 3K - 2D",
}

// alertFieldDescriptions documents the alert rule request vocabulary.
var alertFieldDescriptions = map[string]string{
	"name":           "Rule name, unique per symbol and rule kind",
	"rule_kind":      "Rule kind: price, indicator or signal",
	"symbol":         "Asset symbol the rule watches, e.g. BTC",
	"timeframes":     "Timeframes the rule watches, e.g. [\"1h\", \"4h\"]",
	"field":          "Indicator field for indicator rules (price rules always watch close)",
	"operator":       "Comparison operator: eq, ne, gt, gte, lt, lte",
	"threshold":      "Numeric threshold the field is compared against",
	"signal_types":   "Signal tags for signal rules, e.g. [\"RSI_OVERSOLD\"]",
	"frequency":      "Trigger policy: once, every_time, hourly or daily",
	"custom_message": "Optional message echoed in the trigger payload",
}
