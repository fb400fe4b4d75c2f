package model

import (
	"encoding/json"
	"time"
)

// RuleKind selects how a rule's predicate is built.
type RuleKind string

const (
	RulePrice     RuleKind = "price"
	RuleIndicator RuleKind = "indicator"
	RuleSignal    RuleKind = "signal"
)

// ValidRuleKind reports whether k is a known rule kind.
func ValidRuleKind(k RuleKind) bool {
	switch k {
	case RulePrice, RuleIndicator, RuleSignal:
		return true
	}
	return false
}

// AlertType is the wire-level alert classification sent to the endpoint.
type AlertType string

const (
	AlertPrice     AlertType = "price_alert"
	AlertIndicator AlertType = "indicator_alert"
	AlertSignal    AlertType = "signal_alert"
)

// AlertTypeForKind maps a rule kind to its wire alert type.
func AlertTypeForKind(k RuleKind) AlertType {
	switch k {
	case RulePrice:
		return AlertPrice
	case RuleIndicator:
		return AlertIndicator
	default:
		return AlertSignal
	}
}

// Frequency controls how often a rule may trigger.
type Frequency string

const (
	FreqOnce      Frequency = "once"
	FreqEveryTime Frequency = "every_time"
	FreqHourly    Frequency = "hourly"
	FreqDaily     Frequency = "daily"
)

// ValidFrequency reports whether f is a known frequency policy.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FreqOnce, FreqEveryTime, FreqHourly, FreqDaily:
		return true
	}
	return false
}

// AlertRule is a persisted predicate plus delivery policy. Owned by the rule
// store; the evaluation path only touches LastTriggeredAt, TriggerCount and
// (for once-rules) IsActive, and only through the store's trigger commit.
type AlertRule struct {
	ID   string   `json:"rule_id"`
	Name string   `json:"name"`
	Kind RuleKind `json:"rule_kind"`

	Symbol     string   `json:"symbol"`
	Timeframes []string `json:"timeframes"`

	// Predicate parameters. Price and indicator rules use Field/Op/Threshold
	// (price rules fix Field to "close"); signal rules use SignalTypes.
	Field       string   `json:"field,omitempty"`
	Op          string   `json:"operator,omitempty"`
	Threshold   float64  `json:"threshold,omitempty"`
	SignalTypes []string `json:"signal_types,omitempty"`

	Frequency     Frequency `json:"frequency"`
	CustomMessage string    `json:"custom_message,omitempty"`

	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int64      `json:"trigger_count"`
}

// Clone returns a deep copy so store snapshots cannot alias mutable state.
func (r *AlertRule) Clone() *AlertRule {
	out := *r
	out.Timeframes = append([]string(nil), r.Timeframes...)
	out.SignalTypes = append([]string(nil), r.SignalTypes...)
	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		out.LastTriggeredAt = &t
	}
	return &out
}

// MonitorsTimeframe reports whether the rule watches the given timeframe.
func (r *AlertRule) MonitorsTimeframe(tf string) bool {
	for _, t := range r.Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// TriggerData is the structured explanation attached to a trigger.
type TriggerData struct {
	Description     string   `json:"description"`
	ActualValue     float64  `json:"actual_value"`
	Threshold       float64  `json:"threshold,omitempty"`
	Comparison      string   `json:"comparison,omitempty"`
	Condition       string   `json:"condition,omitempty"`
	CustomMessage   string   `json:"custom_message,omitempty"`
	DetectedSignals []string `json:"detected_signals,omitempty"`
	SignalContext   string   `json:"signal_context,omitempty"`
}

// AlertTrigger is the immutable record emitted when a rule fires. It is
// appended to the trigger log before delivery is attempted, so a delivery
// failure never loses the event.
type AlertTrigger struct {
	RequestID   string      `json:"request_id"`
	RuleID      string      `json:"rule_id"`
	RuleName    string      `json:"rule_name"`
	AlertType   AlertType   `json:"alert_type"`
	Symbol      string      `json:"symbol"`
	Timeframe   string      `json:"timeframe"`
	TriggerTime time.Time   `json:"trigger_time"`
	TriggerData TriggerData `json:"trigger_data"`
}

// JSON returns the JSON-encoded trigger payload as posted to the endpoint.
func (t *AlertTrigger) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
