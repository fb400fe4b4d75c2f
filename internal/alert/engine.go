package alert

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wayneWudh/aiagent/internal/condition"
	"github.com/wayneWudh/aiagent/internal/metrics"
	"github.com/wayneWudh/aiagent/internal/model"
	"github.com/wayneWudh/aiagent/internal/requestid"
	"github.com/wayneWudh/aiagent/internal/signal"
)

// TriggerSink receives fired triggers for best-effort fanout beyond the
// primary HTTP delivery (the Redis trigger stream). *redis.Writer satisfies it.
type TriggerSink interface {
	WriteTrigger(ctx context.Context, trigger *model.AlertTrigger)
}

// Engine evaluates every active matching rule against each finished record.
// Evaluation is synchronous and cheap; delivery is handed off to the
// dispatcher so a slow endpoint never stalls the candle pipeline.
type Engine struct {
	store      *Store
	dispatcher *Dispatcher
	sink       TriggerSink // optional
	metrics    *metrics.Metrics

	now func() time.Time // injectable for frequency tests
}

// NewEngine creates an alert engine. metrics may be nil.
func NewEngine(store *Store, dispatcher *Dispatcher, m *metrics.Metrics) *Engine {
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		now:        time.Now,
	}
}

// SetTriggerSink attaches an optional secondary fanout for fired triggers.
func (e *Engine) SetTriggerSink(s TriggerSink) { e.sink = s }

// OnRecord evaluates all rules watching the record's series and fires
// triggers for matches that pass the frequency gate.
func (e *Engine) OnRecord(ctx context.Context, rec *model.Record) {
	now := e.now().UTC()

	for _, rule := range e.store.Matching(rec.Symbol, rec.Timeframe) {
		if e.metrics != nil {
			e.metrics.RulesEvaluated.Inc()
		}

		matched, data := e.evaluate(rule, rec, now)
		if !matched {
			continue
		}

		if !frequencyAllows(rule, now) {
			if e.metrics != nil {
				e.metrics.TriggersSuppressed.Inc()
			}
			continue
		}

		trigger := &model.AlertTrigger{
			RequestID:   requestid.New(),
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			AlertType:   model.AlertTypeForKind(rule.Kind),
			Symbol:      rec.Symbol,
			Timeframe:   rec.Timeframe,
			TriggerTime: now,
			TriggerData: data,
		}

		// Log first, deliver second: a delivery failure never loses the event.
		// The commit re-checks active state and frequency under the store
		// lock; a refusal means a concurrent pass or a disable won the race
		// and nothing must be delivered.
		committed, err := e.store.CommitTrigger(trigger)
		if err != nil {
			log.Printf("[alert] commit trigger %s for rule %s failed: %v", trigger.RequestID, rule.ID, err)
		}
		if !committed {
			if e.metrics != nil {
				e.metrics.TriggersSuppressed.Inc()
			}
			continue
		}
		if e.metrics != nil {
			e.metrics.TriggersTotal.WithLabelValues(string(trigger.AlertType)).Inc()
		}

		e.dispatcher.Enqueue(trigger)
		if e.sink != nil {
			e.sink.WriteTrigger(ctx, trigger)
		}
	}
}

// evaluate runs one rule's predicate against the record and, on a match,
// builds the trigger explanation.
func (e *Engine) evaluate(rule *model.AlertRule, rec *model.Record, now time.Time) (bool, model.TriggerData) {
	switch rule.Kind {
	case model.RuleSignal:
		return e.evaluateSignal(rule, rec)
	default:
		return e.evaluateComparison(rule, rec, now)
	}
}

// evaluateComparison covers price and indicator rules: a single numeric
// comparison built as a condition leaf, so rule predicates behave exactly
// like query conditions (including null safety for cold indicators).
func (e *Engine) evaluateComparison(rule *model.AlertRule, rec *model.Record, now time.Time) (bool, model.TriggerData) {
	leaf := condition.Condition{Field: rule.Field, Op: rule.Op, Value: rule.Threshold}
	if !leaf.Evaluate(rec, now) {
		return false, model.TriggerData{}
	}

	actual := actualValue(rule.Field, rec)
	comparison := fmt.Sprintf("%s %s %v", rule.Field, rule.Op, rule.Threshold)
	return true, model.TriggerData{
		Description: fmt.Sprintf("%s %s: %s (actual %v)",
			rec.Symbol, rec.Timeframe, comparison, actual),
		ActualValue:   actual,
		Threshold:     rule.Threshold,
		Comparison:    comparison,
		Condition:     leaf.String(),
		CustomMessage: rule.CustomMessage,
	}
}

func (e *Engine) evaluateSignal(rule *model.AlertRule, rec *model.Record) (bool, model.TriggerData) {
	var detected []string
	for _, tag := range rule.SignalTypes {
		if rec.Signals.Contains(tag) {
			detected = append(detected, tag)
		}
	}
	if len(detected) == 0 {
		return false, model.TriggerData{}
	}

	descs := make([]string, 0, len(detected))
	for _, tag := range detected {
		if desc, ok := signal.Descriptions[tag]; ok {
			descs = append(descs, desc)
		}
	}

	return true, model.TriggerData{
		Description: fmt.Sprintf("%s %s: signals %s detected",
			rec.Symbol, rec.Timeframe, strings.Join(detected, ", ")),
		ActualValue:     rec.Close,
		CustomMessage:   rule.CustomMessage,
		DetectedSignals: detected,
		SignalContext:   strings.Join(descs, "; "),
	}
}

// actualValue resolves the compared value for trigger reporting. The rule
// matched, so for indicator fields the value is present.
func actualValue(field string, rec *model.Record) float64 {
	switch field {
	case "open":
		return rec.Open
	case "high":
		return rec.High
	case "low":
		return rec.Low
	case "close":
		return rec.Close
	case "volume":
		return rec.Volume
	}
	v, _ := rec.Indicators.Get(field)
	return v
}

// frequencyAllows applies the rule's throttle policy at evaluation time.
// Once-rules are active until their first trigger deactivates them, so an
// active once-rule always passes.
func frequencyAllows(rule *model.AlertRule, now time.Time) bool {
	switch rule.Frequency {
	case model.FreqOnce, model.FreqEveryTime:
		return true
	case model.FreqHourly:
		return rule.LastTriggeredAt == nil || now.Sub(*rule.LastTriggeredAt) >= time.Hour
	default: // daily
		return rule.LastTriggeredAt == nil || now.Sub(*rule.LastTriggeredAt) >= 24*time.Hour
	}
}
