// Package alert implements the alert rule engine: the persisted rule store,
// per-record rule evaluation with frequency throttling, and the decoupled
// HTTP delivery dispatcher.
package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayneWudh/aiagent/internal/condition"
	"github.com/wayneWudh/aiagent/internal/model"
	"github.com/wayneWudh/aiagent/internal/signal"
)

// Persister is the durable side of the rule store. *sqlite.Writer satisfies
// it; a nil Persister gives a memory-only store for tests.
type Persister interface {
	UpsertRule(r *model.AlertRule) error
	DeleteRule(id string) error
	CommitTrigger(trigger *model.AlertTrigger, rule *model.AlertRule) error
}

// Store keeps alert rules in memory with write-through persistence. All
// returned rules are clones; callers never hold references into the store.
type Store struct {
	mu        sync.RWMutex
	rules     map[string]*model.AlertRule
	persister Persister
}

// NewStore creates a rule store backed by the given persister.
func NewStore(p Persister) *Store {
	return &Store{
		rules:     make(map[string]*model.AlertRule),
		persister: p,
	}
}

// Load seeds the store from persisted rules at startup.
func (s *Store) Load(rules []*model.AlertRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		s.rules[r.ID] = r.Clone()
	}
}

// newRuleID returns a fresh rule identifier, e.g. "rule_9f2b41aa".
func newRuleID() string {
	return "rule_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Create validates and persists a new rule. The caller's struct is not
// retained. Returns the stored rule with ID and timestamps set.
func (s *Store) Create(r *model.AlertRule) (*model.AlertRule, error) {
	rule := r.Clone()
	rule.Symbol = strings.ToUpper(rule.Symbol)
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.Name == rule.Name && existing.Symbol == rule.Symbol && existing.Kind == rule.Kind {
			return nil, &model.ValidationError{
				Code:    model.CodeDuplicateRule,
				Message: fmt.Sprintf("rule %q for %s/%s already exists (%s)", rule.Name, rule.Symbol, rule.Kind, existing.ID),
			}
		}
	}

	now := time.Now().UTC()
	rule.ID = newRuleID()
	rule.IsActive = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.LastTriggeredAt = nil
	rule.TriggerCount = 0

	if s.persister != nil {
		if err := s.persister.UpsertRule(rule); err != nil {
			return nil, err
		}
	}
	s.rules[rule.ID] = rule
	return rule.Clone(), nil
}

// Get returns a rule snapshot by ID.
func (s *Store) Get(id string) (*model.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, model.ErrRuleNotFound
	}
	return r.Clone(), nil
}

// List returns snapshots of all rules.
func (s *Store) List() []*model.AlertRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.AlertRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Clone())
	}
	return out
}

// Update applies a mutation to a rule, re-validates and persists it. The
// mutation must not touch ID, bookkeeping fields or timestamps; those are
// managed here.
func (s *Store) Update(id string, apply func(r *model.AlertRule)) (*model.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rules[id]
	if !ok {
		return nil, model.ErrRuleNotFound
	}

	next := cur.Clone()
	apply(next)
	next.ID = cur.ID
	next.Symbol = strings.ToUpper(next.Symbol)
	next.CreatedAt = cur.CreatedAt
	next.LastTriggeredAt = cur.LastTriggeredAt
	next.TriggerCount = cur.TriggerCount
	next.UpdatedAt = time.Now().UTC()

	if err := validateRule(next); err != nil {
		return nil, err
	}
	if s.persister != nil {
		if err := s.persister.UpsertRule(next); err != nil {
			return nil, err
		}
	}
	s.rules[id] = next
	return next.Clone(), nil
}

// SetActive enables or disables a rule.
func (s *Store) SetActive(id string, active bool) (*model.AlertRule, error) {
	return s.Update(id, func(r *model.AlertRule) {
		r.IsActive = active
	})
}

// Delete removes a rule. Trigger history is retained.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return model.ErrRuleNotFound
	}
	if s.persister != nil {
		if err := s.persister.DeleteRule(id); err != nil {
			return err
		}
	}
	delete(s.rules, id)
	return nil
}

// Matching returns snapshots of the active rules watching one series.
func (s *Store) Matching(symbol, timeframe string) []*model.AlertRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.AlertRule
	for _, r := range s.rules {
		if r.IsActive && r.Symbol == symbol && r.MonitorsTimeframe(timeframe) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// CommitTrigger applies the trigger bookkeeping to a rule: stamps the
// trigger time, bumps the count, deactivates once-rules, and persists the
// trigger and rule update atomically. The active and frequency checks are
// repeated under the write lock: evaluation runs on a pre-commit snapshot,
// and a concurrent pass on another timeframe (or a disable racing the
// evaluation) may have landed in between. Returns false when the re-check
// refuses the trigger; nothing is recorded in that case.
func (s *Store) CommitTrigger(trigger *model.AlertTrigger) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[trigger.RuleID]
	if !ok {
		return false, model.ErrRuleNotFound
	}
	if !rule.IsActive || !frequencyAllows(rule, trigger.TriggerTime) {
		return false, nil
	}

	t := trigger.TriggerTime
	rule.LastTriggeredAt = &t
	rule.TriggerCount++
	rule.UpdatedAt = t
	if rule.Frequency == model.FreqOnce {
		rule.IsActive = false
	}

	if s.persister != nil {
		return true, s.persister.CommitTrigger(trigger, rule)
	}
	return true, nil
}

// Stats summarizes the rule population.
type Stats struct {
	TotalRules    int64            `json:"total_rules"`
	ActiveRules   int64            `json:"active_rules"`
	RulesByKind   map[string]int64 `json:"rules_by_kind"`
	TotalTriggers int64            `json:"total_triggers"`
}

// Stats returns aggregate counters over the current rule set.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{RulesByKind: make(map[string]int64)}
	for _, r := range s.rules {
		st.TotalRules++
		if r.IsActive {
			st.ActiveRules++
		}
		st.RulesByKind[string(r.Kind)]++
		st.TotalTriggers += r.TriggerCount
	}
	return st
}

// validateRule rejects malformed rules with INVALID_RULE (or the condition
// evaluator's more specific code for bad field/operator combinations).
func validateRule(r *model.AlertRule) error {
	if r.Name == "" {
		return invalidRule("rule name is required")
	}
	if !model.ValidRuleKind(r.Kind) {
		return invalidRule(fmt.Sprintf("unknown rule kind %q", r.Kind))
	}
	if r.Symbol == "" {
		return invalidRule("rule symbol is required")
	}
	if len(r.Timeframes) == 0 {
		return invalidRule("rule requires at least one timeframe")
	}
	for _, tf := range r.Timeframes {
		if !model.ValidTimeframe(tf) {
			return &model.ValidationError{
				Code:    model.CodeUnsupportedTimeframe,
				Message: fmt.Sprintf("unsupported timeframe %q", tf),
			}
		}
	}
	if !model.ValidFrequency(r.Frequency) {
		return invalidRule(fmt.Sprintf("unknown frequency %q", r.Frequency))
	}

	switch r.Kind {
	case model.RulePrice:
		// Price rules always watch the close
		r.Field = "close"
		return validateComparison(r)
	case model.RuleIndicator:
		if !condition.NumericField(r.Field) {
			return &model.ValidationError{
				Code:    model.CodeUnknownField,
				Message: fmt.Sprintf("unknown indicator field %q", r.Field),
			}
		}
		return validateComparison(r)
	default: // signal
		if len(r.SignalTypes) == 0 {
			return invalidRule("signal rule requires at least one signal type")
		}
		for _, tag := range r.SignalTypes {
			if !signal.Known(tag) {
				return invalidRule(fmt.Sprintf("unknown signal type %q", tag))
			}
		}
		return nil
	}
}

// validateComparison reuses the condition evaluator's leaf validation so
// rule predicates and ad-hoc query conditions reject identically.
func validateComparison(r *model.AlertRule) error {
	leaf := condition.Condition{Field: r.Field, Op: r.Op, Value: r.Threshold}
	return leaf.Validate()
}

func invalidRule(msg string) error {
	return &model.ValidationError{Code: model.CodeInvalidRule, Message: msg}
}
