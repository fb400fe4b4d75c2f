package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/wayneWudh/aiagent/internal/condition"
	"github.com/wayneWudh/aiagent/internal/engine"
	"github.com/wayneWudh/aiagent/internal/model"
)

const maxQueryLimit = 1000

// handleCandles handles POST /api/v1/candles: synchronous single-candle
// ingestion. Duplicates of the series head are acknowledged as success.
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var c model.Candle
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondError(w, &model.ValidationError{
			Code:    model.CodeInvalidCandle,
			Message: "malformed candle JSON: " + err.Error(),
		}, nil)
		return
	}

	status, err := s.svc.Submit(r.Context(), c)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	respondOK(w, submitResult{
		Accepted:  true,
		Duplicate: status == engine.SubmitDuplicate,
		Symbol:    strings.ToUpper(c.Symbol),
		Timeframe: c.Timeframe,
	}, nil)
}

// resolveTimeframes falls back to the full monitored set when the request
// leaves timeframes empty.
func (s *Server) resolveTimeframes(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return s.svc.MonitoredTimeframes()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// handleQuery handles POST /api/v1/query: condition queries over the
// in-memory record windows, most recent first across all requested
// timeframes.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &model.ValidationError{
			Code:    model.CodeInvalidCondition,
			Message: "malformed query JSON: " + err.Error(),
		}, queryFieldDescriptions)
		return
	}

	var cond *condition.Condition
	if len(req.Conditions) > 0 && string(req.Conditions) != "null" {
		parsed, err := condition.Parse(req.Conditions)
		if err != nil {
			respondError(w, err, queryFieldDescriptions)
			return
		}
		cond = parsed
	}

	limit := clampLimit(req.Limit)
	var records []model.Record
	for _, tf := range s.resolveTimeframes(req.Timeframes) {
		recs, err := s.svc.QueryRecords(req.Symbol, tf, cond, limit)
		if err != nil {
			respondError(w, err, queryFieldDescriptions)
			return
		}
		records = append(records, recs...)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].OpenTime.After(records[j].OpenTime)
	})
	if len(records) > limit {
		records = records[:limit]
	}

	respondOK(w, map[string]interface{}{
		"count":   len(records),
		"records": records,
	}, queryFieldDescriptions)
}

// handleSignalsQuery handles POST /api/v1/signals/query: recent records
// carrying any of the requested signal tags.
func (s *Server) handleSignalsQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req signalsQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &model.ValidationError{
			Code:    model.CodeInvalidCondition,
			Message: "malformed query JSON: " + err.Error(),
		}, queryFieldDescriptions)
		return
	}

	limit := clampLimit(req.Limit)
	var hits []engine.SignalHit
	for _, tf := range s.resolveTimeframes(req.Timeframes) {
		h, err := s.svc.QuerySignals(req.Symbol, tf, req.SignalTypes, limit)
		if err != nil {
			respondError(w, err, queryFieldDescriptions)
			return
		}
		hits = append(hits, h...)
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].OpenTime.After(hits[j].OpenTime)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	respondOK(w, map[string]interface{}{
		"count":   len(hits),
		"signals": hits,
	}, queryFieldDescriptions)
}

// handleRules handles /api/v1/alerts/rules: POST creates, GET lists.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var rule model.AlertRule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			respondError(w, &model.ValidationError{
				Code:    model.CodeInvalidRule,
				Message: "malformed rule JSON: " + err.Error(),
			}, alertFieldDescriptions)
			return
		}
		created, err := s.svc.Rules().Create(&rule)
		if err != nil {
			respondError(w, err, alertFieldDescriptions)
			return
		}
		respondOK(w, created, alertFieldDescriptions)

	case http.MethodGet:
		rules := s.svc.Rules().List()
		sort.Slice(rules, func(i, j int) bool {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		})
		respondOK(w, map[string]interface{}{
			"count": len(rules),
			"rules": rules,
		}, alertFieldDescriptions)

	default:
		methodNotAllowed(w)
	}
}

// handleRuleByID handles /api/v1/alerts/rules/{id} (GET, PUT, DELETE) and
// /api/v1/alerts/rules/{id}/enable|disable (POST).
func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/rules/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		respondError(w, model.ErrRuleNotFound, alertFieldDescriptions)
		return
	}
	id := parts[0]

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var active bool
		switch parts[1] {
		case "enable":
			active = true
		case "disable":
			active = false
		default:
			respondError(w, model.ErrRuleNotFound, alertFieldDescriptions)
			return
		}
		rule, err := s.svc.Rules().SetActive(id, active)
		if err != nil {
			respondError(w, err, alertFieldDescriptions)
			return
		}
		respondOK(w, rule, alertFieldDescriptions)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.svc.Rules().Get(id)
		if err != nil {
			respondError(w, err, alertFieldDescriptions)
			return
		}
		respondOK(w, rule, alertFieldDescriptions)

	case http.MethodPut:
		var patch rulePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			respondError(w, &model.ValidationError{
				Code:    model.CodeInvalidRule,
				Message: "malformed rule JSON: " + err.Error(),
			}, alertFieldDescriptions)
			return
		}
		updated, err := s.svc.Rules().Update(id, patch.apply)
		if err != nil {
			respondError(w, err, alertFieldDescriptions)
			return
		}
		respondOK(w, updated, alertFieldDescriptions)

	case http.MethodDelete:
		if err := s.svc.Rules().Delete(id); err != nil {
			respondError(w, err, alertFieldDescriptions)
			return
		}
		respondOK(w, map[string]string{"rule_id": id, "status": "deleted"}, alertFieldDescriptions)

	default:
		methodNotAllowed(w)
	}
}

// handleHistory handles GET /api/v1/alerts/history?rule_id=...&limit=...
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ruleID := r.URL.Query().Get("rule_id")
	if ruleID == "" {
		respondError(w, &model.ValidationError{
			Code:    model.CodeInvalidRule,
			Message: "rule_id query parameter is required",
		}, alertFieldDescriptions)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	triggers, err := s.svc.TriggerHistory(ruleID, clampLimit(limit))
	if err != nil {
		respondError(w, err, alertFieldDescriptions)
		return
	}
	respondOK(w, map[string]interface{}{
		"rule_id":  ruleID,
		"count":    len(triggers),
		"triggers": triggers,
	}, alertFieldDescriptions)
}

// handleStats handles GET /api/v1/alerts/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	today, thisHour := s.svc.TriggerActivity()
	respondOK(w, map[string]interface{}{
		"rules":              s.svc.Rules().Stats(),
		"triggers_today":     today,
		"triggers_this_hour": thisHour,
		"symbols":            s.svc.MonitoredSymbols(),
		"timeframes":         s.svc.MonitoredTimeframes(),
	}, alertFieldDescriptions)
}
