package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayneWudh/aiagent/config"
	"github.com/wayneWudh/aiagent/internal/engine"
	"github.com/wayneWudh/aiagent/internal/model"
)

func newTestServer(t *testing.T) (*engine.Service, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{
		SQLitePath:         filepath.Join(t.TempDir(), "records.db"),
		AlertEndpointURL:   "http://127.0.0.1:0/webhook",
		DeliveryMaxRetries: 1,
		DeliveryQueueSize:  16,
		Symbols:            "BTC",
		Timeframes:         "1h",
		HistoryWindow:      64,
	}
	svc, err := engine.New(cfg, nil)
	if err != nil {
		t.Fatalf("service init: %v", err)
	}
	t.Cleanup(svc.Close)

	api := NewServer("127.0.0.1:0", svc)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return svc, srv
}

var baseTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func hourly(i int, close float64) model.Candle {
	return model.Candle{
		Symbol:    "BTC",
		Timeframe: "1h",
		OpenTime:  baseTime.Add(time.Duration(i) * time.Hour),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    100,
	}
}

func feedDecline(t *testing.T, svc *engine.Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := svc.Submit(context.Background(), hourly(i, 1000-float64(i)*5)); err != nil {
			t.Fatalf("submit candle %d: %v", i, err)
		}
	}
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var env Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.RequestID == "" {
		t.Error("response missing request_id")
	}
	return env
}

func dataAs(t *testing.T, env Response, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data payload: %v", err)
	}
}

func TestCandleSubmission(t *testing.T) {
	_, srv := newTestServer(t)
	url := srv.URL + "/api/v1/candles"

	httpResp, env := postJSON(t, url, hourly(0, 100))
	if httpResp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("submit failed: status=%d env=%+v", httpResp.StatusCode, env)
	}
	var res submitResult
	dataAs(t, env, &res)
	if !res.Accepted || res.Duplicate {
		t.Errorf("first submit: %+v", res)
	}

	// Resubmitting the head succeeds but is flagged as a duplicate
	_, env = postJSON(t, url, hourly(0, 100))
	if !env.Success {
		t.Fatalf("duplicate submit rejected: %+v", env)
	}
	dataAs(t, env, &res)
	if !res.Duplicate {
		t.Error("duplicate flag not set")
	}

	// Advance, then try to go backwards
	postJSON(t, url, hourly(1, 101))
	httpResp, env = postJSON(t, url, hourly(0, 100))
	if httpResp.StatusCode != http.StatusBadRequest || env.ErrorCode != model.CodeOutOfOrderCandle {
		t.Errorf("out-of-order: status=%d code=%s", httpResp.StatusCode, env.ErrorCode)
	}

	// Unknown symbol
	bad := hourly(2, 100)
	bad.Symbol = "DOGE"
	httpResp, env = postJSON(t, url, bad)
	if httpResp.StatusCode != http.StatusBadRequest || env.ErrorCode != model.CodeUnsupportedSymbol {
		t.Errorf("unknown symbol: status=%d code=%s", httpResp.StatusCode, env.ErrorCode)
	}

	if resp, err := http.Get(url); err == nil {
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET on candles = %d", resp.StatusCode)
		}
	}
}

func TestQueryEndpoint(t *testing.T) {
	svc, srv := newTestServer(t)
	feedDecline(t, svc, 30)
	url := srv.URL + "/api/v1/query"

	_, env := postJSON(t, url, map[string]interface{}{
		"symbol": "BTC",
		"conditions": map[string]interface{}{
			"field": "rsi_14", "operator": "lt", "value": 30,
		},
		"limit": 50,
	})
	if !env.Success {
		t.Fatalf("query failed: %+v", env)
	}
	if env.FieldDescriptions["rsi_14"] == "" {
		t.Error("query response must carry field descriptions")
	}
	var data struct {
		Count   int            `json:"count"`
		Records []model.Record `json:"records"`
	}
	dataAs(t, env, &data)
	if data.Count == 0 || data.Count != len(data.Records) {
		t.Fatalf("count=%d records=%d", data.Count, len(data.Records))
	}
	for i := 1; i < len(data.Records); i++ {
		if data.Records[i].OpenTime.After(data.Records[i-1].OpenTime) {
			t.Fatal("records not newest first")
		}
	}

	// Composite condition
	_, env = postJSON(t, url, map[string]interface{}{
		"symbol": "BTC",
		"conditions": map[string]interface{}{
			"logic": "and",
			"conditions": []interface{}{
				map[string]interface{}{"field": "rsi_14", "operator": "lt", "value": 30},
				map[string]interface{}{"field": "close", "operator": "lt", "value": 950},
			},
		},
	})
	if !env.Success {
		t.Fatalf("composite query failed: %+v", env)
	}

	// Unknown field is rejected with its stable code
	httpResp, env := postJSON(t, url, map[string]interface{}{
		"symbol": "BTC",
		"conditions": map[string]interface{}{
			"field": "rsi_15", "operator": "lt", "value": 30,
		},
	})
	if httpResp.StatusCode != http.StatusBadRequest || env.ErrorCode != model.CodeUnknownField {
		t.Errorf("unknown field: status=%d code=%s", httpResp.StatusCode, env.ErrorCode)
	}
}

func TestSignalsQueryEndpoint(t *testing.T) {
	svc, srv := newTestServer(t)
	feedDecline(t, svc, 30)
	url := srv.URL + "/api/v1/signals/query"

	_, env := postJSON(t, url, map[string]interface{}{
		"symbol":       "BTC",
		"signal_types": []string{"RSI_OVERSOLD"},
		"limit":        50,
	})
	if !env.Success {
		t.Fatalf("signals query failed: %+v", env)
	}
	var data struct {
		Count   int                `json:"count"`
		Signals []engine.SignalHit `json:"signals"`
	}
	dataAs(t, env, &data)
	if data.Count == 0 {
		t.Fatal("expected RSI_OVERSOLD hits in a straight decline")
	}
	for _, h := range data.Signals {
		if len(h.Signals) != 1 || h.Signals[0] != "RSI_OVERSOLD" {
			t.Errorf("hit signals = %v", h.Signals)
		}
	}

	httpResp, env := postJSON(t, url, map[string]interface{}{
		"symbol":       "BTC",
		"signal_types": []string{"MOON_SOON"},
	})
	if httpResp.StatusCode != http.StatusBadRequest || env.ErrorCode != model.CodeInvalidCondition {
		t.Errorf("unknown tag: status=%d code=%s", httpResp.StatusCode, env.ErrorCode)
	}
}

func TestRuleLifecycle(t *testing.T) {
	_, srv := newTestServer(t)
	rulesURL := srv.URL + "/api/v1/alerts/rules"
	client := srv.Client()

	// Create
	_, env := postJSON(t, rulesURL, map[string]interface{}{
		"name":       "breakout",
		"rule_kind":  "price",
		"symbol":     "btc",
		"timeframes": []string{"1h"},
		"operator":   "gt",
		"threshold":  100000,
		"frequency":  "once",
	})
	if !env.Success {
		t.Fatalf("create failed: %+v", env)
	}
	var rule model.AlertRule
	dataAs(t, env, &rule)
	if !strings.HasPrefix(rule.ID, "rule_") || rule.Symbol != "BTC" || !rule.IsActive {
		t.Fatalf("created rule: %+v", rule)
	}
	if env.FieldDescriptions["frequency"] == "" {
		t.Error("rule response must carry field descriptions")
	}

	ruleURL := rulesURL + "/" + rule.ID

	// Get
	resp, err := client.Get(ruleURL)
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatalf("get failed: %+v", env)
	}
	if env.FieldDescriptions["operator"] == "" {
		t.Error("rule get must carry field descriptions")
	}

	// Partial update via PUT: untouched fields survive
	body, _ := json.Marshal(map[string]interface{}{
		"timeframes": []string{"1h", "4h"},
		"threshold":  120000,
		"frequency":  "hourly",
	})
	req, _ := http.NewRequest(http.MethodPut, ruleURL, bytes.NewReader(body))
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatalf("update failed: %+v", env)
	}
	var updated model.AlertRule
	dataAs(t, env, &updated)
	if updated.Threshold != 120000 || updated.Frequency != model.FreqHourly || len(updated.Timeframes) != 2 {
		t.Errorf("updated rule: %+v", updated)
	}
	if updated.Name != "breakout" || updated.Kind != model.RulePrice {
		t.Errorf("partial update must preserve omitted fields: %+v", updated)
	}

	// Disable then enable
	for _, action := range []string{"disable", "enable"} {
		resp, err = client.Post(ruleURL+"/"+action, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		env = decodeEnvelope(t, resp)
		if !env.Success {
			t.Fatalf("%s failed: %+v", action, env)
		}
		var toggled model.AlertRule
		dataAs(t, env, &toggled)
		if toggled.IsActive != (action == "enable") {
			t.Errorf("%s: is_active=%v", action, toggled.IsActive)
		}
		if env.FieldDescriptions["frequency"] == "" {
			t.Errorf("%s response must carry field descriptions", action)
		}
	}

	// List
	resp, err = client.Get(rulesURL)
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	var list struct {
		Count int               `json:"count"`
		Rules []model.AlertRule `json:"rules"`
	}
	dataAs(t, env, &list)
	if list.Count != 1 {
		t.Errorf("list count = %d", list.Count)
	}

	// Stats
	resp, err = client.Get(srv.URL + "/api/v1/alerts/stats")
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatalf("stats failed: %+v", env)
	}
	if env.FieldDescriptions["rule_kind"] == "" {
		t.Error("stats response must carry field descriptions")
	}

	// Delete, then 404 on everything referencing the rule
	req, _ = http.NewRequest(http.MethodDelete, ruleURL, nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if env = decodeEnvelope(t, resp); !env.Success {
		t.Fatalf("delete failed: %+v", env)
	}

	resp, err = client.Get(ruleURL)
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusNotFound || env.ErrorCode != "RULE_NOT_FOUND" {
		t.Errorf("get after delete: status=%d code=%s", resp.StatusCode, env.ErrorCode)
	}
}

func TestAlertHistoryEndpoint(t *testing.T) {
	svc, srv := newTestServer(t)

	// A signal rule fires during the decline; the trigger is committed to
	// the durable log before delivery, so history works without a webhook
	_, env := postJSON(t, srv.URL+"/api/v1/alerts/rules", map[string]interface{}{
		"name":         "oversold watch",
		"rule_kind":    "signal",
		"symbol":       "BTC",
		"timeframes":   []string{"1h"},
		"signal_types": []string{"RSI_OVERSOLD"},
		"frequency":    "once",
	})
	if !env.Success {
		t.Fatalf("create rule: %+v", env)
	}
	var rule model.AlertRule
	dataAs(t, env, &rule)

	feedDecline(t, svc, 30)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/alerts/history?rule_id=" + rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatalf("history failed: %+v", env)
	}
	var data struct {
		Count    int                  `json:"count"`
		Triggers []model.AlertTrigger `json:"triggers"`
	}
	dataAs(t, env, &data)
	if data.Count != 1 {
		t.Fatalf("history count = %d, want 1 (once rule)", data.Count)
	}
	if data.Triggers[0].AlertType != model.AlertSignal {
		t.Errorf("alert type = %s", data.Triggers[0].AlertType)
	}
	if env.FieldDescriptions["signal_types"] == "" {
		t.Error("history response must carry field descriptions")
	}

	// The fresh trigger shows up in the stats activity counters
	resp, err = srv.Client().Get(srv.URL + "/api/v1/alerts/stats")
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	var stats struct {
		TriggersToday    int64 `json:"triggers_today"`
		TriggersThisHour int64 `json:"triggers_this_hour"`
	}
	dataAs(t, env, &stats)
	if stats.TriggersToday != 1 || stats.TriggersThisHour != 1 {
		t.Errorf("trigger activity: today=%d hour=%d, want 1/1", stats.TriggersToday, stats.TriggersThisHour)
	}

	// Missing rule_id
	resp, err = srv.Client().Get(srv.URL + "/api/v1/alerts/history")
	if err != nil {
		t.Fatal(err)
	}
	if env = decodeEnvelope(t, resp); env.Success {
		t.Error("history without rule_id must fail")
	}
}

func TestCandleWebSocket(t *testing.T) {
	_, srv := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/candles/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	send := func(v interface{}) wsAck {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("ws write: %v", err)
		}
		var ack wsAck
		if err := conn.ReadJSON(&ack); err != nil {
			t.Fatalf("ws read: %v", err)
		}
		return ack
	}

	if ack := send(hourly(0, 100)); !ack.Accepted || ack.Duplicate {
		t.Errorf("first frame ack: %+v", ack)
	}
	if ack := send(hourly(0, 100)); !ack.Accepted || !ack.Duplicate {
		t.Errorf("duplicate frame ack: %+v", ack)
	}
	if ack := send(hourly(1, 101)); !ack.Accepted {
		t.Errorf("second candle ack: %+v", ack)
	}

	// Out-of-order is rejected per frame, connection stays up
	if ack := send(hourly(0, 100)); ack.Accepted || ack.ErrorCode != model.CodeOutOfOrderCandle {
		t.Errorf("out-of-order ack: %+v", ack)
	}
	if ack := send(hourly(2, 102)); !ack.Accepted {
		t.Errorf("connection unusable after rejection: %+v", ack)
	}
}
