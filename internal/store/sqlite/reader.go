package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/wayneWudh/aiagent/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for replay, rule loading and
// query serving. Safe alongside the single Writer thanks to WAL mode.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

const recordColumns = `symbol, timeframe, ts, open, high, low, close, volume, indicators, signals`

// ReadRecent returns up to limit records for one series, newest first.
func (r *Reader) ReadRecent(symbol, timeframe string, limit int) ([]model.Record, error) {
	rows, err := r.db.Query(`
		SELECT `+recordColumns+`
		FROM records
		WHERE symbol = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ReplayCandles returns the candles of the most recent limit records for one
// series in ascending time order, the order indicator replay needs.
func (r *Reader) ReplayCandles(symbol, timeframe string, limit int) ([]model.Candle, error) {
	recs, err := r.ReadRecent(symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	// Newest-first to oldest-first
	out := make([]model.Candle, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec.Candle
	}
	return out, nil
}

func scanRecords(rows *sql.Rows) ([]model.Record, error) {
	var out []model.Record
	for rows.Next() {
		var rec model.Record
		var tsUnix int64
		var indJSON, sigJSON string
		if err := rows.Scan(
			&rec.Symbol, &rec.Timeframe, &tsUnix,
			&rec.Open, &rec.High, &rec.Low, &rec.Close, &rec.Volume,
			&indJSON, &sigJSON,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan record: %w", err)
		}
		rec.OpenTime = time.Unix(tsUnix, 0).UTC()
		if err := json.Unmarshal([]byte(indJSON), &rec.Indicators); err != nil {
			return nil, fmt.Errorf("sqlite record indicators: %w", err)
		}
		if err := json.Unmarshal([]byte(sigJSON), &rec.Signals); err != nil {
			return nil, fmt.Errorf("sqlite record signals: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadRules reads every persisted alert rule. Called once at startup to
// rebuild the in-memory rule store.
func (r *Reader) LoadRules() ([]*model.AlertRule, error) {
	rows, err := r.db.Query(`
		SELECT id, name, kind, symbol, timeframes, field, op, threshold, signal_types,
		       frequency, custom_message, is_active, created_at, updated_at, last_triggered_at, trigger_count
		FROM alert_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query rules: %w", err)
	}
	defer rows.Close()

	var out []*model.AlertRule
	for rows.Next() {
		var rule model.AlertRule
		var kind, frequency, tfJSON, sigJSON string
		var isActive int
		var createdAt, updatedAt int64
		var lastTriggered sql.NullInt64
		if err := rows.Scan(
			&rule.ID, &rule.Name, &kind, &rule.Symbol, &tfJSON,
			&rule.Field, &rule.Op, &rule.Threshold, &sigJSON,
			&frequency, &rule.CustomMessage, &isActive,
			&createdAt, &updatedAt, &lastTriggered, &rule.TriggerCount,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan rule: %w", err)
		}
		rule.Kind = model.RuleKind(kind)
		rule.Frequency = model.Frequency(frequency)
		rule.IsActive = isActive != 0
		rule.CreatedAt = time.Unix(createdAt, 0).UTC()
		rule.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		if lastTriggered.Valid {
			t := time.Unix(lastTriggered.Int64, 0).UTC()
			rule.LastTriggeredAt = &t
		}
		if err := json.Unmarshal([]byte(tfJSON), &rule.Timeframes); err != nil {
			return nil, fmt.Errorf("sqlite rule timeframes: %w", err)
		}
		if err := json.Unmarshal([]byte(sigJSON), &rule.SignalTypes); err != nil {
			return nil, fmt.Errorf("sqlite rule signal types: %w", err)
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}

// ReadTriggers returns the trigger history for one rule, newest first.
func (r *Reader) ReadTriggers(ruleID string, limit int) ([]*model.AlertTrigger, error) {
	rows, err := r.db.Query(`
		SELECT request_id, rule_id, rule_name, alert_type, symbol, timeframe, trigger_time, trigger_data
		FROM alert_triggers
		WHERE rule_id = ?
		ORDER BY trigger_time DESC
		LIMIT ?
	`, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query triggers: %w", err)
	}
	defer rows.Close()

	var out []*model.AlertTrigger
	for rows.Next() {
		var trig model.AlertTrigger
		var alertType, dataJSON string
		var triggerTime int64
		if err := rows.Scan(
			&trig.RequestID, &trig.RuleID, &trig.RuleName, &alertType,
			&trig.Symbol, &trig.Timeframe, &triggerTime, &dataJSON,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan trigger: %w", err)
		}
		trig.AlertType = model.AlertType(alertType)
		trig.TriggerTime = time.Unix(triggerTime, 0).UTC()
		if err := json.Unmarshal([]byte(dataJSON), &trig.TriggerData); err != nil {
			return nil, fmt.Errorf("sqlite trigger data: %w", err)
		}
		out = append(out, &trig)
	}
	return out, rows.Err()
}

// CountTriggersSince returns how many times a rule fired at or after since.
func (r *Reader) CountTriggersSince(ruleID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM alert_triggers WHERE rule_id = ? AND trigger_time >= ?
	`, ruleID, since.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite count triggers: %w", err)
	}
	return n, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
