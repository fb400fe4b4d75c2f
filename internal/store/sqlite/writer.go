package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/wayneWudh/aiagent/internal/metrics"
	"github.com/wayneWudh/aiagent/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath  string           // path to SQLite database file, e.g. "data/records.db"
	Metrics *metrics.Metrics // optional
}

// Writer owns all mutations: batched record inserts on the hot path, and
// synchronous rule/trigger writes from the API and alert paths.
type Writer struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, metrics: cfg.Metrics}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			symbol     TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			indicators TEXT    NOT NULL,
			signals    TEXT    NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS alert_rules (
			id                TEXT PRIMARY KEY,
			name              TEXT    NOT NULL,
			kind              TEXT    NOT NULL,
			symbol            TEXT    NOT NULL,
			timeframes        TEXT    NOT NULL,
			field             TEXT    NOT NULL DEFAULT '',
			op                TEXT    NOT NULL DEFAULT '',
			threshold         REAL    NOT NULL DEFAULT 0,
			signal_types      TEXT    NOT NULL DEFAULT '[]',
			frequency         TEXT    NOT NULL,
			custom_message    TEXT    NOT NULL DEFAULT '',
			is_active         INTEGER NOT NULL,
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL,
			last_triggered_at INTEGER,
			trigger_count     INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS alert_triggers (
			request_id   TEXT PRIMARY KEY,
			rule_id      TEXT    NOT NULL,
			rule_name    TEXT    NOT NULL,
			alert_type   TEXT    NOT NULL,
			symbol       TEXT    NOT NULL,
			timeframe    TEXT    NOT NULL,
			trigger_time INTEGER NOT NULL,
			trigger_data TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_triggers_rule
			ON alert_triggers (rule_id, trigger_time);
	`)
	return err
}

// Run reads records from recordCh and inserts them in batched transactions.
// Flushes every batchSize records OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or recordCh is closed.
func (w *Writer) Run(ctx context.Context, recordCh <-chan model.Record) {
	batch := make([]model.Record, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			if w.metrics != nil {
				w.metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
			}
			log.Printf("[sqlite] committed %d records in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-recordCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of records in a single transaction.
// INSERT OR REPLACE keeps re-submitted candles idempotent.
func (w *Writer) insertBatch(records []model.Record) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO records (symbol, timeframe, ts, open, high, low, close, volume, indicators, signals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		indJSON, err := json.Marshal(r.Indicators)
		if err != nil {
			tx.Rollback()
			return err
		}
		sigJSON, err := json.Marshal(r.Signals)
		if err != nil {
			tx.Rollback()
			return err
		}
		_, err = stmt.Exec(
			r.Symbol, r.Timeframe, r.OpenTime.Unix(),
			r.Open, r.High, r.Low, r.Close, r.Volume,
			string(indJSON), string(sigJSON),
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// UpsertRule persists a rule create or update.
func (w *Writer) UpsertRule(r *model.AlertRule) error {
	tfJSON, err := json.Marshal(r.Timeframes)
	if err != nil {
		return err
	}
	sigJSON, err := json.Marshal(r.SignalTypes)
	if err != nil {
		return err
	}

	var lastTriggered sql.NullInt64
	if r.LastTriggeredAt != nil {
		lastTriggered = sql.NullInt64{Int64: r.LastTriggeredAt.Unix(), Valid: true}
	}

	_, err = w.db.Exec(`
		INSERT OR REPLACE INTO alert_rules
			(id, name, kind, symbol, timeframes, field, op, threshold, signal_types,
			 frequency, custom_message, is_active, created_at, updated_at, last_triggered_at, trigger_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Name, string(r.Kind), r.Symbol, string(tfJSON),
		r.Field, r.Op, r.Threshold, string(sigJSON),
		string(r.Frequency), r.CustomMessage, boolToInt(r.IsActive),
		r.CreatedAt.Unix(), r.UpdatedAt.Unix(), lastTriggered, r.TriggerCount,
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule row. Its trigger history is kept for audit.
func (w *Writer) DeleteRule(id string) error {
	_, err := w.db.Exec(`DELETE FROM alert_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete rule: %w", err)
	}
	return nil
}

// CommitTrigger appends a trigger to the log and applies the rule-side
// bookkeeping (last trigger time, count, deactivation for once-rules) in
// one transaction, so the log and the rule never disagree.
func (w *Writer) CommitTrigger(trigger *model.AlertTrigger, rule *model.AlertRule) error {
	data, err := json.Marshal(trigger.TriggerData)
	if err != nil {
		return err
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO alert_triggers (request_id, rule_id, rule_name, alert_type, symbol, timeframe, trigger_time, trigger_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trigger.RequestID, trigger.RuleID, trigger.RuleName, string(trigger.AlertType),
		trigger.Symbol, trigger.Timeframe, trigger.TriggerTime.Unix(), string(data),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert trigger: %w", err)
	}

	var lastTriggered sql.NullInt64
	if rule.LastTriggeredAt != nil {
		lastTriggered = sql.NullInt64{Int64: rule.LastTriggeredAt.Unix(), Valid: true}
	}
	_, err = tx.Exec(`
		UPDATE alert_rules
		SET last_triggered_at = ?, trigger_count = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, lastTriggered, rule.TriggerCount, boolToInt(rule.IsActive), rule.UpdatedAt.Unix(), rule.ID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite update rule on trigger: %w", err)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
