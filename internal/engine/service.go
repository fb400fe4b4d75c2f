// Package engine is the top-level orchestrator: it wires the candle
// pipeline (validate, dedup, indicators, signals, persist, alerts), the
// optional Redis transport, and the query surface the API serves from.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/wayneWudh/aiagent/config"
	"github.com/wayneWudh/aiagent/internal/alert"
	"github.com/wayneWudh/aiagent/internal/metrics"
	"github.com/wayneWudh/aiagent/internal/model"
	redisstore "github.com/wayneWudh/aiagent/internal/store/redis"
	sqlitestore "github.com/wayneWudh/aiagent/internal/store/sqlite"
)

// SubmitStatus reports how an accepted submission was handled.
type SubmitStatus int

const (
	// SubmitAccepted means the candle advanced its series.
	SubmitAccepted SubmitStatus = iota
	// SubmitDuplicate means the candle repeated the series head and was
	// acknowledged without reprocessing.
	SubmitDuplicate
)

// Service owns the full evaluation pipeline for all monitored series.
type Service struct {
	cfg *config.Config

	streams map[string]*stream // key: "SYMBOL:timeframe"
	symbols map[string]bool

	sqlWriter *sqlitestore.Writer
	sqlReader *sqlitestore.Reader
	recordCh  chan model.Record

	redisReader *redisstore.Reader
	redisWriter *redisstore.Writer
	redisRecCh  chan model.Record

	rules      *alert.Store
	alerts     *alert.Engine
	dispatcher *alert.Dispatcher

	prom   *metrics.Metrics // may be nil (tests)
	health *metrics.HealthStatus
}

// New wires the service from config. m may be nil; pass metrics.NewMetrics()
// exactly once per process.
func New(cfg *config.Config, m *metrics.Metrics) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		streams:  make(map[string]*stream),
		symbols:  make(map[string]bool),
		recordCh: make(chan model.Record, 5000),
		prom:     m,
		health:   metrics.NewHealthStatus(),
	}

	for _, sym := range cfg.ParseSymbols() {
		svc.symbols[sym] = true
		for _, tf := range cfg.ParseTimeframes() {
			if !model.ValidTimeframe(tf) {
				return nil, fmt.Errorf("engine: unsupported timeframe %q in config", tf)
			}
			svc.streams[sym+":"+tf] = newStream(sym, tf, cfg.HistoryWindow)
		}
	}
	if len(svc.streams) == 0 {
		return nil, fmt.Errorf("engine: no monitored series configured")
	}

	// ---- Open SQLite ----
	var err error
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Metrics: m})
	if err != nil {
		return nil, err
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		svc.sqlWriter.Close()
		return nil, err
	}
	svc.health.SetSQLiteOK(true)

	// ---- Connect to Redis (optional) ----
	if cfg.RedisAddr != "" {
		svc.redisReader, err = redisstore.NewReader(redisstore.ReaderConfig{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
		})
		if err != nil {
			svc.closeStores()
			return nil, err
		}
		svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			svc.redisReader.Close()
			svc.closeStores()
			return nil, err
		}
		svc.redisRecCh = make(chan model.Record, 5000)
		svc.health.SetRedisEnabled(true)
	}

	// ---- Alert engine ----
	svc.rules = alert.NewStore(svc.sqlWriter)
	persisted, err := svc.sqlReader.LoadRules()
	if err != nil {
		log.Printf("[engine] WARNING: loading persisted rules failed: %v", err)
	} else {
		svc.rules.Load(persisted)
		log.Printf("[engine] loaded %d persisted alert rules", len(persisted))
	}

	svc.dispatcher = alert.NewDispatcher(alert.DispatcherConfig{
		EndpointURL: cfg.AlertEndpointURL,
		QueueSize:   cfg.DeliveryQueueSize,
		MaxRetries:  cfg.DeliveryMaxRetries,
		Metrics:     m,
	})
	svc.alerts = alert.NewEngine(svc.rules, svc.dispatcher, m)
	if svc.redisWriter != nil {
		svc.alerts.SetTriggerSink(svc.redisWriter)
	}

	return svc, nil
}

// Rules exposes the rule store to the API layer.
func (svc *Service) Rules() *alert.Store { return svc.rules }

// MonitoredSymbols returns the configured symbol universe.
func (svc *Service) MonitoredSymbols() []string { return svc.cfg.ParseSymbols() }

// MonitoredTimeframes returns the configured timeframes.
func (svc *Service) MonitoredTimeframes() []string { return svc.cfg.ParseTimeframes() }

// Health exposes the health status for the API layer.
func (svc *Service) Health() *metrics.HealthStatus { return svc.health }

// Metrics exposes the metrics set (may be nil in tests).
func (svc *Service) Metrics() *metrics.Metrics { return svc.prom }

// TriggerHistory reads a rule's trigger log, newest first. The rule must
// exist; history of deleted rules is readable directly from storage only.
func (svc *Service) TriggerHistory(ruleID string, limit int) ([]*model.AlertTrigger, error) {
	if _, err := svc.rules.Get(ruleID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	return svc.sqlReader.ReadTriggers(ruleID, limit)
}

// TriggerActivity counts trigger-log rows across all rules since the start
// of the current UTC day and hour, for the stats endpoint.
func (svc *Service) TriggerActivity() (today, thisHour int64) {
	now := time.Now().UTC()
	dayStart := now.Truncate(24 * time.Hour)
	hourStart := now.Truncate(time.Hour)
	for _, rule := range svc.rules.List() {
		if n, err := svc.sqlReader.CountTriggersSince(rule.ID, dayStart); err == nil {
			today += n
		}
		if n, err := svc.sqlReader.CountTriggersSince(rule.ID, hourStart); err == nil {
			thisHour += n
		}
	}
	return today, thisHour
}

// Run starts the pipeline and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[engine] starting alert engine...")

	// ---- Rebuild indicator state from persisted candles ----
	svc.replayHistory()

	// ---- Persistence workers ----
	go svc.sqlWriter.Run(ctx, svc.recordCh)
	if svc.redisWriter != nil {
		go svc.redisWriter.RunRecords(ctx, svc.redisRecCh)
	}

	// ---- Delivery worker ----
	svc.dispatcher.Start(ctx)

	// ---- Redis candle consumer (optional) ----
	if svc.redisReader != nil {
		svc.startConsumer(ctx)
	}

	// ---- Metrics and health server ----
	metricsSrv := metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
	metricsSrv.Start()

	var redisClient *goredis.Client
	if svc.redisWriter != nil {
		redisClient = svc.redisWriter.Client()
	}
	svc.health.StartLivenessChecker(ctx, redisClient, svc.sqlWriter.DB(), 10*time.Second)

	log.Printf("[engine] monitoring %d series (%d symbols x %d timeframes)",
		len(svc.streams), len(svc.symbols), len(svc.cfg.ParseTimeframes()))
	log.Println("[engine] pipeline running")

	<-ctx.Done()

	// ---- Graceful shutdown ----
	log.Println("[engine] shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsSrv.Stop(shutCtx)

	svc.dispatcher.Close()
	svc.closeAll()
	log.Println("[engine] stopped")
	return nil
}

// replayHistory replays the persisted tail of every series through fresh
// indicator state. Indicators are deterministic, so replaying the candles
// reproduces the exact values that were live before restart.
func (svc *Service) replayHistory() {
	for key, st := range svc.streams {
		candles, err := svc.sqlReader.ReplayCandles(st.symbol, st.timeframe, svc.cfg.HistoryWindow)
		if err != nil {
			log.Printf("[engine] WARNING: replay %s failed: %v", key, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		st.replay(candles)
		log.Printf("[engine] replayed %d candles for %s", len(candles), key)
	}
}

// startConsumer wires the Redis candle streams into Submit.
func (svc *Service) startConsumer(ctx context.Context) {
	var streams []string
	for _, st := range svc.streams {
		streams = append(streams, redisstore.StreamName(svc.cfg.CandleStreamPrefix, st.symbol, st.timeframe))
	}

	if err := svc.redisReader.EnsureConsumerGroup(ctx, streams); err != nil {
		log.Printf("[engine] WARNING: consumer group setup: %v", err)
	}

	candleCh := make(chan model.Candle, 1000)
	if err := svc.redisReader.RecoverPending(ctx, streams, candleCh); err != nil {
		log.Printf("[engine] pending recovery error: %v", err)
	}

	go func() {
		if err := svc.redisReader.ConsumeCandles(ctx, streams, candleCh); err != nil && ctx.Err() == nil {
			log.Printf("[engine] consumer stopped: %v", err)
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case c := <-candleCh:
				if _, err := svc.Submit(ctx, c); err != nil {
					log.Printf("[engine] stream candle rejected: %v", err)
				}
			}
		}
	}()
}

// Submit runs one candle through the pipeline. Validation and ordering
// errors are returned synchronously; duplicates of the series head are
// acknowledged as SubmitDuplicate without reprocessing.
func (svc *Service) Submit(ctx context.Context, c model.Candle) (SubmitStatus, error) {
	c.Symbol = strings.ToUpper(c.Symbol)

	if err := c.Validate(); err != nil {
		if svc.prom != nil {
			svc.prom.CandlesRejected.Inc()
		}
		return 0, err
	}

	st, ok := svc.streams[c.Key()]
	if !ok {
		if svc.prom != nil {
			svc.prom.CandlesRejected.Inc()
		}
		if !svc.symbols[c.Symbol] {
			return 0, &model.ValidationError{
				Code:    model.CodeUnsupportedSymbol,
				Message: fmt.Sprintf("symbol %q is not monitored", c.Symbol),
			}
		}
		return 0, &model.ValidationError{
			Code:    model.CodeUnsupportedTimeframe,
			Message: fmt.Sprintf("timeframe %q is not monitored for %s", c.Timeframe, c.Symbol),
		}
	}

	start := time.Now()
	rec, dup, err := st.process(c)
	if err != nil {
		if svc.prom != nil {
			svc.prom.CandlesOutOfOrder.Inc()
		}
		return 0, err
	}
	if dup {
		if svc.prom != nil {
			svc.prom.CandlesDuplicate.Inc()
		}
		return SubmitDuplicate, nil
	}

	if svc.prom != nil {
		svc.prom.CandlesAccepted.Inc()
		svc.prom.IndicatorComputeDur.Observe(time.Since(start).Seconds())
		for _, tag := range rec.Signals {
			svc.prom.SignalsTotal.WithLabelValues(tag).Inc()
		}
	}
	svc.health.SetLastCandleTime(c.OpenTime)

	// Persist before alert evaluation so the trigger log and the record
	// store advance together
	select {
	case svc.recordCh <- *rec:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	if svc.redisRecCh != nil {
		select {
		case svc.redisRecCh <- *rec:
		default:
			// Redis fanout is best-effort; never stall the pipeline on it
		}
	}

	svc.alerts.OnRecord(ctx, rec)
	return SubmitAccepted, nil
}

func (svc *Service) closeStores() {
	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
}

// Close releases store connections. Run calls it on shutdown; callers that
// never start Run (tests, tooling) close directly.
func (svc *Service) Close() { svc.closeAll() }

func (svc *Service) closeAll() {
	if svc.redisReader != nil {
		svc.redisReader.Close()
	}
	if svc.redisWriter != nil {
		svc.redisWriter.Close()
	}
	svc.closeStores()
}
