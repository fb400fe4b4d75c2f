package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wayneWudh/aiagent/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Trigger stream retention: plenty for downstream catch-up
	triggerStreamMaxLen = 10000
	// Record stream retention per series
	recordStreamMaxLen = 2000

	defaultLatestTTL = 30 * time.Minute

	// TriggerStream is the outbound alert trigger stream key.
	TriggerStream = "alerts:triggers"
	// TriggerChannel is the Pub/Sub channel mirroring the trigger stream.
	TriggerChannel = "pub:alerts:triggers"
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer fans processed records and alert triggers out to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// RunRecords reads processed records and writes them to Redis.
// Blocks until ctx is cancelled or recordCh is closed.
func (w *Writer) RunRecords(ctx context.Context, recordCh <-chan model.Record) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-recordCh:
			if !ok {
				return
			}
			w.writeRecord(ctx, rec)
		}
	}
}

// writeRecord performs pipelined writes for one processed record:
// XADD to the per-series stream, SET latest, PUBLISH for subscribers.
func (w *Writer) writeRecord(ctx context.Context, rec model.Record) {
	streamKey := "records:" + rec.Symbol + ":" + rec.Timeframe
	latestKey := "records:latest:" + rec.Symbol + ":" + rec.Timeframe
	pubsubCh := "pub:records:" + rec.Symbol + ":" + rec.Timeframe
	jsonData := string(rec.JSON())

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: recordStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] record pipeline error for %s: %v", rec.Key(), err)
	}
}

// WriteTrigger appends an alert trigger to the outbound stream and mirrors
// it on Pub/Sub. Failures are logged only: Redis fanout is best-effort on
// top of the durable SQLite trigger log.
func (w *Writer) WriteTrigger(ctx context.Context, trigger *model.AlertTrigger) {
	jsonData := string(trigger.JSON())

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: TriggerStream,
		MaxLen: triggerStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, TriggerChannel, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] trigger pipeline error for %s: %v", trigger.RequestID, err)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
