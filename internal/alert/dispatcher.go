package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/wayneWudh/aiagent/internal/metrics"
	"github.com/wayneWudh/aiagent/internal/model"
)

const (
	defaultQueueSize  = 256
	defaultMaxRetries = 3
	deliveryTimeout   = 10 * time.Second
	initialRetryDelay = time.Second
	drainTimeout      = 30 * time.Second
)

// DispatcherConfig configures the delivery dispatcher.
type DispatcherConfig struct {
	EndpointURL string
	QueueSize   int              // 0 = defaultQueueSize
	MaxRetries  int              // attempts after the first; 0 = defaultMaxRetries
	Metrics     *metrics.Metrics // optional
}

// Dispatcher delivers alert triggers to the configured HTTP endpoint from a
// dedicated worker, so evaluation never blocks on a slow receiver. The queue
// is bounded: when it is full, new triggers are dropped and counted. The
// durable trigger log already holds every event, so a drop loses only the
// push, never the record.
type Dispatcher struct {
	url        string
	client     *http.Client
	queue      chan *model.AlertTrigger
	maxRetries int
	retryDelay time.Duration
	metrics    *metrics.Metrics

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher. Call Start to launch the worker.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	qsize := cfg.QueueSize
	if qsize <= 0 {
		qsize = defaultQueueSize
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Dispatcher{
		url:        cfg.EndpointURL,
		client:     &http.Client{Timeout: deliveryTimeout},
		queue:      make(chan *model.AlertTrigger, qsize),
		maxRetries: retries,
		retryDelay: initialRetryDelay,
		metrics:    cfg.Metrics,
	}
}

// Start launches the delivery worker. The worker drains the queue until
// Close is called, then exits; ctx bounds individual delivery attempts
// while the pipeline is running. Once ctx is cancelled the remaining
// queued triggers are shutdown drain: each gets its own timeout so the
// Close drain actually delivers instead of failing on the dead context.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for trigger := range d.queue {
			if d.metrics != nil {
				d.metrics.DeliveryQueueDepth.Set(float64(len(d.queue)))
			}
			if ctx.Err() != nil {
				dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
				d.deliver(dctx, trigger)
				cancel()
				continue
			}
			d.deliver(ctx, trigger)
		}
	}()
}

// Enqueue hands a trigger to the delivery worker. Never blocks; returns
// false when the queue is full and the trigger was dropped.
func (d *Dispatcher) Enqueue(trigger *model.AlertTrigger) bool {
	select {
	case d.queue <- trigger:
		if d.metrics != nil {
			d.metrics.DeliveryQueueDepth.Set(float64(len(d.queue)))
		}
		return true
	default:
		if d.metrics != nil {
			d.metrics.DeliveryDropped.Inc()
		}
		log.Printf("[dispatcher] queue full, dropped trigger %s (rule %s)", trigger.RequestID, trigger.RuleID)
		return false
	}
}

// Close stops accepting triggers and waits for the worker to drain the
// queue and exit.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.queue) })
	d.wg.Wait()
}

// deliver POSTs the trigger, retrying with doubling backoff. Gives up after
// maxRetries+1 attempts; the failure is logged and counted, the trigger
// survives in the log.
func (d *Dispatcher) deliver(ctx context.Context, trigger *model.AlertTrigger) {
	delay := d.retryDelay
	var lastErr error

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				log.Printf("[dispatcher] shutdown during retry of %s", trigger.RequestID)
				return
			}
			delay *= 2
		}

		if d.metrics != nil {
			d.metrics.DeliveryAttempts.Inc()
		}
		start := time.Now()
		lastErr = d.post(ctx, trigger)
		if lastErr == nil {
			if d.metrics != nil {
				d.metrics.DeliveryDur.Observe(time.Since(start).Seconds())
			}
			log.Printf("[dispatcher] delivered %s (rule %s, attempt %d)", trigger.RequestID, trigger.RuleID, attempt+1)
			return
		}
		log.Printf("[dispatcher] delivery attempt %d for %s failed: %v", attempt+1, trigger.RequestID, lastErr)
	}

	if d.metrics != nil {
		d.metrics.DeliveryFailures.Inc()
	}
	log.Printf("[dispatcher] giving up on %s after %d attempts: %v", trigger.RequestID, d.maxRetries+1, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, trigger *model.AlertTrigger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(trigger.JSON()))
	if err != nil {
		return fmt.Errorf("dispatcher: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", trigger.RequestID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatcher: send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatcher: unexpected status %d", resp.StatusCode)
	}
	return nil
}
