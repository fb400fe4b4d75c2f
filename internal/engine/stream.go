package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/wayneWudh/aiagent/internal/indicator"
	"github.com/wayneWudh/aiagent/internal/model"
	"github.com/wayneWudh/aiagent/internal/ringbuf"
	"github.com/wayneWudh/aiagent/internal/signal"
)

// stream owns one (symbol, timeframe) series: its indicator state, its
// record history window and its ordering head. A mutex serializes candle
// processing per series; different series never contend.
type stream struct {
	mu        sync.Mutex
	symbol    string
	timeframe string
	series    *indicator.Series
	history   *ringbuf.Ring
	head      time.Time // open time of the newest accepted candle
}

func newStream(symbol, timeframe string, window int) *stream {
	return &stream{
		symbol:    symbol,
		timeframe: timeframe,
		series:    indicator.NewSeries(),
		history:   ringbuf.New(window),
	}
}

// process runs one candle through the indicator and signal stages.
// Returns (nil, true, nil) for a duplicate of the head candle and an
// OUT_OF_ORDER_CANDLE error for anything older; both leave state untouched.
func (st *stream) process(c model.Candle) (*model.Record, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.head.IsZero() {
		if c.OpenTime.Equal(st.head) {
			return nil, true, nil
		}
		if c.OpenTime.Before(st.head) {
			return nil, false, &model.ValidationError{
				Code: model.CodeOutOfOrderCandle,
				Message: fmt.Sprintf("candle %s is behind series head %s",
					c.OpenTime.Format(time.RFC3339), st.head.Format(time.RFC3339)),
			}
		}
	}

	rec := model.Record{
		Candle:     c,
		Indicators: st.series.Update(c),
	}
	rec.Signals = signal.Detect(st.history, rec)

	st.history.Push(rec)
	st.head = c.OpenTime
	return &rec, false, nil
}

// replay rebuilds indicator state and the history window from persisted
// candles at startup. Signals are recomputed, not loaded: detection is
// deterministic, so the rebuilt window matches what was stored.
func (st *stream) replay(candles []model.Candle) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, c := range candles {
		if !st.head.IsZero() && !c.OpenTime.After(st.head) {
			continue
		}
		rec := model.Record{
			Candle:     c,
			Indicators: st.series.Update(c),
		}
		rec.Signals = signal.Detect(st.history, rec)
		st.history.Push(rec)
		st.head = c.OpenTime
	}
}

// recent returns up to n records newest-first.
func (st *stream) recent(n int) []model.Record {
	return st.history.Recent(n)
}
