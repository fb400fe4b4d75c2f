package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayneWudh/aiagent/internal/condition"
	"github.com/wayneWudh/aiagent/internal/model"
	"github.com/wayneWudh/aiagent/internal/signal"
)

const defaultQueryLimit = 10

// lookupStream resolves a series or returns the same errors Submit uses,
// so queries against unmonitored series fail consistently with ingestion.
func (svc *Service) lookupStream(symbol, timeframe string) (*stream, error) {
	symbol = strings.ToUpper(symbol)
	st, ok := svc.streams[symbol+":"+timeframe]
	if ok {
		return st, nil
	}
	if !svc.symbols[symbol] {
		return nil, &model.ValidationError{
			Code:    model.CodeUnsupportedSymbol,
			Message: fmt.Sprintf("symbol %q is not monitored", symbol),
		}
	}
	return nil, &model.ValidationError{
		Code:    model.CodeUnsupportedTimeframe,
		Message: fmt.Sprintf("timeframe %q is not monitored for %s", timeframe, symbol),
	}
}

// QueryRecords returns up to limit in-memory records for one series that
// satisfy cond, newest first. A nil cond matches everything. The condition
// is validated before any record is touched.
func (svc *Service) QueryRecords(symbol, timeframe string, cond *condition.Condition, limit int) ([]model.Record, error) {
	st, err := svc.lookupStream(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	now := time.Now().UTC()
	var out []model.Record
	for _, rec := range st.recent(st.history.Len()) {
		if cond != nil && !cond.Evaluate(&rec, now) {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SignalHit is one record that carried at least one of the queried signals.
type SignalHit struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Close     float64   `json:"close"`
	Signals   []string  `json:"signals"` // intersection with the queried tags
}

// QuerySignals returns up to limit recent records for one series where any
// of the given signal tags fired, newest first. Empty tags means any signal.
func (svc *Service) QuerySignals(symbol, timeframe string, tags []string, limit int) ([]SignalHit, error) {
	st, err := svc.lookupStream(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if !signal.Known(tag) {
			return nil, &model.ValidationError{
				Code:    model.CodeInvalidCondition,
				Message: fmt.Sprintf("unknown signal type %q", tag),
			}
		}
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var out []SignalHit
	for _, rec := range st.recent(st.history.Len()) {
		matched := matchSignals(rec.Signals, tags)
		if len(matched) == 0 {
			continue
		}
		out = append(out, SignalHit{
			Symbol:    rec.Symbol,
			Timeframe: rec.Timeframe,
			OpenTime:  rec.OpenTime,
			Close:     rec.Close,
			Signals:   matched,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchSignals(have model.SignalSet, want []string) []string {
	if len(want) == 0 {
		return have
	}
	var out []string
	for _, tag := range want {
		if have.Contains(tag) {
			out = append(out, tag)
		}
	}
	return out
}
