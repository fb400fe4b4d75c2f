package ringbuf

import (
	"testing"

	"github.com/wayneWudh/aiagent/internal/model"
)

func recAt(close float64) model.Record {
	return model.Record{Candle: model.Candle{Symbol: "BTC", Timeframe: "1h", Close: close}}
}

func TestRing_FillAndOrder(t *testing.T) {
	r := New(4)
	for i := 1; i <= 3; i++ {
		r.Push(recAt(float64(i)))
	}
	if r.Len() != 3 {
		t.Fatalf("Len=%d, want 3", r.Len())
	}
	for i := 0; i < 3; i++ {
		if got := r.At(i).Close; got != float64(i+1) {
			t.Errorf("At(%d)=%v, want %v", i, got, i+1)
		}
	}
	last, ok := r.Last()
	if !ok || last.Close != 3 {
		t.Errorf("Last=%v ok=%v, want 3", last.Close, ok)
	}
}

func TestRing_OverwritesOldest(t *testing.T) {
	r := New(3)
	for i := 1; i <= 5; i++ {
		r.Push(recAt(float64(i)))
	}
	if r.Len() != 3 {
		t.Fatalf("Len=%d, want 3", r.Len())
	}
	// Retained window is 3, 4, 5 oldest-first
	want := []float64{3, 4, 5}
	for i, w := range want {
		if got := r.At(i).Close; got != w {
			t.Errorf("At(%d)=%v, want %v", i, got, w)
		}
	}
}

func TestRing_RecentNewestFirst(t *testing.T) {
	r := New(4)
	for i := 1; i <= 6; i++ {
		r.Push(recAt(float64(i)))
	}
	got := r.Recent(3)
	want := []float64{6, 5, 4}
	if len(got) != len(want) {
		t.Fatalf("Recent(3) len=%d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Close != w {
			t.Errorf("Recent[%d]=%v, want %v", i, got[i].Close, w)
		}
	}

	// Asking for more than retained returns everything
	if all := r.Recent(10); len(all) != 4 {
		t.Errorf("Recent(10) len=%d, want 4", len(all))
	}
}

func TestRing_EmptyLast(t *testing.T) {
	r := New(2)
	if _, ok := r.Last(); ok {
		t.Error("Last on empty ring must report false")
	}
}
