package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindNone {
		t.Fatalf("nil error should have no kind")
	}
	wrapped := fmt.Errorf("outer: %w", Insufficient("trend", 10, 200))
	if KindOf(wrapped) != KindInsufficientData {
		t.Fatalf("expected insufficient data kind")
	}
	if KindOf(errors.New("boom")) != KindUpstreamFailure {
		t.Fatalf("plain errors count as upstream failures")
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, Record) error {
	f.calls++
	return errors.New("down")
}

func TestMultiSinkContinuesAfterFailure(t *testing.T) {
	bad := &failingSink{}
	mem := &MemorySink{}
	rec := NewRecord(StrategyV3, StageTrend4H, "BTCUSDT", "range", map[string]int{"a": 1}, time.Unix(0, 0)).
		WithError(KindCalculation, "nan")
	if err := (MultiSink{bad, nil, mem}).Publish(context.Background(), rec); err != nil {
		t.Fatalf("multi sink should swallow errors: %v", err)
	}
	got := mem.Records()
	if bad.calls != 1 || len(got) != 1 {
		t.Fatalf("unexpected fan-out: bad=%d mem=%d", bad.calls, len(got))
	}
	if got[0].ErrorKind != KindCalculation || got[0].ID == "" || string(got[0].Payload) != `{"a":1}` {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}
