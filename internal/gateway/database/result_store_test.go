package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smartflow/internal/strategy"
)

func TestResultStorePublishAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "smartflow.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []strategy.Record{
		strategy.NewRecord(strategy.StrategyV3, strategy.StageTrend4H, "BTCUSDT", "UP", map[string]any{"score": 7}, base),
		strategy.NewRecord(strategy.StrategyICT, strategy.StageSignal, "BTCUSDT", "none", map[string]any{"type": "NONE"}, base.Add(time.Minute)).
			WithError(strategy.KindInsufficientData, "need 20 daily bars"),
		strategy.NewRecord(strategy.StrategyICT, strategy.StageSignal, "ETHUSDT", "long", map[string]any{"type": "LONG"}, base.Add(2*time.Minute)),
	}
	for _, r := range recs {
		if err := s.Publish(ctx, r); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := s.Publish(ctx, recs[0]); err != nil {
		t.Fatalf("duplicate id should be ignored: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen should be idempotent: %v", err)
	}
	defer s.Close()

	all, err := s.Recent(ctx, RecordQuery{})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 || all[0].Symbol != "ETHUSDT" || all[2].Strategy != strategy.StrategyV3 {
		t.Fatalf("unexpected records: %+v", all)
	}

	ict, err := s.Recent(ctx, RecordQuery{Strategy: "ICT", Symbol: "btcusdt"})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ict) != 1 || ict[0].ErrorKind != strategy.KindInsufficientData || ict[0].Error == "" {
		t.Fatalf("unexpected filtered records: %+v", ict)
	}
	if !ict[0].CreatedAt.Equal(base.Add(time.Minute)) || string(ict[0].Payload) != `{"type":"NONE"}` {
		t.Fatalf("record not preserved: %+v", ict[0])
	}
	if all[0].ErrorKind != strategy.KindNone {
		t.Fatalf("error kind should be empty: %q", all[0].ErrorKind)
	}
}

func TestResultStoreMemoryAsSink(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var sink strategy.Sink = s
	strategy.Publish(ctx, sink, strategy.NewRecord(strategy.StrategyV3, strategy.StageScore1H, "SOLUSDT", "4/5", nil, time.Now()))
	got, err := s.Recent(ctx, RecordQuery{Limit: 10})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one record: %v %+v", err, got)
	}
	if string(got[0].Payload) != "null" {
		t.Fatalf("nil payload should be stored as json null, got %s", got[0].Payload)
	}
}

func TestResultStoreRejectsMissingID(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.Publish(context.Background(), strategy.Record{Strategy: "v3"}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
