package ict

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"smartflow/internal/decision"
	"smartflow/internal/metrics"
	"smartflow/internal/store"
	"smartflow/internal/strategy"
)

func newTestEngine(t *testing.T, klines *store.MemoryKlineStore) (*Engine, *strategy.MemorySink) {
	t.Helper()
	sink := &strategy.MemorySink{}
	e, err := NewEngine(Deps{
		Klines:  klines,
		Risk:    decision.RiskConfig{},
		Sink:    sink,
		Metrics: metrics.New(),
		Clock:   func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, sink
}

func TestNewEngineRequiresKlines(t *testing.T) {
	if _, err := NewEngine(Deps{}); err == nil {
		t.Fatalf("expected error without kline source")
	}
}

func TestEngineAnalyzeLong(t *testing.T) {
	ctx := context.Background()
	klines := store.NewMemoryKlineStore()
	_ = klines.Set(ctx, "BTCUSDT", "1d", zigzagDaily(50, true))
	_ = klines.Set(ctx, "BTCUSDT", "4h", boxed4H(250))
	_ = klines.Set(ctx, "BTCUSDT", "15m", entry15m())

	e, sink := newTestEngine(t, klines)
	sig := e.Analyze(ctx, " btcusdt ")
	if sig.Symbol != "BTCUSDT" || sig.Type != SignalLong || sig.Mode != ModeOBEngulfing {
		t.Fatalf("unexpected signal: %+v", sig)
	}
	recs := sink.Records()
	if len(recs) != 1 || recs[0].Stage != strategy.StageSignal || recs[0].Summary != "long" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	var payload Signal
	if err := json.Unmarshal(recs[0].Payload, &payload); err != nil {
		t.Fatalf("payload should be a signal: %v", err)
	}
	if payload.Execution != "LONG_OB_ENGULFING" {
		t.Fatalf("payload execution = %s", payload.Execution)
	}
}

func TestEngineAnalyzeFlatMarket(t *testing.T) {
	ctx := context.Background()
	klines := store.NewMemoryKlineStore()
	_ = klines.Set(ctx, "ETHUSDT", "1d", flatCandles(50, dayMs))

	e, sink := newTestEngine(t, klines)
	sig := e.Analyze(ctx, "ETHUSDT")
	if sig.Type != SignalNone || sig.Error != "" {
		t.Fatalf("flat market should be NONE without error: %+v", sig)
	}
	if recs := sink.Records(); len(recs) != 1 || recs[0].Summary != "none" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestEngineAnalyzeUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	klines := store.NewMemoryKlineStore()
	_ = klines.Set(ctx, "SOLUSDT", "1d", zigzagDaily(50, false))
	_ = klines.Set(ctx, "SOLUSDT", "15m", entry15m())

	e, sink := newTestEngine(t, klines)
	sig := e.Analyze(ctx, "SOLUSDT")
	if sig.Type != SignalNone || sig.ErrorKind != strategy.KindUpstreamFailure {
		t.Fatalf("missing 4h data should degrade to NONE: %+v", sig)
	}
	if sig.Daily.Trend != TrendDown {
		t.Fatalf("daily trend should be preserved, got %s", sig.Daily.Trend)
	}
	recs := sink.Records()
	if len(recs) != 1 || recs[0].ErrorKind != strategy.KindUpstreamFailure || recs[0].Summary != "error" {
		t.Fatalf("unexpected records: %+v", recs)
	}

	if sig := e.Analyze(ctx, "XRPUSDT"); sig.ErrorKind != strategy.KindUpstreamFailure {
		t.Fatalf("missing daily data should be an upstream failure: %+v", sig)
	}
}

func TestEngineExitPublishes(t *testing.T) {
	e, sink := newTestEngine(t, store.NewMemoryKlineStore())
	in := longPosition()
	in.CurrentPrice = 94
	d := e.Exit(context.Background(), "btcusdt", in)
	if d.Reason != ExitStopLoss {
		t.Fatalf("unexpected decision: %+v", d)
	}
	recs := sink.Records()
	if len(recs) != 1 || recs[0].Stage != strategy.StageExit || recs[0].Summary != string(ExitStopLoss) || recs[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}
