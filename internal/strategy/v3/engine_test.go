package v3

import (
	"context"
	"testing"
	"time"

	"smartflow/internal/market"
	"smartflow/internal/metrics"
	"smartflow/internal/store"
	"smartflow/internal/strategy"
)

type staticDelta map[string]float64

func (d staticDelta) DeltaData(symbol, timeframe string) (market.DeltaSnapshot, bool) {
	v, ok := d[symbol+"@"+timeframe]
	return market.DeltaSnapshot{Delta: v}, ok
}

func newTestEngine(t *testing.T, klines *store.MemoryKlineStore, deriv *store.MemoryDerivatives, delta market.DeltaProvider, fallback *market.DeltaAccumulator) (*Engine, *strategy.MemorySink) {
	t.Helper()
	sink := &strategy.MemorySink{}
	e, err := NewEngine(Deps{
		Klines:      klines,
		Derivatives: deriv,
		Delta:       delta,
		Fallback:    fallback,
		Sink:        sink,
		Metrics:     metrics.New(),
		Clock:       func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, sink
}

func TestNewEngineRequiresSources(t *testing.T) {
	if _, err := NewEngine(Deps{}); err == nil {
		t.Fatalf("expected error without sources")
	}
}

func TestAnalyzeTrendingRunsHourlyScoring(t *testing.T) {
	ctx := context.Background()
	klines := store.NewMemoryKlineStore()
	_ = klines.Set(ctx, "BTCUSDT", "4h", trendSeries(250, true))
	_ = klines.Set(ctx, "BTCUSDT", "1h", hourlyBreakout(30, 20))
	_ = klines.Set(ctx, "BTCUSDT", "15m", hourlyBreakout(30, 16))
	deriv := store.NewMemoryDerivatives()
	deriv.SetFunding("BTCUSDT", 0.0001)
	deriv.SetOpenInterest("BTCUSDT", []market.OpenInterestPoint{{SumOpenInterest: 100}, {SumOpenInterest: 103}})
	deriv.SetTicker(market.Ticker{Symbol: "BTCUSDT", LastPrice: 105.2})

	e, sink := newTestEngine(t, klines, deriv, staticDelta{"BTCUSDT@1h": 0.2}, nil)
	res := e.Analyze(ctx, "btcusdt")
	if res.Trend.Direction != DirectionBull || res.Scoring == nil || res.Range != nil {
		t.Fatalf("expected bull trend with scoring: %+v", res)
	}
	s := res.Scoring
	// volume 1 + oi 1 + delta 1 + funding 1, no breakout against the 4h series
	if s.TotalScore != 4 || !s.AllowEntry || s.CurrentPrice != 105.2 {
		t.Fatalf("unexpected scoring: %+v", s)
	}
	if got := s.Factors[3].RawValue; got != 0.2 {
		t.Fatalf("delta provider should take precedence, got %v", got)
	}
	recs := sink.Records()
	if len(recs) != 2 || recs[0].Stage != strategy.StageTrend4H || recs[1].Stage != strategy.StageScore1H {
		t.Fatalf("unexpected sink records: %+v", recs)
	}
}

func TestAnalyzeRangeUsesFallbackDelta(t *testing.T) {
	ctx := context.Background()
	klines := store.NewMemoryKlineStore()
	_ = klines.Set(ctx, "SOLUSDT", "4h", flatSeries(250, 4*hourMs))
	_ = klines.Set(ctx, "SOLUSDT", "1h", rangeSeries(30))
	deriv := store.NewMemoryDerivatives()
	acc := market.NewDeltaAccumulator()
	acc.Set("SOLUSDT", market.DeltaTotals{Buy: 60, Sell: 40})

	e, _ := newTestEngine(t, klines, deriv, nil, acc)
	res := e.Analyze(ctx, "SOLUSDT")
	if res.Range == nil || res.Scoring != nil {
		t.Fatalf("range market should run boundary scoring: %+v", res)
	}
	if res.Range.Category != CategoryMidCap {
		t.Fatalf("unexpected category %s", res.Range.Category)
	}
	// delta 0.2 fails the delta criterion, OI history missing degrades to 0
	if res.Range.Range.Delta != 0.2 || res.Range.Range.OIChange != 0 || res.Range.TotalScore != 6 {
		t.Fatalf("unexpected range result: %+v %+v", res.Range, res.Range.Range)
	}
}

func TestAnalyzeUpstreamFailureFailsClosed(t *testing.T) {
	e, sink := newTestEngine(t, store.NewMemoryKlineStore(), store.NewMemoryDerivatives(), nil, nil)
	res := e.Analyze(context.Background(), "XRPUSDT")
	if res.Trend.Direction != DirectionRange || res.Trend.ErrorKind != strategy.KindUpstreamFailure {
		t.Fatalf("expected upstream failure range: %+v", res.Trend)
	}
	if res.Range == nil || res.Range.ErrorKind != strategy.KindUpstreamFailure || res.Range.TotalScore != 0 {
		t.Fatalf("range scoring should fail closed: %+v", res.Range)
	}
	for _, rec := range sink.Records() {
		if rec.ErrorKind != strategy.KindUpstreamFailure || rec.Error == "" {
			t.Fatalf("record should carry upstream failure: %+v", rec)
		}
	}
}
