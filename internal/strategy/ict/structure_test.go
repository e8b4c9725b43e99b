package ict

import (
	"math"
	"testing"
	"time"

	"smartflow/internal/market"
)

func TestDetectOBFilters(t *testing.T) {
	candles := boxed4H(30)
	ob := DetectOB(candles, 2, testNow, 30)
	if ob == nil {
		t.Fatalf("expected order block")
	}
	if ob.Height != 2 || ob.High != 101 || ob.Low != 99 || ob.AgeDays != 0.33 {
		t.Fatalf("unexpected order block: %+v", ob)
	}
	if ob.Time != candles[len(candles)-2].OpenTime {
		t.Fatalf("order block should come from the second-to-last bar")
	}

	// height == 0.25×ATR is kept, anything larger ATR rejects
	if DetectOB(candles, 8, testNow, 30) == nil {
		t.Fatalf("height equal to 0.25×ATR should pass")
	}
	if DetectOB(candles, 9, testNow, 30) != nil {
		t.Fatalf("height below 0.25×ATR should be rejected")
	}
	if DetectOB(candles, 2, testNow.Add(31*24*time.Hour), 30) != nil {
		t.Fatalf("order block older than 30 days should be rejected")
	}
	if DetectOB(flatCandles(30, h4Ms), 0, testNow, 30) != nil {
		t.Fatalf("flat market should not produce an order block")
	}
	if DetectOB(candles[:1], 2, testNow, 30) != nil {
		t.Fatalf("single bar cannot produce an order block")
	}
}

func TestDetectFVG(t *testing.T) {
	ts := testNow.UnixMilli()
	bullish := []market.Candle{
		{OpenTime: ts - 3*h4Ms, High: 100, Low: 98, Close: 99},
		{OpenTime: ts - 2*h4Ms, High: 103, Low: 101, Close: 102},
		{OpenTime: ts - h4Ms, High: 104, Low: 102, Close: 103},
	}
	g := DetectFVG(bullish, testNow)
	if g == nil || g.Type != GapBullish || g.Low != 100 || g.High != 101 || g.Height != 1 {
		t.Fatalf("unexpected bullish gap: %+v", g)
	}
	if g.Time != bullish[1].OpenTime || g.AgeDays != 0.33 {
		t.Fatalf("gap time/age wrong: %+v", g)
	}

	bearish := []market.Candle{
		{OpenTime: ts - 3*h4Ms, High: 102, Low: 100, Close: 101},
		{OpenTime: ts - 2*h4Ms, High: 99, Low: 97, Close: 98},
		{OpenTime: ts - h4Ms, High: 98, Low: 96, Close: 97},
	}
	g = DetectFVG(bearish, testNow)
	if g == nil || g.Type != GapBearish || g.Low != 99 || g.High != 100 {
		t.Fatalf("unexpected bearish gap: %+v", g)
	}

	if g := DetectFVG(boxed4H(10), testNow); g != nil {
		t.Fatalf("overlapping bars should not produce a gap: %+v", g)
	}
	if g := DetectFVG(bullish[:2], testNow); g != nil {
		t.Fatalf("two bars cannot produce a gap")
	}
}

func TestDetectSweepHTFBoundary(t *testing.T) {
	normal := market.Candle{Open: 99, High: 100, Low: 98, Close: 99}
	spike := market.Candle{Open: 99, High: 102, Low: 98, Close: 101}
	candles := sweepSeries(normal, spike, normal)

	ev := DetectSweepHTF(candles, 2.5)
	if !ev.Detected || !ev.Valid {
		t.Fatalf("speed == 0.4×ATR with 2 bars should be valid: %+v", ev)
	}
	if ev.Extreme != 100 || ev.Exceed != 2 || ev.BarsToReturn != 2 || ev.Speed != 1 {
		t.Fatalf("unexpected sweep: %+v", ev)
	}

	if ev := DetectSweepHTF(candles, 2.6); !ev.Detected || ev.Valid {
		t.Fatalf("speed below threshold should be detected but invalid: %+v", ev)
	}

	held := market.Candle{Open: 101, High: 101, Low: 100.5, Close: 101}
	if ev := DetectSweepHTF(sweepSeries(normal, spike, held), 1); ev.Detected || ev.Valid {
		t.Fatalf("no close back below the extreme should not count: %+v", ev)
	}
	if ev := DetectSweepHTF(sweepSeries(normal, normal, spike), 1); ev.Detected {
		t.Fatalf("exceed on the last bar has no bar left to return: %+v", ev)
	}
	if ev := DetectSweepHTF(candles[1:], 1); ev.Detected || ev.BarsToReturn != 0 {
		t.Fatalf("fewer than 20 bars should not detect: %+v", ev)
	}
}

func TestDetectSweepLTFBoundary(t *testing.T) {
	normal := market.Candle{Open: 99, High: 100, Low: 98, Close: 99}
	spike := market.Candle{Open: 99, High: 100.75, Low: 98, Close: 100.5}
	candles := sweepSeries(normal, normal, spike, normal, normal)

	ev := DetectSweepLTF(candles, 1.25)
	if !ev.Valid || ev.BarsToReturn != 3 || ev.Speed != 0.25 {
		t.Fatalf("speed == 0.2×ATR with 3 bars should be valid: %+v", ev)
	}
	if ev := DetectSweepLTF(candles, 1.3); ev.Valid {
		t.Fatalf("speed below threshold should be invalid: %+v", ev)
	}
	late := sweepSeries(normal, normal, normal, spike, normal)
	if ev := DetectSweepLTF(late, 0.1); !ev.Detected || ev.Valid || ev.BarsToReturn != 4 {
		t.Fatalf("4 bars to return exceeds the limit: %+v", ev)
	}
}

func TestAnalyzeStructureFlat(t *testing.T) {
	st := AnalyzeStructure(flatCandles(250, h4Ms), testNow)
	if st.OB != nil || st.FVG != nil || st.SweepHTF.Valid {
		t.Fatalf("flat market should have no structure: %+v", st)
	}
	if st.ATR4H != 0 || math.IsNaN(st.ATR4H) {
		t.Fatalf("flat ATR should be 0, got %v", st.ATR4H)
	}
}
