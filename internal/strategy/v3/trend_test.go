package v3

import (
	"strings"
	"testing"

	"smartflow/internal/strategy"
)

func TestClassifyTrendInsufficientData(t *testing.T) {
	res := ClassifyTrend("BTCUSDT", trendSeries(150, true))
	if res.Direction != DirectionRange || res.MarketType != MarketRange {
		t.Fatalf("expected range, got %s/%s", res.Direction, res.MarketType)
	}
	if res.ErrorKind != strategy.KindInsufficientData || !strings.Contains(res.Error, "insufficient data") {
		t.Fatalf("unexpected error: %q (%s)", res.Error, res.ErrorKind)
	}
	if res.MA20 != 0 || res.ADX14 != 0 {
		t.Fatalf("error result must carry zero defaults: %+v", res)
	}
}

func TestClassifyTrendMinimumBars(t *testing.T) {
	res := ClassifyTrend("BTCUSDT", trendSeries(200, true))
	if res.Direction != DirectionRange || res.ErrorKind != strategy.KindInsufficientData {
		t.Fatalf("200 bars cannot confirm on the previous bar's MA200: %+v", res)
	}
	res = ClassifyTrend("BTCUSDT", trendSeries(201, true))
	if res.Error != "" || res.Direction != DirectionBull || !res.TrendConfirmed {
		t.Fatalf("201 bars should classify: %+v", res)
	}
}

func TestClassifyTrendBull(t *testing.T) {
	res := ClassifyTrend("BTCUSDT", trendSeries(250, true))
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Direction != DirectionBull || res.MarketType != MarketTrending {
		t.Fatalf("expected bull/trending, got %+v", res)
	}
	if !res.TrendConfirmed || !res.BBWExpanding || res.ADX14 <= 20 || res.DIPlus <= res.DIMinus {
		t.Fatalf("strength fields inconsistent: %+v", res)
	}
	if !(res.MA20 > res.MA50 && res.MA50 > res.MA200 && res.Close > res.MA20) {
		t.Fatalf("ma ordering not reported: %+v", res)
	}
}

func TestClassifyTrendBear(t *testing.T) {
	res := ClassifyTrend("ETHUSDT", trendSeries(250, false))
	if res.Direction != DirectionBear || res.MarketType != MarketTrending {
		t.Fatalf("expected bear/trending, got %+v", res)
	}
}

func TestClassifyTrendFlatIsRange(t *testing.T) {
	res := ClassifyTrend("BTCUSDT", flatSeries(250, 4*hourMs))
	if res.Direction != DirectionRange || res.Error != "" {
		t.Fatalf("flat market should be range without error: %+v", res)
	}
	if res.ADX14 != 0 || res.BBWExpanding {
		t.Fatalf("flat market indicators: %+v", res)
	}
}

func TestClassifyTrendNeedsTwoBarConfirmation(t *testing.T) {
	cs := trendSeries(250, true)
	// previous bar dips under its MA20
	cs[len(cs)-2].Close = 120
	res := ClassifyTrend("BTCUSDT", cs)
	if res.TrendConfirmed || res.Direction != DirectionRange {
		t.Fatalf("single-bar ordering must not confirm trend: %+v", res)
	}
}
