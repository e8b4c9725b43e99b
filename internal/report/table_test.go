package report

import (
	"strings"
	"testing"

	"smartflow/internal/decision"
	"smartflow/internal/strategy/ict"
	v3 "smartflow/internal/strategy/v3"
)

func TestTrimTo(t *testing.T) {
	if got := TrimTo("abc", 5); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := TrimTo("日线趋势不足", 2); got != "日线..." {
		t.Fatalf("rune-aware trim failed: %q", got)
	}
	if got := TrimTo("a\nb", 0); got != "a b" {
		t.Fatalf("newlines should be flattened: %q", got)
	}
}

func TestV3Table(t *testing.T) {
	out := V3Table([]v3.Analysis{
		{
			Symbol:  "BTCUSDT",
			Trend:   v3.TrendAssessment{Direction: v3.DirectionBull, MarketType: v3.MarketTrending, ADX14: 31.24},
			Scoring: &v3.ScoringResult{TotalScore: 4, MaxScore: 5, AllowEntry: true},
		},
		{
			Symbol: "ETHUSDT",
			Trend:  v3.TrendAssessment{Direction: v3.DirectionRange, MarketType: v3.MarketRange, Error: "upstream failure"},
		},
	})
	for _, want := range []string{"BTCUSDT", "4.00/5", "yes", "31.2", "ETHUSDT", "upstream failure"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestICTTable(t *testing.T) {
	out := ICTTable([]ict.Signal{{
		Symbol:    "SOLUSDT",
		Type:      ict.SignalLong,
		Strength:  ict.StrengthStrong,
		Execution: "LONG_OB_ENGULFING",
		Daily:     ict.DailyTrend{Trend: ict.TrendUp},
		Risk:      &decision.RiskParameters{Entry: 100, StopLoss: 97.324, TakeProfit: 109.628},
		Leverage:  &decision.LeverageData{MaxLeverage: 28},
	}})
	for _, want := range []string{"SOLUSDT", "LONG_OB_ENGULFING", "97.3240", "109.6280", "28x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestPrettyJSON(t *testing.T) {
	if got := PrettyJSON(map[string]int{"a": 1}); got != "{\n  \"a\": 1\n}" {
		t.Fatalf("got %q", got)
	}
}
