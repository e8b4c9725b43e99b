package v3

import (
	"math"
	"testing"

	"smartflow/internal/strategy"
)

func TestScoreFactorThresholds(t *testing.T) {
	cases := []struct {
		f    Factor
		v    float64
		want float64
	}{
		{FactorBreakout, 1, 1},
		{FactorBreakout, 0, 0},
		{FactorVolume, 1.5, 1},
		{FactorVolume, 1.2, 0.5},
		{FactorVolume, 1.19, 0},
		{FactorOI, -0.02, 1},
		{FactorOI, 0.019, 0},
		{FactorDelta, -0.1, 1},
		{FactorDelta, 0.05, 0.5},
		{FactorDelta, 0.049, 0},
		{FactorFunding, -0.0005, 1},
		{FactorFunding, 0.001, 0.5},
		{FactorFunding, 0.0011, 0},
	}
	for _, tc := range cases {
		if got := ScoreFactor(tc.f, tc.v); got != tc.want {
			t.Errorf("ScoreFactor(%s, %v) = %v, want %v", tc.f, tc.v, got, tc.want)
		}
	}
}

func TestDefaultWeightsCategories(t *testing.T) {
	w := DefaultWeights()
	if w.Category("btcusdt") != CategoryLargeCap || w.Category("SOLUSDT") != CategoryMidCap || w.Category("PEPEUSDT") != CategorySmallCap {
		t.Fatalf("unexpected category mapping")
	}
	for _, c := range []Category{CategoryLargeCap, CategoryMidCap, CategorySmallCap} {
		ws := w.Weights(c)
		sum := ws.Breakout + ws.Volume + ws.OI + ws.Delta + ws.Funding
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%s weights sum to %v", c, sum)
		}
	}
	if w.Weights("unknown") != w.Weights(CategoryLargeCap) {
		t.Fatalf("unknown category should fall back to largecap weights")
	}
}

func baseHourly() HourlyInputs {
	return HourlyInputs{
		Candles1H:   hourlyBreakout(30, 20),
		Candles15m:  hourlyBreakout(30, 16),
		Candles4H:   fourHourBox(20, 102, 98),
		FundingRate: 0.0008,
		OIChange:    0.03,
		DeltaRatio:  0.07,
	}
}

func TestScoreHourlyPassesGate(t *testing.T) {
	res := ScoreHourly("BTCUSDT", DirectionBull, baseHourly(), DefaultWeights())
	if res.Error != "" || !res.VWAPConsistent {
		t.Fatalf("unexpected gate result: %+v", res)
	}
	if res.TotalScore != 4 || !res.AllowEntry {
		t.Fatalf("expected score 4 with entry, got %+v", res)
	}
	if res.Category != CategoryLargeCap || math.Abs(res.WeightedScore-0.875) > 0.01 {
		t.Fatalf("unexpected weighting: %+v", res)
	}
	if len(res.Factors) != 5 || res.Factors[0].Name != "breakout" || res.Factors[0].Contribution != 0.30 {
		t.Fatalf("unexpected factor breakdown: %+v", res.Factors)
	}
	if res.TotalScore > res.MaxScore {
		t.Fatalf("score above max")
	}
}

func TestScoreHourlyVWAPGateShortCircuits(t *testing.T) {
	res := ScoreHourly("BTCUSDT", DirectionBear, baseHourly(), DefaultWeights())
	if res.VWAPConsistent || res.TotalScore != 0 || res.AllowEntry || len(res.Factors) != 0 {
		t.Fatalf("bear trend with close above vwap must score 0: %+v", res)
	}
	if res.Error != "" {
		t.Fatalf("gate failure is not an error: %s", res.Error)
	}
}

func TestScoreHourlyRoundsForEntry(t *testing.T) {
	in := baseHourly()
	in.Candles4H = fourHourBox(20, 200, 98) // no breakout
	in.FundingRate = 0.01                   // 0
	res := ScoreHourly("BTCUSDT", DirectionBull, in, DefaultWeights())
	// volume 1 + oi 1 + delta 0.5
	if res.TotalScore != 2.5 {
		t.Fatalf("expected 2.5, got %v", res.TotalScore)
	}
	if !res.AllowEntry {
		t.Fatalf("round(2.5) >= 3 should allow entry")
	}
}

func TestScoreHourlyInsufficient(t *testing.T) {
	in := baseHourly()
	in.Candles1H = in.Candles1H[:19]
	res := ScoreHourly("BTCUSDT", DirectionBull, in, nil)
	if res.ErrorKind != strategy.KindInsufficientData || res.TotalScore != 0 || res.AllowEntry {
		t.Fatalf("expected insufficient data default: %+v", res)
	}
}

func TestScoreHourlyNonFiniteFactor(t *testing.T) {
	in := baseHourly()
	in.FundingRate = math.NaN()
	res := ScoreHourly("BTCUSDT", DirectionBull, in, nil)
	if res.ErrorKind != strategy.KindCalculation || res.TotalScore != 0 || res.Factors != nil {
		t.Fatalf("expected calculation error default: %+v", res)
	}
}

func TestScoreRangeValidBoundaries(t *testing.T) {
	res := ScoreRange("BTCUSDT", CategoryLargeCap, RangeInputs{Candles1H: rangeSeries(30)})
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.TotalScore != 7 || !res.Range.LowerValid || !res.Range.UpperValid || !res.AllowEntry {
		t.Fatalf("expected max score and valid boundaries: %+v %+v", res, res.Range)
	}
	if res.Range.TouchesLower == 0 || res.Range.TouchesUpper == 0 || res.Range.LastBreakout {
		t.Fatalf("unexpected range detail: %+v", res.Range)
	}
}

func TestScoreRangeBreakoutInvalidates(t *testing.T) {
	cs := rangeSeries(30)
	cs[len(cs)-1].Close = 110
	cs[len(cs)-1].High = 110.3
	cs[len(cs)-1].Low = 109.7
	cs[len(cs)-1].Volume = 50
	res := ScoreRange("BTCUSDT", CategoryLargeCap, RangeInputs{Candles1H: cs, DeltaRatio: -0.5, OIChange: 0.05})
	if res.TotalScore >= 3 || res.Range.LowerValid || res.Range.UpperValid {
		t.Fatalf("breakout bar should invalidate boundaries: %+v %+v", res, res.Range)
	}
	if !res.Range.LastBreakout || res.Range.Delta != 0.5 {
		t.Fatalf("unexpected detail: %+v", res.Range)
	}
}

func TestScoreRangeInsufficient(t *testing.T) {
	res := ScoreRange("BTCUSDT", CategoryLargeCap, RangeInputs{Candles1H: rangeSeries(24)})
	if res.ErrorKind != strategy.KindInsufficientData || res.AllowEntry || res.Range != nil {
		t.Fatalf("expected insufficient data: %+v", res)
	}
}
