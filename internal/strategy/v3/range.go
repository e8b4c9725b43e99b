package v3

import (
	"errors"
	"math"

	"smartflow/internal/analysis/indicator"
	"smartflow/internal/market"
	"smartflow/internal/strategy"
)

const (
	rangeMinCandles    = 25
	touchLookback      = 6
	touchTolerance     = 0.015
	rangeVolumeMax     = 1.7
	rangeDeltaMax      = 0.02
	rangeOIMax         = 0.02
	rangeVWAPMax       = 0.01
	boundaryThreshold  = 3.0
	maxTouchContribute = 2
)

// RangeInputs 边界判断所需的已拉取数据。
type RangeInputs struct {
	Candles1H  []market.Candle
	OIChange   float64
	DeltaRatio float64
}

// ScoreRange 震荡市 1H 边界打分，满分 7；上下边界共用同一得分与阈值 3。
func ScoreRange(symbol string, category Category, in RangeInputs) ScoringResult {
	out := ScoringResult{Symbol: symbol, Direction: DirectionRange, MaxScore: maxRangeScore, Category: category}
	if len(in.Candles1H) < rangeMinCandles {
		err := strategy.Insufficient("range_1h", len(in.Candles1H), rangeMinCandles)
		out.Error, out.ErrorKind = err.Error(), err.Kind
		return out
	}
	candles := in.Candles1H
	n := len(candles) - 1
	last := candles[n]
	bands := indicator.BollingerBands(candles, bbPeriod, bbK)
	bb := bands[n]
	vwap, vwapOK := indicator.VWAP(market.Tail(candles, vwapWindow))

	rb := &RangeBoundary{Upper: bb.Upper, Middle: bb.Middle, Lower: bb.Lower}
	for _, c := range market.Tail(candles, touchLookback) {
		if bb.Lower > 0 && math.Abs(c.Close-bb.Lower) <= bb.Lower*touchTolerance {
			rb.TouchesLower++
		}
		if bb.Upper > 0 && math.Abs(c.Close-bb.Upper) <= bb.Upper*touchTolerance {
			rb.TouchesUpper++
		}
	}
	if r, ok := volumeRatio(candles); ok {
		rb.VolFactor = r
	}
	rb.Delta = math.Abs(in.DeltaRatio)
	rb.OIChange = in.OIChange
	prior := candles[len(candles)-1-breakoutWindow : n]
	high, low := indicator.HighLow(prior)
	rb.LastBreakout = last.Close > high || last.Close < low
	if vwapOK && vwap != 0 {
		rb.VWAPDistance = math.Abs(last.Close-vwap) / vwap
	}

	if !strategy.Finite(bb.Upper, bb.Lower, rb.VolFactor, rb.Delta, rb.OIChange, rb.VWAPDistance) {
		err := strategy.Calculation("range_1h", errors.New("non-finite factor value"))
		return ScoringResult{Symbol: symbol, Direction: DirectionRange, MaxScore: maxRangeScore, Category: category, Error: err.Error(), ErrorKind: err.Kind}
	}

	point := func(ok bool) float64 {
		if ok {
			return 1
		}
		return 0
	}
	touches := float64(rb.TouchesLower + rb.TouchesUpper)
	if touches > maxTouchContribute {
		touches = maxTouchContribute
	}
	factors := []FactorScore{
		{Name: "touch", RawValue: float64(rb.TouchesLower + rb.TouchesUpper), Score: touches},
		{Name: "volume", RawValue: rb.VolFactor, Score: point(rb.VolFactor <= rangeVolumeMax)},
		{Name: "delta", RawValue: rb.Delta, Score: point(rb.Delta <= rangeDeltaMax)},
		{Name: "oi", RawValue: rb.OIChange, Score: point(math.Abs(rb.OIChange) <= rangeOIMax)},
		{Name: "no_breakout", RawValue: point(rb.LastBreakout), Score: point(!rb.LastBreakout)},
		{Name: "vwap", RawValue: rb.VWAPDistance, Score: point(vwapOK && rb.VWAPDistance <= rangeVWAPMax)},
	}
	total := 0.0
	for i := range factors {
		factors[i].Contribution = factors[i].Score
		total += factors[i].Score
	}
	rb.LowerValid = total >= boundaryThreshold
	rb.UpperValid = total >= boundaryThreshold

	out.LastClose = last.Close
	out.CurrentPrice = last.Close
	out.VWAP = vwap
	out.VWAPConsistent = vwapOK
	out.TotalScore = total
	out.AllowEntry = rb.LowerValid && rb.UpperValid
	out.Factors = factors
	out.Range = rb
	return out
}
