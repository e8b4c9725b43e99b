package v3

import (
	"errors"
	"math"

	"smartflow/internal/analysis/indicator"
	"smartflow/internal/market"
	"smartflow/internal/strategy"
)

const (
	hourlyMinCandles = 20
	vwapWindow       = 20
	volumeWindow     = 20
	breakoutWindow   = 20
	entryScore       = 3
)

// HourlyInputs 1H 打分所需的已拉取数据。Candles4H 为不含当前未收盘 K 线的最近 20 根。
type HourlyInputs struct {
	Candles1H    []market.Candle
	Candles15m   []market.Candle
	Candles4H    []market.Candle
	CurrentPrice float64
	FundingRate  float64
	OIChange     float64
	DeltaRatio   float64
}

// ScoreHourly VWAP 方向为硬门槛，通过后对突破/成交量/OI/Delta/资金费率计分。
func ScoreHourly(symbol string, dir Direction, in HourlyInputs, weights WeightResolver) ScoringResult {
	if weights == nil {
		weights = DefaultWeights()
	}
	category := weights.Category(symbol)
	out := ScoringResult{Symbol: symbol, Direction: dir, MaxScore: maxHourlyScore, Category: category}
	if len(in.Candles1H) < hourlyMinCandles {
		err := strategy.Insufficient("score_1h", len(in.Candles1H), hourlyMinCandles)
		out.Error, out.ErrorKind = err.Error(), err.Kind
		return out
	}
	if dir != DirectionBull && dir != DirectionBear {
		out.Reason = "no 4h trend direction"
		return out
	}
	last := in.Candles1H[len(in.Candles1H)-1]
	out.LastClose = last.Close
	out.CurrentPrice = last.Close
	if in.CurrentPrice > 0 {
		out.CurrentPrice = in.CurrentPrice
	}
	vwap, ok := indicator.VWAP(market.Tail(in.Candles1H, vwapWindow))
	if !ok {
		out.Reason = "vwap unavailable"
		return out
	}
	out.VWAP = vwap
	out.VWAPConsistent = (dir == DirectionBull && last.Close > vwap) || (dir == DirectionBear && last.Close < vwap)
	if !out.VWAPConsistent {
		out.Reason = "vwap direction mismatch"
		return out
	}

	raw := RawFactors{
		Breakout:    breakout(dir, last.Close, in.Candles4H),
		VolumeRatio: volumeFactor(in.Candles1H, in.Candles15m),
		OIChange:    in.OIChange,
		FundingRate: in.FundingRate,
		DeltaRatio:  in.DeltaRatio,
	}
	if !strategy.Finite(raw.VolumeRatio, raw.OIChange, raw.FundingRate, raw.DeltaRatio, vwap) {
		err := strategy.Calculation("score_1h", errors.New("non-finite factor value"))
		return ScoringResult{Symbol: symbol, Direction: dir, MaxScore: maxHourlyScore, Category: category, Error: err.Error(), ErrorKind: err.Kind}
	}
	out.TotalScore, out.WeightedScore, out.Factors = Aggregate(raw, weights.Weights(category))
	out.AllowEntry = math.Round(out.TotalScore) >= entryScore
	return out
}

func breakout(dir Direction, close float64, candles4h []market.Candle) bool {
	window := market.Tail(candles4h, breakoutWindow)
	if len(window) == 0 {
		return false
	}
	high, low := indicator.HighLow(window)
	if dir == DirectionBull {
		return close > high
	}
	return close < low
}

// volumeRatio 最后一根成交量 / 最近 20 根均量。
func volumeRatio(candles []market.Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	avg := indicator.AverageVolume(candles, volumeWindow)
	if avg <= 0 {
		return 0, false
	}
	return candles[len(candles)-1].Volume / avg, true
}

// volumeFactor 取 15m 与 1H 量比中较小者；15m 不可用时只看 1H。
func volumeFactor(h1, m15 []market.Candle) float64 {
	r1, ok1 := volumeRatio(h1)
	r15, ok15 := volumeRatio(m15)
	switch {
	case ok1 && ok15:
		return math.Min(r1, r15)
	case ok1:
		return r1
	case ok15:
		return r15
	}
	return 0
}
