package ict

import (
	"smartflow/internal/analysis/indicator"
	"smartflow/internal/market"
	"smartflow/internal/strategy"
)

const (
	trendLookback   = 20
	dailyLimit      = 50
	volumeWindow    = 20
	volumeSpikeMult = 1.2
)

// AnalyzeDailyTrend 三项打分：价格结构、MA20/MA50 排列、放量，合计 ≥2 为 up，≤-2 为 down。
// 结构只看最近 20 根收盘；MA 使用全部日线，MA50 不可用时该项记 0。
func AnalyzeDailyTrend(candles []market.Candle) DailyTrend {
	if len(candles) < trendLookback {
		se := strategy.Insufficient("daily_trend", len(candles), trendLookback)
		return DailyTrend{Trend: TrendSideways, Error: se.Error(), ErrorKind: se.Kind}
	}
	out := DailyTrend{LastClose: candles[len(candles)-1].Close}

	closes := market.Closes(market.Tail(candles, trendLookback))
	highs, lows := swingPoints(closes)
	out.HigherHighs = rising(highs)
	out.HigherLows = rising(lows)
	switch {
	case out.HigherHighs && out.HigherLows:
		out.StructureScore = 1
	case !out.HigherHighs && !out.HigherLows:
		out.StructureScore = -1
	}

	out.MA20 = indicator.Last(indicator.MA(candles, 20))
	out.MA50 = indicator.Last(indicator.MA(candles, 50))
	if out.MA20 > 0 && out.MA50 > 0 {
		switch {
		case out.LastClose > out.MA20 && out.MA20 > out.MA50:
			out.MAScore = 1
		case out.LastClose < out.MA20 && out.MA20 < out.MA50:
			out.MAScore = -1
		}
	}

	if len(candles) >= volumeWindow && lastVolume(candles) > volumeSpikeMult*indicator.AverageVolume(candles, volumeWindow) {
		out.VolumeScore = 1
	}

	out.Score = out.StructureScore + out.MAScore + out.VolumeScore
	switch {
	case out.Score >= 2:
		out.Trend = TrendUp
	case out.Score <= -2:
		out.Trend = TrendDown
	default:
		out.Trend = TrendSideways
	}
	if !strategy.Finite(out.MA20, out.MA50, out.LastClose) {
		se := strategy.Calculation("daily_trend", errNonFinite)
		return DailyTrend{Trend: TrendSideways, Error: se.Error(), ErrorKind: se.Kind}
	}
	return out
}

// swingPoints 左右各 2 根严格比较的局部高低点。
func swingPoints(values []float64) (highs, lows []float64) {
	for i := 2; i < len(values)-2; i++ {
		v := values[i]
		if v > values[i-1] && v > values[i-2] && v > values[i+1] && v > values[i+2] {
			highs = append(highs, v)
		}
		if v < values[i-1] && v < values[i-2] && v < values[i+1] && v < values[i+2] {
			lows = append(lows, v)
		}
	}
	return highs, lows
}

// rising 最近两个点是否抬高，不足两个视为否。
func rising(points []float64) bool {
	if len(points) < 2 {
		return false
	}
	return points[len(points)-1] > points[len(points)-2]
}

func lastVolume(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume
}
