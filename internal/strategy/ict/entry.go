package ict

import (
	"fmt"
	"math"
	"time"

	"smartflow/internal/analysis/indicator"
	"smartflow/internal/market"
)

const (
	maxStructureAgeDays = 2
	engulfBodyATR       = 0.6
	engulfBodyRatio     = 1.5
	ltfSweepWindow      = 5
	ltfMaxBars          = 3
	ltfSpeedATRMult     = 0.2
	volumeConfirmMult   = 1.2
)

// CheckAge OB/FVG 中较老者按 Time 与 now 计算的天数必须 ≤ 2；两者都不存在时通过。
// 比较使用原始天数，返回值保留两位小数。
func CheckAge(ob *OrderBlock, fvg *FairValueGap, now time.Time) (age float64, ok bool) {
	if ob != nil {
		age = math.Max(age, ageDays(ob.Time, now))
	}
	if fvg != nil {
		age = math.Max(age, ageDays(fvg.Time, now))
	}
	return round2(age), age <= maxStructureAgeDays
}

// DetectEngulfing 最后一根实体 ≥ 0.6×ATR 且 ≥ 1.5 倍前一根实体，并按方向吞没前一根。
func DetectEngulfing(candles []market.Candle, atr float64, trend Trend) Engulfing {
	if len(candles) < 2 {
		return Engulfing{Reason: "insufficient candles"}
	}
	prev, curr := candles[len(candles)-2], candles[len(candles)-1]
	out := Engulfing{
		Body:     math.Abs(curr.Close - curr.Open),
		PrevBody: math.Abs(prev.Close - prev.Open),
	}
	if out.Body < engulfBodyATR*atr {
		out.Reason = "body below 0.6×ATR"
		return out
	}
	if out.Body < engulfBodyRatio*out.PrevBody {
		out.Reason = "body below 1.5× previous"
		return out
	}
	if trend == TrendUp {
		out.Detected = curr.Close > prev.Open && curr.Open < prev.Close
	} else {
		out.Detected = curr.Close < prev.Open && curr.Open > prev.Close
	}
	if !out.Detected {
		out.Reason = "no engulfing"
	}
	return out
}

// DetectSweepLTF 15m 版本：前 15 根最高点，最后 5 根内刺破，3 根以内、速率 ≥ 0.2×ATR。
func DetectSweepLTF(candles []market.Candle, atr float64) SweepEvent {
	return detectSweep(candles, ltfSweepWindow, ltfMaxBars, ltfSpeedATRMult*atr)
}

// VolumeConfirmed 最后一根成交量 ≥ 1.2×最近 20 根均量。
func VolumeConfirmed(candles []market.Candle) bool {
	if len(candles) < volumeWindow {
		return false
	}
	avg := indicator.AverageVolume(candles, volumeWindow)
	return avg > 0 && lastVolume(candles) >= volumeConfirmMult*avg
}

// DetectEntry 吞没、LTF sweep 与放量同时满足才给出入场，入场价为最后收盘价。
func DetectEntry(candles []market.Candle, st Structure, trend Trend, now time.Time) Entry {
	out := Entry{ATR15: indicator.LatestATR(candles, atrPeriod)}
	if age, ok := CheckAge(st.OB, st.FVG, now); !ok {
		out.Reason = fmt.Sprintf("OB/FVG older than %d days: %.2f", maxStructureAgeDays, age)
		return out
	}
	out.Engulfing = DetectEngulfing(candles, out.ATR15, trend)
	out.SweepLTF = DetectSweepLTF(candles, out.ATR15)
	out.VolumeConfirmed = VolumeConfirmed(candles)
	if out.Engulfing.Detected && out.SweepLTF.Valid && out.VolumeConfirmed {
		out.Signal = true
		out.EntryPrice = candles[len(candles)-1].Close
		return out
	}
	out.Reason = fmt.Sprintf("15m entry not confirmed (engulfing=%t sweep=%t volume=%t)",
		out.Engulfing.Detected, out.SweepLTF.Valid, out.VolumeConfirmed)
	return out
}
