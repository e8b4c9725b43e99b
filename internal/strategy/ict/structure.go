package ict

import (
	"errors"
	"math"
	"time"

	"smartflow/internal/analysis/indicator"
	"smartflow/internal/market"
)

const (
	atrPeriod       = 14
	obMinHeightATR  = 0.25
	obMaxAgeDays    = 30
	sweepLookback   = 20
	htfSweepWindow  = 3
	htfMaxBars      = 2
	htfSpeedATRMult = 0.4
)

var errNonFinite = errors.New("non-finite value in result")

// AnalyzeStructure 4H 层：OB、FVG 与 HTF sweep。缺失 OB/FVG 不阻断后续流程。
func AnalyzeStructure(candles []market.Candle, now time.Time) Structure {
	atr := indicator.LatestATR(candles, atrPeriod)
	st := Structure{ATR4H: atr}
	st.OB = DetectOB(candles, atr, now, obMaxAgeDays)
	st.FVG = DetectFVG(candles, now)
	st.SweepHTF = DetectSweepHTF(candles, atr)
	return st
}

// DetectOB 以倒数第二根 4H K 线为候选，高度 < 0.25×ATR 或年龄超过 maxAgeDays 时不存在。
// 零高度的候选一律丢弃。
func DetectOB(candles []market.Candle, atr float64, now time.Time, maxAgeDays float64) *OrderBlock {
	if len(candles) < 2 {
		return nil
	}
	bar := candles[len(candles)-2]
	height := bar.High - bar.Low
	if height <= 0 || height < obMinHeightATR*atr {
		return nil
	}
	age := ageDays(bar.OpenTime, now)
	if age > maxAgeDays {
		return nil
	}
	return &OrderBlock{
		High:    bar.High,
		Low:     bar.Low,
		Height:  height,
		AgeDays: round2(age),
		Time:    bar.OpenTime,
	}
}

// DetectFVG 扫描最后的三根窗口，先匹配者胜出。
// 多头缺口 prevHigh < currLow < nextHigh；空头缺口 prevLow > currHigh > nextLow。
func DetectFVG(candles []market.Candle, now time.Time) *FairValueGap {
	n := len(candles)
	if n < 3 {
		return nil
	}
	for i := n - 3; i < n-1 && i+2 < n; i++ {
		prev, curr, next := candles[i], candles[i+1], candles[i+2]
		if prev.High < curr.Low && curr.Low < next.High {
			return &FairValueGap{
				Low:     prev.High,
				High:    curr.Low,
				Height:  curr.Low - prev.High,
				Type:    GapBullish,
				AgeDays: round2(ageDays(curr.OpenTime, now)),
				Time:    curr.OpenTime,
			}
		}
		if prev.Low > curr.High && curr.High > next.Low {
			return &FairValueGap{
				Low:     curr.High,
				High:    prev.Low,
				Height:  prev.Low - curr.High,
				Type:    GapBearish,
				AgeDays: round2(ageDays(curr.OpenTime, now)),
				Time:    curr.OpenTime,
			}
		}
	}
	return nil
}

// DetectSweepHTF 最近 3 根 4H 刺破前 17 根的最高点后收回；速率 ≥ 0.4×ATR 且 2 根内刺破才有效。
func DetectSweepHTF(candles []market.Candle, atr float64) SweepEvent {
	return detectSweep(candles, htfSweepWindow, htfMaxBars, htfSpeedATRMult*atr)
}

// detectSweep 在最后 window 根中找第一根 high 越过前高的 K 线，之后任一根收盘回到前高下方即视为收回。
// 边界包含：speed == threshold 且 barsToReturn == maxBars 时有效。
func detectSweep(candles []market.Candle, window, maxBars int, threshold float64) SweepEvent {
	ev := SweepEvent{Threshold: threshold}
	if len(candles) < sweepLookback {
		return ev
	}
	ref := candles[len(candles)-sweepLookback : len(candles)-window]
	recent := candles[len(candles)-window:]
	ev.Extreme, _ = indicator.HighLow(ref)

	for i, c := range recent {
		if c.High > ev.Extreme {
			ev.Exceed = c.High - ev.Extreme
			ev.BarsToReturn = i + 1
			break
		}
	}
	if ev.BarsToReturn == 0 {
		return ev
	}
	for _, c := range recent[ev.BarsToReturn:] {
		if c.Close < ev.Extreme {
			ev.Detected = true
			break
		}
	}
	if !ev.Detected {
		return ev
	}
	ev.Speed = ev.Exceed / float64(ev.BarsToReturn)
	ev.Valid = ev.Speed >= threshold && ev.BarsToReturn <= maxBars
	return ev
}

func ageDays(openTimeMs int64, now time.Time) float64 {
	return float64(now.UnixMilli()-openTimeMs) / float64(24*time.Hour/time.Millisecond)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
