package ict

import (
	"fmt"
	"math"
	"time"

	"smartflow/internal/decision"
	"smartflow/internal/market"
	"smartflow/internal/strategy"
)

const minActualRR = 1.5

// Inputs 三个周期已清洗的 K 线。
type Inputs struct {
	Daily []market.Candle
	H4    []market.Candle
	M15   []market.Candle
}

// Evaluate 纯计算版本的完整流程：1D 趋势 → 4H 结构 → 15m 入场 → 强度/模式 → 风控。
// 1D 震荡直接返回 NONE；15m 未确认时返回 NONE 但保留趋势与结构。
func Evaluate(symbol string, in Inputs, now time.Time, risk decision.RiskConfig) Signal {
	daily := AnalyzeDailyTrend(in.Daily)
	if sig, done := gateDaily(symbol, daily, now); done {
		return sig
	}
	return compose(symbol, daily, in.H4, in.M15, now, risk)
}

// gateDaily 1D 趋势出错或震荡时给出 NONE 结果。
func gateDaily(symbol string, daily DailyTrend, now time.Time) (Signal, bool) {
	ts := now.UnixMilli()
	if daily.Error != "" {
		sig := noSignal(symbol, daily, "daily trend unavailable", ts)
		sig.Error, sig.ErrorKind = daily.Error, daily.ErrorKind
		return sig, true
	}
	if daily.Trend == TrendSideways {
		return noSignal(symbol, daily, "daily trend sideways", ts), true
	}
	return Signal{}, false
}

func compose(symbol string, daily DailyTrend, h4, m15 []market.Candle, now time.Time, risk decision.RiskConfig) Signal {
	ts := now.UnixMilli()
	st := AnalyzeStructure(h4, now)
	entry := DetectEntry(m15, st, daily.Trend, now)
	if !entry.Signal {
		sig := noSignal(symbol, daily, entry.Reason, ts)
		sig.Structure, sig.Entry = &st, &entry
		return sig
	}

	sig := Signal{
		Symbol:    symbol,
		Type:      typeFor(daily.Trend),
		Strength:  Score(st, entry),
		Mode:      SelectMode(st, entry),
		Daily:     daily,
		Structure: &st,
		Entry:     &entry,
		Timestamp: ts,
	}
	sig.Execution = FormatExecution(sig.Type, sig.Mode)

	rp := decision.CalculateRiskParameters(m15, entry.EntryPrice, entry.ATR15, risk)
	sig.Risk = &rp
	if rp.Error == "" {
		ld := decision.CalculateLeverageData(rp.Entry, rp.StopLoss, string(sig.Type), decision.NormalizeRiskConfig(risk).MaxLossAmount)
		sig.Leverage = &ld
	}
	v := ValidateSignal(sig)
	sig.Validation = &v

	if !strategy.Finite(entry.EntryPrice, entry.ATR15, st.ATR4H, rp.StopLoss, rp.TakeProfit, rp.Units) {
		se := strategy.Calculation("ict_signal", errNonFinite)
		out := noSignal(symbol, daily, "calculation error", ts)
		out.Error, out.ErrorKind = se.Error(), se.Kind
		return out
	}
	return sig
}

// Score 加权计点：OB+2 FVG+1 HTF sweep+2 吞没+2 LTF sweep+2 放量+1。
func Score(st Structure, entry Entry) Strength {
	return strengthFor(Points(st, entry))
}

// Points 信号强度原始点数。
func Points(st Structure, entry Entry) int {
	pts := 0
	if st.OB != nil {
		pts += 2
	}
	if st.FVG != nil {
		pts++
	}
	if st.SweepHTF.Valid {
		pts += 2
	}
	if entry.Engulfing.Detected {
		pts += 2
	}
	if entry.SweepLTF.Valid {
		pts += 2
	}
	if entry.VolumeConfirmed {
		pts++
	}
	return pts
}

func strengthFor(points int) Strength {
	switch {
	case points >= 6:
		return StrengthStrong
	case points >= 4:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// SelectMode 按 OB_ENGULFING → FVG_SWEEP → ENGULFING_SWEEP 的优先级选择执行模式。
func SelectMode(st Structure, entry Entry) Mode {
	switch {
	case st.OB != nil && entry.Engulfing.Detected:
		return ModeOBEngulfing
	case st.FVG != nil && entry.SweepLTF.Valid:
		return ModeFVGSweep
	case entry.Engulfing.Detected && entry.SweepLTF.Valid:
		return ModeEngulfingSweep
	default:
		return ModeNone
	}
}

func typeFor(t Trend) SignalType {
	switch t {
	case TrendUp:
		return SignalLong
	case TrendDown:
		return SignalShort
	default:
		return SignalNone
	}
}

// FormatExecution 生成 LONG_OB_ENGULFING 这样的执行标签，任一为 NONE 时返回 NONE。
func FormatExecution(t SignalType, m Mode) string {
	if t == SignalNone || t == "" || m == ModeNone || m == "" {
		return string(ModeNone)
	}
	return fmt.Sprintf("%s_%s", t, m)
}

// ValidateSignal 检查止损/止盈是否在正确一侧，以及实际盈亏比 ≥ 1.5。
func ValidateSignal(sig Signal) Validation {
	var errs []string
	if sig.Symbol == "" {
		errs = append(errs, "missing symbol")
	}
	if sig.Risk == nil {
		return Validation{Errors: append(errs, "missing risk parameters")}
	}
	entry, sl, tp := sig.Risk.Entry, sig.Risk.StopLoss, sig.Risk.TakeProfit
	if entry <= 0 {
		errs = append(errs, "invalid entry price")
	}
	if sl <= 0 {
		errs = append(errs, "invalid stop loss")
	}
	if tp <= 0 {
		errs = append(errs, "invalid take profit")
	}
	switch sig.Type {
	case SignalLong:
		if sl >= entry {
			errs = append(errs, "long stop loss must be below entry")
		}
		if tp <= entry {
			errs = append(errs, "long take profit must be above entry")
		}
	case SignalShort:
		if sl <= entry {
			errs = append(errs, "short stop loss must be above entry")
		}
		if tp >= entry {
			errs = append(errs, "short take profit must be below entry")
		}
	}
	var rr float64
	if stop := math.Abs(entry - sl); stop > 0 {
		rr = round2(math.Abs(tp-entry) / stop)
	}
	if rr < minActualRR {
		errs = append(errs, fmt.Sprintf("risk reward too low: %.2f", rr))
	}
	return Validation{Valid: len(errs) == 0, Errors: errs, ActualRR: rr}
}
