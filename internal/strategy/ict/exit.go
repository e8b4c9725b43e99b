package ict

import (
	"fmt"
	"math"
)

// ExitReason 出场原因。
type ExitReason string

const (
	ExitNone            ExitReason = ""
	ExitStopLoss        ExitReason = "STOP_LOSS"
	ExitTakeProfit      ExitReason = "TAKE_PROFIT"
	ExitOrderBlockBreak ExitReason = "ORDER_BLOCK_BREAK"
	ExitFVGRefill       ExitReason = "FVG_REFILL"
	ExitTrendReversal   ExitReason = "TREND_REVERSAL"
	ExitLiquiditySweep  ExitReason = "LIQUIDITY_SWEEP"
	ExitVolumeAnomaly   ExitReason = "VOLUME_ANOMALY"
	ExitTimeStop        ExitReason = "TIME_STOP"
)

const (
	obBreakRangePct   = 0.1
	obBreakATRMult    = 0.5
	reversalMovePct   = 0.03
	liquidityATRMult  = 0.5
	volumeDryBars     = 24
	volumeDryRatio    = 0.5
	volumeSurgeRatio  = 3.0
	maxBarsInPosition = 48
)

// ExitInputs 持仓与当前市场状态。TimeInPosition 以 15m bar 计。
type ExitInputs struct {
	Position       SignalType    `json:"position"`
	EntryPrice     float64       `json:"entry_price"`
	CurrentPrice   float64       `json:"current_price"`
	StopLoss       float64       `json:"stop_loss"`
	TakeProfit     float64       `json:"take_profit"`
	OB             *OrderBlock   `json:"ob,omitempty"`
	FVG            *FairValueGap `json:"fvg,omitempty"`
	ATR4H          float64       `json:"atr_4h"`
	ATR15          float64       `json:"atr_15m"`
	Trend1D        Trend         `json:"trend_1d"`
	TimeInPosition int           `json:"time_in_position"`
	VolumeRatio    float64       `json:"volume_ratio"`
	SweepDetected  bool          `json:"sweep_detected"`
	LiquidityLevel *float64      `json:"liquidity_level,omitempty"`
}

// ExitDecision 状态机输出；Exit=false 表示继续持有。
type ExitDecision struct {
	Exit        bool       `json:"exit"`
	Reason      ExitReason `json:"reason"`
	ExitPrice   float64    `json:"exit_price"`
	Description string     `json:"description"`
}

// EvaluateExit 按固定顺序检查，第一个命中的条件生效。
func EvaluateExit(in ExitInputs) ExitDecision {
	long := in.Position == SignalLong
	short := in.Position == SignalShort
	price := in.CurrentPrice
	if !long && !short {
		return ExitDecision{Description: "no open position"}
	}

	if (long && price <= in.StopLoss) || (short && price >= in.StopLoss) {
		return ExitDecision{Exit: true, Reason: ExitStopLoss, ExitPrice: in.StopLoss, Description: "stop loss hit"}
	}
	if (long && price >= in.TakeProfit) || (short && price <= in.TakeProfit) {
		return ExitDecision{Exit: true, Reason: ExitTakeProfit, ExitPrice: in.TakeProfit, Description: "take profit hit"}
	}
	if ob := in.OB; ob != nil {
		tol := max(obBreakRangePct*(ob.High-ob.Low), obBreakATRMult*in.ATR4H)
		if long && price <= ob.Low-tol {
			return exitAt(ExitOrderBlockBreak, price, fmt.Sprintf("price below OB low %.4f", ob.Low-tol))
		}
		if short && price >= ob.High+tol {
			return exitAt(ExitOrderBlockBreak, price, fmt.Sprintf("price above OB high %.4f", ob.High+tol))
		}
	}
	if fvg := in.FVG; fvg != nil && price >= fvg.Low && price <= fvg.High {
		return exitAt(ExitFVGRefill, price, fmt.Sprintf("price back inside FVG %.4f-%.4f", fvg.Low, fvg.High))
	}
	if in.EntryPrice > 0 {
		move := math.Abs(price-in.EntryPrice) / in.EntryPrice
		if move >= reversalMovePct && ((long && in.Trend1D == TrendDown) || (short && in.Trend1D == TrendUp)) {
			return exitAt(ExitTrendReversal, price, fmt.Sprintf("daily trend turned %s after %.2f%% move", in.Trend1D, move*100))
		}
	}
	if in.SweepDetected && in.LiquidityLevel != nil {
		level, tol := *in.LiquidityLevel, liquidityATRMult*in.ATR15
		if long && price <= level-tol {
			return exitAt(ExitLiquiditySweep, price, fmt.Sprintf("liquidity below %.4f swept", level))
		}
		if short && price >= level+tol {
			return exitAt(ExitLiquiditySweep, price, fmt.Sprintf("liquidity above %.4f swept", level))
		}
	}
	if in.TimeInPosition >= volumeDryBars && in.VolumeRatio < volumeDryRatio {
		return exitAt(ExitVolumeAnomaly, price, "volume drying up in a long-held position")
	}
	if in.VolumeRatio > volumeSurgeRatio {
		return exitAt(ExitVolumeAnomaly, price, "volume surge, possible reversal")
	}
	if in.TimeInPosition >= maxBarsInPosition {
		return exitAt(ExitTimeStop, price, fmt.Sprintf("held for %d bars", in.TimeInPosition))
	}
	return ExitDecision{Description: "hold"}
}

func exitAt(reason ExitReason, price float64, desc string) ExitDecision {
	return ExitDecision{Exit: true, Reason: reason, ExitPrice: price, Description: desc}
}
