// Package ict 实现 ICT 三层周期策略：1D 趋势、4H 结构（OB/FVG/Sweep）、15m 入场与出场状态机。
package ict

import (
	"smartflow/internal/decision"
	"smartflow/internal/strategy"
)

// Trend 1D 趋势。
type Trend string

const (
	TrendUp       Trend = "up"
	TrendDown     Trend = "down"
	TrendSideways Trend = "sideways"
)

// SignalType 交易方向。
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
	SignalNone  SignalType = "NONE"
)

// Strength 信号强度。
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthWeak     Strength = "WEAK"
	StrengthNone     Strength = "NONE"
)

// Mode 执行模式，按优先级匹配。
type Mode string

const (
	ModeOBEngulfing    Mode = "OB_ENGULFING"
	ModeFVGSweep       Mode = "FVG_SWEEP"
	ModeEngulfingSweep Mode = "ENGULFING_SWEEP"
	ModeNone           Mode = "NONE"
)

// GapType FVG 方向。
type GapType string

const (
	GapBullish GapType = "bullish"
	GapBearish GapType = "bearish"
)

// DailyTrend 1D 趋势打分明细。
type DailyTrend struct {
	Trend          Trend              `json:"trend"`
	Score          int                `json:"score"`
	StructureScore int                `json:"structure_score"`
	MAScore        int                `json:"ma_score"`
	VolumeScore    int                `json:"volume_score"`
	HigherHighs    bool               `json:"higher_highs"`
	HigherLows     bool               `json:"higher_lows"`
	MA20           float64            `json:"ma20"`
	MA50           float64            `json:"ma50"`
	LastClose      float64            `json:"last_close"`
	Error          string             `json:"error,omitempty"`
	ErrorKind      strategy.ErrorKind `json:"error_kind,omitempty"`
}

// OrderBlock 4H 订单块，只在通过高度和年龄过滤后存在。
type OrderBlock struct {
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Height  float64 `json:"height"`
	AgeDays float64 `json:"age_days"`
	Time    int64   `json:"time"`
}

// FairValueGap 三根 K 线缺口。
type FairValueGap struct {
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Height  float64 `json:"height"`
	Type    GapType `json:"type"`
	AgeDays float64 `json:"age_days"`
	Time    int64   `json:"time"`
}

// SweepEvent 流动性扫荡。Detected 表示刺破后已收回，Valid 表示速率与 bar 数都达标。
type SweepEvent struct {
	Detected     bool    `json:"detected"`
	Valid        bool    `json:"valid"`
	Extreme      float64 `json:"extreme"`
	Exceed       float64 `json:"exceed"`
	BarsToReturn int     `json:"bars_to_return"`
	Speed        float64 `json:"speed"`
	Threshold    float64 `json:"threshold"`
}

// Structure 4H 结构分析结果。
type Structure struct {
	OB       *OrderBlock   `json:"ob,omitempty"`
	FVG      *FairValueGap `json:"fvg,omitempty"`
	SweepHTF SweepEvent    `json:"sweep_htf"`
	ATR4H    float64       `json:"atr_4h"`
	Error    string        `json:"error,omitempty"`
}

// Engulfing 吞没形态检测。
type Engulfing struct {
	Detected bool    `json:"detected"`
	Body     float64 `json:"body"`
	PrevBody float64 `json:"prev_body"`
	Reason   string  `json:"reason,omitempty"`
}

// Entry 15m 入场检测结果。
type Entry struct {
	Signal          bool       `json:"signal"`
	EntryPrice      float64    `json:"entry_price"`
	Engulfing       Engulfing  `json:"engulfing"`
	SweepLTF        SweepEvent `json:"sweep_ltf"`
	VolumeConfirmed bool       `json:"volume_confirmed"`
	ATR15           float64    `json:"atr_15m"`
	Reason          string     `json:"reason,omitempty"`
}

// Signal ICT 完整输出。Type 为 NONE 时仍保留已计算的趋势与结构上下文。
type Signal struct {
	Symbol     string                   `json:"symbol"`
	Type       SignalType               `json:"signal_type"`
	Strength   Strength                 `json:"signal_strength"`
	Mode       Mode                     `json:"execution_mode"`
	Execution  string                   `json:"execution"`
	Daily      DailyTrend               `json:"daily"`
	Structure  *Structure               `json:"structure,omitempty"`
	Entry      *Entry                   `json:"entry,omitempty"`
	Risk       *decision.RiskParameters `json:"risk,omitempty"`
	Leverage   *decision.LeverageData   `json:"leverage,omitempty"`
	Validation *Validation              `json:"validation,omitempty"`
	Reason     string                   `json:"reason,omitempty"`
	Error      string                   `json:"error,omitempty"`
	ErrorKind  strategy.ErrorKind       `json:"error_kind,omitempty"`
	Timestamp  int64                    `json:"timestamp"`
}

// Validation 信号价格逻辑与实际盈亏比检查。
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	ActualRR float64  `json:"actual_rr"`
}

func noSignal(symbol string, daily DailyTrend, reason string, ts int64) Signal {
	return Signal{
		Symbol:    symbol,
		Type:      SignalNone,
		Strength:  StrengthNone,
		Mode:      ModeNone,
		Execution: string(ModeNone),
		Daily:     daily,
		Reason:    reason,
		Timestamp: ts,
	}
}
