package decision

import (
	"errors"
	"math"

	"smartflow/internal/market"
)

// RiskConfig holds account-level risk settings used for sizing.
type RiskConfig struct {
	// Equity is the account equity in quote currency (default: 10000).
	Equity float64 `toml:"equity" yaml:"equity" json:"equity"`
	// RiskPct is the fraction of equity risked per trade (default: 0.01).
	RiskPct float64 `toml:"risk_pct" yaml:"risk_pct" json:"risk_pct"`
	// MaxLossAmount caps the absolute loss per trade (default: 100).
	MaxLossAmount float64 `toml:"max_loss_amount" yaml:"max_loss_amount" json:"max_loss_amount"`
	// RewardRatio is the take-profit distance in multiples of the stop distance (default: 3).
	RewardRatio float64 `toml:"reward_ratio" yaml:"reward_ratio" json:"reward_ratio"`
	// Leverage applied to margin calculation (default: 5).
	Leverage int `toml:"leverage" yaml:"leverage" json:"leverage"`
}

// DefaultRiskConfig returns the default configuration.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Equity:        10000,
		RiskPct:       0.01,
		MaxLossAmount: 100,
		RewardRatio:   3,
		Leverage:      5,
	}
}

// NormalizeRiskConfig fills in default values for missing fields.
func NormalizeRiskConfig(cfg RiskConfig) RiskConfig {
	def := DefaultRiskConfig()
	if cfg.Equity <= 0 {
		cfg.Equity = def.Equity
	}
	if cfg.RiskPct <= 0 {
		cfg.RiskPct = def.RiskPct
	}
	if cfg.MaxLossAmount <= 0 {
		cfg.MaxLossAmount = def.MaxLossAmount
	}
	if cfg.RewardRatio <= 0 {
		cfg.RewardRatio = def.RewardRatio
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = def.Leverage
	}
	return cfg
}

// RiskParameters contains the derived order plan.
type RiskParameters struct {
	Entry           float64 `json:"entry"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	StopDistance    float64 `json:"stop_distance"`
	StopDistancePct float64 `json:"stop_distance_pct"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	RiskAmount      float64 `json:"risk_amount"`
	Units           float64 `json:"units"`
	Notional        float64 `json:"notional"`
	Leverage        int     `json:"leverage"`
	Margin          float64 `json:"margin"`
	Equity          float64 `json:"equity"`
	Error           string  `json:"error,omitempty"`
}

// LeverageData is the display-oriented leverage suggestion.
type LeverageData struct {
	MaxLeverage         int     `json:"max_leverage"`
	MinMargin           float64 `json:"min_margin"`
	StopLossDistancePct float64 `json:"stop_loss_distance_pct"`
	ATRValue            float64 `json:"atr_value"`
	Side                string  `json:"side"`
	MaxLossAmount       float64 `json:"max_loss_amount"`
	Error               string  `json:"error,omitempty"`
}

const (
	stopATRMultiplier = 1.5
	stopCapPct        = 0.05
	fallbackStopPct   = 0.02
	leverageBuffer    = 0.005
	maxLeverageCap    = 125
	minMarginFloor    = 10
)

var (
	errInvalidEntry    = errors.New("invalid entry price")
	errZeroStop        = errors.New("stop distance is zero")
	errInvalidLeverage = errors.New("invalid price parameters")
)

// CalculateStopLoss places the stop beyond the last 3 bars' extreme by 1.5×ATR,
// capped at 5% from entry. Direction comes from the last two closes.
// With fewer than 3 bars a 2% stop below entry is used.
func CalculateStopLoss(candles []market.Candle, entry, atr float64) float64 {
	if len(candles) < 3 {
		return entry * (1 - fallbackStopPct)
	}
	last3 := candles[len(candles)-3:]
	lowest, highest := last3[0].Low, last3[0].High
	for _, c := range last3[1:] {
		lowest = math.Min(lowest, c.Low)
		highest = math.Max(highest, c.High)
	}
	n := len(candles)
	if candles[n-1].Close > candles[n-2].Close {
		return math.Max(lowest-stopATRMultiplier*atr, entry*(1-stopCapPct))
	}
	return math.Min(highest+stopATRMultiplier*atr, entry*(1+stopCapPct))
}

// CalculateTakeProfit projects rr times the stop distance away from entry.
// A stop below entry means long.
func CalculateTakeProfit(entry, stopLoss, rr float64) float64 {
	dist := math.Abs(entry - stopLoss)
	if entry > stopLoss {
		return entry + rr*dist
	}
	return entry - rr*dist
}

// CalculateRiskParameters sizes a position so that hitting the stop loses
// min(equity×riskPct, maxLossAmount).
func CalculateRiskParameters(candles []market.Candle, entry, atr float64, cfg RiskConfig) RiskParameters {
	cfg = NormalizeRiskConfig(cfg)
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return RiskParameters{Leverage: 1, Error: errInvalidEntry.Error()}
	}
	sl := CalculateStopLoss(candles, entry, atr)
	dist := math.Abs(entry - sl)
	if dist == 0 || math.IsNaN(dist) {
		return RiskParameters{Leverage: 1, Error: errZeroStop.Error()}
	}
	tp := CalculateTakeProfit(entry, sl, cfg.RewardRatio)
	riskAmount := math.Min(cfg.Equity*cfg.RiskPct, cfg.MaxLossAmount)
	units := riskAmount / dist
	notional := entry * units
	return RiskParameters{
		Entry:           entry,
		StopLoss:        sl,
		TakeProfit:      tp,
		StopDistance:    dist,
		StopDistancePct: dist / entry * 100,
		RiskRewardRatio: cfg.RewardRatio,
		RiskAmount:      riskAmount,
		Units:           units,
		Notional:        notional,
		Leverage:        cfg.Leverage,
		Margin:          notional / float64(cfg.Leverage),
		Equity:          cfg.Equity,
	}
}

// CalculateLeverageData suggests the highest leverage that keeps liquidation
// beyond the stop (0.5% buffer) and the margin needed to risk maxLossAmount.
func CalculateLeverageData(entry, stopLoss float64, side string, maxLossAmount float64) LeverageData {
	if maxLossAmount <= 0 {
		maxLossAmount = DefaultRiskConfig().MaxLossAmount
	}
	dist := math.Abs(entry-stopLoss) / entry
	if entry <= 0 || stopLoss <= 0 || dist == 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return LeverageData{
			MaxLeverage:         10,
			MinMargin:           100,
			StopLossDistancePct: 2,
			Side:                side,
			MaxLossAmount:       maxLossAmount,
			Error:               errInvalidLeverage.Error(),
		}
	}
	maxLev := int(math.Floor(1 / (dist + leverageBuffer)))
	if maxLev < 1 {
		maxLev = 1
	}
	if maxLev > maxLeverageCap {
		maxLev = maxLeverageCap
	}
	minMargin := math.Max(minMarginFloor, math.Ceil(maxLossAmount/(float64(maxLev)*dist)))
	return LeverageData{
		MaxLeverage:         maxLev,
		MinMargin:           minMargin,
		StopLossDistancePct: dist * 100,
		ATRValue:            math.Abs(entry - stopLoss),
		Side:                side,
		MaxLossAmount:       maxLossAmount,
	}
}
