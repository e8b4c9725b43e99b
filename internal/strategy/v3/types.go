// Package v3 实现 V3 多周期趋势策略：4H 趋势过滤、1H 多因子打分与震荡市边界判断。
package v3

import "smartflow/internal/strategy"

// Direction 4H 趋势方向。
type Direction string

const (
	DirectionBull  Direction = "bull"
	DirectionBear  Direction = "bear"
	DirectionRange Direction = "range"
)

// MarketType 市场类型。
type MarketType string

const (
	MarketTrending MarketType = "trending"
	MarketRange    MarketType = "range"
)

// TrendAssessment 4H 趋势评估结果。Error 非空时其余字段为安全默认值。
type TrendAssessment struct {
	Symbol         string             `json:"symbol"`
	Direction      Direction          `json:"direction"`
	MarketType     MarketType         `json:"market_type"`
	Close          float64            `json:"close"`
	MA20           float64            `json:"ma20"`
	MA50           float64            `json:"ma50"`
	MA200          float64            `json:"ma200"`
	ADX14          float64            `json:"adx14"`
	DIPlus         float64            `json:"di_plus"`
	DIMinus        float64            `json:"di_minus"`
	BBW            float64            `json:"bbw"`
	BBWExpanding   bool               `json:"bbw_expanding"`
	TrendConfirmed bool               `json:"trend_confirmed"`
	Error          string             `json:"error,omitempty"`
	ErrorKind      strategy.ErrorKind `json:"error_kind,omitempty"`
}

// Trending 是否为可交易的趋势市。
func (t TrendAssessment) Trending() bool {
	return t.MarketType == MarketTrending && t.Direction != DirectionRange
}

// FactorScore 单个因子的原始值与贡献。
type FactorScore struct {
	Name         string  `json:"name"`
	RawValue     float64 `json:"raw_value"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight,omitempty"`
	Contribution float64 `json:"contribution"`
}

// RangeBoundary 震荡市边界判断的明细。
type RangeBoundary struct {
	Upper        float64 `json:"bb_upper"`
	Middle       float64 `json:"bb_middle"`
	Lower        float64 `json:"bb_lower"`
	TouchesLower int     `json:"touches_lower"`
	TouchesUpper int     `json:"touches_upper"`
	VolFactor    float64 `json:"vol_factor"`
	Delta        float64 `json:"delta"`
	OIChange     float64 `json:"oi_change"`
	LastBreakout bool    `json:"last_breakout"`
	VWAPDistance float64 `json:"vwap_distance"`
	LowerValid   bool    `json:"lower_boundary_valid"`
	UpperValid   bool    `json:"upper_boundary_valid"`
}

// ScoringResult 1H 多因子打分与震荡市边界打分共用的结果。
type ScoringResult struct {
	Symbol         string             `json:"symbol"`
	Direction      Direction          `json:"direction"`
	TotalScore     float64            `json:"total_score"`
	MaxScore       float64            `json:"max_score"`
	WeightedScore  float64            `json:"weighted_score,omitempty"`
	AllowEntry     bool               `json:"allow_entry"`
	Category       Category           `json:"category,omitempty"`
	LastClose      float64            `json:"last_close"`
	CurrentPrice   float64            `json:"current_price"`
	VWAP           float64            `json:"vwap"`
	VWAPConsistent bool               `json:"vwap_consistent"`
	Factors        []FactorScore      `json:"factor_scores,omitempty"`
	Range          *RangeBoundary     `json:"range,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	Error          string             `json:"error,omitempty"`
	ErrorKind      strategy.ErrorKind `json:"error_kind,omitempty"`
}

// Analysis 一次完整的 V3 评估：趋势市走 1H 打分，否则走边界判断。
type Analysis struct {
	Symbol  string          `json:"symbol"`
	Trend   TrendAssessment `json:"trend"`
	Scoring *ScoringResult  `json:"scoring,omitempty"`
	Range   *ScoringResult  `json:"range,omitempty"`
}

const (
	maxHourlyScore = 5
	maxRangeScore  = 7
)
