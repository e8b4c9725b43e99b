package v3

import (
	"math"
	"strings"
)

// Category 交易对分层。
type Category string

const (
	CategoryLargeCap Category = "largecap"
	CategoryMidCap   Category = "midcap"
	CategorySmallCap Category = "smallcap"
)

// Factor 1H 多因子名称。
type Factor string

const (
	FactorBreakout Factor = "breakout"
	FactorVolume   Factor = "volume"
	FactorOI       Factor = "oi"
	FactorDelta    Factor = "delta"
	FactorFunding  Factor = "funding"
)

// Factors 固定的计分顺序。
var Factors = []Factor{FactorBreakout, FactorVolume, FactorOI, FactorDelta, FactorFunding}

// FactorWeights 各因子权重。
type FactorWeights struct {
	Breakout float64 `toml:"breakout" yaml:"breakout" json:"breakout"`
	Volume   float64 `toml:"volume" yaml:"volume" json:"volume"`
	OI       float64 `toml:"oi" yaml:"oi" json:"oi"`
	Delta    float64 `toml:"delta" yaml:"delta" json:"delta"`
	Funding  float64 `toml:"funding" yaml:"funding" json:"funding"`
}

func (w FactorWeights) Of(f Factor) float64 {
	switch f {
	case FactorBreakout:
		return w.Breakout
	case FactorVolume:
		return w.Volume
	case FactorOI:
		return w.OI
	case FactorDelta:
		return w.Delta
	case FactorFunding:
		return w.Funding
	}
	return 0
}

// IsZero 全部为 0 视为未配置。
func (w FactorWeights) IsZero() bool {
	return w == FactorWeights{}
}

// WeightResolver 把交易对映射到分层与权重表，属于配置而非算法。
type WeightResolver interface {
	Category(symbol string) Category
	Weights(c Category) FactorWeights
}

// StaticWeights 基于固定列表的默认实现。
type StaticWeights struct {
	Tiers map[string]Category
	Table map[Category]FactorWeights
}

// DefaultWeights BTC/ETH 为大盘，常见高市值币为中盘，其余为小盘。
func DefaultWeights() *StaticWeights {
	tiers := map[string]Category{
		"BTCUSDT": CategoryLargeCap,
		"ETHUSDT": CategoryLargeCap,
	}
	for _, s := range []string{"BNBUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT", "DOGEUSDT", "DOTUSDT", "LTCUSDT", "TRXUSDT", "BCHUSDT", "ETCUSDT"} {
		tiers[s] = CategoryMidCap
	}
	return &StaticWeights{
		Tiers: tiers,
		Table: map[Category]FactorWeights{
			CategoryLargeCap: {Breakout: 0.30, Volume: 0.20, OI: 0.25, Delta: 0.15, Funding: 0.10},
			CategoryMidCap:   {Breakout: 0.25, Volume: 0.25, OI: 0.20, Delta: 0.20, Funding: 0.10},
			CategorySmallCap: {Breakout: 0.15, Volume: 0.30, OI: 0.15, Delta: 0.30, Funding: 0.10},
		},
	}
}

func (s *StaticWeights) Category(symbol string) Category {
	if s != nil {
		if c, ok := s.Tiers[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
			return c
		}
	}
	return CategorySmallCap
}

// Weights 未配置的分层回退到大盘权重。
func (s *StaticWeights) Weights(c Category) FactorWeights {
	if s == nil {
		return DefaultWeights().Weights(c)
	}
	if w, ok := s.Table[c]; ok && !w.IsZero() {
		return w
	}
	return s.Table[CategoryLargeCap]
}

// RawFactors 1H 打分的原始输入。
type RawFactors struct {
	Breakout    bool    `json:"breakout"`
	VolumeRatio float64 `json:"volume_ratio"`
	OIChange    float64 `json:"oi_change"`
	FundingRate float64 `json:"funding_rate"`
	DeltaRatio  float64 `json:"delta_ratio"`
}

func (r RawFactors) value(f Factor) float64 {
	switch f {
	case FactorBreakout:
		if r.Breakout {
			return 1
		}
		return 0
	case FactorVolume:
		return r.VolumeRatio
	case FactorOI:
		return r.OIChange
	case FactorDelta:
		return r.DeltaRatio
	case FactorFunding:
		return r.FundingRate
	}
	return 0
}

// ScoreFactor 单因子得分（0/0.5/1）。
func ScoreFactor(f Factor, v float64) float64 {
	switch f {
	case FactorBreakout:
		if v != 0 {
			return 1
		}
	case FactorVolume:
		if v >= 1.5 {
			return 1
		}
		if v >= 1.2 {
			return 0.5
		}
	case FactorOI:
		if math.Abs(v) >= 0.02 {
			return 1
		}
	case FactorDelta:
		if math.Abs(v) >= 0.1 {
			return 1
		}
		if math.Abs(v) >= 0.05 {
			return 0.5
		}
	case FactorFunding:
		if math.Abs(v) <= 0.0005 {
			return 1
		}
		if math.Abs(v) <= 0.001 {
			return 0.5
		}
	}
	return 0
}

// Aggregate 返回原始总分（满分 5）、加权分与逐因子明细，两者保留两位小数。
func Aggregate(raw RawFactors, w FactorWeights) (total, weighted float64, scores []FactorScore) {
	scores = make([]FactorScore, 0, len(Factors))
	for _, f := range Factors {
		v := raw.value(f)
		s := ScoreFactor(f, v)
		total += s
		weighted += s * w.Of(f)
		scores = append(scores, FactorScore{
			Name:         string(f),
			RawValue:     v,
			Score:        s,
			Weight:       w.Of(f),
			Contribution: s * w.Of(f),
		})
	}
	return round2(total), round2(weighted), scores
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
