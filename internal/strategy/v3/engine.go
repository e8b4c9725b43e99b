package v3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"smartflow/internal/logger"
	"smartflow/internal/market"
	"smartflow/internal/metrics"
	"smartflow/internal/strategy"
)

const (
	limit4H        = 250
	limit1H        = 50
	limit15m       = 50
	oiPeriod       = "1h"
	oiLimit        = 6
	deltaTimeframe = "1h"
)

// Deps 注入给引擎的所有外部协作者。
type Deps struct {
	Klines      market.Source
	Derivatives market.DerivativesSource
	Delta       market.DeltaProvider
	Fallback    *market.DeltaAccumulator
	Weights     WeightResolver
	Sink        strategy.Sink
	Metrics     *metrics.Recorder
	Clock       strategy.Clock
}

// Engine V3 策略入口，按 symbol 互不影响，可并发调用。
type Engine struct {
	deps Deps
}

func NewEngine(deps Deps) (*Engine, error) {
	if deps.Klines == nil {
		return nil, errors.New("v3: kline source is required")
	}
	if deps.Derivatives == nil {
		return nil, errors.New("v3: derivatives source is required")
	}
	if deps.Weights == nil {
		deps.Weights = DefaultWeights()
	}
	return &Engine{deps: deps}, nil
}

func normSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Trend4H 拉取 4H K 线并分类；上游失败时返回 range 与错误说明。
func (e *Engine) Trend4H(ctx context.Context, symbol string) TrendAssessment {
	symbol = normSymbol(symbol)
	candles, err := e.deps.Klines.FetchHistory(ctx, symbol, "4h", limit4H)
	var res TrendAssessment
	if err != nil {
		res = rangeTrend(symbol, strategy.Upstream("trend_4h", fmt.Errorf("fetch 4h klines: %w", err)))
	} else {
		res = ClassifyTrend(symbol, market.Sanitize(candles))
	}
	e.publish(ctx, strategy.StageTrend4H, symbol, trendSummary(res), res, res.ErrorKind, res.Error)
	return res
}

// Score1H 并发拉取 1H/15m/4H K 线、24h 行情、资金费率与 OI 历史，全部返回后再计分。
// 只有 1H K 线是必需的，其余失败时对应因子退化为中性值。
func (e *Engine) Score1H(ctx context.Context, symbol string, dir Direction) ScoringResult {
	symbol = normSymbol(symbol)
	var (
		h1, m15, h4 []market.Candle
		ticker      market.Ticker
		funding     float64
		oi          []market.OpenInterestPoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cs, err := e.deps.Klines.FetchHistory(gctx, symbol, "1h", limit1H)
		if err != nil {
			return fmt.Errorf("fetch 1h klines: %w", err)
		}
		h1 = market.Sanitize(cs)
		return nil
	})
	g.Go(func() error {
		cs, err := e.deps.Klines.FetchHistory(gctx, symbol, "15m", limit15m)
		if err != nil {
			logger.Warnf("[v3] %s 15m K 线获取失败，仅使用 1H 量比: %v", symbol, err)
			return nil
		}
		m15 = market.Sanitize(cs)
		return nil
	})
	g.Go(func() error {
		cs, err := e.deps.Klines.FetchHistory(gctx, symbol, "4h", breakoutWindow+1)
		if err != nil {
			logger.Warnf("[v3] %s 4H 突破区间获取失败: %v", symbol, err)
			return nil
		}
		cs = market.Sanitize(cs)
		if len(cs) > 0 {
			// 去掉未收盘的当前 4H K 线
			h4 = cs[:len(cs)-1]
		}
		return nil
	})
	g.Go(func() error {
		t, err := e.deps.Derivatives.Ticker24h(gctx, symbol)
		if err != nil {
			logger.Warnf("[v3] %s 24h 行情获取失败: %v", symbol, err)
			return nil
		}
		ticker = t
		return nil
	})
	g.Go(func() error {
		f, err := e.deps.Derivatives.FundingRate(gctx, symbol)
		if err != nil {
			logger.Warnf("[v3] %s 资金费率获取失败，按 0 处理: %v", symbol, err)
			return nil
		}
		funding = f
		return nil
	})
	g.Go(func() error {
		pts, err := e.deps.Derivatives.OpenInterestHistory(gctx, symbol, oiPeriod, oiLimit)
		if err != nil {
			logger.Warnf("[v3] %s OI 历史获取失败，按 0 处理: %v", symbol, err)
			return nil
		}
		oi = pts
		return nil
	})

	var res ScoringResult
	if err := g.Wait(); err != nil {
		se := strategy.Upstream("score_1h", err)
		res = ScoringResult{Symbol: symbol, Direction: dir, MaxScore: maxHourlyScore, Category: e.deps.Weights.Category(symbol), Error: se.Error(), ErrorKind: se.Kind}
	} else {
		oiChange, _ := market.OpenInterestChange(oi)
		res = ScoreHourly(symbol, dir, HourlyInputs{
			Candles1H:    h1,
			Candles15m:   m15,
			Candles4H:    h4,
			CurrentPrice: ticker.LastPrice,
			FundingRate:  funding,
			OIChange:     oiChange,
			DeltaRatio:   e.deltaRatio(symbol),
		}, e.deps.Weights)
	}
	e.publish(ctx, strategy.StageScore1H, symbol, scoreSummary(res), res, res.ErrorKind, res.Error)
	return res
}

// ScoreRange 震荡市边界判断。
func (e *Engine) ScoreRange(ctx context.Context, symbol string) ScoringResult {
	symbol = normSymbol(symbol)
	var (
		h1 []market.Candle
		oi []market.OpenInterestPoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cs, err := e.deps.Klines.FetchHistory(gctx, symbol, "1h", limit1H)
		if err != nil {
			return fmt.Errorf("fetch 1h klines: %w", err)
		}
		h1 = market.Sanitize(cs)
		return nil
	})
	g.Go(func() error {
		pts, err := e.deps.Derivatives.OpenInterestHistory(gctx, symbol, oiPeriod, oiLimit)
		if err != nil {
			logger.Warnf("[v3] %s OI 历史获取失败，按 0 处理: %v", symbol, err)
			return nil
		}
		oi = pts
		return nil
	})
	category := e.deps.Weights.Category(symbol)
	var res ScoringResult
	if err := g.Wait(); err != nil {
		se := strategy.Upstream("range_1h", err)
		res = ScoringResult{Symbol: symbol, Direction: DirectionRange, MaxScore: maxRangeScore, Category: category, Error: se.Error(), ErrorKind: se.Kind}
	} else {
		oiChange, _ := market.OpenInterestChange(oi)
		res = ScoreRange(symbol, category, RangeInputs{Candles1H: h1, OIChange: oiChange, DeltaRatio: e.deltaRatio(symbol)})
	}
	e.publish(ctx, strategy.StageRange1H, symbol, scoreSummary(res), res, res.ErrorKind, res.Error)
	return res
}

// Analyze 先做 4H 趋势判断，趋势市进入 1H 打分，否则进入边界判断。
func (e *Engine) Analyze(ctx context.Context, symbol string) Analysis {
	start := e.deps.Clock.Now()
	symbol = normSymbol(symbol)
	out := Analysis{Symbol: symbol}
	out.Trend = e.Trend4H(ctx, symbol)
	if out.Trend.Trending() {
		s := e.Score1H(ctx, symbol, out.Trend.Direction)
		out.Scoring = &s
	} else {
		r := e.ScoreRange(ctx, symbol)
		out.Range = &r
	}
	e.deps.Metrics.ObserveDuration(strategy.StrategyV3, e.deps.Clock.Now().Sub(start))
	return out
}

// deltaRatio 优先使用外部 delta 源，其次兜底累加器，都没有则为 0。
func (e *Engine) deltaRatio(symbol string) float64 {
	if e.deps.Delta != nil {
		if snap, ok := e.deps.Delta.DeltaData(symbol, deltaTimeframe); ok && strategy.Finite(snap.Delta) {
			return snap.Delta
		}
	}
	if e.deps.Fallback != nil {
		return e.deps.Fallback.Ratio(symbol)
	}
	return 0
}

func (e *Engine) publish(ctx context.Context, stage, symbol, summary string, payload any, kind strategy.ErrorKind, errMsg string) {
	e.deps.Metrics.RecordEvaluation(strategy.StrategyV3, stage, summary)
	e.deps.Metrics.RecordError(strategy.StrategyV3, string(kind))
	if errMsg != "" {
		logger.Warnf("[v3] %s %s 降级为默认结果: %s", symbol, stage, errMsg)
	}
	rec := strategy.NewRecord(strategy.StrategyV3, stage, symbol, summary, payload, e.now()).WithError(kind, errMsg)
	strategy.Publish(ctx, e.deps.Sink, rec)
}

func (e *Engine) now() time.Time { return e.deps.Clock.Now() }

func trendSummary(t TrendAssessment) string {
	if t.Error != "" {
		return "error"
	}
	return string(t.Direction)
}

func scoreSummary(s ScoringResult) string {
	switch {
	case s.Error != "":
		return "error"
	case s.AllowEntry:
		return "allow"
	default:
		return "reject"
	}
}
