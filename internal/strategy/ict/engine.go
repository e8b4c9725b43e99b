package ict

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"smartflow/internal/decision"
	"smartflow/internal/logger"
	"smartflow/internal/market"
	"smartflow/internal/metrics"
	"smartflow/internal/strategy"
)

const (
	limit4H  = 250
	limit15m = 50
)

// Deps 注入给引擎的外部协作者。
type Deps struct {
	Klines  market.Source
	Risk    decision.RiskConfig
	Sink    strategy.Sink
	Metrics *metrics.Recorder
	Clock   strategy.Clock
}

// Engine ICT 策略入口，按 symbol 互不影响。
type Engine struct {
	deps Deps
}

func NewEngine(deps Deps) (*Engine, error) {
	if deps.Klines == nil {
		return nil, errors.New("ict: kline source is required")
	}
	deps.Risk = decision.NormalizeRiskConfig(deps.Risk)
	return &Engine{deps: deps}, nil
}

// Analyze 先取 1D 判断趋势，震荡直接返回；否则并发取 4H 与 15m 后完成结构、入场与风控计算。
func (e *Engine) Analyze(ctx context.Context, symbol string) Signal {
	start := e.deps.Clock.Now()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	sig := e.analyze(ctx, symbol)
	e.publish(ctx, strategy.StageSignal, symbol, signalSummary(sig), sig, sig.ErrorKind, sig.Error)
	e.deps.Metrics.ObserveDuration(strategy.StrategyICT, e.deps.Clock.Now().Sub(start))
	return sig
}

func (e *Engine) analyze(ctx context.Context, symbol string) Signal {
	now := e.deps.Clock.Now()
	daily, err := e.deps.Klines.FetchHistory(ctx, symbol, "1d", dailyLimit)
	if err != nil {
		return upstreamFailure(symbol, "daily_trend", fmt.Errorf("fetch 1d klines: %w", err), now.UnixMilli())
	}
	trend := AnalyzeDailyTrend(market.Sanitize(daily))
	if sig, done := gateDaily(symbol, trend, now); done {
		return sig
	}

	var h4, m15 []market.Candle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cs, err := e.deps.Klines.FetchHistory(gctx, symbol, "4h", limit4H)
		if err != nil {
			return fmt.Errorf("fetch 4h klines: %w", err)
		}
		h4 = market.Sanitize(cs)
		return nil
	})
	g.Go(func() error {
		cs, err := e.deps.Klines.FetchHistory(gctx, symbol, "15m", limit15m)
		if err != nil {
			return fmt.Errorf("fetch 15m klines: %w", err)
		}
		m15 = market.Sanitize(cs)
		return nil
	})
	if err := g.Wait(); err != nil {
		sig := upstreamFailure(symbol, "ict_structure", err, now.UnixMilli())
		sig.Daily = trend
		return sig
	}
	return compose(symbol, trend, h4, m15, now, e.deps.Risk)
}

// Exit 评估持仓出场条件并推送结果。
func (e *Engine) Exit(ctx context.Context, symbol string, in ExitInputs) ExitDecision {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	d := EvaluateExit(in)
	summary := "hold"
	if d.Exit {
		summary = string(d.Reason)
	}
	e.publish(ctx, strategy.StageExit, symbol, summary, struct {
		Inputs   ExitInputs   `json:"inputs"`
		Decision ExitDecision `json:"decision"`
	}{in, d}, strategy.KindNone, "")
	return d
}

func (e *Engine) publish(ctx context.Context, stage, symbol, summary string, payload any, kind strategy.ErrorKind, errMsg string) {
	e.deps.Metrics.RecordEvaluation(strategy.StrategyICT, stage, summary)
	e.deps.Metrics.RecordError(strategy.StrategyICT, string(kind))
	if errMsg != "" {
		logger.Warnf("[ict] %s %s 降级为 NONE: %s", symbol, stage, errMsg)
	}
	rec := strategy.NewRecord(strategy.StrategyICT, stage, symbol, summary, payload, e.deps.Clock.Now()).WithError(kind, errMsg)
	strategy.Publish(ctx, e.deps.Sink, rec)
}

func upstreamFailure(symbol, op string, err error, ts int64) Signal {
	se := strategy.Upstream(op, err)
	sig := noSignal(symbol, DailyTrend{Trend: TrendSideways}, "upstream failure", ts)
	sig.Error, sig.ErrorKind = se.Error(), se.Kind
	return sig
}

func signalSummary(s Signal) string {
	switch {
	case s.Error != "":
		return "error"
	case s.Type == SignalNone:
		return "none"
	default:
		return strings.ToLower(string(s.Type))
	}
}
