// Package scheduler 在引擎之外按固定周期驱动分析任务。
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"smartflow/internal/logger"
)

// ParseIntervalDuration 解析 Binance 风格周期（1m/15m/1h/4h/1d/1w）。
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	s := strings.TrimSpace(interval)
	if len(s) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h', 'H':
		unit = time.Hour
	case 'd', 'D':
		unit = 24 * time.Hour
	case 'w', 'W':
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// Job 针对单个交易对执行一次分析；错误由 Job 自行折叠进结果。
type Job func(ctx context.Context, symbol string)

// Runner 按周期对每个交易对调用 Job，ctx 取消即退出。
type Runner struct {
	interval    time.Duration
	symbols     func() []string
	job         Job
	concurrency int
	rounds      atomic.Int64
}

type Options struct {
	Interval string
	Symbols  []string
	// SymbolsFunc 优先于 Symbols，每轮重新取值。
	SymbolsFunc func() []string
	Job         Job
	Concurrency int
}

func NewRunner(opts Options) (*Runner, error) {
	dur, ok := ParseIntervalDuration(opts.Interval)
	if !ok {
		return nil, fmt.Errorf("scheduler: invalid interval %q", opts.Interval)
	}
	if opts.Job == nil {
		return nil, fmt.Errorf("scheduler: job is required")
	}
	symbols := opts.SymbolsFunc
	if symbols == nil {
		static := append([]string(nil), opts.Symbols...)
		symbols = func() []string { return static }
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Runner{interval: dur, symbols: symbols, job: opts.Job, concurrency: opts.Concurrency}, nil
}

func (r *Runner) Interval() time.Duration { return r.interval }

// Rounds 已完成的轮次数。
func (r *Runner) Rounds() int64 { return r.rounds.Load() }

// RunOnce 并发跑完一轮，返回时所有 Job 均已结束。
func (r *Runner) RunOnce(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, sym := range r.symbols() {
		sym := strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.job(gctx, sym)
			return nil
		})
	}
	_ = g.Wait()
	r.rounds.Add(1)
}

// Run 立即跑一轮，之后每个周期跑一轮，直到 ctx 结束。
func (r *Runner) Run(ctx context.Context) error {
	logger.Infof("[scheduler] 启动，周期 %s", r.interval)
	r.RunOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("[scheduler] 已停止")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			r.RunOnce(ctx)
			if elapsed := time.Since(start); elapsed > r.interval {
				logger.Warnf("[scheduler] 单轮耗时 %s 超过周期 %s", elapsed, r.interval)
			}
		}
	}
}
