package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"smartflow/internal/agent"
	"smartflow/internal/config"
	"smartflow/internal/config/writer"
	"smartflow/internal/gateway/binance"
	"smartflow/internal/gateway/database"
	"smartflow/internal/logger"
	"smartflow/internal/market"
	"smartflow/internal/metrics"
	"smartflow/internal/report"
	"smartflow/internal/scheduler"
	"smartflow/internal/store"
	"smartflow/internal/strategy"
	"smartflow/internal/strategy/ict"
	v3 "smartflow/internal/strategy/v3"
	"smartflow/internal/transport/http/api"
	"smartflow/internal/transport/http/settings"
)

type options struct {
	configPath  string
	once        bool
	serve       bool
	replay      string
	writeConfig bool
	jsonOut     bool
	dump        string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "configs/smartflow.toml", "配置文件路径（.toml/.yaml）")
	flag.BoolVar(&opts.once, "once", false, "对所有交易对评估一次并打印结果")
	flag.BoolVar(&opts.serve, "serve", false, "只启动 HTTP 接口，不跑定时任务")
	flag.StringVar(&opts.replay, "replay", "", "从 JSON 回放文件加载 K 线，代替 Binance")
	flag.BoolVar(&opts.writeConfig, "write-config", false, "把补齐默认值后的配置写回 -config 并退出")
	flag.BoolVar(&opts.jsonOut, "json", false, "-once 时输出 JSON")
	flag.StringVar(&opts.dump, "dump", "", "按周期导出各交易对 K 线 CSV 后退出（如 4h）")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "smartflow: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadWithEnv(opts.configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.App.LogLevel); err != nil {
		return err
	}
	defer logger.Sync()

	if opts.writeConfig {
		w := writer.NewConfigWriter(opts.configPath)
		if err := w.Write(cfg); err != nil {
			return err
		}
		logger.Infof("配置已写入 %s", w.Path())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer app.close()

	if opts.dump != "" {
		return app.dump(ctx, opts.dump)
	}
	if opts.once {
		return app.runOnce(ctx, opts.jsonOut)
	}
	return app.serve(ctx, opts)
}

// app 组装好的运行时依赖。
type app struct {
	cfg     config.Config
	symbols []string
	v3      *v3.Engine
	ict     *ict.Engine
	metrics *metrics.Recorder
	results *database.ResultStore
	monitor *agent.DeltaMonitor
	live    *binance.Source
	klines  market.Source
}

func build(ctx context.Context, cfg config.Config, opts options) (*app, error) {
	a := &app{cfg: cfg, symbols: cfg.App.Symbols, metrics: metrics.New()}

	var (
		klines      market.Source
		derivatives market.DerivativesSource
	)
	if opts.replay != "" {
		ks := store.NewMemoryKlineStore()
		ds := store.NewMemoryDerivatives()
		f, err := os.Open(opts.replay)
		if err != nil {
			return nil, fmt.Errorf("open replay: %w", err)
		}
		symbols, err := store.LoadReplay(ctx, f, ks, ds)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		logger.Infof("回放模式：载入 %d 个交易对", len(symbols))
		a.symbols = symbols
		klines, derivatives = ks, ds
	} else {
		src, err := binance.New(binance.Config{
			RESTBaseURL:     cfg.Binance.RESTBaseURL,
			WSBaseURL:       cfg.Binance.WSBaseURL,
			RateLimitPerMin: cfg.Binance.RateLimitPerMin,
			HTTPTimeout:     time.Duration(cfg.Binance.TimeoutSeconds) * time.Second,
			ProxyURL:        cfg.Binance.ProxyURL,
		})
		if err != nil {
			return nil, err
		}
		a.live = src
		klines, derivatives = src, src
	}
	a.klines = klines

	fallback := market.NewDeltaAccumulator()
	tracker := market.NewTradeDeltaTracker(fallback)
	if a.live != nil && cfg.Binance.EnableDeltaStream && !opts.once && opts.dump == "" {
		a.monitor = agent.NewDeltaMonitor(agent.MonitorParams{
			Streamer: a.live,
			Tracker:  tracker,
			Symbols:  a.symbols,
		})
	}

	sinks := strategy.MultiSink{}
	if !opts.once && opts.dump == "" {
		rs, err := database.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.results = rs
		sinks = append(sinks, rs)
	}

	var err error
	if cfg.Enabled(strategy.StrategyV3) {
		a.v3, err = v3.NewEngine(v3.Deps{
			Klines:      klines,
			Derivatives: derivatives,
			Delta:       tracker,
			Fallback:    fallback,
			Weights:     cfg.WeightResolver(),
			Sink:        sinks,
			Metrics:     a.metrics,
		})
		if err != nil {
			return nil, err
		}
	}
	if cfg.Enabled(strategy.StrategyICT) {
		a.ict, err = ict.NewEngine(ict.Deps{
			Klines:  klines,
			Risk:    cfg.Risk,
			Sink:    sinks,
			Metrics: a.metrics,
		})
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// evaluate 对单个交易对跑所有启用的策略。
func (a *app) evaluate(ctx context.Context, symbol string) (*v3.Analysis, *ict.Signal) {
	var (
		va *v3.Analysis
		is *ict.Signal
	)
	if a.v3 != nil {
		res := a.v3.Analyze(ctx, symbol)
		va = &res
	}
	if a.ict != nil {
		sig := a.ict.Analyze(ctx, symbol)
		is = &sig
	}
	return va, is
}

func (a *app) runOnce(ctx context.Context, jsonOut bool) error {
	var (
		v3Results  []v3.Analysis
		ictSignals []ict.Signal
	)
	for _, sym := range a.symbols {
		va, is := a.evaluate(ctx, sym)
		if va != nil {
			v3Results = append(v3Results, *va)
		}
		if is != nil {
			ictSignals = append(ictSignals, *is)
		}
	}
	if jsonOut {
		fmt.Println(report.PrettyJSON(map[string]any{"v3": v3Results, "ict": ictSignals}))
		return nil
	}
	if len(v3Results) > 0 {
		fmt.Println(report.V3Table(v3Results))
	}
	if len(ictSignals) > 0 {
		fmt.Println(report.ICTTable(ictSignals))
	}
	return nil
}

// dump 以 CSV 打印每个交易对指定周期的 K 线。
func (a *app) dump(ctx context.Context, interval string) error {
	for _, sym := range a.symbols {
		candles, err := a.klines.FetchHistory(ctx, sym, interval, 500)
		if err != nil {
			return fmt.Errorf("%s %s: %w", sym, interval, err)
		}
		fmt.Printf("# %s %s\n", sym, interval)
		fmt.Print(report.CandleCSV(market.Sanitize(candles), report.CandleCSVOptions{PricePrecision: report.PrecisionAuto}))
	}
	return nil
}

func (a *app) serve(ctx context.Context, opts options) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.monitor != nil {
		if err := a.monitor.Start(gctx); err != nil {
			logger.Warnf("[delta] 订阅失败，使用回退累加器: %v", err)
		}
	}

	if !opts.serve {
		runner, err := scheduler.NewRunner(scheduler.Options{
			Interval:    a.cfg.App.ScanInterval,
			SymbolsFunc: a.symbolsFunc(opts),
			Job: func(ctx context.Context, symbol string) {
				a.evaluate(ctx, symbol)
			},
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return ignoreCanceled(runner.Run(gctx)) })
	}

	if opts.serve || a.cfg.HTTP.Addr != "" {
		cfg := api.Config{
			Addr:     a.cfg.HTTP.Addr,
			Metrics:  a.metrics.Handler(),
			Settings: settings.NewRouter(opts.configPath),
		}
		if a.v3 != nil {
			cfg.V3 = a.v3
		}
		if a.ict != nil {
			cfg.ICT = a.ict
		}
		if a.results != nil {
			cfg.Records = a.results
		}
		if a.monitor != nil {
			cfg.Prices = a.monitor
		}
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	err := g.Wait()
	a.monitor.Wait()
	return err
}

// symbolsFunc 每轮重新读取配置，回放模式固定为回放文件里的交易对。
func (a *app) symbolsFunc(opts options) func() []string {
	if opts.replay != "" {
		return func() []string { return a.symbols }
	}
	return func() []string {
		cfg, err := config.LoadWithEnv(opts.configPath)
		if err != nil || len(cfg.App.Symbols) == 0 {
			return a.symbols
		}
		return cfg.App.Symbols
	}
}

func (a *app) close() {
	if a.live != nil {
		_ = a.live.Close()
	}
	if a.results != nil {
		_ = a.results.Close()
	}
}

func ignoreCanceled(err error) error {
	if err == nil || err == context.Canceled {
		return nil
	}
	return err
}
