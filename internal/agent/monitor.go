// Package agent 运行常驻的行情任务：订阅逐笔成交并维护主动买卖差。
package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"smartflow/internal/logger"
	"smartflow/internal/market"
)

// DeltaSink 接收逐笔成交并按周期滚动窗口，market.TradeDeltaTracker 实现它。
type DeltaSink interface {
	Ingest(ev market.TradeEvent)
	Roll(timeframe string, now time.Time)
	Prune(now time.Time) int
}

// SymbolProvider 提供动态 symbols 列表
type SymbolProvider interface {
	Symbols() []string
}

type MonitorParams struct {
	Streamer       market.TradeStreamer
	Tracker        DeltaSink
	Symbols        []string
	SymbolProvider SymbolProvider
	Clock          func() time.Time
	// 测试可缩短；默认与 delta 周期一致。
	RollEvery  map[string]time.Duration
	PruneEvery time.Duration
}

// DeltaMonitor 把实时成交流喂给 delta 跟踪器，并定期 Roll/Prune。
type DeltaMonitor struct {
	streamer       market.TradeStreamer
	tracker        DeltaSink
	symbols        []string
	symbolProvider SymbolProvider
	clock          func() time.Time
	rollEvery      map[string]time.Duration
	pruneEvery     time.Duration

	lastPrice   map[string]lastPriceEntry
	lastPriceMu sync.RWMutex

	streamMu sync.Mutex
	streamUp bool
	wg       sync.WaitGroup
}

type lastPriceEntry struct {
	price float64
	ts    int64
}

func NewDeltaMonitor(p MonitorParams) *DeltaMonitor {
	if p.Streamer == nil || p.Tracker == nil {
		return nil
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if len(p.RollEvery) == 0 {
		p.RollEvery = map[string]time.Duration{"15m": 15 * time.Minute, "1h": time.Hour}
	}
	if p.PruneEvery <= 0 {
		p.PruneEvery = time.Minute
	}
	return &DeltaMonitor{
		streamer:       p.Streamer,
		tracker:        p.Tracker,
		symbols:        append([]string(nil), p.Symbols...),
		symbolProvider: p.SymbolProvider,
		clock:          p.Clock,
		rollEvery:      p.RollEvery,
		pruneEvery:     p.PruneEvery,
		lastPrice:      make(map[string]lastPriceEntry),
	}
}

// resolveSymbols 获取当前的 symbols 列表（优先动态，fallback 静态）
func (m *DeltaMonitor) resolveSymbols() []string {
	if m.symbolProvider != nil {
		if targets := m.symbolProvider.Symbols(); len(targets) > 0 {
			return targets
		}
	}
	return m.symbols
}

// Start 订阅成交流并启动滚动任务；订阅失败时直接返回错误。
func (m *DeltaMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	opts := market.SubscribeOptions{
		Buffer: 2048,
		OnConnect: func() {
			if ctx.Err() != nil {
				return
			}
			m.streamMu.Lock()
			wasUp := m.streamUp
			m.streamUp = true
			m.streamMu.Unlock()
			if wasUp {
				logger.Infof("[delta] 成交流已恢复")
			} else {
				logger.Infof("[delta] 成交流已建立")
			}
		},
		OnDisconnect: func(err error) {
			if ctx.Err() != nil {
				return
			}
			m.streamMu.Lock()
			m.streamUp = false
			m.streamMu.Unlock()
			reason := "未知"
			if err != nil && err.Error() != "" {
				reason = err.Error()
			}
			logger.Warnf("[delta] 成交流断线: %s", reason)
		},
	}
	stream, err := m.streamer.SubscribeTrades(ctx, m.resolveSymbols(), opts)
	if err != nil {
		return err
	}
	logger.Infof("[delta] aggTrade 订阅已启动")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range stream {
			m.handleTrade(ev)
		}
	}()
	for tf, every := range m.rollEvery {
		m.wg.Add(1)
		go func(tf string, every time.Duration) {
			defer m.wg.Done()
			m.every(ctx, every, func(now time.Time) { m.tracker.Roll(tf, now) })
		}(tf, every)
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.every(ctx, m.pruneEvery, func(now time.Time) {
			if n := m.tracker.Prune(now); n > 0 {
				logger.Debugf("[delta] 清理 %d 个空闲 symbol", n)
			}
		})
	}()
	return nil
}

// Wait 等待所有后台任务结束（ctx 取消且成交流关闭后）。
func (m *DeltaMonitor) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}

func (m *DeltaMonitor) every(ctx context.Context, d time.Duration, fn func(time.Time)) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(m.clock())
		}
	}
}

func (m *DeltaMonitor) handleTrade(ev market.TradeEvent) {
	symbol := strings.ToUpper(strings.TrimSpace(ev.Symbol))
	if symbol == "" || ev.Price <= 0 {
		return
	}
	ev.Symbol = symbol
	m.tracker.Ingest(ev)

	ts := ev.EventTime
	if ts == 0 {
		ts = ev.TradeTime
	}
	if ts == 0 {
		ts = m.clock().UnixMilli()
	}
	m.lastPriceMu.Lock()
	m.lastPrice[symbol] = lastPriceEntry{price: ev.Price, ts: ts}
	m.lastPriceMu.Unlock()
}

// LastPrice 最近一笔成交价；maxAge>0 时过期视为无数据。
func (m *DeltaMonitor) LastPrice(symbol string, maxAge time.Duration) (float64, bool) {
	if m == nil {
		return 0, false
	}
	m.lastPriceMu.RLock()
	e, ok := m.lastPrice[strings.ToUpper(strings.TrimSpace(symbol))]
	m.lastPriceMu.RUnlock()
	if !ok {
		return 0, false
	}
	if maxAge > 0 && m.clock().UnixMilli()-e.ts > maxAge.Milliseconds() {
		return 0, false
	}
	return e.price, true
}

// Connected 成交流当前是否在线。
func (m *DeltaMonitor) Connected() bool {
	if m == nil {
		return false
	}
	m.streamMu.Lock()
	defer m.streamMu.Unlock()
	return m.streamUp
}
