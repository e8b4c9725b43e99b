package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	tradeRetention   = time.Hour
	deltaHistoryCap  = 20
	deltaIdleTimeout = 10 * time.Minute

	// 兜底累加器镜像该周期的窗口值
	fallbackTimeframe = "1h"
)

// 各周期的平滑 EMA 长度。
var deltaWindows = map[string]struct {
	window time.Duration
	ema    int
}{
	"15m": {window: 15 * time.Minute, ema: 3},
	"1h":  {window: time.Hour, ema: 6},
}

type tradePrint struct {
	at   int64
	qty  float64
	sell bool
}

type symbolDelta struct {
	trades     []tradePrint
	realtime   DeltaTotals
	history    map[string][]float64
	smoothed   map[string]float64
	lastUpdate int64
}

// TradeDeltaTracker 从逐笔成交计算主动买卖差，实现 DeltaProvider。
// 15m/1h 周期值由外部调度器定期调用 Roll 生成，再做 EMA 平滑。
type TradeDeltaTracker struct {
	mu       sync.Mutex
	symbols  map[string]*symbolDelta
	fallback *DeltaAccumulator
}

// NewTradeDeltaTracker fallback 可为 nil；非 nil 时每次 1h Roll 用窗口内买卖量覆盖它。
func NewTradeDeltaTracker(fallback *DeltaAccumulator) *TradeDeltaTracker {
	return &TradeDeltaTracker{symbols: make(map[string]*symbolDelta), fallback: fallback}
}

// Ingest 记录一笔成交。IsBuyerMaker=true 表示主动卖出。
func (t *TradeDeltaTracker) Ingest(ev TradeEvent) {
	sym := normSymbol(ev.Symbol)
	if sym == "" || !finite(ev.Quantity) || ev.Quantity <= 0 {
		return
	}
	at := ev.TradeTime
	if at == 0 {
		at = ev.EventTime
	}
	t.mu.Lock()
	st := t.symbols[sym]
	if st == nil {
		st = &symbolDelta{history: make(map[string][]float64), smoothed: make(map[string]float64)}
		t.symbols[sym] = st
	}
	st.trades = append(st.trades, tradePrint{at: at, qty: ev.Quantity, sell: ev.IsBuyerMaker})
	cutoff := at - tradeRetention.Milliseconds()
	drop := 0
	for drop < len(st.trades) && st.trades[drop].at < cutoff {
		drop++
	}
	if drop > 0 {
		st.trades = append(st.trades[:0], st.trades[drop:]...)
	}
	rt := st.realtime
	if ev.IsBuyerMaker {
		rt.Sell, _ = decimal.NewFromFloat(rt.Sell).Add(decimal.NewFromFloat(ev.Quantity)).Float64()
	} else {
		rt.Buy, _ = decimal.NewFromFloat(rt.Buy).Add(decimal.NewFromFloat(ev.Quantity)).Float64()
	}
	st.realtime = rt
	st.lastUpdate = at
	t.mu.Unlock()
}

// Roll 对 timeframe（15m/1h）窗口内的成交计算原始 delta，压入历史并更新平滑值。
func (t *TradeDeltaTracker) Roll(timeframe string, now time.Time) {
	spec, ok := deltaWindows[timeframe]
	if !ok {
		return
	}
	cutoff := now.Add(-spec.window).UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()
	for sym, st := range t.symbols {
		var buy, sell float64
		for _, tr := range st.trades {
			if tr.at < cutoff {
				continue
			}
			if tr.sell {
				sell += tr.qty
			} else {
				buy += tr.qty
			}
		}
		raw := 0.0
		if total := buy + sell; total > 0 {
			raw = (buy - sell) / total
		}
		hist := append(st.history[timeframe], raw)
		if len(hist) > deltaHistoryCap {
			hist = hist[len(hist)-deltaHistoryCap:]
		}
		st.history[timeframe] = hist
		ema := EMASeries(hist, spec.ema)
		st.smoothed[timeframe] = ema[len(ema)-1]
		if timeframe == fallbackTimeframe {
			t.fallback.Set(sym, DeltaTotals{Buy: buy, Sell: sell})
		}
	}
}

// Prune 删除超过 10 分钟没有成交的 symbol，并清掉它在兜底累加器里的值。
func (t *TradeDeltaTracker) Prune(now time.Time) int {
	cutoff := now.Add(-deltaIdleTimeout).UnixMilli()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for sym, st := range t.symbols {
		if st.lastUpdate < cutoff {
			delete(t.symbols, sym)
			t.fallback.Reset(sym)
			removed++
		}
	}
	return removed
}

// DeltaData 实现 DeltaProvider。timeframe 为 "15m"/"1h" 时返回平滑值（尚未 Roll 则 ok=false），
// 其它值返回实时累计失衡。
func (t *TradeDeltaTracker) DeltaData(symbol, timeframe string) (DeltaSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.symbols[normSymbol(symbol)]
	if st == nil {
		return DeltaSnapshot{}, false
	}
	snap := DeltaSnapshot{Buy: st.realtime.Buy, Sell: st.realtime.Sell, LastUpdate: st.lastUpdate}
	if _, windowed := deltaWindows[timeframe]; windowed {
		v, ok := st.smoothed[timeframe]
		if !ok {
			return DeltaSnapshot{}, false
		}
		snap.Delta = v
		return snap, true
	}
	if total := st.realtime.Buy + st.realtime.Sell; total > 0 {
		snap.Delta = (st.realtime.Buy - st.realtime.Sell) / total
	}
	return snap, true
}
