package market

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// DeltaTotals 单个交易对累计的主动买/卖量。
type DeltaTotals struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Ratio = (buy-sell)/max(buy+sell,1)。
func (t DeltaTotals) Ratio() float64 {
	buy := decimal.NewFromFloat(t.Buy)
	sell := decimal.NewFromFloat(t.Sell)
	total := buy.Add(sell)
	if total.LessThan(decimal.NewFromInt(1)) {
		total = decimal.NewFromInt(1)
	}
	r, _ := buy.Sub(sell).Div(total).Float64()
	return r
}

// DeltaAccumulator 是没有外部 delta 源时的兜底累加器，按 symbol 存放。
// 每次写入都替换整个 DeltaTotals，读者不会看到只写了一半的值。
// 同一 symbol 的写入顺序由调用方保证（单写者）；Add 本身在锁内完成读改写。
type DeltaAccumulator struct {
	mu     sync.RWMutex
	totals map[string]DeltaTotals
}

func NewDeltaAccumulator() *DeltaAccumulator {
	return &DeltaAccumulator{totals: make(map[string]DeltaTotals)}
}

func normSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Add 在已有值上累加买卖量，负数被忽略。
func (a *DeltaAccumulator) Add(symbol string, buy, sell float64) {
	if a == nil {
		return
	}
	sym := normSymbol(symbol)
	if sym == "" {
		return
	}
	if !finite(buy) || buy < 0 {
		buy = 0
	}
	if !finite(sell) || sell < 0 {
		sell = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.totals[sym]
	nb, _ := decimal.NewFromFloat(cur.Buy).Add(decimal.NewFromFloat(buy)).Float64()
	ns, _ := decimal.NewFromFloat(cur.Sell).Add(decimal.NewFromFloat(sell)).Float64()
	a.totals[sym] = DeltaTotals{Buy: nb, Sell: ns}
}

// Set 直接覆盖某个 symbol 的累计值。
func (a *DeltaAccumulator) Set(symbol string, t DeltaTotals) {
	if a == nil {
		return
	}
	sym := normSymbol(symbol)
	if sym == "" {
		return
	}
	a.mu.Lock()
	a.totals[sym] = t
	a.mu.Unlock()
}

func (a *DeltaAccumulator) Get(symbol string) (DeltaTotals, bool) {
	if a == nil {
		return DeltaTotals{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.totals[normSymbol(symbol)]
	return t, ok
}

// Reset 清空某个 symbol；symbol 为空时清空全部。
func (a *DeltaAccumulator) Reset(symbol string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	sym := normSymbol(symbol)
	if sym == "" {
		a.totals = make(map[string]DeltaTotals)
		return
	}
	delete(a.totals, sym)
}

// Ratio 返回 symbol 的失衡比例，没有记录时为 0。
func (a *DeltaAccumulator) Ratio(symbol string) float64 {
	t, ok := a.Get(symbol)
	if !ok {
		return 0
	}
	return t.Ratio()
}
