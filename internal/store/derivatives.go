package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"smartflow/internal/market"
)

// MemoryDerivatives 内存版资金费率/持仓量/行情，用于回放与测试。
type MemoryDerivatives struct {
	mu      sync.RWMutex
	funding map[string]float64
	oi      map[string][]market.OpenInterestPoint
	tickers map[string]market.Ticker
}

var _ market.DerivativesSource = (*MemoryDerivatives)(nil)

func NewMemoryDerivatives() *MemoryDerivatives {
	return &MemoryDerivatives{
		funding: make(map[string]float64),
		oi:      make(map[string][]market.OpenInterestPoint),
		tickers: make(map[string]market.Ticker),
	}
}

func (m *MemoryDerivatives) SetFunding(symbol string, rate float64) {
	m.mu.Lock()
	m.funding[strings.ToUpper(symbol)] = rate
	m.mu.Unlock()
}

func (m *MemoryDerivatives) SetOpenInterest(symbol string, pts []market.OpenInterestPoint) {
	cp := make([]market.OpenInterestPoint, len(pts))
	copy(cp, pts)
	m.mu.Lock()
	m.oi[strings.ToUpper(symbol)] = cp
	m.mu.Unlock()
}

func (m *MemoryDerivatives) SetTicker(t market.Ticker) {
	m.mu.Lock()
	m.tickers[strings.ToUpper(t.Symbol)] = t
	m.mu.Unlock()
}

func (m *MemoryDerivatives) FundingRate(ctx context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.funding[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("funding rate not available for %s", symbol)
	}
	return v, nil
}

func (m *MemoryDerivatives) OpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]market.OpenInterestPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pts, ok := m.oi[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("open interest not available for %s", symbol)
	}
	if limit > 0 && limit < len(pts) {
		pts = pts[len(pts)-limit:]
	}
	out := make([]market.OpenInterestPoint, len(pts))
	copy(out, pts)
	return out, nil
}

func (m *MemoryDerivatives) Ticker24h(ctx context.Context, symbol string) (market.Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickers[strings.ToUpper(symbol)]
	if !ok {
		return market.Ticker{}, fmt.Errorf("ticker not available for %s", symbol)
	}
	return t, nil
}
