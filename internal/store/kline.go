package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"smartflow/internal/market"
)

// KlineStore 按 symbol+interval 读写 K 线序列。
type KlineStore interface {
	Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error
	Get(ctx context.Context, symbol, interval string) ([]market.Candle, error)
}

// MemoryKlineStore 内存实现，同时作为回放/测试用的 market.Source。
type MemoryKlineStore struct {
	mu     sync.RWMutex
	series map[string][]market.Candle
}

var _ market.Source = (*MemoryKlineStore)(nil)

func NewMemoryKlineStore() *MemoryKlineStore {
	return &MemoryKlineStore{series: make(map[string][]market.Candle)}
}

func seriesKey(symbol, interval string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if symbol == "" || interval == "" {
		return "", errors.New("symbol/interval 不能为空")
	}
	return symbol + "@" + interval, nil
}

// Put 追加并裁剪到 max 根；与末尾同一开盘时间的 K 线视为增量更新。
func (s *MemoryKlineStore) Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	k, err := seriesKey(symbol, interval)
	if err != nil {
		return err
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 1500
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.series[k]
	for _, c := range ks {
		if !market.ValidCandle(c) {
			continue
		}
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == c.OpenTime {
			cur[n-1] = c
			continue
		}
		if n > 0 && cur[n-1].OpenTime > c.OpenTime {
			// 乱序写入走一次完整整理
			cur = market.Sanitize(append(cur, c))
			continue
		}
		cur = append(cur, c)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.series[k] = cur
	return nil
}

// Set 全量替换，写入前会做校验、排序与去重。
func (s *MemoryKlineStore) Set(ctx context.Context, symbol, interval string, ks []market.Candle) error {
	k, err := seriesKey(symbol, interval)
	if err != nil {
		return err
	}
	clean := market.Sanitize(ks)
	s.mu.Lock()
	s.series[k] = clean
	s.mu.Unlock()
	return nil
}

// LoadRows 把交易所原始行写入，返回保留下来的根数。
func (s *MemoryKlineStore) LoadRows(ctx context.Context, symbol, interval string, rows [][]any) (int, error) {
	candles := market.ParseKlineRows(rows)
	if err := s.Set(ctx, symbol, interval, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}

// Get 返回整条序列的拷贝。
func (s *MemoryKlineStore) Get(ctx context.Context, symbol, interval string) ([]market.Candle, error) {
	k, err := seriesKey(symbol, interval)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.series[k]
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out, nil
}

// FetchHistory 返回最近 limit 根（升序）；没有数据时报错，模拟上游失败。
func (s *MemoryKlineStore) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := seriesKey(symbol, interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.series[k]
	if !ok {
		return nil, fmt.Errorf("no klines for %s", k)
	}
	if limit > len(cur) {
		limit = len(cur)
	}
	out := make([]market.Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}
