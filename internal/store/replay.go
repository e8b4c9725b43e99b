package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"smartflow/internal/market"
)

// 回放文件里除周期外的保留键。
const (
	replayFunding      = "funding"
	replayOpenInterest = "open_interest"
	replayTicker       = "ticker"
)

// LoadReplay 读取 {symbol: {interval: [[row]...], "funding": x, "open_interest": [...], "ticker": {...}}}
// 写入内存存储，返回涉及的 symbol（升序）。ds 为 nil 时忽略衍生数据。
func LoadReplay(ctx context.Context, r io.Reader, ks *MemoryKlineStore, ds *MemoryDerivatives) ([]string, error) {
	if ks == nil {
		return nil, fmt.Errorf("kline store is required")
	}
	var doc map[string]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	symbols := make([]string, 0, len(doc))
	for rawSym, entries := range doc {
		sym := strings.ToUpper(strings.TrimSpace(rawSym))
		if sym == "" {
			continue
		}
		for key, raw := range entries {
			if err := loadReplayEntry(ctx, sym, strings.TrimSpace(key), raw, ks, ds); err != nil {
				return nil, fmt.Errorf("replay %s/%s: %w", sym, key, err)
			}
		}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func loadReplayEntry(ctx context.Context, sym, key string, raw json.RawMessage, ks *MemoryKlineStore, ds *MemoryDerivatives) error {
	switch key {
	case replayFunding:
		if ds == nil {
			return nil
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		ds.SetFunding(sym, v)
	case replayOpenInterest:
		if ds == nil {
			return nil
		}
		var pts []market.OpenInterestPoint
		if err := json.Unmarshal(raw, &pts); err != nil {
			return err
		}
		ds.SetOpenInterest(sym, pts)
	case replayTicker:
		if ds == nil {
			return nil
		}
		var t market.Ticker
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		t.Symbol = sym
		ds.SetTicker(t)
	default:
		var rows [][]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return err
		}
		if _, err := ks.LoadRows(ctx, sym, key, rows); err != nil {
			return err
		}
	}
	return nil
}
