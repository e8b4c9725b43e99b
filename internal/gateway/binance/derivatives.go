package binance

import (
	"context"
	"fmt"
	"strings"

	"smartflow/internal/market"
)

// FundingRate 获取最新资金费率（例如 0.0001 即 0.01%）
func (s *Source) FundingRate(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	res, err := s.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance premium index %s: %w", symbol, err)
	}
	for _, entry := range res {
		if entry == nil {
			continue
		}
		if strings.EqualFold(entry.Symbol, symbol) {
			return parseFloat(entry.LastFundingRate), nil
		}
	}
	return 0, fmt.Errorf("funding rate not available for %s", symbol)
}

// OpenInterestHistory 获取 OI 历史数据，按时间升序。
func (s *Source) OpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]market.OpenInterestPoint, error) {
	if limit <= 0 {
		limit = 30
	}
	if limit > 500 {
		limit = 500
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	period = strings.ToLower(strings.TrimSpace(period))
	if symbol == "" || period == "" {
		return nil, fmt.Errorf("symbol and period are required")
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	stats, err := s.client.NewOpenInterestStatisticsService().Symbol(symbol).Period(period).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance open interest %s: %w", symbol, err)
	}
	points := make([]market.OpenInterestPoint, 0, len(stats))
	for _, item := range stats {
		if item == nil {
			continue
		}
		points = append(points, market.OpenInterestPoint{
			Symbol:               item.Symbol,
			SumOpenInterest:      parseFloat(item.SumOpenInterest),
			SumOpenInterestValue: parseFloat(item.SumOpenInterestValue),
			Timestamp:            item.Timestamp,
		})
	}
	return points, nil
}

// Ticker24h 24 小时行情摘要。
func (s *Source) Ticker24h(ctx context.Context, symbol string) (market.Ticker, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.Ticker{}, fmt.Errorf("symbol is required")
	}
	if err := s.wait(ctx); err != nil {
		return market.Ticker{}, err
	}
	res, err := s.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return market.Ticker{}, fmt.Errorf("binance 24h ticker %s: %w", symbol, err)
	}
	for _, st := range res {
		if st == nil || !strings.EqualFold(st.Symbol, symbol) {
			continue
		}
		return market.Ticker{
			Symbol:             st.Symbol,
			LastPrice:          parseFloat(st.LastPrice),
			PriceChangePercent: parseFloat(st.PriceChangePercent),
			Volume:             parseFloat(st.Volume),
		}, nil
	}
	return market.Ticker{}, fmt.Errorf("24h ticker not available for %s", symbol)
}
