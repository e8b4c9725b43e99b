package v3

import (
	"errors"

	"smartflow/internal/analysis/indicator"
	"smartflow/internal/market"
	"smartflow/internal/strategy"
)

const (
	// 两根确认需要前一根的 MA200
	trendMinCandles = 201
	adxPeriod       = 14
	adxThreshold    = 20
	bbPeriod        = 20
	bbK             = 2.0
)

// ClassifyTrend 4H 趋势分类：均线排列 + ADX/DI + BBW 扩张 + 最近两根确认。
func ClassifyTrend(symbol string, candles []market.Candle) TrendAssessment {
	if len(candles) < trendMinCandles {
		return rangeTrend(symbol, strategy.Insufficient("trend_4h", len(candles), trendMinCandles))
	}
	closes := market.Closes(candles)
	ma20 := indicator.SMA(closes, 20)
	ma50 := indicator.SMA(closes, 50)
	ma200 := indicator.SMA(closes, 200)
	n := len(candles) - 1

	longAt := func(i int) bool {
		return ma20[i] > ma50[i] && ma50[i] > ma200[i] && closes[i] > ma20[i]
	}
	shortAt := func(i int) bool {
		return ma20[i] < ma50[i] && ma50[i] < ma200[i] && closes[i] < ma20[i]
	}

	out := TrendAssessment{
		Symbol:     symbol,
		Direction:  DirectionRange,
		MarketType: MarketRange,
		Close:      closes[n],
		MA20:       ma20[n],
		MA50:       ma50[n],
		MA200:      ma200[n],
	}
	if dmi, ok := indicator.ADX(candles, adxPeriod); ok {
		out.ADX14, out.DIPlus, out.DIMinus = dmi.ADX, dmi.PlusDI, dmi.MinusDI
	}
	if bands := indicator.BollingerBands(candles, bbPeriod, bbK); len(bands) > 0 {
		out.BBW = bands[n].Bandwidth
	}
	out.BBWExpanding = indicator.IsBBWExpanding(candles, bbPeriod, bbK)

	if !strategy.Finite(out.Close, out.MA20, out.MA50, out.MA200, out.ADX14, out.DIPlus, out.DIMinus, out.BBW) {
		return rangeTrend(symbol, strategy.Calculation("trend_4h", errors.New("non-finite indicator value")))
	}

	isLongMA := longAt(n)
	isShortMA := shortAt(n)
	switch {
	case isLongMA:
		out.TrendConfirmed = longAt(n) && longAt(n-1)
	case isShortMA:
		out.TrendConfirmed = shortAt(n) && shortAt(n-1)
	}
	strengthLong := out.ADX14 > adxThreshold && out.DIPlus > out.DIMinus && out.BBWExpanding
	strengthShort := out.ADX14 > adxThreshold && out.DIMinus > out.DIPlus && out.BBWExpanding

	switch {
	case isLongMA && strengthLong && out.TrendConfirmed:
		out.Direction, out.MarketType = DirectionBull, MarketTrending
	case isShortMA && strengthShort && out.TrendConfirmed:
		out.Direction, out.MarketType = DirectionBear, MarketTrending
	}
	return out
}

func rangeTrend(symbol string, err *strategy.Error) TrendAssessment {
	return TrendAssessment{
		Symbol:     symbol,
		Direction:  DirectionRange,
		MarketType: MarketRange,
		Error:      err.Error(),
		ErrorKind:  err.Kind,
	}
}
