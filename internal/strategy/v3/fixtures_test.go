package v3

import (
	"time"

	"smartflow/internal/market"
)

const hourMs = int64(time.Hour / time.Millisecond)

// trendSeries 缓慢单边走势，最后 15 根加速以拉开布林带。
func trendSeries(n int, up bool) []market.Candle {
	out := make([]market.Candle, 0, n)
	price := 100.0
	if !up {
		price = 400.0
	}
	prev := price
	for i := 0; i < n; i++ {
		step := 0.1
		if i >= n-15 {
			step = float64(i - (n - 15) + 1)
		}
		if i > 0 {
			if up {
				price += step
			} else {
				price -= step
			}
		}
		out = append(out, market.Candle{
			OpenTime: int64(i) * 4 * hourMs,
			Open:     prev,
			High:     price + 0.5,
			Low:      price - 0.5,
			Close:    price,
			Volume:   100,
		})
		prev = price
	}
	return out
}

func flatSeries(n int, stepMs int64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{OpenTime: int64(i) * stepMs, Open: 100, High: 100, Low: 100, Close: 100, Volume: 5}
	}
	return out
}

// hourlyBreakout 29 根 100 附近的 K 线，最后一根放量收在 105。
func hourlyBreakout(n int, lastVolume float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{OpenTime: int64(i) * hourMs, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}
	out[n-1] = market.Candle{OpenTime: int64(n-1) * hourMs, Open: 100, High: 106, Low: 104, Close: 105, Volume: lastVolume}
	return out
}

// rangeSeries 收盘价在 99.5/100.5 之间交替。
func rangeSeries(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 99.5
		if i%2 == 1 {
			c = 100.5
		}
		out[i] = market.Candle{OpenTime: int64(i) * hourMs, Open: 100, High: c + 0.3, Low: c - 0.3, Close: c, Volume: 10}
	}
	return out
}

func fourHourBox(n int, high, low float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{OpenTime: int64(i) * 4 * hourMs, Open: 100, High: high, Low: low, Close: 100, Volume: 50}
	}
	return out
}
