package ict

import (
	"time"

	"smartflow/internal/market"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	dayMs  = int64(24 * time.Hour / time.Millisecond)
	h4Ms   = int64(4 * time.Hour / time.Millisecond)
	hourMs = int64(time.Hour / time.Millisecond)
	min15x = int64(15 * time.Minute / time.Millisecond)
)

// zigzagDaily 周期为 4 的锯齿走势，高低点逐步抬高（up）或降低（down）。
func zigzagDaily(n int, up bool) []market.Candle {
	offs := [4]float64{0, 3, 6, 3}
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + float64(i) + offs[i%4]
		if !up {
			c = 300 - float64(i) - offs[i%4]
		}
		out[i] = market.Candle{
			OpenTime: testNow.UnixMilli() - int64(n-i)*dayMs,
			Open:     c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		}
	}
	return out
}

func flatCandles(n int, stepMs int64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{OpenTime: testNow.UnixMilli() - int64(n-i)*stepMs, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}
	}
	return out
}

// boxed4H 等高 K 线（高低差 2），最后一根的开盘时间为 now 前 4 小时。
func boxed4H(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{OpenTime: testNow.UnixMilli() - int64(n-i)*h4Ms, Open: 100, High: 101, Low: 99, Close: 100, Volume: 50}
	}
	return out
}

// entry15m 前 47 根窄幅，之后依次为：刺破前高 1.5 的 K 线、小阴线、放量阳包阴。
func entry15m() []market.Candle {
	out := make([]market.Candle, 0, 50)
	for i := 0; i < 47; i++ {
		out = append(out, market.Candle{Open: 99.5, High: 100, Low: 99, Close: 99.5, Volume: 10})
	}
	out = append(out,
		market.Candle{Open: 99.5, High: 101.5, Low: 99, Close: 99.5, Volume: 10},
		market.Candle{Open: 100, High: 100, Low: 99.4, Close: 99.6, Volume: 10},
		market.Candle{Open: 99.5, High: 100.5, Low: 99.4, Close: 100.4, Volume: 30},
	)
	for i := range out {
		out[i].OpenTime = testNow.UnixMilli() - int64(len(out)-i)*min15x
	}
	return out
}

// sweepSeries 20 根最高价为 100 的 K 线，最后 window 根由 tail 覆盖。
func sweepSeries(tail ...market.Candle) []market.Candle {
	out := make([]market.Candle, 20)
	for i := range out {
		out[i] = market.Candle{OpenTime: int64(i) * h4Ms, Open: 99, High: 100, Low: 98, Close: 99, Volume: 10}
	}
	copy(out[20-len(tail):], tail)
	return out
}
