package market

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParseKlineRows 把交易所原始 K 线行 [openTime,open,high,low,close,volume,closeTime,...]
// 转成 Candle，丢弃字段不足、收盘价非有限或 <=0、成交量为负的行。
func ParseKlineRows(rows [][]any) []Candle {
	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		c := Candle{
			OpenTime: cellInt(row[0]),
			Open:     cellFloat(row[1]),
			High:     cellFloat(row[2]),
			Low:      cellFloat(row[3]),
			Close:    cellFloat(row[4]),
			Volume:   cellFloat(row[5]),
		}
		if len(row) > 6 {
			c.CloseTime = cellInt(row[6])
		}
		if len(row) > 8 {
			c.Trades = cellInt(row[8])
		}
		if len(row) > 9 {
			c.TakerBuyVolume = cellFloat(row[9])
		}
		if !ValidCandle(c) {
			continue
		}
		out = append(out, c)
	}
	return Sanitize(out)
}

// ValidCandle 判断单根 K 线是否可参与计算。
func ValidCandle(c Candle) bool {
	if !finite(c.Close) || c.Close <= 0 {
		return false
	}
	if !finite(c.Volume) || c.Volume < 0 {
		return false
	}
	return finite(c.Open) && finite(c.High) && finite(c.Low)
}

// Sanitize 过滤无效 K 线，按开盘时间升序排序并去重（同一时间戳保留最后一根）。
func Sanitize(candles []Candle) []Candle {
	if len(candles) == 0 {
		return nil
	}
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if ValidCandle(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	dedup := out[:0]
	for _, c := range out {
		n := len(dedup)
		if n > 0 && dedup[n-1].OpenTime == c.OpenTime {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// Tail 返回最后 n 根（不足则全部），不拷贝底层数组。
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 {
		return nil
	}
	if n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}

// EMASeries 以首个值为种子：ema[i] = v[i]*m + ema[i-1]*(1-m)，m = 2/(period+1)。
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	m := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*m + out[i-1]*(1-m)
	}
	return out
}

func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

func cellFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func cellInt(v any) int64 {
	f := cellFloat(v)
	if !finite(f) {
		return 0
	}
	return int64(f)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
