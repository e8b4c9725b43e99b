package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"smartflow/internal/market"
)

// 所有序列函数的输出与输入等长，回看窗口不足的位置为 NaN。

// MA 收盘价简单移动平均。period 非法或样本不足时返回空切片。
func MA(candles []market.Candle, period int) []float64 {
	return SMA(market.Closes(candles), period)
}

// SMA 任意序列的简单移动平均。
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := talib.Sma(values, period)
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// EMA 以首个收盘价为种子：ema[i] = close[i]*m + ema[i-1]*(1-m)，m = 2/(period+1)。
func EMA(candles []market.Candle, period int) []float64 {
	return market.EMASeries(market.Closes(candles), period)
}

// TrueRange 第一根为 high-low，之后取 max(h-l, |h-prevClose|, |l-prevClose|)。
func TrueRange(candles []market.Candle) []float64 {
	if len(candles) == 0 {
		return nil
	}
	out := make([]float64, len(candles))
	out[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		out[i] = trueRange(candles[i], candles[i-1].Close)
	}
	return out
}

func trueRange(c market.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ATR 对 TR 序列套用 EMA 公式（不是 Wilder 平滑），下游的 0.25/0.4/0.2×ATR 阈值依赖这一口径。
func ATR(candles []market.Candle, period int) []float64 {
	return market.EMASeries(TrueRange(candles), period)
}

// LatestATR 返回最后一根的 ATR，数据不足 period+1 根时为 0。
func LatestATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	return Last(ATR(candles, period))
}

// DirectionalIndex 最新一根的 ADX 与 DI。
type DirectionalIndex struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"di_plus"`
	MinusDI float64 `json:"di_minus"`
}

// ADX 使用滚动求和平滑：S[p-1]=前 p 个值之和，S[i]=S[i-1]-S[i-1]/p+v[i]。
// ADX 以前 p 个 DX 之和除以 p 为种子，之后 (ADX*(p-1)+DX)/p。不足 period+1 根返回 ok=false。
func ADX(candles []market.Candle, period int) (DirectionalIndex, bool) {
	if period <= 0 || len(candles) < period+1 {
		return DirectionalIndex{}, false
	}
	n := len(candles) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		tr[i-1] = trueRange(cur, prev.Close)
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}
	sTR := runningSum(tr, period)
	sPlus := runningSum(plusDM, period)
	sMinus := runningSum(minusDM, period)

	diPlus := make([]float64, n)
	diMinus := make([]float64, n)
	dx := make([]float64, n)
	for i := period - 1; i < n; i++ {
		if sTR[i] > 0 {
			diPlus[i] = 100 * sPlus[i] / sTR[i]
			diMinus[i] = 100 * sMinus[i] / sTR[i]
		}
		if sum := diPlus[i] + diMinus[i]; sum > 0 {
			dx[i] = 100 * math.Abs(diPlus[i]-diMinus[i]) / sum
		}
	}

	last := n - 1
	out := DirectionalIndex{PlusDI: diPlus[last], MinusDI: diMinus[last]}
	// DX 不足 period 个时用已有 DX 之和除以 period 作为部分种子
	seed := min(2*period-2, last)
	adx := 0.0
	for i := period - 1; i <= seed; i++ {
		adx += dx[i]
	}
	adx /= float64(period)
	for i := seed + 1; i <= last; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}
	out.ADX = adx
	return out, true
}

func runningSum(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum
	for i := period; i < len(values); i++ {
		out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
	}
	return out
}

// Band 单根 K 线的布林带取值。
type Band struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Bandwidth float64 `json:"bandwidth"`
}

// Valid 是否已越过回看窗口。
func (b Band) Valid() bool { return !math.IsNaN(b.Middle) }

// BollingerBands 中轨为 MA(period)，标准差为总体标准差，bandwidth=2k·stdev/middle（middle 为 0 时取 0）。
func BollingerBands(candles []market.Candle, period int, k float64) []Band {
	closes := market.Closes(candles)
	mid := SMA(closes, period)
	if mid == nil {
		return nil
	}
	sd := talib.StdDev(closes, period, 1)
	out := make([]Band, len(closes))
	for i := range closes {
		if i < period-1 {
			nan := math.NaN()
			out[i] = Band{Upper: nan, Middle: nan, Lower: nan, Bandwidth: nan}
			continue
		}
		s := sd[i]
		if math.IsNaN(s) || s < 0 {
			s = 0
		}
		b := Band{Middle: mid[i], Upper: mid[i] + k*s, Lower: mid[i] - k*s}
		if mid[i] != 0 {
			b.Bandwidth = 2 * k * s / mid[i]
		}
		out[i] = b
	}
	return out
}

// IsBBWExpanding 至少 period+10 根；最近 10 个带宽分两半，后半均值 > 前半均值×1.05 视为扩张。
func IsBBWExpanding(candles []market.Candle, period int, k float64) bool {
	if period <= 0 || len(candles) < period+10 {
		return false
	}
	bands := BollingerBands(candles, period, k)
	recent := bands[len(bands)-10:]
	var first, second float64
	for i, b := range recent {
		if i < 5 {
			first += b.Bandwidth
		} else {
			second += b.Bandwidth
		}
	}
	return second/5 > (first/5)*1.05
}

// VWAP = Σ(typical·volume)/Σvolume，typical=(h+l+c)/3；总成交量为 0 时 ok=false。
func VWAP(candles []market.Candle) (float64, bool) {
	var pv, vol float64
	for _, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		pv += tp * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}

// AverageVolume 最近 n 根的平均成交量，不足 n 根时按实际根数。
func AverageVolume(candles []market.Candle, n int) float64 {
	tail := market.Tail(candles, n)
	if len(tail) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range tail {
		sum += c.Volume
	}
	return sum / float64(len(tail))
}

// HighLow 返回区间内的最高价与最低价。
func HighLow(candles []market.Candle) (high, low float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low
}

// Last 序列最后一个有效值，没有则为 0。
func Last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

// At 安全下标访问，越界或未填充位置返回 NaN。
func At(series []float64, i int) float64 {
	if i < 0 || i >= len(series) {
		return math.NaN()
	}
	return series[i]
}
