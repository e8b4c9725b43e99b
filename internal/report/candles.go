package report

import (
	"encoding/csv"
	"math"
	"strconv"
	"strings"
	"time"

	"smartflow/internal/market"
)

// CandleCSVOptions 控制时间格式与价格精度。
type CandleCSVOptions struct {
	DateOnly       bool
	Location       *time.Location
	PricePrecision int
}

const (
	// PrecisionAuto 根据价格量级自动决定小数位。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 保留原始精度。
	PrecisionRaw = -1
)

// CandleCSV 按开盘时间输出 K 线，首行为列头；无数据返回空串。
func CandleCSV(candles []market.Candle, opts CandleCSVOptions) string {
	if len(candles) == 0 {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	precision := opts.PricePrecision
	if precision == PrecisionAuto {
		precision = autoPrecision(candles)
	}
	layout, header := "2006-01-02 15:04", "time"
	if opts.DateOnly {
		layout, header = "2006-01-02", "date"
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{header, "open", "high", "low", "close", "volume", "taker_buy", "trades"})
	for _, c := range candles {
		_ = w.Write([]string{
			time.UnixMilli(c.OpenTime).In(loc).Format(layout),
			formatPrice(c.Open, precision),
			formatPrice(c.High, precision),
			formatPrice(c.Low, precision),
			formatPrice(c.Close, precision),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
			strconv.FormatFloat(c.TakerBuyVolume, 'f', -1, 64),
			strconv.FormatInt(c.Trades, 10),
		})
	}
	w.Flush()
	return b.String()
}

func autoPrecision(candles []market.Candle) int {
	maxVal := 0.0
	for _, c := range candles {
		maxVal = math.Max(maxVal, math.Max(math.Abs(c.High), math.Abs(c.Low)))
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}

func formatPrice(v float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
